// Package client is a Go client for the tutor HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kcse-tutor/tutor/internal/model"
)

// DefaultBaseURL is the server the CLI talks to when none is configured.
const DefaultBaseURL = "http://localhost:8000"

// APIError is returned for any failed call: a non-2xx response or a
// transport failure. Error returns a message fit to show a student.
type APIError struct {
	Status  int // 0 for transport failures
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to a tutor server. Token is the admin session token used
// for /api/admin routes.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
}

// New returns a client for baseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 3 * time.Minute},
	}
}

// Generate asks a question and waits for the full answer.
func (c *Client) Generate(ctx context.Context, req model.GenerateRequest) (model.GenerateResponse, error) {
	var resp model.GenerateResponse
	err := c.do(ctx, http.MethodPost, "/api/generate", req, &resp)
	return resp, err
}

// GenerateStream asks a question and calls onChunk with each piece of the
// answer as it arrives. It returns the full answer.
func (c *Client) GenerateStream(ctx context.Context, req model.GenerateRequest, onChunk func(string)) (string, error) {
	httpResp, err := c.send(ctx, http.MethodPost, "/api/generate/stream", req)
	if err != nil {
		return "", err
	}
	defer httpResp.Body.Close()

	var (
		answer strings.Builder
		event  string
	)
	sc := bufio.NewScanner(httpResp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			event = ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "done":
				return answer.String(), nil
			case "error":
				var e model.ErrorResponse
				if err := json.Unmarshal([]byte(data), &e); err != nil || e.Error == "" {
					e.Error = "The answer stream failed."
				}
				return answer.String(), &APIError{Status: httpResp.StatusCode, Message: e.Error}
			default:
				var chunk model.StreamChunk
				if err := json.Unmarshal([]byte(data), &chunk); err != nil {
					return answer.String(), &APIError{Message: "Malformed stream data: " + err.Error()}
				}
				answer.WriteString(chunk.Text)
				if onChunk != nil {
					onChunk(chunk.Text)
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return answer.String(), &APIError{Message: "Connection lost while streaming: " + err.Error()}
	}
	return answer.String(), &APIError{Message: "The answer stream ended unexpectedly."}
}

// Subjects lists the subjects the server supports.
func (c *Client) Subjects(ctx context.Context) ([]model.SubjectInfo, error) {
	var out []model.SubjectInfo
	err := c.do(ctx, http.MethodGet, "/api/subjects", nil, &out)
	return out, err
}

// VerifyCode checks an access code. A rejected code is an *APIError with
// status 401.
func (c *Client) VerifyCode(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPost, "/api/verify-code", model.VerifyCodeRequest{Code: code}, nil)
}

// AdminLogin exchanges the admin password for a session token and stores
// it on the client.
func (c *Client) AdminLogin(ctx context.Context, password string) (string, error) {
	var resp model.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/admin/login", model.LoginRequest{Password: password}, &resp); err != nil {
		return "", err
	}
	c.Token = resp.Token
	return resp.Token, nil
}

// AdminLogout revokes the client's session token.
func (c *Client) AdminLogout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/admin/logout", nil, nil); err != nil {
		return err
	}
	c.Token = ""
	return nil
}

// ListCodes returns active and used access codes.
func (c *Client) ListCodes(ctx context.Context) (model.CodeSnapshot, error) {
	var snap model.CodeSnapshot
	err := c.do(ctx, http.MethodGet, "/api/admin/codes", nil, &snap)
	return snap, err
}

// GenerateCode creates a new access code.
func (c *Client) GenerateCode(ctx context.Context) (string, error) {
	var resp model.GenerateCodeResponse
	err := c.do(ctx, http.MethodPost, "/api/admin/generate-code", nil, &resp)
	return resp.Code, err
}

// DeleteCode removes an active access code.
func (c *Client) DeleteCode(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPost, "/api/admin/delete-code", model.DeleteCodeRequest{Code: code}, nil)
}

// Health calls the liveness probe.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "Unexpected response from server: " + err.Error()}
	}
	return nil
}

// send performs the request and converts failures to *APIError. On success
// the caller owns the response body.
func (c *Client) send(ctx context.Context, method, path string, in interface{}) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, &APIError{Message: "Could not encode request: " + err.Error()}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, &APIError{Message: "Could not build request: " + err.Error()}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &APIError{Message: "Could not reach the tutor server at " + c.BaseURL + ": " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// decodeError reads the {"error": "..."} envelope, falling back to the
// status text for responses that are not JSON.
func decodeError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var e model.ErrorResponse
	if err := json.Unmarshal(data, &e); err == nil && e.Error != "" {
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
