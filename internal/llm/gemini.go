package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/kcse-tutor/tutor/internal/prompt"
)

// Gemini is a Model backed by the Gemini API. The underlying client is
// created on first use.
type Gemini struct {
	apiKey     string
	httpClient *http.Client

	mu     sync.Mutex
	client *genai.Client
}

// NewGemini returns a Gemini model using apiKey. A nil httpClient uses the
// SDK default.
func NewGemini(apiKey string, httpClient *http.Client) *Gemini {
	return &Gemini{apiKey: apiKey, httpClient: httpClient}
}

// Configured reports whether an API key is set.
func (g *Gemini) Configured() bool { return g.apiKey != "" }

func (g *Gemini) getClient(ctx context.Context) (*genai.Client, error) {
	if g.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     g.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = c
	return c, nil
}

func (g *Gemini) Generate(ctx context.Context, p prompt.Prompt) (string, error) {
	c, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	resp, err := c.Models.GenerateContent(ctx, p.Model, Contents(p), Config(p))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}

func (g *Gemini) Stream(ctx context.Context, p prompt.Prompt, yield func(chunk string) error) error {
	c, err := g.getClient(ctx)
	if err != nil {
		return err
	}

	for resp, err := range c.Models.GenerateContentStream(ctx, p.Model, Contents(p), Config(p)) {
		if err != nil {
			return fmt.Errorf("stream content: %w", err)
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		if err := yield(text); err != nil {
			return err
		}
	}
	return nil
}

// Contents builds the single user turn for p. The image part, when
// present, precedes the text part.
func Contents(p prompt.Prompt) []*genai.Content {
	parts := make([]*genai.Part, 0, 2)
	if p.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(p.Image.Data, p.Image.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(p.Text))
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// Config carries the system instruction and sampling parameters of p.
func Config(p prompt.Prompt) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(p.Temperature),
		TopP:              genai.Ptr(p.TopP),
		TopK:              genai.Ptr(p.TopK),
	}
}
