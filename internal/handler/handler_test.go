package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/prompt"
	"github.com/kcse-tutor/tutor/internal/server/middleware"
	"github.com/kcse-tutor/tutor/internal/service"
	"github.com/kcse-tutor/tutor/internal/store"
)

const testPassword = "supersecretpassword"

// stubModel answers every prompt with a fixed reply.
type stubModel struct {
	answer string
	chunks []string
	err    error
	// failAfter makes Stream fail once this many chunks have been sent.
	failAfter int
	last      prompt.Prompt
}

func (m *stubModel) Generate(_ context.Context, p prompt.Prompt) (string, error) {
	m.last = p
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *stubModel) Stream(_ context.Context, p prompt.Prompt, yield func(string) error) error {
	m.last = p
	for i, c := range m.chunks {
		if m.failAfter > 0 && i == m.failAfter {
			return m.err
		}
		if err := yield(c); err != nil {
			return err
		}
	}
	if m.failAfter == 0 && m.err != nil {
		return m.err
	}
	return nil
}

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store    *store.MemoryStore
	codes    *service.CodeService
	sessions *service.SessionService
	model    *stubModel
	router   chi.Router
}

// newTestEnv creates a fresh test environment with an in-memory code store,
// a stub model, and a Chi router with the API routes mounted.
func newTestEnv(t *testing.T, mode service.CodeMode) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemoryStore()
	codes := service.NewCodeService(st, mode, logger)
	sessions := service.NewSessionService(testPassword, 0)
	m := &stubModel{answer: "The answer."}
	answers := service.NewAnswerService(m, prompt.DefaultModels(), time.Minute, logger)

	tutor := NewTutorHandler(answers, logger)
	access := NewAccessHandler(codes)
	admin := NewAdminHandler(codes, sessions, logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", tutor.Generate)
		r.Post("/generate/stream", tutor.GenerateStream)
		r.Get("/subjects", tutor.Subjects)
		r.Post("/notes/extract", NewNotesHandler().Extract)
		r.Post("/verify-code", access.VerifyCode)
		r.Post("/admin/login", admin.Login)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(sessions))
			r.Post("/admin/logout", admin.Logout)
			r.Get("/admin/codes", admin.ListCodes)
			r.Post("/admin/generate-code", admin.GenerateCode)
			r.Post("/admin/delete-code", admin.DeleteCode)
		})
	})
	r.Get("/openapi.json", NewOpenAPIHandler("test").ServeSpec)

	return &testEnv{
		store:    st,
		codes:    codes,
		sessions: sessions,
		model:    m,
		router:   r,
	}
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAuth(t, method, path, body, "")
}

// doAuth is do with an admin bearer token.
func (e *testEnv) doAuth(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// login performs an admin login and returns the session token.
func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	rr := e.do(t, "POST", "/api/admin/login", toJSON(t, model.LoginRequest{Password: testPassword}))
	assertStatus(t, rr, 200)
	var resp model.LoginResponse
	decodeJSON(t, rr, &resp)
	return resp.Token
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	var resp model.ErrorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error != want {
		t.Errorf("error = %q, want %q", resp.Error, want)
	}
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

func TestGenerate(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)

	rr := env.do(t, "POST", "/api/generate", toJSON(t, model.GenerateRequest{
		Subject:  "History",
		Question: "What caused the Mau Mau uprising?",
	}))
	assertStatus(t, rr, 200)

	var resp model.GenerateResponse
	decodeJSON(t, rr, &resp)
	if resp.Answer != "The answer." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if env.model.last.Model != prompt.DefaultProModel {
		t.Errorf("model = %q, want pro model for History", env.model.last.Model)
	}
}

func TestGenerateHTML(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)
	env.model.answer = "# Title"

	rr := env.do(t, "POST", "/api/generate", toJSON(t, model.GenerateRequest{
		Subject: "Biology", Question: "q", Format: "html",
	}))
	assertStatus(t, rr, 200)

	var resp model.GenerateResponse
	decodeJSON(t, rr, &resp)
	if !strings.Contains(resp.AnswerHTML, "Title</h1>") {
		t.Errorf("answerHtml = %q", resp.AnswerHTML)
	}
}

func TestGenerateValidation(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing subject", `{"question":"q"}`, "Missing required parameters."},
		{"missing question and image", `{"subject":"History"}`, "Missing required parameters."},
		{"null image", `{"subject":"History","imageBase64":null}`, "Missing required parameters."},
		{"unknown subject", `{"subject":"Art","question":"q"}`, `unknown subject "Art"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/generate", strings.NewReader(tt.body))
			assertStatus(t, rr, 400)
			assertError(t, rr, tt.want)
		})
	}

	rr := env.do(t, "POST", "/api/generate", strings.NewReader("{not json"))
	assertStatus(t, rr, 400)
}

func TestGenerateModelFailure(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)
	env.model.err = errors.New("Resource has been exhausted (e.g. check quota).")

	rr := env.do(t, "POST", "/api/generate", toJSON(t, model.GenerateRequest{Subject: "Chemistry", Question: "q"}))
	assertStatus(t, rr, 500)
	assertError(t, rr, "Resource has been exhausted (e.g. check quota).")
}

// readEvents parses a server-sent event stream into (event, data) pairs.
func readEvents(t *testing.T, body io.Reader) [][2]string {
	t.Helper()
	var (
		out   [][2]string
		event string
	)
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			out = append(out, [2]string{event, strings.TrimPrefix(line, "data: ")})
			event = ""
		}
	}
	return out
}

func TestGenerateStream(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)
	env.model.chunks = []string{"Photosynthesis ", "is..."}

	rr := env.do(t, "POST", "/api/generate/stream", toJSON(t, model.GenerateRequest{Subject: "Biology", Question: "q"}))
	assertStatus(t, rr, 200)
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := readEvents(t, rr.Body)
	want := [][2]string{
		{"", `{"text":"Photosynthesis "}`},
		{"", `{"text":"is..."}`},
		{"done", `{}`},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, events[i], want[i])
		}
	}
}

func TestGenerateStreamErrors(t *testing.T) {
	t.Run("validation is plain JSON", func(t *testing.T) {
		env := newTestEnv(t, service.ModeReusable)
		rr := env.do(t, "POST", "/api/generate/stream", strings.NewReader(`{"subject":"History"}`))
		assertStatus(t, rr, 400)
		assertError(t, rr, "Missing required parameters.")
	})

	t.Run("failure before first chunk is plain JSON", func(t *testing.T) {
		env := newTestEnv(t, service.ModeReusable)
		env.model.err = errors.New("upstream down")
		rr := env.do(t, "POST", "/api/generate/stream", toJSON(t, model.GenerateRequest{Subject: "History", Question: "q"}))
		assertStatus(t, rr, 500)
		assertError(t, rr, "upstream down")
	})

	t.Run("failure mid-stream is an error event", func(t *testing.T) {
		env := newTestEnv(t, service.ModeReusable)
		env.model.chunks = []string{"one", "two"}
		env.model.failAfter = 1
		env.model.err = errors.New("connection reset")

		rr := env.do(t, "POST", "/api/generate/stream", toJSON(t, model.GenerateRequest{Subject: "History", Question: "q"}))
		assertStatus(t, rr, 200)
		events := readEvents(t, rr.Body)
		if len(events) != 2 {
			t.Fatalf("events = %v", events)
		}
		if events[1] != [2]string{"error", `{"error":"connection reset"}`} {
			t.Errorf("last event = %v", events[1])
		}
	})
}

func TestSubjects(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)

	rr := env.do(t, "GET", "/api/subjects", nil)
	assertStatus(t, rr, 200)

	var subjects []model.SubjectInfo
	decodeJSON(t, rr, &subjects)
	if len(subjects) != 7 {
		t.Fatalf("got %d subjects, want 7", len(subjects))
	}
	for _, s := range subjects {
		switch s.Name {
		case "English", "Kiswahili":
			if len(s.SetBooks) == 0 {
				t.Errorf("%s should list set books", s.Name)
			}
		case "Mathematics":
			if s.Model != prompt.DefaultFlashModel {
				t.Errorf("Mathematics model = %q", s.Model)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Notes
// ---------------------------------------------------------------------------

func TestExtractNotes(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	mw.WriteField("subject", "Biology")
	fw, _ := mw.CreateFormFile("file", "cells.txt")
	fw.Write([]byte("The cell is the basic unit of life."))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/notes/extract", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assertStatus(t, rr, 200)

	var resp model.NotesResponse
	decodeJSON(t, rr, &resp)
	if resp.Text != "The cell is the basic unit of life." || resp.Subject != "Biology" || resp.Filename != "cells.txt" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestExtractNotesUnsupported(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, _ := mw.CreateFormFile("file", "diagram.png")
	fw.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/notes/extract", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assertStatus(t, rr, 400)
	assertError(t, rr, "Invalid file type. Please upload a .txt, .md, .pdf, or .docx file.")
}

// ---------------------------------------------------------------------------
// Access codes
// ---------------------------------------------------------------------------

func TestVerifyCode(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)
	code, err := env.codes.CreateAccessCode(context.Background())
	if err != nil {
		t.Fatalf("CreateAccessCode: %v", err)
	}

	rr := env.do(t, "POST", "/api/verify-code", toJSON(t, model.VerifyCodeRequest{Code: strings.ToLower(code)}))
	assertStatus(t, rr, 200)
	var resp model.SuccessResponse
	decodeJSON(t, rr, &resp)
	if !resp.Success {
		t.Error("expected success")
	}

	// Reusable: a second check still passes.
	rr = env.do(t, "POST", "/api/verify-code", toJSON(t, model.VerifyCodeRequest{Code: code}))
	assertStatus(t, rr, 200)

	rr = env.do(t, "POST", "/api/verify-code", toJSON(t, model.VerifyCodeRequest{Code: "00000000"}))
	assertStatus(t, rr, 401)
	assertError(t, rr, "Invalid or expired access code")

	rr = env.do(t, "POST", "/api/verify-code", toJSON(t, model.VerifyCodeRequest{Code: "  "}))
	assertStatus(t, rr, 400)
}

func TestVerifyCodeSingleUse(t *testing.T) {
	env := newTestEnv(t, service.ModeSingleUse)
	code, err := env.codes.CreateAccessCode(context.Background())
	if err != nil {
		t.Fatalf("CreateAccessCode: %v", err)
	}

	assertStatus(t, env.do(t, "POST", "/api/verify-code", toJSON(t, model.VerifyCodeRequest{Code: code})), 200)
	assertStatus(t, env.do(t, "POST", "/api/verify-code", toJSON(t, model.VerifyCodeRequest{Code: code})), 401)
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)

	token := env.login(t)
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64", len(token))
	}

	rr := env.do(t, "POST", "/api/admin/login", toJSON(t, model.LoginRequest{Password: "wrong"}))
	assertStatus(t, rr, 401)
	assertError(t, rr, "Invalid password")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)

	routes := []struct{ method, path string }{
		{"GET", "/api/admin/codes"},
		{"POST", "/api/admin/generate-code"},
		{"POST", "/api/admin/delete-code"},
		{"POST", "/api/admin/logout"},
	}
	for _, r := range routes {
		rr := env.doAuth(t, r.method, r.path, nil, "")
		assertStatus(t, rr, 401)
		rr = env.doAuth(t, r.method, r.path, nil, "not-a-session")
		assertStatus(t, rr, 401)
	}
}

func TestAdminCodeLifecycle(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)
	token := env.login(t)

	rr := env.doAuth(t, "GET", "/api/admin/codes", nil, token)
	assertStatus(t, rr, 200)
	if body := strings.TrimSpace(rr.Body.String()); body != `{"accessCodes":[],"usedCodes":[]}` {
		t.Errorf("empty snapshot = %s", body)
	}

	rr = env.doAuth(t, "POST", "/api/admin/generate-code", nil, token)
	assertStatus(t, rr, 200)
	var gen model.GenerateCodeResponse
	decodeJSON(t, rr, &gen)
	if len(gen.Code) != 8 {
		t.Fatalf("code = %q", gen.Code)
	}

	rr = env.doAuth(t, "GET", "/api/admin/codes", nil, token)
	var snap model.CodeSnapshot
	decodeJSON(t, rr, &snap)
	if !snap.Contains(gen.Code) {
		t.Errorf("generated code missing from snapshot: %+v", snap)
	}

	rr = env.doAuth(t, "POST", "/api/admin/delete-code", toJSON(t, model.DeleteCodeRequest{Code: gen.Code}), token)
	assertStatus(t, rr, 200)

	rr = env.doAuth(t, "POST", "/api/admin/delete-code", toJSON(t, model.DeleteCodeRequest{Code: gen.Code}), token)
	assertStatus(t, rr, 404)
	assertError(t, rr, "Code not found")

	rr = env.doAuth(t, "POST", "/api/admin/delete-code", toJSON(t, model.DeleteCodeRequest{}), token)
	assertStatus(t, rr, 400)
}

func TestAdminLogout(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)
	token := env.login(t)

	assertStatus(t, env.doAuth(t, "POST", "/api/admin/logout", nil, token), 200)
	assertStatus(t, env.doAuth(t, "GET", "/api/admin/codes", nil, token), 401)
}

// ---------------------------------------------------------------------------
// OpenAPI
// ---------------------------------------------------------------------------

func TestServeSpec(t *testing.T) {
	env := newTestEnv(t, service.ModeReusable)

	rr := env.do(t, "GET", "/openapi.json", nil)
	assertStatus(t, rr, 200)

	var doc struct {
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
		Paths map[string]any `json:"paths"`
	}
	decodeJSON(t, rr, &doc)
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://example.com" {
		t.Errorf("servers = %+v", doc.Servers)
	}
	if _, ok := doc.Paths["/api/generate"]; !ok {
		t.Error("missing /api/generate")
	}
}
