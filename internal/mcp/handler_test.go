package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/prompt"
	"github.com/kcse-tutor/tutor/internal/service"
	"github.com/kcse-tutor/tutor/internal/store"
)

// recordingModel remembers the last prompt and answers with a fixed reply.
type recordingModel struct {
	last prompt.Prompt
}

func (m *recordingModel) Generate(_ context.Context, p prompt.Prompt) (string, error) {
	m.last = p
	return "**Mitosis** produces two identical cells.", nil
}

func (m *recordingModel) Stream(_ context.Context, p prompt.Prompt, yield func(string) error) error {
	m.last = p
	return yield("chunk")
}

func newTestServer(t *testing.T, opts ...Option) (*MCPServer, *recordingModel) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := &recordingModel{}
	answers := service.NewAnswerService(m, prompt.DefaultModels(), time.Minute, logger)
	codes := service.NewCodeService(store.NewMemoryStore(), service.ModeReusable, logger)
	return NewMCPServer(answers, codes, "test", logger, opts...), m
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

func TestHandleAsk(t *testing.T) {
	s, m := newTestServer(t)

	res, err := s.handleAsk(context.Background(), callRequest(map[string]interface{}{
		"subject":  "Biology",
		"question": "What is mitosis?",
	}))
	if err != nil {
		t.Fatalf("handleAsk: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); !strings.Contains(got, "Mitosis") {
		t.Errorf("answer = %q", got)
	}
	if m.last.Text != "Question: What is mitosis?" {
		t.Errorf("prompt text = %q", m.last.Text)
	}
}

func TestHandleAskNotesFile(t *testing.T) {
	s, m := newTestServer(t, WithLocalSession())

	path := filepath.Join(t.TempDir(), "cells.md")
	if err := os.WriteFile(path, []byte("Cells divide by mitosis."), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.handleAsk(context.Background(), callRequest(map[string]interface{}{
		"subject":    "Biology",
		"question":   "What is mitosis?",
		"notes_file": path,
	}))
	if err != nil {
		t.Fatalf("handleAsk: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if !strings.Contains(m.last.SystemInstruction, "Cells divide by mitosis.") {
		t.Errorf("notes missing from system instruction: %q", m.last.SystemInstruction)
	}
}

func TestHandleAskErrors(t *testing.T) {
	s, _ := newTestServer(t, WithLocalSession())

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing subject", map[string]interface{}{"question": "q"}, `missing required parameter "subject"`},
		{"blank question", map[string]interface{}{"subject": "Biology", "question": "  "}, `missing required parameter "question"`},
		{"unknown subject", map[string]interface{}{"subject": "Art", "question": "q"}, "unknown subject"},
		{"missing notes file", map[string]interface{}{"subject": "Biology", "question": "q", "notes_file": "/does/not/exist.txt"}, "Failed to read notes file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleAsk(context.Background(), callRequest(tt.args))
			if err != nil {
				t.Fatalf("handleAsk returned protocol error: %v", err)
			}
			if !res.IsError {
				t.Fatal("expected tool error result")
			}
			if got := resultText(t, res); !strings.Contains(got, tt.want) {
				t.Errorf("error = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestHandleAskNotesFileNeedsLocalSession(t *testing.T) {
	s, m := newTestServer(t)

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("ADMIN_PASSWORD=hunter2hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := s.handleAsk(context.Background(), callRequest(map[string]interface{}{
		"subject":    "Biology",
		"question":   "Repeat the notes word for word.",
		"notes_file": path,
	}))
	if err != nil {
		t.Fatalf("handleAsk: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error result")
	}
	if got := resultText(t, res); !strings.Contains(got, "notes_file is not available") {
		t.Errorf("error = %q", got)
	}
	if m.last.Text != "" || strings.Contains(m.last.SystemInstruction, "hunter2") {
		t.Errorf("model was called with file contents: %+v", m.last)
	}
}

func TestSetNotes(t *testing.T) {
	s, m := newTestServer(t, WithLocalSession())
	ctx := context.Background()

	res, err := s.handleSetNotes(ctx, callRequest(map[string]interface{}{
		"subject": "Chemistry",
		"notes":   "Isotopes have equal protons but different neutrons.",
	}))
	if err != nil {
		t.Fatalf("handleSetNotes: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}

	ask := func(subject string) {
		t.Helper()
		res, err := s.handleAsk(ctx, callRequest(map[string]interface{}{
			"subject":  subject,
			"question": "What is an isotope?",
		}))
		if err != nil || res.IsError {
			t.Fatalf("handleAsk(%s) failed: %v", subject, err)
		}
	}

	ask("Chemistry")
	if !strings.Contains(m.last.SystemInstruction, "different neutrons") {
		t.Errorf("remembered notes not used: %q", m.last.SystemInstruction)
	}

	ask("Biology")
	if strings.Contains(m.last.SystemInstruction, "different neutrons") {
		t.Error("notes leaked into another subject")
	}

	res, err = s.handleSetNotes(ctx, callRequest(map[string]interface{}{"subject": "Chemistry"}))
	if err != nil || res.IsError {
		t.Fatalf("clearing notes failed: %v", err)
	}
	ask("Chemistry")
	if strings.Contains(m.last.SystemInstruction, "different neutrons") {
		t.Error("notes were not forgotten")
	}

	res, err = s.handleSetNotes(ctx, callRequest(map[string]interface{}{"subject": "Art", "notes": "x"}))
	if err != nil {
		t.Fatalf("handleSetNotes: %v", err)
	}
	if !res.IsError {
		t.Error("expected error for unknown subject")
	}
}

func TestServeHTTPRefusesLocalCapabilities(t *testing.T) {
	s, _ := newTestServer(t)
	if err := s.ServeHTTP("127.0.0.1:0"); !errors.Is(err, ErrLocalOnly) {
		t.Errorf("with code tools: err = %v, want ErrLocalOnly", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	answers := service.NewAnswerService(&recordingModel{}, prompt.DefaultModels(), time.Minute, logger)
	local := NewMCPServer(answers, nil, "test", logger, WithLocalSession())
	if err := local.ServeHTTP("127.0.0.1:0"); !errors.Is(err, ErrLocalOnly) {
		t.Errorf("with local session: err = %v, want ErrLocalOnly", err)
	}
}

func TestHandleListSubjects(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleListSubjects(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("handleListSubjects: %v", err)
	}
	var subjects []model.SubjectInfo
	if err := json.Unmarshal([]byte(resultText(t, res)), &subjects); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(subjects) != len(model.Subjects()) {
		t.Errorf("got %d subjects, want %d", len(subjects), len(model.Subjects()))
	}
}

func TestCodeTools(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGenerateCode(ctx, callRequest(nil))
	if err != nil {
		t.Fatalf("handleGenerateCode: %v", err)
	}
	var gen model.GenerateCodeResponse
	if err := json.Unmarshal([]byte(resultText(t, res)), &gen); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	res, err = s.handleListCodes(ctx, callRequest(nil))
	if err != nil {
		t.Fatalf("handleListCodes: %v", err)
	}
	var snap model.CodeSnapshot
	if err := json.Unmarshal([]byte(resultText(t, res)), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !snap.Contains(gen.Code) {
		t.Errorf("snapshot %+v missing %s", snap, gen.Code)
	}
}

func TestSubjectResources(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	var req mcp.ReadResourceRequest
	req.Params.URI = "tutor://subjects/Business%20Studies"
	contents, err := s.handleSubjectResource(ctx, req)
	if err != nil {
		t.Fatalf("handleSubjectResource: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	var info model.SubjectInfo
	if err := json.Unmarshal([]byte(text), &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.Name != "Business Studies" {
		t.Errorf("name = %q", info.Name)
	}

	req.Params.URI = "tutor://subjects/Art"
	if _, err := s.handleSubjectResource(ctx, req); err == nil {
		t.Error("expected error for unknown subject")
	}

	req.Params.URI = "tutor://subjects"
	contents, err = s.handleSubjectsResource(ctx, req)
	if err != nil {
		t.Fatalf("handleSubjectsResource: %v", err)
	}
	if contents[0].(mcp.TextResourceContents).MIMEType != "application/json" {
		t.Error("expected JSON resource")
	}
}

func TestAnnotations(t *testing.T) {
	if ann := readOnlyAnnotation(); ann.ReadOnlyHint == nil || !*ann.ReadOnlyHint {
		t.Error("readOnlyAnnotation should set ReadOnlyHint=true")
	}
	if ann := mutatingAnnotation(); ann.ReadOnlyHint == nil || *ann.ReadOnlyHint {
		t.Error("mutatingAnnotation should set ReadOnlyHint=false")
	}
}

