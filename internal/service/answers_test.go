package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/prompt"
)

func newTestAnswers(m *fakeModel, timeout time.Duration) *AnswerService {
	return NewAnswerService(m, prompt.DefaultModels(), timeout, discardLogger())
}

func strPtr(s string) *string { return &s }

func TestValidate(t *testing.T) {
	img := "data:image/png;base64,iVBORw0KGgo="
	tests := []struct {
		name string
		req  model.GenerateRequest
		want error
	}{
		{"question", model.GenerateRequest{Subject: "Biology", Question: "What is osmosis?"}, nil},
		{"image only", model.GenerateRequest{Subject: "Mathematics", ImageBase64: &img}, nil},
		{"missing subject", model.GenerateRequest{Question: "q"}, ErrInvalidRequest},
		{"missing question and image", model.GenerateRequest{Subject: "History"}, ErrInvalidRequest},
		{"blank question", model.GenerateRequest{Subject: "History", Question: "   "}, ErrInvalidRequest},
		{"empty image", model.GenerateRequest{Subject: "History", ImageBase64: strPtr("")}, ErrInvalidRequest},
		{"unknown subject", model.GenerateRequest{Subject: "Art", Question: "q"}, ErrUnknownSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if !IsBadRequest(err) {
				t.Error("IsBadRequest should be true")
			}
		})
	}
}

func TestAnswer(t *testing.T) {
	m := &fakeModel{answer: "Osmosis is the movement of water molecules..."}
	svc := newTestAnswers(m, 0)

	resp, err := svc.Answer(context.Background(), model.GenerateRequest{
		Subject:  "Biology",
		Question: "What is osmosis?",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Answer != m.answer {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if resp.AnswerHTML != "" {
		t.Error("html should be empty unless requested")
	}

	p := m.last()
	if p.Model != prompt.DefaultFlashModel {
		t.Errorf("model: got %q", p.Model)
	}
	if p.Text != "Question: What is osmosis?" {
		t.Errorf("text: got %q", p.Text)
	}
}

func TestAnswerHTML(t *testing.T) {
	m := &fakeModel{answer: "**Step 1:** subtract 3"}
	svc := newTestAnswers(m, 0)

	resp, err := svc.Answer(context.Background(), model.GenerateRequest{
		Subject:  "Mathematics",
		Question: "2x+3=7",
		Format:   "html",
	})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(resp.AnswerHTML, "<strong>Step 1:</strong>") {
		t.Errorf("html: got %q", resp.AnswerHTML)
	}
}

func TestAnswerInvalidRequestSkipsModel(t *testing.T) {
	m := &fakeModel{answer: "x"}
	svc := newTestAnswers(m, 0)

	_, err := svc.Answer(context.Background(), model.GenerateRequest{Subject: "History"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("got %v, want ErrInvalidRequest", err)
	}
	if m.calls() != 0 {
		t.Error("model should not be called for invalid requests")
	}
}

func TestAnswerModelError(t *testing.T) {
	upstream := errors.New("quota exceeded")
	svc := newTestAnswers(&fakeModel{err: upstream}, 0)

	_, err := svc.Answer(context.Background(), model.GenerateRequest{Subject: "History", Question: "q"})
	if !errors.Is(err, upstream) {
		t.Fatalf("got %v, want upstream error", err)
	}
	if IsBadRequest(err) {
		t.Error("upstream errors are not bad requests")
	}
}

func TestAnswerTimeout(t *testing.T) {
	svc := newTestAnswers(&fakeModel{block: true}, 20*time.Millisecond)

	start := time.Now()
	_, err := svc.Answer(context.Background(), model.GenerateRequest{Subject: "History", Question: "q"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout not applied")
	}
}

func TestStream(t *testing.T) {
	m := &fakeModel{chunks: []string{"Kigogo ", "is a ", "play."}}
	svc := newTestAnswers(m, 0)

	var got strings.Builder
	err := svc.Stream(context.Background(), model.GenerateRequest{
		Subject:  "Kiswahili",
		Question: "Kigogo ni nini?",
		Book:     "Kigogo",
	}, func(c string) error {
		got.WriteString(c)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got.String() != "Kigogo is a play." {
		t.Errorf("streamed: got %q", got.String())
	}
	if p := m.last(); p.Model != prompt.DefaultProModel || !strings.Contains(p.SystemInstruction, "Set Book: Kigogo") {
		t.Errorf("unexpected prompt: model=%q", p.Model)
	}
}

func TestStreamStopsOnYieldError(t *testing.T) {
	m := &fakeModel{chunks: []string{"a", "b", "c"}}
	svc := newTestAnswers(m, 0)
	stop := errors.New("client gone")

	n := 0
	err := svc.Stream(context.Background(), model.GenerateRequest{Subject: "History", Question: "q"}, func(string) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("got %v, want yield error", err)
	}
	if n != 1 {
		t.Errorf("yield called %d times, want 1", n)
	}
}

func TestModelFor(t *testing.T) {
	svc := newTestAnswers(&fakeModel{}, 0)
	if got := svc.ModelFor(model.English); got != prompt.DefaultProModel {
		t.Errorf("English: got %q", got)
	}
	if got := svc.ModelFor(model.Chemistry); got != prompt.DefaultFlashModel {
		t.Errorf("Chemistry: got %q", got)
	}
}
