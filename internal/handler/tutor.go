package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/service"
)

// TutorHandler answers questions.
type TutorHandler struct {
	answers *service.AnswerService
	logger  *slog.Logger
}

// NewTutorHandler creates a new TutorHandler.
func NewTutorHandler(answers *service.AnswerService, logger *slog.Logger) *TutorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TutorHandler{answers: answers, logger: logger}
}

// Generate returns the complete answer in one response.
// POST /api/generate
func (h *TutorHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	resp, err := h.answers.Answer(r.Context(), req)
	if err != nil {
		status, msg := classifyAnswerError(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GenerateStream sends the answer as server-sent events. Validation and
// failures before the first chunk are reported as ordinary JSON errors.
// POST /api/generate/stream
func (h *TutorHandler) GenerateStream(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	p, err := h.answers.Prepare(req)
	if err != nil {
		status, msg := classifyAnswerError(err)
		writeError(w, status, msg)
		return
	}

	rc := http.NewResponseController(w)
	started := false
	err = h.answers.StreamPrompt(r.Context(), p, func(chunk string) error {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if err := writeEvent(w, "", model.StreamChunk{Text: chunk}); err != nil {
			return err
		}
		return rc.Flush()
	})

	if err != nil {
		if !started {
			status, msg := classifyAnswerError(err)
			writeError(w, status, msg)
			return
		}
		writeEvent(w, "error", model.ErrorResponse{Error: err.Error()})
		rc.Flush()
		return
	}

	if !started {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	}
	writeEvent(w, "done", struct{}{})
	rc.Flush()
}

// Subjects lists the supported subjects with their set books and the model
// that answers them.
// GET /api/subjects
func (h *TutorHandler) Subjects(w http.ResponseWriter, r *http.Request) {
	subjects := model.Subjects()
	out := make([]model.SubjectInfo, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, model.SubjectInfo{
			Name:     string(s),
			SetBooks: model.SetBooks(s),
			Model:    h.answers.ModelFor(s),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// writeEvent writes one server-sent event. An empty name writes an
// unnamed (message) event.
func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if name != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// classifyAnswerError maps answer failures to an HTTP status and the
// message shown to the caller.
func classifyAnswerError(err error) (int, string) {
	if service.IsBadRequest(err) {
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}
