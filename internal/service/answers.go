package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kcse-tutor/tutor/internal/llm"
	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/prompt"
	"github.com/kcse-tutor/tutor/internal/render"
)

var (
	// ErrInvalidRequest marks a generate request that is missing required
	// input. The message is shown to users as is.
	ErrInvalidRequest = errors.New("Missing required parameters.")

	// ErrUnknownSubject marks a generate request for a subject the tutor
	// does not cover.
	ErrUnknownSubject = errors.New("unknown subject")
)

// DefaultModelTimeout bounds a single model call.
const DefaultModelTimeout = 120 * time.Second

// AnswerService validates generate requests, builds prompts and asks the
// model for an answer.
type AnswerService struct {
	model   llm.Model
	builder *prompt.Builder
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnswerService creates an answer service. A zero timeout uses
// DefaultModelTimeout.
func NewAnswerService(m llm.Model, models prompt.Models, timeout time.Duration, logger *slog.Logger) *AnswerService {
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerService{
		model:   m,
		builder: prompt.NewBuilder(models),
		timeout: timeout,
		logger:  logger,
	}
}

// Validate checks that req names a known subject and carries a question or
// an image.
func Validate(req model.GenerateRequest) error {
	if req.Subject == "" || (strings.TrimSpace(req.Question) == "" && !req.HasImage()) {
		return ErrInvalidRequest
	}
	if _, err := model.ParseSubject(req.Subject); err != nil {
		return fmt.Errorf("%w %q", ErrUnknownSubject, req.Subject)
	}
	return nil
}

// Prepare validates req and builds its prompt.
func (s *AnswerService) Prepare(req model.GenerateRequest) (prompt.Prompt, error) {
	if err := Validate(req); err != nil {
		return prompt.Prompt{}, err
	}
	return s.builder.Build(req), nil
}

// ModelFor returns the model name used for subject.
func (s *AnswerService) ModelFor(subject model.Subject) string {
	return s.builder.Build(model.GenerateRequest{Subject: string(subject)}).Model
}

// Answer produces the full answer for req. When req.Format is "html" the
// response also carries the rendered answer.
func (s *AnswerService) Answer(ctx context.Context, req model.GenerateRequest) (model.GenerateResponse, error) {
	p, err := s.Prepare(req)
	if err != nil {
		return model.GenerateResponse{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	answer, err := s.model.Generate(ctx, p)
	if err != nil {
		s.logger.Error("generate answer", "subject", req.Subject, "model", p.Model, "error", err)
		return model.GenerateResponse{}, err
	}
	s.logger.Debug("answer generated",
		"subject", req.Subject,
		"model", p.Model,
		"image", p.Image != nil,
		"notes", strings.TrimSpace(req.Notes) != "",
		"duration", time.Since(start),
	)

	resp := model.GenerateResponse{Answer: answer}
	if strings.EqualFold(req.Format, "html") {
		html, err := render.Markdown(answer)
		if err != nil {
			return model.GenerateResponse{}, err
		}
		resp.AnswerHTML = html
	}
	return resp, nil
}

// Stream validates req and sends answer chunks to yield as they arrive.
func (s *AnswerService) Stream(ctx context.Context, req model.GenerateRequest, yield func(chunk string) error) error {
	p, err := s.Prepare(req)
	if err != nil {
		return err
	}
	return s.StreamPrompt(ctx, p, yield)
}

// StreamPrompt streams the answer for an already prepared prompt.
func (s *AnswerService) StreamPrompt(ctx context.Context, p prompt.Prompt, yield func(chunk string) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.model.Stream(ctx, p, yield); err != nil {
		s.logger.Error("stream answer", "model", p.Model, "error", err)
		return err
	}
	return nil
}

// IsBadRequest reports whether err came from request validation.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrUnknownSubject)
}
