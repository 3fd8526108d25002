// Package llm talks to the hosted language model that writes answers.
package llm

import (
	"context"
	"errors"

	"github.com/kcse-tutor/tutor/internal/prompt"
)

// ErrMissingAPIKey is returned when no model API key is configured.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY environment variable not set on the server.")

// ErrEmptyAnswer is returned when the model responds without any text.
var ErrEmptyAnswer = errors.New("the model returned an empty answer")

// Model generates answers for built prompts.
type Model interface {
	// Generate returns the complete answer text.
	Generate(ctx context.Context, p prompt.Prompt) (string, error)
	// Stream calls yield with each chunk of answer text as it arrives.
	// An error from yield stops the stream and is returned.
	Stream(ctx context.Context, p prompt.Prompt, yield func(chunk string) error) error
}
