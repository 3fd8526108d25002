package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/prompt"
	"github.com/kcse-tutor/tutor/internal/store"
)

var errBroken = errors.New("disk on fire")

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) Insert(context.Context, model.AccessCode) error          { return errBroken }
func (brokenStore) IsActive(context.Context, string) (bool, error)          { return false, errBroken }
func (brokenStore) Redeem(context.Context, string, time.Time) (bool, error) { return false, errBroken }
func (brokenStore) Delete(context.Context, string) (bool, error)            { return false, errBroken }
func (brokenStore) Snapshot(context.Context) (model.CodeSnapshot, error) {
	return model.CodeSnapshot{}, errBroken
}
func (brokenStore) Ping(context.Context) error { return errBroken }
func (brokenStore) Close() error               { return nil }

var _ store.CredentialStore = brokenStore{}

// fakeModel records prompts and replies with a canned answer.
type fakeModel struct {
	mu      sync.Mutex
	prompts []prompt.Prompt
	answer  string
	chunks  []string
	err     error
	// block waits for the context to end before returning.
	block bool
}

func (f *fakeModel) Generate(ctx context.Context, p prompt.Prompt) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeModel) Stream(ctx context.Context, p prompt.Prompt, yield func(string) error) error {
	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	for _, c := range f.chunks {
		if err := yield(c); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeModel) last() prompt.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}
