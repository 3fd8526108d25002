package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/store"
)

// ErrCodeSpaceExhausted is returned when a fresh access code could not be
// found after maxCreateAttempts collisions.
var ErrCodeSpaceExhausted = errors.New("could not generate a unique access code")

const maxCreateAttempts = 8

// CodeMode controls what a successful verification does to the code.
type CodeMode string

const (
	// ModeReusable leaves the code active after verification. It stays
	// valid until an admin deletes it.
	ModeReusable CodeMode = "reusable"
	// ModeSingleUse moves the code to the used set on its first successful
	// verification.
	ModeSingleUse CodeMode = "single-use"
)

// ParseCodeMode validates a configured mode. Empty selects ModeReusable.
func ParseCodeMode(s string) (CodeMode, error) {
	switch CodeMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeReusable:
		return ModeReusable, nil
	case ModeSingleUse, "single_use", "singleuse":
		return ModeSingleUse, nil
	}
	return "", fmt.Errorf("unknown code mode %q (use reusable or single-use)", s)
}

// CodeService manages the lifecycle of access codes on top of a
// CredentialStore. Verification, listing and deletion never return storage
// errors; they log them and fall back to a safe default.
type CodeService struct {
	store  store.CredentialStore
	mode   CodeMode
	logger *slog.Logger

	now      func() time.Time
	generate func() (string, error)
}

// NewCodeService creates a code service. A nil logger uses slog.Default.
func NewCodeService(s store.CredentialStore, mode CodeMode, logger *slog.Logger) *CodeService {
	if logger == nil {
		logger = slog.Default()
	}
	if mode == "" {
		mode = ModeReusable
	}
	return &CodeService{
		store:    s,
		mode:     mode,
		logger:   logger,
		now:      time.Now,
		generate: GenerateCode,
	}
}

// Mode returns the verification mode of this deployment.
func (s *CodeService) Mode() CodeMode { return s.mode }

// GenerateCode returns 8 uppercase hex characters from 4 random bytes.
func GenerateCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate access code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// NormalizeCode trims whitespace and upper-cases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateAccessCode issues and stores a new unique code.
func (s *CodeService) CreateAccessCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return "", err
		}

		err = s.store.Insert(ctx, model.AccessCode{Code: code, CreatedAt: s.now().UTC()})
		if errors.Is(err, store.ErrDuplicate) {
			s.logger.Debug("access code collision, retrying", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("store access code: %w", err)
		}

		s.logger.Info("access code created", "code", code)
		return code, nil
	}
	return "", ErrCodeSpaceExhausted
}

// VerifyAccessCode reports whether code unlocks the tutor. In single-use
// mode a successful verification consumes the code.
func (s *CodeService) VerifyAccessCode(ctx context.Context, code string) bool {
	code = NormalizeCode(code)
	if code == "" {
		return false
	}

	var (
		ok  bool
		err error
	)
	switch s.mode {
	case ModeSingleUse:
		ok, err = s.store.Redeem(ctx, code, s.now().UTC())
	default:
		ok, err = s.store.IsActive(ctx, code)
	}
	if err != nil {
		s.logger.Error("verify access code", "error", err)
		return false
	}
	return ok
}

// GetAllCodes returns every active and used code. A storage failure yields
// an empty snapshot.
func (s *CodeService) GetAllCodes(ctx context.Context) model.CodeSnapshot {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		s.logger.Error("list access codes", "error", err)
		return model.EmptySnapshot()
	}
	return snap
}

// DeleteAccessCode removes an active code. It returns false when the code
// is not active or storage fails.
func (s *CodeService) DeleteAccessCode(ctx context.Context, code string) bool {
	code = NormalizeCode(code)
	if code == "" {
		return false
	}

	ok, err := s.store.Delete(ctx, code)
	if err != nil {
		s.logger.Error("delete access code", "code", code, "error", err)
		return false
	}
	if ok {
		s.logger.Info("access code deleted", "code", code)
	}
	return ok
}

// Ready checks the backing store.
func (s *CodeService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}
