// Package store persists access codes. A single CredentialStore interface
// is backed by a JSON file, a SQL database, or process memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kcse-tutor/tutor/internal/model"
)

var (
	// ErrDuplicate is returned by Insert when the code is already active or
	// has already been used.
	ErrDuplicate = errors.New("access code already exists")

	// ErrNotFound is returned when a requested code does not exist.
	ErrNotFound = errors.New("not found")
)

// CredentialStore is the keyed record store behind the access-code
// lifecycle. Implementations must be safe for concurrent use.
type CredentialStore interface {
	// Insert adds a new active code. It fails with ErrDuplicate when the
	// code is present in either the active or the used set.
	Insert(ctx context.Context, code model.AccessCode) error
	// IsActive reports whether the code is in the active set.
	IsActive(ctx context.Context, code string) (bool, error)
	// Redeem atomically moves an active code to the used set. It returns
	// false without side effects when the code is not active.
	Redeem(ctx context.Context, code string, usedAt time.Time) (bool, error)
	// Delete removes an active code and reports whether it was present.
	Delete(ctx context.Context, code string) (bool, error)
	// Snapshot returns every active code (oldest first) and every used code.
	Snapshot(ctx context.Context) (model.CodeSnapshot, error)
	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendAuto   = ""
	BackendFile   = "file"
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

// DefaultFilePath is where the file backend keeps its document when no
// path is configured.
const DefaultFilePath = "./data/codes.json"

// Options selects and configures a backend.
type Options struct {
	Backend     string
	DatabaseURL string
	FilePath    string
}

// Open returns the backend described by opts. With BackendAuto, a non-empty
// DatabaseURL selects the SQL backend and the file backend is used otherwise.
func Open(ctx context.Context, opts Options) (CredentialStore, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == BackendAuto {
		backend = BackendFile
		if opts.DatabaseURL != "" {
			backend = BackendSQL
		}
	}

	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		path := opts.FilePath
		if path == "" {
			path = DefaultFilePath
		}
		return NewFileStore(path), nil
	case BackendSQL:
		if opts.DatabaseURL == "" {
			return nil, errors.New("sql store requires DATABASE_URL or SUPABASE_DATABASE_URL to be set")
		}
		return NewSQLStore(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q (use file, sql or memory)", opts.Backend)
	}
}
