package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/kcse-tutor/tutor/internal/model"
)

// FileStore keeps every code in a single JSON document:
//
//	{"accessCodes":[{"code":"A1B2C3D4","createdAt":"..."}],"usedCodes":["..."]}
//
// Each mutation is a full read-modify-write under a mutex and an advisory
// lock on path+".lock", so a running server and the code CLI can share one
// document. The new document is written to a temporary file and renamed over
// the old one, which keeps unlocked reads consistent.
type FileStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// lockRetry is how often a blocked writer polls for the file lock.
const lockRetry = 10 * time.Millisecond

// NewFileStore returns a store backed by the document at path. The file and
// its directory are created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the location of the backing document.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Insert(ctx context.Context, code model.AccessCode) error {
	unlock, err := f.lockForWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if doc.Contains(code.Code) || doc.WasUsed(code.Code) {
		return ErrDuplicate
	}
	doc.AccessCodes = append(doc.AccessCodes, code)
	return f.write(doc)
}

func (f *FileStore) IsActive(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return false, err
	}
	return doc.Contains(code), nil
}

// Redeem moves code from the active list to the used list. The document
// format stores used codes as bare strings, so usedAt is not persisted.
func (f *FileStore) Redeem(ctx context.Context, code string, _ time.Time) (bool, error) {
	unlock, err := f.lockForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	doc, err := f.read()
	if err != nil {
		return false, err
	}
	if !removeActive(&doc, code) {
		return false, nil
	}
	doc.UsedCodes = append(doc.UsedCodes, code)
	if err := f.write(doc); err != nil {
		return false, err
	}
	return true, nil
}

func (f *FileStore) Delete(ctx context.Context, code string) (bool, error) {
	unlock, err := f.lockForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	doc, err := f.read()
	if err != nil {
		return false, err
	}
	if !removeActive(&doc, code) {
		return false, nil
	}
	if err := f.write(doc); err != nil {
		return false, err
	}
	return true, nil
}

func (f *FileStore) Snapshot(_ context.Context) (model.CodeSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.read()
}

// Ping verifies the document, if present, is readable and well formed.
func (f *FileStore) Ping(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, err := f.read()
	return err
}

func (f *FileStore) Close() error { return f.lock.Close() }

// lockForWrite serialises writers in this process and across processes
// sharing the document. The returned func releases both locks.
func (f *FileStore) lockForWrite(ctx context.Context) (func(), error) {
	f.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	locked, err := f.lock.TryLockContext(ctx, lockRetry)
	if err == nil && !locked {
		err = ctx.Err()
	}
	if err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("lock codes file: %w", err)
	}
	return func() {
		f.lock.Unlock()
		f.mu.Unlock()
	}, nil
}

// read loads the document. A missing file is an empty store.
func (f *FileStore) read() (model.CodeSnapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.EmptySnapshot(), nil
	}
	if err != nil {
		return model.CodeSnapshot{}, fmt.Errorf("read codes file: %w", err)
	}

	doc := model.EmptySnapshot()
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.CodeSnapshot{}, fmt.Errorf("parse codes file %s: %w", f.path, err)
	}
	if doc.AccessCodes == nil {
		doc.AccessCodes = []model.AccessCode{}
	}
	if doc.UsedCodes == nil {
		doc.UsedCodes = []string{}
	}
	return doc, nil
}

func (f *FileStore) write(doc model.CodeSnapshot) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode codes file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp codes file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write codes file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write codes file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace codes file: %w", err)
	}
	return nil
}

func removeActive(doc *model.CodeSnapshot, code string) bool {
	idx := slices.IndexFunc(doc.AccessCodes, func(c model.AccessCode) bool {
		return c.Code == code
	})
	if idx < 0 {
		return false
	}
	doc.AccessCodes = slices.Delete(doc.AccessCodes, idx, idx+1)
	return true
}
