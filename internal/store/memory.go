package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kcse-tutor/tutor/internal/model"
)

// MemoryStore keeps codes in process memory. Everything is lost on restart.
type MemoryStore struct {
	mu     sync.Mutex
	active map[string]time.Time
	used   map[string]time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active: make(map[string]time.Time),
		used:   make(map[string]time.Time),
	}
}

func (m *MemoryStore) Insert(_ context.Context, code model.AccessCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[code.Code]; ok {
		return ErrDuplicate
	}
	if _, ok := m.used[code.Code]; ok {
		return ErrDuplicate
	}
	m.active[code.Code] = code.CreatedAt
	return nil
}

func (m *MemoryStore) IsActive(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.active[code]
	return ok, nil
}

func (m *MemoryStore) Redeem(_ context.Context, code string, usedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[code]; !ok {
		return false, nil
	}
	delete(m.active, code)
	m.used[code] = usedAt
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[code]; !ok {
		return false, nil
	}
	delete(m.active, code)
	return true, nil
}

func (m *MemoryStore) Snapshot(_ context.Context) (model.CodeSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := model.EmptySnapshot()
	for code, createdAt := range m.active {
		snap.AccessCodes = append(snap.AccessCodes, model.AccessCode{Code: code, CreatedAt: createdAt})
	}
	sortActive(snap.AccessCodes)

	used := make([]model.UsedCode, 0, len(m.used))
	for code, usedAt := range m.used {
		used = append(used, model.UsedCode{Code: code, UsedAt: usedAt})
	}
	sort.Slice(used, func(i, j int) bool {
		if used[i].UsedAt.Equal(used[j].UsedAt) {
			return used[i].Code < used[j].Code
		}
		return used[i].UsedAt.Before(used[j].UsedAt)
	})
	for _, u := range used {
		snap.UsedCodes = append(snap.UsedCodes, u.Code)
	}
	return snap, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// sortActive orders codes by creation time, oldest first, with the code
// itself as a tie-breaker.
func sortActive(codes []model.AccessCode) {
	sort.Slice(codes, func(i, j int) bool {
		if codes[i].CreatedAt.Equal(codes[j].CreatedAt) {
			return codes[i].Code < codes[j].Code
		}
		return codes[i].CreatedAt.Before(codes[j].CreatedAt)
	})
}
