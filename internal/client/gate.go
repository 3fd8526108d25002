package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// gateState is the on-disk form of the access gate.
type gateState struct {
	Unlocked bool `json:"unlocked"`
}

// Gate remembers whether this machine has been unlocked with a valid
// access code.
type Gate struct {
	client *Client
	path   string
}

// DefaultGatePath returns ~/.tutor/access.json.
func DefaultGatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".tutor", "access.json"), nil
}

// NewGate returns a gate that verifies codes with c and keeps its state in
// path.
func NewGate(c *Client, path string) *Gate {
	return &Gate{client: c, path: path}
}

// Path returns the state file location.
func (g *Gate) Path() string { return g.path }

// Unlocked reports whether a code was accepted earlier. A missing or
// unreadable state file means locked.
func (g *Gate) Unlocked() bool {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return false
	}
	var st gateState
	if err := json.Unmarshal(data, &st); err != nil {
		return false
	}
	return st.Unlocked
}

// Unlock verifies code with the server and records success. A rejected
// code leaves the gate unchanged.
func (g *Gate) Unlock(ctx context.Context, code string) error {
	if err := g.client.VerifyCode(ctx, code); err != nil {
		return err
	}
	return g.save(gateState{Unlocked: true})
}

// Lock forgets a previous unlock.
func (g *Gate) Lock() error {
	err := os.Remove(g.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("lock: %w", err)
	}
	return nil
}

func (g *Gate) save(st gateState) error {
	if err := os.MkdirAll(filepath.Dir(g.path), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.WriteFile(g.path, data, 0o600); err != nil {
		return fmt.Errorf("write access state: %w", err)
	}
	return nil
}
