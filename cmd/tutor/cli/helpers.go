package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/kcse-tutor/tutor/internal/client"
	"github.com/kcse-tutor/tutor/internal/config"
	"github.com/kcse-tutor/tutor/internal/llm"
	"github.com/kcse-tutor/tutor/internal/service"
	"github.com/kcse-tutor/tutor/internal/store"
)

// loadConfig resolves the typed configuration from the global viper.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// newLogger builds the process logger. dev forces debug level.
func newLogger(cfg *config.Config, w io.Writer, dev bool) *slog.Logger {
	level := cfg.LogLevel
	if dev {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openCodeService opens the configured credential store. The returned
// close function releases it.
func openCodeService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service.CodeService, func(), error) {
	mode, err := service.ParseCodeMode(cfg.CodeMode)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open code store: %w", err)
	}
	return service.NewCodeService(st, mode, logger), func() { st.Close() }, nil
}

// newAnswerService wires the Gemini model into an AnswerService.
func newAnswerService(cfg *config.Config, logger *slog.Logger) *service.AnswerService {
	model := llm.NewGemini(cfg.APIKey, nil)
	if !model.Configured() {
		logger.Warn("GEMINI_API_KEY is not set; answer requests will fail")
	}
	return service.NewAnswerService(model, cfg.Models, cfg.ModelTimeout, logger)
}

// resolveServerURL picks the server for client commands: --server, then
// TUTOR_SERVER_URL, then the local server on the configured port.
func resolveServerURL() string {
	if serverURL != "" {
		return serverURL
	}
	if env := os.Getenv("TUTOR_SERVER_URL"); env != "" {
		return env
	}
	port := viper.GetInt("server.port")
	if port == 0 {
		port = 8000
	}
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

// newClient returns an API client for the resolved server, carrying the
// saved admin token if there is one.
func newClient() *client.Client {
	c := client.New(resolveServerURL())
	if tok, err := readAdminToken(); err == nil {
		c.Token = tok
	}
	return c
}

// stateDir returns ~/.tutor, where client state is kept.
func stateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".tutor"), nil
}

func newGate() (*client.Gate, error) {
	path, err := client.DefaultGatePath()
	if err != nil {
		return nil, err
	}
	return client.NewGate(client.New(resolveServerURL()), path), nil
}

// --- Admin token file ---

type adminState struct {
	Server string `json:"server"`
	Token  string `json:"token"`
}

func adminTokenPath() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "admin.json"), nil
}

// readAdminToken returns the saved token if it was issued by the server
// client commands currently target.
func readAdminToken() (string, error) {
	path, err := adminTokenPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var st adminState
	if err := json.Unmarshal(data, &st); err != nil {
		return "", err
	}
	if st.Server != resolveServerURL() || st.Token == "" {
		return "", errors.New("no admin session for this server")
	}
	return st.Token, nil
}

func writeAdminToken(token string) error {
	path, err := adminTokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(adminState{Server: resolveServerURL(), Token: token})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func removeAdminToken() {
	if path, err := adminTokenPath(); err == nil {
		os.Remove(path)
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
