package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kcse-tutor/tutor/internal/server"
	"github.com/kcse-tutor/tutor/internal/service"
)

const banner = `
 _____ _   _ _____ ___  ____
|_   _| | | |_   _/ _ \|  _ \
  | | | | | | | || | | | |_) |
  | | | |_| | | || |_| |  _ <
  |_|  \___/  |_| \___/|_| \_\
`

func newServeCmd() *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tutor API server",
		Long:  "Start the HTTP server that answers questions and manages access codes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(dev)
		},
	}

	cmd.Flags().IntP("port", "p", 8000, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().String("static-dir", "", "Serve a built frontend from this directory")
	cmd.Flags().String("code-mode", "", "Access code mode: reusable or single-use")
	cmd.Flags().String("store", "", "Credential store backend: memory, or empty to use database.url / the codes file")
	cmd.Flags().Bool("trust-proxy", false, "Take client IPs from X-Forwarded-For (only behind a reverse proxy)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("server.static_dir", cmd.Flags().Lookup("static-dir"))
	viper.BindPFlag("codes.mode", cmd.Flags().Lookup("code-mode"))
	viper.BindPFlag("codes.backend", cmd.Flags().Lookup("store"))
	viper.BindPFlag("server.trust_proxy", cmd.Flags().Lookup("trust-proxy"))

	return cmd
}

func runServe(dev bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr, dev)

	fmt.Print(banner)
	fmt.Println()

	ctx := context.Background()

	// 1. Access codes
	codes, closeStore, err := openCodeService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("code store initialized", "backend", backendName(cfg.Store.Backend, cfg.Store.DatabaseURL), "mode", codes.Mode())

	// 2. Admin sessions
	sessions := service.NewSessionService(cfg.AdminPassword, cfg.SessionTTL)
	if !sessions.LoginEnabled() {
		logger.Warn("ADMIN_PASSWORD is not set; admin login is disabled")
	}

	// 3. Answers
	answers := newAnswerService(cfg, logger)

	// 4. Build and start HTTP server
	srvCfg := server.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ShutdownTimeout: cfg.ShutdownTimeout,
		CORSOrigins:     cfg.CORSOrigins,
		StaticDir:       cfg.StaticDir,
		MaxBodySize:     cfg.MaxBodySize,
		VerifyPerMinute: cfg.VerifyPerMinute,
		LoginPerMinute:  cfg.LoginPerMinute,
		TrustProxy:      cfg.TrustProxy,
		Version:         versionString(),
	}
	srv := server.New(srvCfg, codes, sessions, answers, logger)

	fmt.Printf("→ Tutor %s\n", versionString())
	fmt.Printf("→ Listening on http://%s\n", cfg.Addr())
	fmt.Printf("→ OpenAPI:    http://%s/openapi.json\n", cfg.Addr())
	fmt.Printf("→ Health:     http://%s/healthz\n", cfg.Addr())
	fmt.Println()

	return srv.ListenAndServe()
}

// backendName describes the store that Open will select.
func backendName(backend, databaseURL string) string {
	if backend != "" {
		return backend
	}
	if databaseURL != "" {
		return "sql"
	}
	return "file"
}
