package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tmcp "github.com/kcse-tutor/tutor/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var exposeCodes bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes the tutor as tools
for AI agents. Supports stdio (default) and HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for clients that launch the tutor as a subprocess.

In HTTP mode, the server listens on --addr using Streamable HTTP. The HTTP
endpoint is unauthenticated, so it never reads local files and never exposes
the access code tools.`,
		Example: `  tutor mcp                                # stdio mode
  tutor mcp --transport http --addr :8001  # HTTP mode
  tutor mcp --codes                        # also expose access code tools (stdio only)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(exposeCodes)
		},
	}

	cmd.Flags().String("transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().String("addr", ":8001", "HTTP listen address (only used with --transport http)")
	cmd.Flags().BoolVar(&exposeCodes, "codes", false, "Expose access code tools backed by the configured store")

	viper.BindPFlag("mcp.transport", cmd.Flags().Lookup("transport"))
	viper.BindPFlag("mcp.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runMCP(exposeCodes bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol in stdio mode, so logs go to stderr.
	logger := newLogger(cfg, os.Stderr, false)

	var opts []tmcp.Option
	switch cfg.MCPTransport {
	case "stdio":
		opts = append(opts, tmcp.WithLocalSession())
	case "http":
		if exposeCodes {
			return fmt.Errorf("--codes is only available with the stdio transport")
		}
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", cfg.MCPTransport)
	}

	answers := newAnswerService(cfg, logger)

	var srv *tmcp.MCPServer
	if exposeCodes {
		codes, closeStore, err := openCodeService(context.Background(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		srv = tmcp.NewMCPServer(answers, codes, versionString(), logger, opts...)
	} else {
		srv = tmcp.NewMCPServer(answers, nil, versionString(), logger, opts...)
	}

	if cfg.MCPTransport == "http" {
		return srv.ServeHTTP(cfg.MCPAddr)
	}
	return srv.ServeStdio()
}
