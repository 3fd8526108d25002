package mcp

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/service"
)

// ErrLocalOnly is returned by ServeHTTP when the server was built with
// capabilities that must not be reachable over the network.
var ErrLocalOnly = errors.New("local files and access code tools are only served over stdio")

// MCPServer wraps the mcp-go server with the tutor's tools and resources.
// It lets AI agents ask syllabus questions and browse the subject catalogue.
type MCPServer struct {
	answers *service.AnswerService
	codes   *service.CodeService
	local   bool
	logger  *slog.Logger
	server  *server.MCPServer

	mu    sync.Mutex
	notes model.SyllabusNotes
}

// Option configures an MCPServer.
type Option func(*MCPServer)

// WithLocalSession marks the server as serving one local client over stdio.
// It enables the notes_file argument of tutor_ask, which reads the host
// filesystem, and the tutor_set_notes tool, which remembers notes per
// subject for the life of the process.
func WithLocalSession() Option {
	return func(s *MCPServer) { s.local = true }
}

// NewMCPServer creates an MCPServer pre-loaded with the tutor tools and
// resources. codes may be nil, in which case the access-code tools are not
// registered.
func NewMCPServer(answers *service.AnswerService, codes *service.CodeService, version string, logger *slog.Logger, opts ...Option) *MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MCPServer{
		answers: answers,
		codes:   codes,
		logger:  logger,
		notes:   model.SyllabusNotes{},
	}
	for _, opt := range opts {
		opt(s)
	}

	mcpServer := server.NewMCPServer(
		"KCSE Tutor",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, for clients that launch
// the tutor as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode, listening on
// the given address (e.g. ":8001"). The endpoint is unauthenticated, so it
// refuses to start with a local session or the access code tools.
func (s *MCPServer) ServeHTTP(addr string) error {
	if s.local || s.codes != nil {
		return ErrLocalOnly
	}
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(false),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
