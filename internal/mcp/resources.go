package mcp

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kcse-tutor/tutor/internal/model"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// -------------------------------------------------------------------
	// tutor://subjects: the subject catalogue
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			"tutor://subjects",
			"KCSE Subjects",
			mcp.WithResourceDescription(
				"Subjects covered by the tutor, with literature set books and the "+
					"model tier that answers each one.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleSubjectsResource,
	)

	// -------------------------------------------------------------------
	// tutor://subjects/{subject}: one subject (template)
	// -------------------------------------------------------------------
	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"tutor://subjects/{subject}",
			"KCSE Subject",
			mcp.WithTemplateDescription("A single subject with its set books and model."),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleSubjectResource,
	)
}

// handleSubjectsResource returns the full subject catalogue.
func (s *MCPServer) handleSubjectsResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	return jsonResource("tutor://subjects", s.subjectInfos())
}

// handleSubjectResource returns one subject named by the URI.
func (s *MCPServer) handleSubjectResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	uri := request.Params.URI
	raw := strings.TrimPrefix(uri, "tutor://subjects/")
	if raw == "" || raw == uri {
		return nil, fmt.Errorf("invalid subject URI %q: expected tutor://subjects/{subject}", uri)
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid subject URI %q: %w", uri, err)
	}

	subj, err := model.ParseSubject(name)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, model.SubjectInfo{
		Name:     string(subj),
		SetBooks: model.SetBooks(subj),
		Model:    s.answers.ModelFor(subj),
	})
}
