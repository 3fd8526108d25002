package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/notes"
)

// registerTools registers all tutor MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Tutoring tools -----

	askOpts := []mcp.ToolOption{
		mcp.WithDescription(
			"Ask the KCSE tutor a question. The answer follows the Kenyan secondary " +
				"school syllabus (Form 1 to Form 4) for the chosen subject and is " +
				"returned as Markdown. Use tutor_list_subjects to see valid subjects " +
				"and literature set books.",
		),
		mcp.WithToolAnnotation(readOnlyAnnotation()),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Subject name, e.g. \"Biology\" or \"Mathematics\""),
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The student's question"),
		),
		mcp.WithString("notes",
			mcp.Description("Syllabus notes to answer strictly from"),
		),
		mcp.WithString("book",
			mcp.Description("Literature set book for English or Kiswahili questions"),
		),
	}
	if s.local {
		askOpts = append(askOpts, mcp.WithString("notes_file",
			mcp.Description("Path to a .txt, .md, .pdf or .docx file whose text is used as notes"),
		))
	}
	srv.AddTool(mcp.NewTool("tutor_ask", askOpts...), s.handleAsk)

	if s.local {
		srv.AddTool(
			mcp.NewTool("tutor_set_notes",
				mcp.WithDescription(
					"Remember syllabus notes for a subject. Later tutor_ask calls for that "+
						"subject without their own notes answer from them. Empty notes forget "+
						"the subject's notes. Notes are kept in memory only.",
				),
				mcp.WithToolAnnotation(mutatingAnnotation()),
				mcp.WithString("subject",
					mcp.Required(),
					mcp.Description("Subject name, e.g. \"Biology\""),
				),
				mcp.WithString("notes",
					mcp.Description("Notes text"),
				),
				mcp.WithString("notes_file",
					mcp.Description("Path to a .txt, .md, .pdf or .docx file to read the notes from"),
				),
			),
			s.handleSetNotes,
		)
	}

	srv.AddTool(
		mcp.NewTool("tutor_list_subjects",
			mcp.WithDescription(
				"List the subjects the tutor covers, with the literature set books for "+
					"English and Kiswahili and the model that answers each subject.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListSubjects,
	)

	// ----- Access code tools -----

	if s.codes == nil {
		return
	}

	srv.AddTool(
		mcp.NewTool("tutor_generate_code",
			mcp.WithDescription("Create a new access code that unlocks the tutor for a student."),
			mcp.WithToolAnnotation(mutatingAnnotation()),
		),
		s.handleGenerateCode,
	)

	srv.AddTool(
		mcp.NewTool("tutor_list_codes",
			mcp.WithDescription("List active access codes and codes already redeemed."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListCodes,
	)
}

// =========================================================================
// Tool handlers
// =========================================================================

// handleAsk answers a question for a subject.
func (s *MCPServer) handleAsk(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	subject, err := requireString(request, "subject")
	if err != nil {
		return toolError("%v", err)
	}
	question, err := requireString(request, "question")
	if err != nil {
		return toolError("%v", err)
	}

	req := model.GenerateRequest{
		Subject:  subject,
		Question: question,
		Notes:    optionalString(request, "notes"),
		Book:     optionalString(request, "book"),
	}

	if path := optionalString(request, "notes_file"); path != "" {
		if !s.local {
			return toolError("notes_file is not available on this server; pass the notes text instead")
		}
		text, err := readNotesFile(path)
		if err != nil {
			return toolError("Failed to %v", err)
		}
		req.Notes = strings.TrimSpace(req.Notes + "\n\n" + text)
	}
	if strings.TrimSpace(req.Notes) == "" {
		req.Notes = s.rememberedNotes(subject)
	}

	resp, err := s.answers.Answer(ctx, req)
	if err != nil {
		return toolError("%v", err)
	}
	return mcp.NewToolResultText(resp.Answer), nil
}

// handleSetNotes remembers notes for a subject, or forgets them when the
// notes are empty.
func (s *MCPServer) handleSetNotes(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	name, err := requireString(request, "subject")
	if err != nil {
		return toolError("%v", err)
	}
	subject, err := model.ParseSubject(name)
	if err != nil {
		return toolError("%v", err)
	}

	text := optionalString(request, "notes")
	if path := optionalString(request, "notes_file"); path != "" {
		extracted, err := readNotesFile(path)
		if err != nil {
			return toolError("Failed to %v", err)
		}
		text = strings.TrimSpace(text + "\n\n" + extracted)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		delete(s.notes, subject)
		return mcp.NewToolResultText("Forgot notes for " + string(subject) + "."), nil
	}
	s.notes[subject] = text
	return mcp.NewToolResultText(fmt.Sprintf("Remembered %d characters of notes for %s.", len(text), subject)), nil
}

// rememberedNotes returns the notes stored for a subject name, if any.
func (s *MCPServer) rememberedNotes(name string) string {
	subject, err := model.ParseSubject(name)
	if err != nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes[subject]
}

// readNotesFile extracts the text of a notes file on the local filesystem.
func readNotesFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read notes file: %w", err)
	}
	text, err := notes.Extract(filepath.Base(path), data)
	if err != nil {
		return "", fmt.Errorf("extract notes: %w", err)
	}
	return text, nil
}

// handleListSubjects returns every subject with its set books and model.
func (s *MCPServer) handleListSubjects(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	return successJSON(s.subjectInfos())
}

// handleGenerateCode creates an access code.
func (s *MCPServer) handleGenerateCode(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	code, err := s.codes.CreateAccessCode(ctx)
	if err != nil {
		return toolError("Failed to generate code: %v", err)
	}
	return successJSON(model.GenerateCodeResponse{Code: code})
}

// handleListCodes returns the current code snapshot.
func (s *MCPServer) handleListCodes(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	return successJSON(s.codes.GetAllCodes(ctx))
}

func (s *MCPServer) subjectInfos() []model.SubjectInfo {
	subjects := model.Subjects()
	out := make([]model.SubjectInfo, 0, len(subjects))
	for _, subj := range subjects {
		out = append(out, model.SubjectInfo{
			Name:     string(subj),
			SetBooks: model.SetBooks(subj),
			Model:    s.answers.ModelFor(subj),
		})
	}
	return out
}
