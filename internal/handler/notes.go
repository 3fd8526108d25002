package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/notes"
)

// maxMultipartMemory is how much of an upload is buffered in memory before
// spilling to disk.
const maxMultipartMemory = 32 << 20

// NotesHandler turns uploaded syllabus booklets into plain text.
type NotesHandler struct{}

// NewNotesHandler creates a new NotesHandler.
func NewNotesHandler() *NotesHandler { return &NotesHandler{} }

// Extract reads the multipart field "file" and returns its text.
// POST /api/notes/extract
func (h *NotesHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeBodyError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A file is required in the \"file\" field")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	filename := filepath.Base(hdr.Filename)
	text, err := notes.Extract(filename, data)
	if err != nil {
		if errors.Is(err, notes.ErrUnsupportedType) {
			writeError(w, http.StatusBadRequest, "Invalid file type. Please upload a .txt, .md, .pdf, or .docx file.")
			return
		}
		if errors.Is(err, notes.ErrTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Error processing file: "+err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "Error processing file: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.NotesResponse{
		Subject:  r.FormValue("subject"),
		Filename: filename,
		Text:     text,
	})
}
