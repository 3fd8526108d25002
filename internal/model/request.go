package model

// GenerateRequest is the payload for POST /api/generate. Notes, image and
// book are optional; either Question or ImageBase64 must be present.
type GenerateRequest struct {
	Subject     string  `json:"subject"`
	Question    string  `json:"question"`
	Notes       string  `json:"notes,omitempty"`
	ImageBase64 *string `json:"imageBase64,omitempty"`
	Book        string  `json:"book,omitempty"`
	// Format "html" additionally renders the answer Markdown to HTML.
	Format string `json:"format,omitempty"`
}

// HasImage reports whether a non-empty image data URL was supplied.
func (r GenerateRequest) HasImage() bool {
	return r.ImageBase64 != nil && *r.ImageBase64 != ""
}

// GenerateResponse carries the model's answer.
type GenerateResponse struct {
	Answer     string `json:"answer"`
	AnswerHTML string `json:"answerHtml,omitempty"`
}

// StreamChunk is the data payload of one server-sent event on the
// streaming generate endpoint.
type StreamChunk struct {
	Text string `json:"text"`
}

// VerifyCodeRequest is the payload for POST /api/verify-code.
type VerifyCodeRequest struct {
	Code string `json:"code"`
}

// DeleteCodeRequest is the payload for POST /api/admin/delete-code.
type DeleteCodeRequest struct {
	Code string `json:"code"`
}

// LoginRequest is the payload for POST /api/admin/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse is returned by a successful admin login.
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// GenerateCodeResponse is returned by POST /api/admin/generate-code.
type GenerateCodeResponse struct {
	Code string `json:"code"`
}

// SubjectInfo describes a subject for GET /api/subjects.
type SubjectInfo struct {
	Name     string   `json:"name"`
	SetBooks []string `json:"setBooks,omitempty"`
	Model    string   `json:"model"`
}

// NotesResponse is returned by POST /api/notes/extract.
type NotesResponse struct {
	Subject  string `json:"subject,omitempty"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}
