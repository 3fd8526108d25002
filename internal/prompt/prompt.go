// Package prompt turns a generate request into the instruction, content
// parts and sampling parameters sent to the language model.
package prompt

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/kcse-tutor/tutor/internal/model"
)

// Default model identifiers. Essay-heavy subjects use the pro tier.
const (
	DefaultProModel   = "gemini-2.5-pro"
	DefaultFlashModel = "gemini-2.5-flash"
)

// Sampling parameters applied to every request.
const (
	Temperature float32 = 0.5
	TopP        float32 = 0.95
	TopK        float32 = 64
)

// Models names the model used for each tier.
type Models struct {
	Pro   string `yaml:"pro" mapstructure:"pro"`
	Flash string `yaml:"flash" mapstructure:"flash"`
}

// DefaultModels returns the stock model names.
func DefaultModels() Models {
	return Models{Pro: DefaultProModel, Flash: DefaultFlashModel}
}

// For returns the model that answers questions in subject.
func (m Models) For(subject model.Subject) string {
	switch subject {
	case model.History, model.English, model.Kiswahili:
		if m.Pro != "" {
			return m.Pro
		}
		return DefaultProModel
	default:
		if m.Flash != "" {
			return m.Flash
		}
		return DefaultFlashModel
	}
}

// Image is a decoded inline image.
type Image struct {
	MIMEType string
	Data     []byte
}

// Prompt is everything needed for one model call.
type Prompt struct {
	Model             string
	SystemInstruction string
	// Text is the user turn, always of the form "Question: <question>".
	Text string
	// Image, when set, is sent before Text.
	Image *Image

	Temperature float32
	TopP        float32
	TopK        float32
}

// Builder builds prompts with a fixed model routing table.
type Builder struct {
	models Models
}

// NewBuilder returns a builder using models for routing.
func NewBuilder(models Models) *Builder {
	return &Builder{models: models}
}

// Build assembles the prompt for req. It does not validate the request.
func (b *Builder) Build(req model.GenerateRequest) Prompt {
	subject := model.Subject(req.Subject)

	p := Prompt{
		Model:             b.models.For(subject),
		SystemInstruction: SystemInstruction(subject, req.Notes, req.Book),
		Text:              "Question: " + req.Question,
		Temperature:       Temperature,
		TopP:              TopP,
		TopK:              TopK,
	}
	if req.ImageBase64 != nil {
		p.Image = ParseDataURL(*req.ImageBase64)
	}
	return p
}

// Build assembles a prompt with the default model routing.
func Build(req model.GenerateRequest) Prompt {
	return NewBuilder(DefaultModels()).Build(req)
}

// SystemInstruction picks the instruction template. Non-blank notes win
// over everything else; then the mathematics and set-book templates; then
// the general syllabus template.
func SystemInstruction(subject model.Subject, notes, book string) string {
	if strings.TrimSpace(notes) != "" {
		return notesInstruction(subject, notes)
	}
	if subject == model.Math {
		return mathInstruction
	}
	if subject.HasLiterature() && book != "" {
		return literatureInstruction(subject, book)
	}
	return generalInstruction(subject)
}

func generalInstruction(subject model.Subject) string {
	return `You are an expert AI tutor specializing exclusively in the Kenyan secondary school syllabus. Your knowledge is strictly limited to the content covered in the official curriculum for Forms 1 through 4 in Kenya. Do not provide any information, examples, or context from outside this syllabus, even if it is related or more advanced.

Your task is to answer the following question from the perspective of the Kenyan syllabus for the specified subject.

Subject: ` + string(subject)
}

const mathInstruction = `You are an expert AI tutor specializing in the Kenyan secondary school mathematics syllabus for Forms 1-4. Your task is to solve the mathematical problem presented in the image and/or text. Provide a clear, step-by-step solution that would be easy for a Kenyan secondary school student to understand. Adhere strictly to the methods and curriculum of the Kenyan syllabus.`

func literatureInstruction(subject model.Subject, book string) string {
	return `You are an expert AI tutor specializing in Kenyan secondary school literature for ` + string(subject) + `. Your task is to answer the user's question about the specified set book. Provide a comprehensive, well-structured response that demonstrates a deep understanding of the book's characters, themes, and plot, adhering to the standards expected in the Kenyan secondary school curriculum (KCSE).

Set Book: ` + book + `
Subject: ` + string(subject)
}

func notesInstruction(subject model.Subject, notes string) string {
	return `You are an AI tutor for the Kenyan secondary school syllabus. Your task is to answer the user's question based *exclusively* on the provided syllabus notes below. Do not use any external knowledge or information outside of this text. If the answer cannot be found in the provided notes, state that clearly and mention that the information is not in the provided syllabus material.

Subject: ` + string(subject) + `

--- SYLLABUS NOTES ---
` + notes + `
--- END OF NOTES ---

Answer the question based only on the notes provided above.`
}

var dataURL = regexp.MustCompile(`^data:(image/.*?);base64,(.*)$`)

// ParseDataURL decodes an image data URL. Anything that is not a base64
// image data URL yields nil.
func ParseDataURL(s string) *Image {
	m := dataURL.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return nil
	}
	return &Image{MIMEType: m[1], Data: data}
}

// DataURL encodes raw image bytes as a data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
