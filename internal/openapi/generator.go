// Package openapi describes the tutor HTTP API as an OpenAPI 3.1 document.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kcse-tutor/tutor/internal/model"
)

const (
	tagTutor  = "tutor"
	tagAccess = "access"
	tagAdmin  = "admin"
	tagSystem = "system"
)

// Generate builds the OpenAPI document for the tutor API served at baseURL.
func Generate(baseURL, version string) *openapi3.T {
	if version == "" {
		version = "dev"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Syllabus Tutor API",
			Description: "Answers Kenyan secondary school (Forms 1-4) questions and manages access codes.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
		Tags: openapi3.Tags{
			{Name: tagTutor, Description: "Question answering"},
			{Name: tagAccess, Description: "Access code verification"},
			{Name: tagAdmin, Description: "Admin dashboard"},
			{Name: tagSystem, Description: "Health and metadata"},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = schemas()
	components.SecuritySchemes = openapi3.SecuritySchemes{
		"adminSession": &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:        "http",
				Scheme:      "bearer",
				Description: "Session token returned by POST /api/admin/login.",
			},
		},
	}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	admin := &openapi3.SecurityRequirements{{"adminSession": {}}}

	doc.Paths.Set("/api/generate", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagTutor},
		Summary:     "Answer a question",
		Description: "Builds a syllabus-grounded prompt and returns the model's Markdown answer. Set format to \"html\" to also receive rendered HTML.",
		OperationID: "generate",
		RequestBody: jsonBody("Question to answer", "GenerateRequest"),
		Responses:   newResponses("200", "Answer", ref("GenerateResponse"), "400", "500"),
	}})

	streamDesc := "Server-sent events. Each data line is {\"text\": \"...\"}; an error event carries {\"error\": \"...\"}; a done event ends the stream."
	streamResponses := openapi3.NewResponses()
	streamResponses.Set("200", &openapi3.ResponseRef{Value: &openapi3.Response{
		Description: &streamDesc,
		Content: openapi3.Content{
			"text/event-stream": &openapi3.MediaType{Schema: ref("StreamChunk")},
		},
	}})
	addErrors(streamResponses, "400", "500")
	doc.Paths.Set("/api/generate/stream", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagTutor},
		Summary:     "Stream an answer",
		OperationID: "generateStream",
		RequestBody: jsonBody("Question to answer", "GenerateRequest"),
		Responses:   streamResponses,
	}})

	doc.Paths.Set("/api/notes/extract", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagTutor},
		Summary:     "Extract text from a syllabus booklet",
		Description: "Accepts .txt, .md, .pdf or .docx uploads in the multipart field \"file\".",
		OperationID: "extractNotes",
		RequestBody: &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
			Required: true,
			Content: openapi3.Content{
				"multipart/form-data": &openapi3.MediaType{Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:     &openapi3.Types{"object"},
					Required: []string{"file"},
					Properties: openapi3.Schemas{
						"file":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "binary"}},
						"subject": stringSchema(),
					},
				}}},
			},
		}},
		Responses: newResponses("200", "Extracted text", ref("NotesResponse"), "400", "500"),
	}})

	doc.Paths.Set("/api/subjects", &openapi3.PathItem{Get: &openapi3.Operation{
		Tags:        []string{tagTutor},
		Summary:     "List subjects",
		OperationID: "listSubjects",
		Responses: newResponses("200", "Subjects", &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: ref("SubjectInfo"),
		}}),
	}})

	doc.Paths.Set("/api/verify-code", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagAccess},
		Summary:     "Verify an access code",
		OperationID: "verifyCode",
		RequestBody: jsonBody("Access code", "VerifyCodeRequest"),
		Responses:   newResponses("200", "Code accepted", ref("SuccessResponse"), "400", "401", "429"),
	}})

	doc.Paths.Set("/api/admin/login", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagAdmin},
		Summary:     "Log in to the admin dashboard",
		OperationID: "adminLogin",
		RequestBody: jsonBody("Admin password", "LoginRequest"),
		Responses:   newResponses("200", "Session created", ref("LoginResponse"), "401", "429"),
	}})

	doc.Paths.Set("/api/admin/logout", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagAdmin},
		Summary:     "End the admin session",
		OperationID: "adminLogout",
		Security:    admin,
		Responses:   newResponses("200", "Session ended", ref("SuccessResponse"), "401"),
	}})

	doc.Paths.Set("/api/admin/codes", &openapi3.PathItem{Get: &openapi3.Operation{
		Tags:        []string{tagAdmin},
		Summary:     "List access codes",
		OperationID: "listCodes",
		Security:    admin,
		Responses:   newResponses("200", "Active and used codes", ref("CodeSnapshot"), "401"),
	}})

	doc.Paths.Set("/api/admin/generate-code", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagAdmin},
		Summary:     "Issue a new access code",
		OperationID: "generateCode",
		Security:    admin,
		Responses:   newResponses("200", "New code", ref("GenerateCodeResponse"), "401", "500"),
	}})

	doc.Paths.Set("/api/admin/delete-code", &openapi3.PathItem{Post: &openapi3.Operation{
		Tags:        []string{tagAdmin},
		Summary:     "Delete an access code",
		OperationID: "deleteCode",
		Security:    admin,
		RequestBody: jsonBody("Code to delete", "DeleteCodeRequest"),
		Responses:   newResponses("200", "Code deleted", ref("SuccessResponse"), "400", "401", "404"),
	}})

	status := &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: openapi3.Schemas{"status": stringSchema()},
	}}
	doc.Paths.Set("/healthz", &openapi3.PathItem{Get: &openapi3.Operation{
		Tags:        []string{tagSystem},
		Summary:     "Liveness probe",
		OperationID: "healthz",
		Responses:   newResponses("200", "Process is up", status),
	}})
	doc.Paths.Set("/readyz", &openapi3.PathItem{Get: &openapi3.Operation{
		Tags:        []string{tagSystem},
		Summary:     "Readiness probe",
		Description: "Checks the access code store.",
		OperationID: "readyz",
		Responses:   newResponses("200", "Ready", status, "503"),
	}})

	return doc
}

func schemas() openapi3.Schemas {
	subjects := make([]any, 0, len(model.Subjects()))
	for _, s := range model.Subjects() {
		subjects = append(subjects, string(s))
	}
	subject := &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type: &openapi3.Types{"string"},
		Enum: subjects,
	}}
	code := &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:        &openapi3.Types{"string"},
		Pattern:     "^[0-9A-F]{8}$",
		Description: "8 uppercase hex characters. Input is trimmed and upper-cased before checking.",
	}}

	return openapi3.Schemas{
		"ErrorResponse": object([]string{"error"}, openapi3.Schemas{"error": stringSchema()}),
		"SuccessResponse": object([]string{"success"}, openapi3.Schemas{
			"success": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
		}),
		"GenerateRequest": object([]string{"subject"}, openapi3.Schemas{
			"subject":  subject,
			"question": stringSchema(),
			"notes":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: "Syllabus notes; when present the answer uses only these."}},
			"imageBase64": &openapi3.SchemaRef{Value: &openapi3.Schema{
				Type:        &openapi3.Types{"string", "null"},
				Description: "data:image/<type>;base64,<payload>",
			}},
			"book":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: "Set book, for English and Kiswahili."}},
			"format": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Enum: []any{"markdown", "html"}}},
		}),
		"GenerateResponse": object([]string{"answer"}, openapi3.Schemas{
			"answer":     stringSchema(),
			"answerHtml": stringSchema(),
		}),
		"StreamChunk":       object([]string{"text"}, openapi3.Schemas{"text": stringSchema()}),
		"VerifyCodeRequest": object([]string{"code"}, openapi3.Schemas{"code": code}),
		"DeleteCodeRequest": object([]string{"code"}, openapi3.Schemas{"code": code}),
		"LoginRequest":      object([]string{"password"}, openapi3.Schemas{"password": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "password"}}}),
		"LoginResponse": object([]string{"success", "token"}, openapi3.Schemas{
			"success": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
			"token":   stringSchema(),
		}),
		"GenerateCodeResponse": object([]string{"code"}, openapi3.Schemas{"code": code}),
		"AccessCode": object([]string{"code", "createdAt"}, openapi3.Schemas{
			"code":      code,
			"createdAt": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}},
		}),
		"CodeSnapshot": object([]string{"accessCodes", "usedCodes"}, openapi3.Schemas{
			"accessCodes": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: ref("AccessCode")}},
			"usedCodes":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: stringSchema()}},
		}),
		"SubjectInfo": object([]string{"name", "model"}, openapi3.Schemas{
			"name":     subject,
			"setBooks": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: stringSchema()}},
			"model":    stringSchema(),
		}),
		"NotesResponse": object([]string{"filename", "text"}, openapi3.Schemas{
			"subject":  stringSchema(),
			"filename": stringSchema(),
			"text":     stringSchema(),
		}),
	}
}

func object(required []string, props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Required:   required,
		Properties: props,
	}}
}

func stringSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func jsonBody(description, schema string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
		Description: description,
		Required:    true,
		Content:     openapi3.NewContentWithJSONSchemaRef(ref(schema)),
	}}
}

var errorDescriptions = map[string]string{
	"400": "Bad request",
	"401": "Unauthorized",
	"404": "Not found",
	"429": "Too many requests",
	"500": "Internal server error",
	"503": "Service unavailable",
}

// newResponses builds a Responses map with a success response and the
// listed error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef, errorCodes ...string) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})
	addErrors(responses, errorCodes...)
	return responses
}

func addErrors(responses *openapi3.Responses, codes ...string) {
	errorRef := ref("ErrorResponse")
	for _, code := range codes {
		desc := errorDescriptions[code]
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
}
