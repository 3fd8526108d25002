package model

// ErrorResponse is the envelope for every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse acknowledges an operation that returns no other data.
type SuccessResponse struct {
	Success bool `json:"success"`
}
