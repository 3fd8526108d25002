package handler

import (
	"net/http"
	"strings"

	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/service"
)

// AccessHandler serves the public access code check.
type AccessHandler struct {
	codes *service.CodeService
}

// NewAccessHandler creates a new AccessHandler.
func NewAccessHandler(codes *service.CodeService) *AccessHandler {
	return &AccessHandler{codes: codes}
}

// VerifyCode checks an access code.
// POST /api/verify-code
func (h *AccessHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyCodeRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "Access code is required")
		return
	}

	if !h.codes.VerifyAccessCode(r.Context(), req.Code) {
		writeError(w, http.StatusUnauthorized, "Invalid or expired access code")
		return
	}
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}
