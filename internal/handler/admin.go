package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/server/middleware"
	"github.com/kcse-tutor/tutor/internal/service"
)

// AdminHandler serves the admin dashboard: login, logout and access code
// management. Everything except Login sits behind middleware.RequireAdmin.
type AdminHandler struct {
	codes    *service.CodeService
	sessions *service.SessionService
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(codes *service.CodeService, sessions *service.SessionService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{codes: codes, sessions: sessions, logger: logger}
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

// Login exchanges the admin password for a session token.
// POST /api/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	if !h.sessions.VerifyAdminPassword(req.Password) {
		h.logger.Warn("admin login failed", "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	token, err := h.sessions.CreateAdminSession()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Info("admin logged in", "remote_addr", r.RemoteAddr)
	writeJSON(w, http.StatusOK, model.LoginResponse{Success: true, Token: token})
}

// Logout revokes the caller's session.
// POST /api/admin/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.RevokeAdminSession(middleware.GetAdminToken(r.Context()))
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}

// ---------------------------------------------------------------------------
// Access codes
// ---------------------------------------------------------------------------

// ListCodes returns every active and used code.
// GET /api/admin/codes
func (h *AdminHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.codes.GetAllCodes(r.Context()))
}

// GenerateCode issues a new access code.
// POST /api/admin/generate-code
func (h *AdminHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.codes.CreateAccessCode(r.Context())
	if err != nil {
		h.logger.Error("generate access code", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.GenerateCodeResponse{Code: code})
}

// DeleteCode removes an active access code.
// POST /api/admin/delete-code
func (h *AdminHandler) DeleteCode(w http.ResponseWriter, r *http.Request) {
	var req model.DeleteCodeRequest
	if err := readJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "Code is required")
		return
	}

	if !h.codes.DeleteAccessCode(r.Context(), req.Code) {
		writeError(w, http.StatusNotFound, "Code not found")
		return
	}
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}
