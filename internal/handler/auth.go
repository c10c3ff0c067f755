package handler

import (
	"errors"
	"net/http"
	"time"

	"carelink/internal/auth"
	"carelink/internal/middleware"
	clerrors "carelink/pkg/errors"
	"carelink/pkg/logger"
	"carelink/pkg/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	service   *auth.Service
	validator *validator.Validator
	logger    logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service *auth.Service, val *validator.Validator, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

// Register handles user registration. The issued token is delivered as a
// session cookie alongside the created user's public fields.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	if valErrs := h.validator.ValidateStructured(&req); valErrs != nil {
		respondValidationErrors(w, valErrs)
		return
	}

	response, err := h.service.Register(r.Context(), &req)
	if err != nil {
		var fieldErrs auth.FieldErrors
		switch {
		case errors.As(err, &fieldErrs):
			respondValidationErrors(w, fieldErrs)
		case err == clerrors.ErrUserAlreadyExists:
			respondError(w, http.StatusConflict, "A user with this email already exists")
		case err == clerrors.ErrParentNotFound:
			respondError(w, http.StatusNotFound, "Parent account not found")
		case err == clerrors.ErrNotAParent:
			respondError(w, http.StatusBadRequest, "The referenced account is not a PARENT")
		default:
			h.logger.Error("Registration failed", map[string]interface{}{"error": err.Error()})
			respondError(w, http.StatusInternalServerError, "Registration failed")
		}
		return
	}

	middleware.SetSessionCookie(w, response.Token, int(time.Until(response.ExpiresAt).Seconds()))
	respondJSON(w, http.StatusCreated, map[string]interface{}{"user": response.User})
}

// Login authenticates a user and sets a fresh session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	if valErrs := h.validator.ValidateStructured(&req); valErrs != nil {
		respondValidationErrors(w, valErrs)
		return
	}

	response, err := h.service.Login(r.Context(), &req)
	if err != nil {
		// Deliberately generic: never reveal whether the email or the
		// password was wrong.
		respondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	middleware.SetSessionCookie(w, response.Token, int(time.Until(response.ExpiresAt).Seconds()))
	respondJSON(w, http.StatusOK, map[string]interface{}{"user_id": response.User.ID})
}

// Logout revokes the caller's session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.service.Logout(r.Context(), identity.SessionID); err != nil && err != clerrors.ErrSessionNotFound {
		h.logger.Error("Logout failed", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Logout failed")
		return
	}

	middleware.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated user's public profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.service.GetUser(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
