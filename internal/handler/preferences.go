package handler

import (
	"net/http"

	"carelink/internal/middleware"
	"carelink/internal/preferences"
	clerrors "carelink/pkg/errors"
	"carelink/pkg/logger"
	"carelink/pkg/validator"
)

// PreferencesHandler handles the authenticated user's settings.
type PreferencesHandler struct {
	service   *preferences.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewPreferencesHandler(service *preferences.Service, val *validator.Validator, log logger.Logger) *PreferencesHandler {
	return &PreferencesHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

// Get returns the caller's preferences. A user with no stored preferences
// gets a 200 with a null body; absence is not an error.
func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	prefs, err := h.service.Get(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("Failed to read preferences", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to read preferences")
		return
	}

	respondJSON(w, http.StatusOK, prefs)
}

// Update merges the supplied fields into the caller's preferences, creating
// the row on first write.
func (h *PreferencesHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req preferences.UpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	if valErrs := h.validator.ValidateStructured(&req); valErrs != nil {
		respondValidationErrors(w, valErrs)
		return
	}

	prefs, err := h.service.Update(r.Context(), identity.UserID, &req)
	if err != nil {
		if err == clerrors.ErrEmptyUpdate {
			respondError(w, http.StatusBadRequest, "At least one field must be supplied")
			return
		}
		h.logger.Error("Failed to update preferences", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to update preferences")
		return
	}

	respondJSON(w, http.StatusOK, prefs)
}
