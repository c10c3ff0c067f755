package handler

import (
	"net/http"
	"strconv"

	"carelink/internal/location"
	clerrors "carelink/pkg/errors"
	"carelink/pkg/logger"
	"carelink/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// LocationHandler handles geolocation ingestion and queries.
type LocationHandler struct {
	service   *location.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewLocationHandler(service *location.Service, val *validator.Validator, log logger.Logger) *LocationHandler {
	return &LocationHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

// Ingest records one reading from a tracker, resolved by serial number.
func (h *LocationHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req location.IngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	if valErrs := h.validator.ValidateStructured(&req); valErrs != nil {
		respondValidationErrors(w, valErrs)
		return
	}

	geo, err := h.service.Ingest(r.Context(), &req)
	if err != nil {
		if err == clerrors.ErrDeviceNotFound {
			respondError(w, http.StatusNotFound, "No device matches this serial number")
			return
		}
		h.logger.Error("Location ingest failed", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to record location")
		return
	}

	respondJSON(w, http.StatusCreated, geo)
}

// Latest returns the most recent point for a patient's current device.
func (h *LocationHandler) Latest(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["patientID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid patient ID")
		return
	}

	geo, err := h.service.Latest(r.Context(), patientID)
	if err != nil {
		h.respondLocationError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, geo)
}

// History returns the paged location history for a patient's current device.
func (h *LocationHandler) History(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["patientID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid patient ID")
		return
	}

	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	geos, total, err := h.service.History(r.Context(), patientID, limit, offset)
	if err != nil {
		h.respondLocationError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"locations": geos,
		"total":     total,
	})
}

// respondLocationError maps each resolution step to its own message so
// clients can tell which lookup failed.
func (h *LocationHandler) respondLocationError(w http.ResponseWriter, err error) {
	switch err {
	case clerrors.ErrPatientNotFound:
		respondError(w, http.StatusNotFound, "Patient not found")
	case clerrors.ErrDeviceNotFound:
		respondError(w, http.StatusNotFound, "Patient has no registered device")
	case clerrors.ErrGeolocationNotFound:
		respondError(w, http.StatusNotFound, "No location recorded for this device yet")
	default:
		h.logger.Error("Location query failed", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Location query failed")
	}
}
