package handler

import (
	"net/http"

	"carelink/internal/relationship"
	clerrors "carelink/pkg/errors"
	"carelink/pkg/logger"
	"carelink/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// RelationshipHandler handles parent-patient link endpoints.
type RelationshipHandler struct {
	service   *relationship.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewRelationshipHandler(service *relationship.Service, val *validator.Validator, log logger.Logger) *RelationshipHandler {
	return &RelationshipHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

// Create links a parent to a patient.
func (h *RelationshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req relationship.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}

	if valErrs := h.validator.ValidateStructured(&req); valErrs != nil {
		respondValidationErrors(w, valErrs)
		return
	}

	rel, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.respondRelationshipError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, rel)
}

// ListPatients returns every patient linked to a parent.
func (h *RelationshipHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	parentID, err := uuid.Parse(mux.Vars(r)["parentID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid parent ID")
		return
	}

	patients, err := h.service.ListPatients(r.Context(), parentID)
	if err != nil {
		h.respondRelationshipError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"patients": patients})
}

// ListParents returns every parent linked to a patient.
func (h *RelationshipHandler) ListParents(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(mux.Vars(r)["patientID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid patient ID")
		return
	}

	parents, err := h.service.ListParents(r.Context(), patientID)
	if err != nil {
		h.respondRelationshipError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"parents": parents})
}

// Get returns the relationship for a (parent, patient) pair.
func (h *RelationshipHandler) Get(w http.ResponseWriter, r *http.Request) {
	parentID, patientID, ok := pairVars(w, r)
	if !ok {
		return
	}

	rel, err := h.service.Get(r.Context(), parentID, patientID)
	if err != nil {
		h.respondRelationshipError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rel)
}

// Delete removes the relationship for a (parent, patient) pair.
func (h *RelationshipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	parentID, patientID, ok := pairVars(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), parentID, patientID); err != nil {
		h.respondRelationshipError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func pairVars(w http.ResponseWriter, r *http.Request) (parentID, patientID uuid.UUID, ok bool) {
	vars := mux.Vars(r)
	parentID, err := uuid.Parse(vars["parentID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid parent ID")
		return uuid.Nil, uuid.Nil, false
	}
	patientID, err = uuid.Parse(vars["patientID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid patient ID")
		return uuid.Nil, uuid.Nil, false
	}
	return parentID, patientID, true
}

func (h *RelationshipHandler) respondRelationshipError(w http.ResponseWriter, err error) {
	switch err {
	case clerrors.ErrSelfRelationship:
		respondError(w, http.StatusBadRequest, "Parent and patient cannot be the same user")
	case clerrors.ErrParentNotFound:
		respondError(w, http.StatusNotFound, "Parent not found")
	case clerrors.ErrPatientNotFound:
		respondError(w, http.StatusNotFound, "Patient not found")
	case clerrors.ErrUserNotFound:
		respondError(w, http.StatusNotFound, "User not found")
	case clerrors.ErrNotAParent:
		respondError(w, http.StatusBadRequest, "The referenced parent does not have the PARENT role")
	case clerrors.ErrNotAPatient:
		respondError(w, http.StatusBadRequest, "The referenced patient does not have the PATIENT role")
	case clerrors.ErrRelationshipExists:
		respondError(w, http.StatusConflict, "Relationship already exists")
	case clerrors.ErrRelationshipNotFound:
		respondError(w, http.StatusNotFound, "Relationship not found")
	default:
		h.logger.Error("Relationship operation failed", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Relationship operation failed")
	}
}
