// Package relationship manages the links that authorize a PARENT to view a
// PATIENT's data.
package relationship

import (
	"context"
	"time"

	"carelink/pkg/domain"
	clerrors "carelink/pkg/errors"

	"github.com/google/uuid"
)

// Service provides relationship CRUD.
type Service struct {
	relationships Repository
	users         UserRepository
}

func NewService(relationships Repository, users UserRepository) *Service {
	return &Service{
		relationships: relationships,
		users:         users,
	}
}

// CreateRequest captures the pair to link.
type CreateRequest struct {
	ParentID  uuid.UUID `json:"parent_id" validate:"required"`
	PatientID uuid.UUID `json:"patient_id" validate:"required"`
}

// Create links a parent to a patient. Role pairing and uniqueness are enforced
// by the repository inside the insert transaction.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*domain.Relationship, error) {
	if req.ParentID == req.PatientID {
		return nil, clerrors.ErrSelfRelationship
	}

	rel := &domain.Relationship{
		ParentID:   req.ParentID,
		PatientID:  req.PatientID,
		AssignedAt: time.Now(),
	}

	if err := s.relationships.Create(ctx, rel); err != nil {
		return nil, err
	}

	return rel, nil
}

// ListPatients returns every patient linked to the given parent.
func (s *Service) ListPatients(ctx context.Context, parentID uuid.UUID) ([]*domain.PublicUser, error) {
	exists, err := s.users.ExistsByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, clerrors.ErrParentNotFound
	}

	patients, err := s.relationships.ListPatients(ctx, parentID)
	if err != nil {
		return nil, err
	}

	// Contact numbers only appear on the parent-side listing; the patient
	// projection is id, name, email.
	for _, p := range patients {
		p.Phone = nil
	}

	return patients, nil
}

// ListParents returns every parent linked to the given patient, including
// phone numbers so caregivers can be reached.
func (s *Service) ListParents(ctx context.Context, patientID uuid.UUID) ([]*domain.PublicUser, error) {
	exists, err := s.users.ExistsByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, clerrors.ErrPatientNotFound
	}

	return s.relationships.ListParents(ctx, patientID)
}

// Get returns the relationship for a (parent, patient) pair.
func (s *Service) Get(ctx context.Context, parentID, patientID uuid.UUID) (*domain.Relationship, error) {
	return s.relationships.Find(ctx, parentID, patientID)
}

// Delete removes the relationship for a (parent, patient) pair.
func (s *Service) Delete(ctx context.Context, parentID, patientID uuid.UUID) error {
	return s.relationships.Delete(ctx, parentID, patientID)
}

// Repository interfaces

type Repository interface {
	Create(ctx context.Context, rel *domain.Relationship) error
	Find(ctx context.Context, parentID, patientID uuid.UUID) (*domain.Relationship, error)
	Delete(ctx context.Context, parentID, patientID uuid.UUID) error
	ListPatients(ctx context.Context, parentID uuid.UUID) ([]*domain.PublicUser, error)
	ListParents(ctx context.Context, patientID uuid.UUID) ([]*domain.PublicUser, error)
}

type UserRepository interface {
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
}
