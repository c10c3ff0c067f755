package postgres

import (
	"context"
	"database/sql"

	"carelink/pkg/domain"
	"carelink/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type RelationshipRepository struct {
	db *sqlx.DB
}

func NewRelationshipRepository(db *sqlx.DB) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

// Create inserts one relationship row, re-checking the role pairing inside the
// same transaction. The roles are also guarded by a trigger in the schema; the
// in-transaction check keeps the invariant when running against stores without
// trigger support.
func (r *RelationshipRepository) Create(ctx context.Context, rel *domain.Relationship) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := checkRelationshipRoles(ctx, tx, rel.ParentID, rel.PatientID); err != nil {
		return err
	}

	query := `
		INSERT INTO parent_patient_relationships (parent_id, patient_id, assigned_at)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.ExecContext(ctx, query, rel.ParentID, rel.PatientID, rel.AssignedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				return errors.ErrRelationshipExists
			case "23503": // foreign_key_violation
				return errors.ErrUserNotFound
			}
		}
		return errors.Wrap(err, "failed to create relationship")
	}

	return errors.Wrap(tx.Commit(), "failed to commit relationship")
}

// checkRelationshipRoles verifies both sides exist and carry the required
// roles, using the transaction's snapshot.
func checkRelationshipRoles(ctx context.Context, tx *sqlx.Tx, parentID, patientID uuid.UUID) error {
	var parentRole domain.Role
	err := tx.GetContext(ctx, &parentRole, `SELECT role FROM users WHERE id = $1`, parentID)
	if err == sql.ErrNoRows {
		return errors.ErrParentNotFound
	}
	if err != nil {
		return errors.Wrap(err, "failed to resolve parent role")
	}
	if parentRole != domain.RoleParent {
		return errors.ErrNotAParent
	}

	var patientRole domain.Role
	err = tx.GetContext(ctx, &patientRole, `SELECT role FROM users WHERE id = $1`, patientID)
	if err == sql.ErrNoRows {
		return errors.ErrPatientNotFound
	}
	if err != nil {
		return errors.Wrap(err, "failed to resolve patient role")
	}
	if patientRole != domain.RolePatient {
		return errors.ErrNotAPatient
	}

	return nil
}

func (r *RelationshipRepository) Find(ctx context.Context, parentID, patientID uuid.UUID) (*domain.Relationship, error) {
	var rel domain.Relationship
	query := `
		SELECT parent_id, patient_id, assigned_at
		FROM parent_patient_relationships
		WHERE parent_id = $1 AND patient_id = $2
	`

	err := r.db.GetContext(ctx, &rel, query, parentID, patientID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRelationshipNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find relationship")
	}

	return &rel, nil
}

func (r *RelationshipRepository) Delete(ctx context.Context, parentID, patientID uuid.UUID) error {
	query := `
		DELETE FROM parent_patient_relationships
		WHERE parent_id = $1 AND patient_id = $2
	`

	res, err := r.db.ExecContext(ctx, query, parentID, patientID)
	if err != nil {
		return errors.Wrap(err, "failed to delete relationship")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrRelationshipNotFound
	}

	return nil
}

// ListPatients returns the public projection of every patient linked to the
// given parent.
func (r *RelationshipRepository) ListPatients(ctx context.Context, parentID uuid.UUID) ([]*domain.PublicUser, error) {
	var patients []*domain.PublicUser
	query := `
		SELECT u.id, u.email, u.first_name, u.last_name, u.role, u.phone, u.created_at
		FROM parent_patient_relationships r
		JOIN users u ON u.id = r.patient_id
		WHERE r.parent_id = $1
		ORDER BY r.assigned_at DESC
	`

	err := r.db.SelectContext(ctx, &patients, query, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list patients")
	}

	return patients, nil
}

func (r *RelationshipRepository) ListParents(ctx context.Context, patientID uuid.UUID) ([]*domain.PublicUser, error) {
	var parents []*domain.PublicUser
	query := `
		SELECT u.id, u.email, u.first_name, u.last_name, u.role, u.phone, u.created_at
		FROM parent_patient_relationships r
		JOIN users u ON u.id = r.parent_id
		WHERE r.patient_id = $1
		ORDER BY r.assigned_at DESC
	`

	err := r.db.SelectContext(ctx, &parents, query, patientID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list parents")
	}

	return parents, nil
}
