package postgres

import (
	"context"

	"carelink/pkg/domain"
	"carelink/pkg/errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// RegistrationRepository performs the multi-insert registration flow as one
// transaction: user, optional device + initial geolocation + parent link, and
// the first session. Either every row lands or none do.
type RegistrationRepository struct {
	db *sqlx.DB
}

func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) Register(ctx context.Context, user *domain.User, enrollment *domain.PatientEnrollment, session *domain.UserSession) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin registration transaction")
	}
	defer tx.Rollback()

	userQuery := `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, role, phone, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`
	if _, err := tx.ExecContext(ctx, userQuery,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.Role, user.Phone, user.CreatedAt, user.UpdatedAt,
	); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return errors.ErrUserAlreadyExists
		}
		return errors.Wrap(err, "failed to create user")
	}

	if enrollment != nil {
		deviceQuery := `
			INSERT INTO devices (
				id, user_id, serial_number, name, status, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7
			)
		`
		d := enrollment.Device
		if _, err := tx.ExecContext(ctx, deviceQuery,
			d.ID, d.UserID, d.SerialNumber, d.Name, d.Status, d.CreatedAt, d.UpdatedAt,
		); err != nil {
			return errors.Wrap(err, "failed to create device")
		}

		geoQuery := `
			INSERT INTO geolocations (
				id, device_id, latitude, longitude, timestamp, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6
			)
		`
		g := enrollment.Geolocation
		if _, err := tx.ExecContext(ctx, geoQuery,
			g.ID, g.DeviceID, g.Latitude, g.Longitude, g.Timestamp, g.CreatedAt,
		); err != nil {
			return errors.Wrap(err, "failed to create initial geolocation")
		}

		// Re-verify the role pairing inside the transaction so a concurrent
		// role mismatch cannot slip between validation and insert.
		if err := checkRelationshipRoles(ctx, tx, enrollment.ParentID, user.ID); err != nil {
			return err
		}

		relQuery := `
			INSERT INTO parent_patient_relationships (parent_id, patient_id, assigned_at)
			VALUES ($1, $2, NOW())
		`
		if _, err := tx.ExecContext(ctx, relQuery, enrollment.ParentID, user.ID); err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return errors.ErrRelationshipExists
			}
			return errors.Wrap(err, "failed to create relationship")
		}
	}

	sessionQuery := `
		INSERT INTO user_sessions (
			id, user_id, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`
	if _, err := tx.ExecContext(ctx, sessionQuery,
		session.ID, session.UserID, session.ExpiresAt, session.CreatedAt, session.UpdatedAt,
	); err != nil {
		return errors.Wrap(err, "failed to create session")
	}

	return errors.Wrap(tx.Commit(), "failed to commit registration")
}
