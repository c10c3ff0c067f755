package postgres

import (
	"context"
	"database/sql"
	"time"

	"carelink/pkg/domain"
	"carelink/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type SessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, user_id, expires_at, created_at, updated_at`

func (r *SessionRepository) Create(ctx context.Context, session *domain.UserSession) error {
	query := `
		INSERT INTO user_sessions (
			id, user_id, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.ExpiresAt, session.CreatedAt, session.UpdatedAt,
	)

	return errors.Wrap(err, "failed to create session")
}

func (r *SessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.UserSession, error) {
	var session domain.UserSession
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE id = $1`

	err := r.db.GetContext(ctx, &session, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find session")
	}

	return &session, nil
}

// Delete removes one session, revoking its token.
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and reports how many rows
// were reclaimed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete expired sessions")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
