package postgres

import (
	"context"
	"database/sql"

	"carelink/pkg/domain"
	"carelink/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type GeolocationRepository struct {
	db *sqlx.DB
}

func NewGeolocationRepository(db *sqlx.DB) *GeolocationRepository {
	return &GeolocationRepository{db: db}
}

const geolocationColumns = `id, device_id, latitude, longitude, timestamp, created_at`

// Create appends one point record. Geolocations are never updated or deleted
// individually; the only delete path is the cascade from the owning device.
func (r *GeolocationRepository) Create(ctx context.Context, geo *domain.Geolocation) error {
	query := `
		INSERT INTO geolocations (
			id, device_id, latitude, longitude, timestamp, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		geo.ID, geo.DeviceID, geo.Latitude, geo.Longitude, geo.Timestamp, geo.CreatedAt,
	)

	return errors.Wrap(err, "failed to create geolocation")
}

func (r *GeolocationRepository) FindLatestByDeviceID(ctx context.Context, deviceID uuid.UUID) (*domain.Geolocation, error) {
	var geo domain.Geolocation
	query := `
		SELECT ` + geolocationColumns + `
		FROM geolocations
		WHERE device_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &geo, query, deviceID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrGeolocationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find latest geolocation")
	}

	return &geo, nil
}

func (r *GeolocationRepository) FindByDeviceID(ctx context.Context, deviceID uuid.UUID, limit, offset int) ([]*domain.Geolocation, error) {
	var geos []*domain.Geolocation
	query := `
		SELECT ` + geolocationColumns + `
		FROM geolocations
		WHERE device_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	err := r.db.SelectContext(ctx, &geos, query, deviceID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find geolocations")
	}

	return geos, nil
}

func (r *GeolocationRepository) CountByDeviceID(ctx context.Context, deviceID uuid.UUID) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM geolocations WHERE device_id = $1`

	err := r.db.GetContext(ctx, &total, query, deviceID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count geolocations")
	}

	return total, nil
}
