package postgres

import (
	"context"
	"database/sql"

	"carelink/pkg/domain"
	"carelink/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type DeviceRepository struct {
	db *sqlx.DB
}

func NewDeviceRepository(db *sqlx.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

const deviceColumns = `id, user_id, serial_number, name, status, created_at, updated_at`

func (r *DeviceRepository) Create(ctx context.Context, device *domain.Device) error {
	query := `
		INSERT INTO devices (
			id, user_id, serial_number, name, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		device.ID, device.UserID, device.SerialNumber, device.Name, device.Status,
		device.CreatedAt, device.UpdatedAt,
	)

	return errors.Wrap(err, "failed to create device")
}

// FindBySerialNumber resolves a device by serial. Serials are unique in the
// current schema; ordering by created_at keeps the lookup deterministic should
// duplicates ever exist in older data.
func (r *DeviceRepository) FindBySerialNumber(ctx context.Context, serial string) (*domain.Device, error) {
	var device domain.Device
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE serial_number = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &device, query, serial)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDeviceNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find device by serial number")
	}

	return &device, nil
}

// FindLatestByUserID returns the user's most recently created device.
func (r *DeviceRepository) FindLatestByUserID(ctx context.Context, userID uuid.UUID) (*domain.Device, error) {
	var device domain.Device
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &device, query, userID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDeviceNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find device for user")
	}

	return &device, nil
}

func (r *DeviceRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Device, error) {
	var devices []*domain.Device
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	err := r.db.SelectContext(ctx, &devices, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find devices for user")
	}

	return devices, nil
}
