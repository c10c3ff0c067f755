// Package location ingests device geolocation readings and serves queries
// over the recorded history.
package location

import (
	"context"
	"time"

	"carelink/pkg/domain"
	clerrors "carelink/pkg/errors"
	"carelink/pkg/logger"

	"github.com/google/uuid"
)

// Service records and queries geolocation points.
type Service struct {
	devices       DeviceRepository
	geolocations  GeolocationRepository
	users         UserRepository
	relationships RelationshipRepository
	publisher     Publisher
	logger        logger.Logger
}

func NewService(devices DeviceRepository, geolocations GeolocationRepository, users UserRepository, relationships RelationshipRepository, publisher Publisher, log logger.Logger) *Service {
	return &Service{
		devices:       devices,
		geolocations:  geolocations,
		users:         users,
		relationships: relationships,
		publisher:     publisher,
		logger:        log,
	}
}

// IngestRequest is one reading reported by a tracker.
type IngestRequest struct {
	SerialNumber string   `json:"serial_number" validate:"required,min=1,max=64"`
	Latitude     *float64 `json:"latitude" validate:"required,latitude"`
	Longitude    *float64 `json:"longitude" validate:"required,longitude"`
}

// Ingest stores one immutable point for the device matching the serial number
// and pushes it to the realtime channel. The timestamp is server-assigned.
func (s *Service) Ingest(ctx context.Context, req *IngestRequest) (*domain.Geolocation, error) {
	device, err := s.devices.FindBySerialNumber(ctx, req.SerialNumber)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	geo := &domain.Geolocation{
		ID:        uuid.New(),
		DeviceID:  device.ID,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Timestamp: now,
		CreatedAt: now,
	}

	if err := s.geolocations.Create(ctx, geo); err != nil {
		return nil, err
	}

	s.publish(ctx, device.UserID, geo)

	return geo, nil
}

// publish pushes the new point to the patient's room and to every linked
// parent's room. Delivery is best-effort; a publish failure never fails the
// ingest.
func (s *Service) publish(ctx context.Context, patientID uuid.UUID, geo *domain.Geolocation) {
	if s.publisher == nil {
		return
	}

	s.publisher.PublishLocation(patientID, geo)

	parents, err := s.relationships.ListParents(ctx, patientID)
	if err != nil {
		s.logger.Warn("Failed to resolve parents for location broadcast", map[string]interface{}{
			"patient_id": patientID.String(),
			"error":      err.Error(),
		})
		return
	}
	for _, parent := range parents {
		s.publisher.PublishLocation(parent.ID, geo)
	}
}

// Latest resolves a patient to their most recent device and returns that
// device's most recent point. Each resolution step reports its own not-found
// error so clients can tell which lookup failed.
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID) (*domain.Geolocation, error) {
	device, err := s.resolvePatientDevice(ctx, patientID)
	if err != nil {
		return nil, err
	}

	return s.geolocations.FindLatestByDeviceID(ctx, device.ID)
}

// History returns the paged point history for a patient's current device,
// newest first.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*domain.Geolocation, int, error) {
	device, err := s.resolvePatientDevice(ctx, patientID)
	if err != nil {
		return nil, 0, err
	}

	geos, err := s.geolocations.FindByDeviceID(ctx, device.ID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.geolocations.CountByDeviceID(ctx, device.ID)
	if err != nil {
		return nil, 0, err
	}

	return geos, total, nil
}

func (s *Service) resolvePatientDevice(ctx context.Context, patientID uuid.UUID) (*domain.Device, error) {
	user, err := s.users.FindByID(ctx, patientID)
	if err != nil {
		return nil, clerrors.ErrPatientNotFound
	}
	if user.Role != domain.RolePatient {
		return nil, clerrors.ErrPatientNotFound
	}

	return s.devices.FindLatestByUserID(ctx, user.ID)
}

// Repository interfaces

type DeviceRepository interface {
	FindBySerialNumber(ctx context.Context, serial string) (*domain.Device, error)
	FindLatestByUserID(ctx context.Context, userID uuid.UUID) (*domain.Device, error)
}

type GeolocationRepository interface {
	Create(ctx context.Context, geo *domain.Geolocation) error
	FindLatestByDeviceID(ctx context.Context, deviceID uuid.UUID) (*domain.Geolocation, error)
	FindByDeviceID(ctx context.Context, deviceID uuid.UUID, limit, offset int) ([]*domain.Geolocation, error)
	CountByDeviceID(ctx context.Context, deviceID uuid.UUID) (int, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type RelationshipRepository interface {
	ListParents(ctx context.Context, patientID uuid.UUID) ([]*domain.PublicUser, error)
}

// Publisher pushes new points to connected realtime clients.
type Publisher interface {
	PublishLocation(userID uuid.UUID, geo *domain.Geolocation)
}
