// Seeding tool for local development: creates a default parent, a patient
// with a tracker device and an initial location, and links the two.
//
// Usage (env overrides):
//
//	SEED_PARENT_EMAIL=mary.banda@example.com SEED_PASSWORD=Password123
//
// Reads DATABASE_URL and other core config via carelink/pkg/config.
package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"carelink/internal/repository/postgres"
	"carelink/pkg/config"
	"carelink/pkg/domain"
	clerrors "carelink/pkg/errors"
	"carelink/pkg/logger"
)

func main() {
	log := logger.New("seed")

	cfg := config.Load()
	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	deviceRepo := postgres.NewDeviceRepository(db)
	geoRepo := postgres.NewGeolocationRepository(db)
	relationshipRepo := postgres.NewRelationshipRepository(db)
	ctx := context.Background()

	password := getenv("SEED_PASSWORD", "Password123")

	parentID := ensureUser(ctx, userRepo, log, &domain.User{
		Email:     getenv("SEED_PARENT_EMAIL", "mary.banda@example.com"),
		FirstName: getenv("SEED_PARENT_FIRST", "Mary"),
		LastName:  getenv("SEED_PARENT_LAST", "Banda"),
		Role:      domain.RoleParent,
	}, password)

	patientID := ensureUser(ctx, userRepo, log, &domain.User{
		Email:     getenv("SEED_PATIENT_EMAIL", "grace.phiri@example.com"),
		FirstName: getenv("SEED_PATIENT_FIRST", "Grace"),
		LastName:  getenv("SEED_PATIENT_LAST", "Phiri"),
		Role:      domain.RolePatient,
	}, password)

	deviceID := ensureDevice(ctx, deviceRepo, log, patientID, getenv("SEED_SERIAL", "CL-TRK-000001"))
	ensureLocation(ctx, geoRepo, log, deviceID, -13.9626, 33.7741)
	ensureRelationship(ctx, relationshipRepo, log, parentID, patientID)

	log.Info("Seeding complete", map[string]interface{}{
		"parent_id":  parentID.String(),
		"patient_id": patientID.String(),
		"device_id":  deviceID.String(),
	})
}

func ensureUser(ctx context.Context, repo *postgres.UserRepository, log logger.Logger, user *domain.User, password string) uuid.UUID {
	existing, err := repo.FindByEmail(ctx, user.Email)
	if err == nil {
		log.Info("User already seeded", map[string]interface{}{"email": user.Email})
		return existing.ID
	}
	if err != clerrors.ErrUserNotFound {
		log.Fatal("Failed to look up user", map[string]interface{}{"error": err.Error()})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash password", map[string]interface{}{"error": err.Error()})
	}

	now := time.Now()
	user.ID = uuid.New()
	user.PasswordHash = string(hash)
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := repo.Create(ctx, user); err != nil {
		log.Fatal("Failed to create user", map[string]interface{}{"error": err.Error()})
	}

	log.Info("User created", map[string]interface{}{"email": user.Email, "role": string(user.Role)})
	return user.ID
}

func ensureDevice(ctx context.Context, repo *postgres.DeviceRepository, log logger.Logger, patientID uuid.UUID, serial string) uuid.UUID {
	existing, err := repo.FindBySerialNumber(ctx, serial)
	if err == nil {
		log.Info("Device already seeded", map[string]interface{}{"serial_number": serial})
		return existing.ID
	}
	if err != clerrors.ErrDeviceNotFound {
		log.Fatal("Failed to look up device", map[string]interface{}{"error": err.Error()})
	}

	now := time.Now()
	name := "Grace's Tracker"
	status := "ACTIVE"
	device := &domain.Device{
		ID:           uuid.New(),
		UserID:       patientID,
		SerialNumber: serial,
		Name:         &name,
		Status:       &status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, device); err != nil {
		log.Fatal("Failed to create device", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Device created", map[string]interface{}{"serial_number": serial})
	return device.ID
}

func ensureLocation(ctx context.Context, repo *postgres.GeolocationRepository, log logger.Logger, deviceID uuid.UUID, lat, lng float64) {
	if _, err := repo.FindLatestByDeviceID(ctx, deviceID); err == nil {
		return
	} else if err != clerrors.ErrGeolocationNotFound {
		log.Fatal("Failed to look up geolocation", map[string]interface{}{"error": err.Error()})
	}

	now := time.Now()
	geo := &domain.Geolocation{
		ID:        uuid.New(),
		DeviceID:  deviceID,
		Latitude:  lat,
		Longitude: lng,
		Timestamp: now,
		CreatedAt: now,
	}
	if err := repo.Create(ctx, geo); err != nil {
		log.Fatal("Failed to create geolocation", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Initial location recorded", map[string]interface{}{"device_id": deviceID.String()})
}

func ensureRelationship(ctx context.Context, repo *postgres.RelationshipRepository, log logger.Logger, parentID, patientID uuid.UUID) {
	if _, err := repo.Find(ctx, parentID, patientID); err == nil {
		return
	} else if err != clerrors.ErrRelationshipNotFound {
		log.Fatal("Failed to look up relationship", map[string]interface{}{"error": err.Error()})
	}

	rel := &domain.Relationship{ParentID: parentID, PatientID: patientID}
	if err := repo.Create(ctx, rel); err != nil {
		log.Fatal("Failed to create relationship", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Relationship created", nil)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
