// Package domain defines the core entities shared across services.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes caregiver accounts from monitored accounts. It is set
// once at registration; no code path updates it afterwards.
type Role string

const (
	RoleParent  Role = "PARENT"
	RolePatient Role = "PATIENT"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleParent || r == RolePatient
}

// User represents a registered account.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Role         Role      `json:"role" db:"role"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// PublicUser is the projection returned by the API. It never carries
// credential material.
type PublicUser struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Role      Role      `json:"role" db:"role"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Public returns the API projection of u.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Phone:     u.Phone,
		CreatedAt: u.CreatedAt,
	}
}

// Device is a physical tracker owned by exactly one PATIENT user.
type Device struct {
	ID           uuid.UUID `json:"id" db:"id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	SerialNumber string    `json:"serial_number" db:"serial_number"`
	Name         *string   `json:"name,omitempty" db:"name"`
	Status       *string   `json:"status,omitempty" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Geolocation is one immutable coordinate reading from a device. Rows are
// append-only; history is never rewritten.
type Geolocation struct {
	ID        uuid.UUID `json:"id" db:"id"`
	DeviceID  uuid.UUID `json:"device_id" db:"device_id"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Relationship links a PARENT to a PATIENT. The (parent, patient) pair is
// unique and the referenced users must carry the matching roles.
type Relationship struct {
	ParentID   uuid.UUID `json:"parent_id" db:"parent_id"`
	PatientID  uuid.UUID `json:"patient_id" db:"patient_id"`
	AssignedAt time.Time `json:"assigned_at" db:"assigned_at"`
}

// PatientEnrollment groups the patient-only rows written during registration:
// the tracker device, its initial reading, and the link to the resolved
// parent. It travels with the new user into one transaction.
type PatientEnrollment struct {
	ParentID    uuid.UUID
	Device      *Device
	Geolocation *Geolocation
}

// UserSession backs one issued token. Deleting the row revokes the token
// regardless of its cryptographic expiry.
type UserSession struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *UserSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// UserPreferences holds optional display and accessibility settings, one row
// per user, created lazily on first write.
type UserPreferences struct {
	UserID               uuid.UUID `json:"user_id" db:"user_id"`
	FontSize             *int      `json:"font_size,omitempty" db:"font_size"`
	BatterySaverLevel    *int      `json:"battery_saver_level,omitempty" db:"battery_saver_level"`
	Theme                *string   `json:"theme,omitempty" db:"theme"`
	Language             *string   `json:"language,omitempty" db:"language"`
	NotificationsEnabled *bool     `json:"notifications_enabled,omitempty" db:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}
