// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Relationship errors
	ErrParentNotFound       = errors.New("parent not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrNotAParent           = errors.New("user does not have the PARENT role")
	ErrNotAPatient          = errors.New("user does not have the PATIENT role")
	ErrSelfRelationship     = errors.New("parent and patient cannot be the same user")
	ErrRelationshipExists   = errors.New("relationship already exists")
	ErrRelationshipNotFound = errors.New("relationship not found")

	// Device and geolocation errors
	ErrDeviceNotFound      = errors.New("device not found")
	ErrGeolocationNotFound = errors.New("no geolocation recorded for device")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidToken    = errors.New("invalid token")

	// Preferences errors
	ErrPreferencesNotFound = errors.New("preferences not found")
	ErrEmptyUpdate         = errors.New("no fields supplied for update")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
