// Package preferences manages per-user display and accessibility settings.
package preferences

import (
	"context"

	"carelink/pkg/domain"
	clerrors "carelink/pkg/errors"

	"github.com/google/uuid"
)

// Service provides preferences upsert and read.
type Service struct {
	preferences Repository
}

func NewService(preferences Repository) *Service {
	return &Service{preferences: preferences}
}

// UpdateRequest is a partial update; only supplied fields are merged.
type UpdateRequest struct {
	FontSize             *int    `json:"font_size,omitempty" validate:"omitempty,min=8,max=72"`
	BatterySaverLevel    *int    `json:"battery_saver_level,omitempty" validate:"omitempty,min=0,max=3"`
	Theme                *string `json:"theme,omitempty" validate:"omitempty,max=20"`
	Language             *string `json:"language,omitempty" validate:"omitempty,min=2,max=10"`
	NotificationsEnabled *bool   `json:"notifications_enabled,omitempty"`
}

func (r *UpdateRequest) empty() bool {
	return r.FontSize == nil && r.BatterySaverLevel == nil && r.Theme == nil &&
		r.Language == nil && r.NotificationsEnabled == nil
}

// Update upserts the caller's preferences row, merging the supplied fields
// into whatever is already stored, and returns the merged result.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, req *UpdateRequest) (*domain.UserPreferences, error) {
	if req.empty() {
		return nil, clerrors.ErrEmptyUpdate
	}

	prefs := &domain.UserPreferences{
		UserID:               userID,
		FontSize:             req.FontSize,
		BatterySaverLevel:    req.BatterySaverLevel,
		Theme:                req.Theme,
		Language:             req.Language,
		NotificationsEnabled: req.NotificationsEnabled,
	}

	if err := s.preferences.Upsert(ctx, prefs); err != nil {
		return nil, err
	}

	return s.preferences.FindByUserID(ctx, userID)
}

// Get returns the caller's preferences, or nil when none have been written
// yet. Absence is a valid state, not an error.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*domain.UserPreferences, error) {
	prefs, err := s.preferences.FindByUserID(ctx, userID)
	if err == clerrors.ErrPreferencesNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

// Repository interface

type Repository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserPreferences, error)
	Upsert(ctx context.Context, prefs *domain.UserPreferences) error
}
