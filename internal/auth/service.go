// Package auth implements registration, login, and session-backed token
// issuance and verification.
package auth

import (
	"context"
	"fmt"
	"time"

	"carelink/pkg/domain"
	clerrors "carelink/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service provides user registration, login, and token lifecycle.
type Service struct {
	users         UserRepository
	sessions      SessionRepository
	registrations RegistrationRepository
	jwtSecret     string
	parentTTL     time.Duration
	patientTTL    time.Duration
}

// NewService constructs a Service with the given repositories and JWT secret.
// parentTTL is also the flat TTL used for logins.
func NewService(users UserRepository, sessions SessionRepository, registrations RegistrationRepository, jwtSecret string, parentTTL, patientTTL time.Duration) *Service {
	return &Service{
		users:         users,
		sessions:      sessions,
		registrations: registrations,
		jwtSecret:     jwtSecret,
		parentTTL:     parentTTL,
		patientTTL:    patientTTL,
	}
}

// RegisterRequest captures the fields accepted at registration. The device
// and parent fields are required for PATIENT accounts and forbidden for
// PARENT accounts; that pairing is checked in Register.
type RegisterRequest struct {
	Email     string      `json:"email" validate:"required,email"`
	Password  string      `json:"password" validate:"required,min=6"`
	FirstName string      `json:"first_name" validate:"required"`
	LastName  string      `json:"last_name" validate:"required"`
	Role      domain.Role `json:"role" validate:"required,role"`
	Phone     *string     `json:"phone,omitempty" validate:"omitempty,min=5,max=20"`

	ParentEmail  *string  `json:"parent_email,omitempty" validate:"omitempty,email"`
	SerialNumber *string  `json:"serial_number,omitempty" validate:"omitempty,min=1,max=64"`
	DeviceName   *string  `json:"device_name,omitempty" validate:"omitempty,max=64"`
	Latitude     *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude    *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// LoginRequest captures credentials for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned on successful register/login.
type TokenResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      *domain.PublicUser `json:"user"`
}

// Identity is the decoded, session-checked token content attached to
// authenticated requests.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	Role      domain.Role
	SessionID uuid.UUID
}

// FieldErrors reports per-field validation failures discovered by the service
// (role-conditional requirements that struct tags cannot express).
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	return fmt.Sprintf("validation failed: %v", map[string]string(e))
}

// checkRoleFields enforces the PATIENT-requires / PARENT-forbids pairing.
func checkRoleFields(req *RegisterRequest) FieldErrors {
	errs := FieldErrors{}

	if req.Role == domain.RolePatient {
		if req.ParentEmail == nil {
			errs["parent_email"] = "This field is required for PATIENT accounts"
		}
		if req.SerialNumber == nil {
			errs["serial_number"] = "This field is required for PATIENT accounts"
		}
		if req.Latitude == nil {
			errs["latitude"] = "This field is required for PATIENT accounts"
		}
		if req.Longitude == nil {
			errs["longitude"] = "This field is required for PATIENT accounts"
		}
	} else {
		if req.ParentEmail != nil {
			errs["parent_email"] = "This field is not allowed for PARENT accounts"
		}
		if req.SerialNumber != nil {
			errs["serial_number"] = "This field is not allowed for PARENT accounts"
		}
		if req.DeviceName != nil {
			errs["device_name"] = "This field is not allowed for PARENT accounts"
		}
		if req.Latitude != nil {
			errs["latitude"] = "This field is not allowed for PARENT accounts"
		}
		if req.Longitude != nil {
			errs["longitude"] = "This field is not allowed for PARENT accounts"
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Register creates a new account and its first session. For PATIENT accounts
// the device, initial geolocation, and parent link are created in the same
// transaction; nothing persists if any step fails.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*TokenResponse, error) {
	if errs := checkRoleFields(req); errs != nil {
		return nil, errs
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, clerrors.ErrUserAlreadyExists
	}

	var enrollment *domain.PatientEnrollment
	if req.Role == domain.RolePatient {
		parent, err := s.users.FindByEmail(ctx, *req.ParentEmail)
		if err == clerrors.ErrUserNotFound {
			return nil, clerrors.ErrParentNotFound
		}
		if err != nil {
			return nil, err
		}
		if parent.Role != domain.RoleParent {
			return nil, clerrors.ErrNotAParent
		}
		enrollment = &domain.PatientEnrollment{ParentID: parent.ID}
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		Phone:        req.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if enrollment != nil {
		device := &domain.Device{
			ID:           uuid.New(),
			UserID:       user.ID,
			SerialNumber: *req.SerialNumber,
			Name:         req.DeviceName,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		enrollment.Device = device
		enrollment.Geolocation = &domain.Geolocation{
			ID:        uuid.New(),
			DeviceID:  device.ID,
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
			Timestamp: now,
			CreatedAt: now,
		}
	}

	session := s.newSession(user.ID, s.sessionTTL(user.Role), now)

	if err := s.registrations.Register(ctx, user, enrollment, session); err != nil {
		return nil, err
	}

	return s.issueToken(user, session)
}

// Login authenticates a user and creates a fresh session. Previous sessions
// stay valid; concurrent sessions per user are allowed.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, clerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, clerrors.ErrInvalidCredentials
	}

	// Logins use the flat 24h TTL regardless of role.
	session := s.newSession(user.ID, s.parentTTL, time.Now())
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return s.issueToken(user, session)
}

// Logout revokes the session backing the presented token.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	return s.sessions.Delete(ctx, sessionID)
}

// GetUser returns the public projection of a user.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*domain.PublicUser, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

// VerifyToken checks the token signature, then confirms the embedded session
// still exists and has not expired, then confirms the user still exists. Only
// a token passing all three gates yields an Identity.
func (s *Service) VerifyToken(ctx context.Context, tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, clerrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, clerrors.ErrInvalidToken
	}

	userID, err := claimUUID(claims, "user_id")
	if err != nil {
		return nil, clerrors.ErrInvalidToken
	}
	sessionID, err := claimUUID(claims, "session_id")
	if err != nil {
		return nil, clerrors.ErrInvalidToken
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, clerrors.ErrSessionNotFound
	}
	if session.Expired(time.Now()) {
		return nil, clerrors.ErrSessionExpired
	}

	// A deleted user invalidates all of its tokens.
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, clerrors.ErrUserNotFound
	}

	return &Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: session.ID,
	}, nil
}

func (s *Service) sessionTTL(role domain.Role) time.Duration {
	if role == domain.RolePatient {
		return s.patientTTL
	}
	return s.parentTTL
}

func (s *Service) newSession(userID uuid.UUID, ttl time.Duration, now time.Time) *domain.UserSession {
	return &domain.UserSession{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Service) issueToken(user *domain.User, session *domain.UserSession) (*TokenResponse, error) {
	claims := jwt.MapClaims{
		"user_id":    user.ID.String(),
		"email":      user.Email,
		"role":       string(user.Role),
		"session_id": session.ID.String(),
		"exp":        session.ExpiresAt.Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &TokenResponse{
		Token:     signed,
		ExpiresAt: session.ExpiresAt,
		User:      user.Public(),
	}, nil
}

func claimUUID(claims jwt.MapClaims, key string) (uuid.UUID, error) {
	raw, ok := claims[key].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing %s claim", key)
	}
	return uuid.Parse(raw)
}

// Repository interfaces

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.UserSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.UserSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type RegistrationRepository interface {
	Register(ctx context.Context, user *domain.User, enrollment *domain.PatientEnrollment, session *domain.UserSession) error
}
