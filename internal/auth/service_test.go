package auth

import (
	"context"
	"testing"
	"time"

	"carelink/pkg/domain"
	clerrors "carelink/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Mocks

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.UserSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.UserSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserSession), args.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockRegistrationRepository struct {
	mock.Mock
}

func (m *MockRegistrationRepository) Register(ctx context.Context, user *domain.User, enrollment *domain.PatientEnrollment, session *domain.UserSession) error {
	args := m.Called(ctx, user, enrollment, session)
	return args.Error(0)
}

// Helpers

const testSecret = "test-secret"

func newTestService(users *MockUserRepository, sessions *MockSessionRepository, registrations *MockRegistrationRepository) *Service {
	return NewService(users, sessions, registrations, testSecret, 24*time.Hour, 7*24*time.Hour)
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func parentRequest() *RegisterRequest {
	return &RegisterRequest{
		Email:     "mary.banda@example.com",
		Password:  "Password123",
		FirstName: "Mary",
		LastName:  "Banda",
		Role:      domain.RoleParent,
	}
}

func patientRequest() *RegisterRequest {
	return &RegisterRequest{
		Email:        "grace.phiri@example.com",
		Password:     "Password123",
		FirstName:    "Grace",
		LastName:     "Phiri",
		Role:         domain.RolePatient,
		ParentEmail:  strPtr("mary.banda@example.com"),
		SerialNumber: strPtr("CL-TRK-000001"),
		Latitude:     floatPtr(-13.9626),
		Longitude:    floatPtr(33.7741),
	}
}

// Tests

func TestRegisterPatientMissingFields(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	req := patientRequest()
	req.ParentEmail = nil
	req.Latitude = nil

	resp, err := service.Register(context.Background(), req)
	assert.Nil(t, resp)

	var fieldErrs FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Contains(t, fieldErrs, "parent_email")
	assert.Contains(t, fieldErrs, "latitude")
	assert.NotContains(t, fieldErrs, "serial_number")

	// Nothing touches storage when the request shape is wrong.
	mockUsers.AssertNotCalled(t, "ExistsByEmail", mock.Anything, mock.Anything)
	mockRegistrations.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterParentForbiddenFields(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	req := parentRequest()
	req.SerialNumber = strPtr("CL-TRK-000001")
	req.Longitude = floatPtr(33.7741)

	resp, err := service.Register(context.Background(), req)
	assert.Nil(t, resp)

	var fieldErrs FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Contains(t, fieldErrs, "serial_number")
	assert.Contains(t, fieldErrs, "longitude")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	req := parentRequest()
	mockUsers.On("ExistsByEmail", mock.Anything, req.Email).Return(true, nil)

	resp, err := service.Register(context.Background(), req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, clerrors.ErrUserAlreadyExists)
	mockRegistrations.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterParentNotFound(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	req := patientRequest()
	mockUsers.On("ExistsByEmail", mock.Anything, req.Email).Return(false, nil)
	mockUsers.On("FindByEmail", mock.Anything, *req.ParentEmail).Return(nil, clerrors.ErrUserNotFound)

	resp, err := service.Register(context.Background(), req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, clerrors.ErrParentNotFound)
}

func TestRegisterParentWrongRole(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	req := patientRequest()
	mockUsers.On("ExistsByEmail", mock.Anything, req.Email).Return(false, nil)
	mockUsers.On("FindByEmail", mock.Anything, *req.ParentEmail).Return(&domain.User{
		ID:   uuid.New(),
		Role: domain.RolePatient,
	}, nil)

	resp, err := service.Register(context.Background(), req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, clerrors.ErrNotAParent)
	mockRegistrations.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterPatientSuccess(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	req := patientRequest()
	parentID := uuid.New()
	mockUsers.On("ExistsByEmail", mock.Anything, req.Email).Return(false, nil)
	mockUsers.On("FindByEmail", mock.Anything, *req.ParentEmail).Return(&domain.User{
		ID:    parentID,
		Email: *req.ParentEmail,
		Role:  domain.RoleParent,
	}, nil)

	var captured *domain.PatientEnrollment
	mockRegistrations.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(*domain.PatientEnrollment)
		}).Return(nil)

	resp, err := service.Register(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, req.Email, resp.User.Email)
	assert.Equal(t, domain.RolePatient, resp.User.Role)

	require.NotNil(t, captured)
	assert.Equal(t, parentID, captured.ParentID)
	assert.Equal(t, *req.SerialNumber, captured.Device.SerialNumber)
	assert.Equal(t, captured.Device.ID, captured.Geolocation.DeviceID)
	assert.Equal(t, *req.Latitude, captured.Geolocation.Latitude)

	// Patients get the long session.
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), resp.ExpiresAt, time.Minute)
	mockRegistrations.AssertExpectations(t)
}

func TestRegisterParentSessionTTL(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	req := parentRequest()
	mockUsers.On("ExistsByEmail", mock.Anything, req.Email).Return(false, nil)
	mockRegistrations.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			assert.Nil(t, args.Get(2))
		}).Return(nil)

	resp, err := service.Register(context.Background(), req)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), resp.ExpiresAt, time.Minute)
}

func TestLoginWrongPassword(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	mockUsers.On("FindByEmail", mock.Anything, "mary.banda@example.com").Return(&domain.User{
		ID:           uuid.New(),
		Email:        "mary.banda@example.com",
		PasswordHash: hashOf(t, "Password123"),
		Role:         domain.RoleParent,
	}, nil)

	resp, err := service.Login(context.Background(), &LoginRequest{
		Email:    "mary.banda@example.com",
		Password: "wrong-password",
	})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, clerrors.ErrInvalidCredentials)
	mockSessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLoginUnknownEmail(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	mockUsers.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, clerrors.ErrUserNotFound)

	resp, err := service.Login(context.Background(), &LoginRequest{
		Email:    "nobody@example.com",
		Password: "Password123",
	})
	assert.Nil(t, resp)
	// Unknown email and bad password are indistinguishable to the caller.
	assert.ErrorIs(t, err, clerrors.ErrInvalidCredentials)
}

func TestLoginSuccessFlatTTL(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	user := &domain.User{
		ID:           uuid.New(),
		Email:        "grace.phiri@example.com",
		PasswordHash: hashOf(t, "Password123"),
		Role:         domain.RolePatient,
	}
	mockUsers.On("FindByEmail", mock.Anything, user.Email).Return(user, nil)
	mockSessions.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.UserSession) bool {
		return s.UserID == user.ID
	})).Return(nil)

	resp, err := service.Login(context.Background(), &LoginRequest{
		Email:    user.Email,
		Password: "Password123",
	})
	require.NoError(t, err)

	// Logins always get the flat 24h session, even for patients.
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), resp.ExpiresAt, time.Minute)
	mockSessions.AssertExpectations(t)
}

func TestVerifyToken(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	user := &domain.User{
		ID:           uuid.New(),
		Email:        "mary.banda@example.com",
		PasswordHash: hashOf(t, "Password123"),
		Role:         domain.RoleParent,
	}
	mockUsers.On("FindByEmail", mock.Anything, user.Email).Return(user, nil)
	mockUsers.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	var session *domain.UserSession
	mockSessions.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			session = args.Get(1).(*domain.UserSession)
		}).Return(nil)

	resp, err := service.Login(context.Background(), &LoginRequest{Email: user.Email, Password: "Password123"})
	require.NoError(t, err)
	require.NotNil(t, session)

	mockSessions.On("FindByID", mock.Anything, session.ID).Return(session, nil)

	identity, err := service.VerifyToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, user.Email, identity.Email)
	assert.Equal(t, domain.RoleParent, identity.Role)
	assert.Equal(t, session.ID, identity.SessionID)
}

func TestVerifyTokenRevokedSession(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	user := &domain.User{
		ID:           uuid.New(),
		Email:        "mary.banda@example.com",
		PasswordHash: hashOf(t, "Password123"),
		Role:         domain.RoleParent,
	}
	mockUsers.On("FindByEmail", mock.Anything, user.Email).Return(user, nil)
	mockSessions.On("Create", mock.Anything, mock.Anything).Return(nil)

	resp, err := service.Login(context.Background(), &LoginRequest{Email: user.Email, Password: "Password123"})
	require.NoError(t, err)

	// The session row is gone: a cryptographically valid token is rejected.
	mockSessions.On("FindByID", mock.Anything, mock.Anything).Return(nil, clerrors.ErrSessionNotFound)

	identity, err := service.VerifyToken(context.Background(), resp.Token)
	assert.Nil(t, identity)
	assert.ErrorIs(t, err, clerrors.ErrSessionNotFound)
}

func TestVerifyTokenExpiredSession(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	user := &domain.User{
		ID:           uuid.New(),
		Email:        "mary.banda@example.com",
		PasswordHash: hashOf(t, "Password123"),
		Role:         domain.RoleParent,
	}
	mockUsers.On("FindByEmail", mock.Anything, user.Email).Return(user, nil)

	var session *domain.UserSession
	mockSessions.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			session = args.Get(1).(*domain.UserSession)
		}).Return(nil)

	resp, err := service.Login(context.Background(), &LoginRequest{Email: user.Email, Password: "Password123"})
	require.NoError(t, err)

	session.ExpiresAt = time.Now().Add(-time.Minute)
	mockSessions.On("FindByID", mock.Anything, session.ID).Return(session, nil)

	identity, err := service.VerifyToken(context.Background(), resp.Token)
	assert.Nil(t, identity)
	assert.ErrorIs(t, err, clerrors.ErrSessionExpired)
}

func TestVerifyTokenBadSignature(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	other := NewService(mockUsers, mockSessions, mockRegistrations, "another-secret", 24*time.Hour, 7*24*time.Hour)
	user := &domain.User{
		ID:           uuid.New(),
		Email:        "mary.banda@example.com",
		PasswordHash: hashOf(t, "Password123"),
		Role:         domain.RoleParent,
	}
	mockUsers.On("FindByEmail", mock.Anything, user.Email).Return(user, nil)
	mockSessions.On("Create", mock.Anything, mock.Anything).Return(nil)

	resp, err := other.Login(context.Background(), &LoginRequest{Email: user.Email, Password: "Password123"})
	require.NoError(t, err)

	identity, err := service.VerifyToken(context.Background(), resp.Token)
	assert.Nil(t, identity)
	assert.ErrorIs(t, err, clerrors.ErrInvalidToken)
	mockSessions.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestLogout(t *testing.T) {
	mockUsers := new(MockUserRepository)
	mockSessions := new(MockSessionRepository)
	mockRegistrations := new(MockRegistrationRepository)
	service := newTestService(mockUsers, mockSessions, mockRegistrations)

	sessionID := uuid.New()
	mockSessions.On("Delete", mock.Anything, sessionID).Return(nil)

	err := service.Logout(context.Background(), sessionID)
	assert.NoError(t, err)
	mockSessions.AssertExpectations(t)
}
