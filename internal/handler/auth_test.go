package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carelink/internal/auth"
	"carelink/internal/middleware"
	"carelink/pkg/domain"
	clerrors "carelink/pkg/errors"
	"carelink/pkg/logger"
	"carelink/pkg/validator"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
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

func newAuthHandler(users *MockUserRepository, sessions *MockSessionRepository, registrations *MockRegistrationRepository) *AuthHandler {
	service := auth.NewService(users, sessions, registrations, "test-secret", 24*time.Hour, 7*24*time.Hour)
	return NewAuthHandler(service, validator.New(), logger.NewNop())
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// Tests

func TestRegisterEmptyBody(t *testing.T) {
	h := newAuthHandler(new(MockUserRepository), new(MockSessionRepository), new(MockRegistrationRepository))

	req := httptest.NewRequest("POST", "/api/v1/auth/register", nil)
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Request body is required")
}

func TestRegisterInvalidEmail(t *testing.T) {
	h := newAuthHandler(new(MockUserRepository), new(MockSessionRepository), new(MockRegistrationRepository))

	rec := postJSON(t, h.Register, "/api/v1/auth/register", map[string]interface{}{
		"email":      "not-an-email",
		"password":   "Password123",
		"first_name": "Mary",
		"last_name":  "Banda",
		"role":       "PARENT",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Validation failed", body.Error)
	assert.Contains(t, body.Fields, "email")
}

func TestRegisterPatientMissingDeviceFields(t *testing.T) {
	h := newAuthHandler(new(MockUserRepository), new(MockSessionRepository), new(MockRegistrationRepository))

	rec := postJSON(t, h.Register, "/api/v1/auth/register", map[string]interface{}{
		"email":      "grace.phiri@example.com",
		"password":   "Password123",
		"first_name": "Grace",
		"last_name":  "Phiri",
		"role":       "PATIENT",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "parent_email")
	assert.Contains(t, body.Fields, "serial_number")
	assert.Contains(t, body.Fields, "latitude")
	assert.Contains(t, body.Fields, "longitude")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := new(MockUserRepository)
	h := newAuthHandler(users, new(MockSessionRepository), new(MockRegistrationRepository))

	users.On("ExistsByEmail", mock.Anything, "mary.banda@example.com").Return(true, nil)

	rec := postJSON(t, h.Register, "/api/v1/auth/register", map[string]interface{}{
		"email":      "mary.banda@example.com",
		"password":   "Password123",
		"first_name": "Mary",
		"last_name":  "Banda",
		"role":       "PARENT",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterParentSuccessSetsCookie(t *testing.T) {
	users := new(MockUserRepository)
	registrations := new(MockRegistrationRepository)
	h := newAuthHandler(users, new(MockSessionRepository), registrations)

	users.On("ExistsByEmail", mock.Anything, "mary.banda@example.com").Return(false, nil)
	registrations.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	rec := postJSON(t, h.Register, "/api/v1/auth/register", map[string]interface{}{
		"email":      "mary.banda@example.com",
		"password":   "Password123",
		"first_name": "Mary",
		"last_name":  "Banda",
		"role":       "PARENT",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookieName, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Greater(t, cookies[0].MaxAge, 0)

	var body struct {
		User *domain.PublicUser `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.User)
	assert.Equal(t, "mary.banda@example.com", body.User.Email)
}

func TestLoginInvalidCredentials(t *testing.T) {
	users := new(MockUserRepository)
	h := newAuthHandler(users, new(MockSessionRepository), new(MockRegistrationRepository))

	users.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, clerrors.ErrUserNotFound)

	rec := postJSON(t, h.Login, "/api/v1/auth/login", map[string]interface{}{
		"email":    "nobody@example.com",
		"password": "Password123",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
}

func TestRegisterRejectsUnknownFields(t *testing.T) {
	h := newAuthHandler(new(MockUserRepository), new(MockSessionRepository), new(MockRegistrationRepository))

	rec := postJSON(t, h.Register, "/api/v1/auth/register", map[string]interface{}{
		"email":    "mary.banda@example.com",
		"password": "Password123",
		"is_admin": true,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request body")
}
