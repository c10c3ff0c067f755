package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"carelink/internal/auth"
	"carelink/pkg/domain"
	clerrors "carelink/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyToken(ctx context.Context, token string) (*auth.Identity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func TestAuthenticateMissingCookie(t *testing.T) {
	verifier := new(MockVerifier)
	mw := NewAuthMiddleware(verifier)

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest("GET", "/api/v1/preferences", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	verifier.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
}

func TestAuthenticateInvalidTokenClearsCookie(t *testing.T) {
	verifier := new(MockVerifier)
	mw := NewAuthMiddleware(verifier)

	verifier.On("VerifyToken", mock.Anything, "stale-token").Return(nil, clerrors.ErrSessionNotFound)

	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest("GET", "/api/v1/preferences", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestAuthenticateInjectsIdentity(t *testing.T) {
	verifier := new(MockVerifier)
	mw := NewAuthMiddleware(verifier)

	identity := &auth.Identity{
		UserID:    uuid.New(),
		Email:     "mary.banda@example.com",
		Role:      domain.RoleParent,
		SessionID: uuid.New(),
	}
	verifier.On("VerifyToken", mock.Anything, "good-token").Return(identity, nil)

	var seen *auth.Identity
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		seen = got
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/preferences", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, identity.UserID, seen.UserID)
	assert.Equal(t, identity.SessionID, seen.SessionID)
}
