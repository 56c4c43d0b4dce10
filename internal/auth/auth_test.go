package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GGmuzem/formula-engine/pkg/models"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager("secret", time.Hour)
	token, err := m.GenerateToken(models.User{ID: 7, Login: "ann"})
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "ann", claims.Login)
	assert.Equal(t, "7", claims.Subject)
}

func TestValidateRejects(t *testing.T) {
	m := NewManager("secret", time.Hour)
	good, err := m.GenerateToken(models.User{ID: 1})
	require.NoError(t, err)

	other, err := NewManager("other", time.Hour).GenerateToken(models.User{ID: 1})
	require.NoError(t, err)

	expired := NewManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.GenerateToken(models.User{ID: 1})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	anonymous, err := m.GenerateToken(models.User{ID: 0})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong secret": other,
		"expired":      old,
		"alg none":     none,
		"garbage":      "a.b.c",
		"no user":      anonymous,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = m.ValidateToken(good)
	assert.NoError(t, err)
}

func TestExtractToken(t *testing.T) {
	assert.Equal(t, "abc", ExtractToken("Bearer abc"))
	assert.Equal(t, "abc", ExtractToken("bearer abc"))
	assert.Empty(t, ExtractToken("Basic abc"))
	assert.Empty(t, ExtractToken(""))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", ExtractTokenFromRequest(r))
}

func TestMiddleware(t *testing.T) {
	m := NewManager("secret", time.Hour)
	token, err := m.GenerateToken(models.User{ID: 3, Login: "bob"})
	require.NoError(t, err)

	var gotErr error
	h := m.Middleware(func(w http.ResponseWriter, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}, func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUserFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, 3, user.ID)
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, errors.Is(gotErr, ErrMissingToken))
}

func TestOptional(t *testing.T) {
	m := NewManager("secret", time.Hour)

	var seen bool
	h := m.Optional(func(w http.ResponseWriter, r *http.Request) {
		_, seen = GetUserFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	h(httptest.NewRecorder(), req)
	assert.False(t, seen)

	token, err := m.GenerateToken(models.User{ID: 9})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h(httptest.NewRecorder(), req)
	assert.True(t, seen)
}
