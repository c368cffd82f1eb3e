package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicamp-api/internal/auth"
	"medicamp-api/internal/model"
)

type tokenPair struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refresh_token"`
	User         *model.Profile `json:"user"`
}

func registerBody(email string) map[string]string {
	return map[string]string{"email": email, "password": "testpass123", "name": "Test User"}
}

func TestRegister(t *testing.T) {
	e, _ := setup(t)

	rec := request(e, http.MethodPost, "/api/auth/register", "", registerBody("new@x.com"))
	require.Equal(t, http.StatusCreated, rec.Code)

	out := decodeData[tokenPair](t, rec)
	assert.NotEmpty(t, out.Token)
	assert.NotEmpty(t, out.RefreshToken)
	require.NotNil(t, out.User)
	assert.Equal(t, model.RoleUser, out.User.Role)
	assert.NotContains(t, rec.Body.String(), "password")

	// the access token is immediately usable
	c, err := auth.ParseToken(out.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, out.User.ID, c.Subject)
	assert.Equal(t, "new@x.com", c.Email)
}

func TestRegisterValidation(t *testing.T) {
	e, _ := setup(t)

	cases := []map[string]string{
		{"email": "bad", "password": "testpass123", "name": "X"},
		{"email": "a@x.com", "password": "short", "name": "X"},
		{"email": "a@x.com", "password": "testpass123"},
	}
	for i, body := range cases {
		rec := request(e, http.MethodPost, "/api/auth/register", "", body)
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "case %d", i)
	}
}

func TestRegisterDuplicateEmailNotRevealed(t *testing.T) {
	e, _ := setup(t)

	// u1@x.com already exists
	rec := request(e, http.MethodPost, "/api/auth/register", "", registerBody("u1@x.com"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "email")
	assert.Contains(t, rec.Body.String(), "registration failed")
}

func TestLogin(t *testing.T) {
	e, _ := setup(t)

	rec := request(e, http.MethodPost, "/api/auth/register", "", registerBody("login@x.com"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = request(e, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "login@x.com", "password": "testpass123"})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeData[tokenPair](t, rec)
	assert.NotEmpty(t, out.Token)
}

func TestLoginInvalidCredentials(t *testing.T) {
	e, _ := setup(t)

	rec := request(e, http.MethodPost, "/api/auth/register", "", registerBody("login@x.com"))
	require.Equal(t, http.StatusCreated, rec.Code)

	// wrong password and unknown email must be indistinguishable
	recWrong := request(e, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "login@x.com", "password": "wrongpass123"})
	recUnknown := request(e, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "nobody@x.com", "password": "testpass123"})

	assert.Equal(t, http.StatusUnauthorized, recWrong.Code)
	assert.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	assert.JSONEq(t, recWrong.Body.String(), recUnknown.Body.String())
}

func TestRefreshRotates(t *testing.T) {
	e, _ := setup(t)

	rec := request(e, http.MethodPost, "/api/auth/register", "", registerBody("r@x.com"))
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decodeData[tokenPair](t, rec)

	rec = request(e, http.MethodPost, "/api/auth/refresh", "",
		map[string]string{"refresh_token": first.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeData[tokenPair](t, rec)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// the rotated-out token is dead, and reusing it burns the family
	rec = request(e, http.MethodPost, "/api/auth/refresh", "",
		map[string]string{"refresh_token": first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(e, http.MethodPost, "/api/auth/refresh", "",
		map[string]string{"refresh_token": second.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshUnknownToken(t *testing.T) {
	e, _ := setup(t)
	rec := request(e, http.MethodPost, "/api/auth/refresh", "",
		map[string]string{"refresh_token": "deadbeef"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesTokens(t *testing.T) {
	e, st := setup(t)

	rec := request(e, http.MethodPost, "/api/auth/register", "", registerBody("out@x.com"))
	require.Equal(t, http.StatusCreated, rec.Code)
	pair := decodeData[tokenPair](t, rec)

	rec = request(e, http.MethodPost, "/api/auth/logout", "tok-user", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// logout revoked u1's tokens, not the other account's
	rt, err := st.GetRefreshTokenByHash(t.Context(), auth.HashRefreshToken(pair.RefreshToken))
	require.NoError(t, err)
	assert.False(t, rt.Revoked)
	for _, tok := range st.tokens {
		if tok.UserID == "u1" {
			assert.True(t, tok.Revoked)
		}
	}
}
