package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloraops/agency-api/internal/config"
	"github.com/veloraops/agency-api/internal/domain"
)

func testManager() *TokenManager {
	return NewTokenManager(&config.AuthConfig{
		Secret:   "test-signing-key",
		TokenTTL: 60,
		Issuer:   "agency-api",
	})
}

func testUser(role domain.UserRole) *domain.User {
	user := &domain.User{
		Email: "staff@velora.example",
		Name:  "Sam Ops",
		Role:  role,
	}
	user.ID = uuid.New()
	return user
}

func TestTokenRoundTrip(t *testing.T) {
	mgr := testManager()
	user := testUser(domain.RoleStaff)

	token, expiresAt, err := mgr.Issue(user)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	userCtx, err := mgr.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userCtx.UserID)
	assert.Equal(t, user.Email, userCtx.Email)
	assert.Equal(t, domain.RoleStaff, userCtx.Role)
	assert.Nil(t, userCtx.ClientID)
}

func TestTokenCarriesClientScope(t *testing.T) {
	mgr := testManager()
	user := testUser(domain.RoleClient)
	client := &domain.Client{}
	client.ID = uuid.New()
	user.Client = client

	token, _, err := mgr.Issue(user)
	require.NoError(t, err)

	userCtx, err := mgr.Validate(token)
	require.NoError(t, err)
	require.NotNil(t, userCtx.ClientID)
	assert.Equal(t, client.ID, *userCtx.ClientID)
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	token, _, err := testManager().Issue(testUser(domain.RoleAdmin))
	require.NoError(t, err)

	other := NewTokenManager(&config.AuthConfig{
		Secret:   "a-different-key",
		TokenTTL: 60,
		Issuer:   "agency-api",
	})
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	mgr := NewTokenManager(&config.AuthConfig{
		Secret:   "test-signing-key",
		TokenTTL: -1,
		Issuer:   "agency-api",
	})
	token, _, err := mgr.Issue(testUser(domain.RoleStaff))
	require.NoError(t, err)

	_, err = mgr.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := testManager().Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
