package authn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/admanager/internal/store"
)

func TestTokenIssueAndParse(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	token, expiresAt, err := issuer.Issue(42, "jdoe", []string{store.RoleHelpDesk}, store.RoleHelpDesk)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", claims.Username)
	assert.Equal(t, []string{store.RoleHelpDesk}, claims.Roles)
	assert.Equal(t, store.RoleHelpDesk, claims.EffectiveRole)

	id, err := claims.ProfileID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	issuer, err := NewTokenIssuer("secret-one", time.Hour)
	require.NoError(t, err)
	other, err := NewTokenIssuer("secret-two", time.Hour)
	require.NoError(t, err)

	token, _, err := issuer.Issue(1, "jdoe", nil, store.RoleReadOnly)
	require.NoError(t, err)

	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestTokenExpiredRejected(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	// Issue with a negative offset by building a short-lived issuer.
	short := &TokenIssuer{secret: []byte("test-secret"), ttl: -time.Minute}

	token, _, err := short.Issue(1, "jdoe", nil, store.RoleReadOnly)
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.Error(t, err)
}

func TestTokenGarbageRejected(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	_, err = issuer.Parse("not.a.jwt")
	assert.Error(t, err)
}

func TestNewTokenIssuerEmptySecret(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour)
	assert.Error(t, err)
}
