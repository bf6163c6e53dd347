package tokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ciata/ciata-cms/internal/models"
)

var testUser = &models.User{ID: 42, Username: "admin", Role: models.RoleAdmin}

func TestGenerateAndParse(t *testing.T) {
	secret := []byte("test-secret")
	raw, err := Generate(secret, testUser, 12*time.Hour)
	require.NoError(t, err)

	claims, err := Parse(secret, raw)
	require.NoError(t, err)
	require.EqualValues(t, 42, claims.UserID)
	require.Equal(t, "admin", claims.Username)
	require.Equal(t, models.RoleAdmin, claims.Role)
	require.NotNil(t, claims.ExpiresAt)
	require.WithinDuration(t, time.Now().Add(12*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	raw, err := Generate([]byte("secret-a"), testUser, time.Hour)
	require.NoError(t, err)

	_, err = Parse([]byte("secret-b"), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	raw, err := Generate(secret, testUser, -time.Minute)
	require.NoError(t, err)

	_, err = Parse(secret, raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("test-secret"), "not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
