package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mabletask/funnel/models"
)

var testSecret = []byte("test-secret")

func TestJWT_RoundTrip(t *testing.T) {
	user := &models.User{ID: 42, Email: "analyst@example.com"}

	token, err := GenerateJWT(user, testSecret, time.Now())
	require.NoError(t, err)

	claims, err := ValidateJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, "analyst@example.com", claims.Email)
	assert.Equal(t, "42", claims.Subject)
}

func TestJWT_WrongSecret(t *testing.T) {
	token, err := GenerateJWT(&models.User{ID: 1}, testSecret, time.Now())
	require.NoError(t, err)

	_, err = ValidateJWT(token, []byte("other-secret"))
	assert.Error(t, err)
}

func TestJWT_Expired(t *testing.T) {
	issued := time.Now().Add(-2 * TokenTTL)
	token, err := GenerateJWT(&models.User{ID: 1}, testSecret, issued)
	require.NoError(t, err)

	_, err = ValidateJWT(token, testSecret)
	assert.Error(t, err)
}

func TestJWT_MissingSecret(t *testing.T) {
	_, err := GenerateJWT(&models.User{ID: 1}, nil, time.Now())
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = ValidateJWT("anything", nil)
	assert.ErrorIs(t, err, ErrMissingSecret)
}
