package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-development-32-chars-long"

func TestGenerateAndValidateToken(t *testing.T) {
	m := NewManager(testSecret, "attachrename", time.Hour)

	token, err := m.GenerateToken("machine-a", "lifetime")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "machine-a", claims.MachineID)
	assert.Equal(t, "lifetime", claims.LicenseType)
	assert.Equal(t, "attachrename", claims.Issuer)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	m := NewManager(testSecret, "attachrename", time.Hour)

	_, err := m.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	m := NewManager(testSecret, "attachrename", time.Hour)
	other := NewManager("another-secret-key-also-32-chars-long!!", "attachrename", time.Hour)

	token, err := m.GenerateToken("machine-a", "monthly")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	m := NewManager(testSecret, "attachrename", -time.Minute)

	token, err := m.GenerateToken("machine-a", "monthly")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
