package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendo/realtime-gateway/internal/core/domain"
	apperrors "github.com/atendo/realtime-gateway/internal/core/errors"
)

func TestTokenManager_VerifyRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	userID := uuid.New()
	empresaID := uuid.New()

	token, err := tm.GenerateToken(userID, empresaID, "Atendente")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, empresaID, claims.EmpresaID)
	assert.Equal(t, domain.RoleAtendente, claims.Role, "role must come out normalized")
}

func TestTokenManager_VerifyRejections(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	userID := uuid.New()
	empresaID := uuid.New()

	t.Run("empty token", func(t *testing.T) {
		_, err := tm.Verify("")
		assert.ErrorIs(t, err, apperrors.ErrMissingToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := tm.Verify("not.a.jwt")
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewTokenManager("other-secret", time.Hour)
		token, err := other.GenerateToken(userID, empresaID, domain.RoleAtendente)
		require.NoError(t, err)

		_, err = tm.Verify(token)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewTokenManager("test-secret", -time.Minute)
		token, err := expired.GenerateToken(userID, empresaID, domain.RoleAtendente)
		require.NoError(t, err)

		_, err = tm.Verify(token)
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("missing tenant claim", func(t *testing.T) {
		token, err := tm.GenerateToken(userID, uuid.Nil, domain.RoleAtendente)
		require.NoError(t, err)

		_, err = tm.Verify(token)
		assert.ErrorIs(t, err, apperrors.ErrMissingTenant)
	})
}
