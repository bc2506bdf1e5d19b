package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade-wager-backend/internal/config"
	"arcade-wager-backend/internal/services"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := services.NewJWTService(&config.Config{JWTSecret: "test-secret"})

	token, err := svc.GenerateToken("session-1", alice.Hex())
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.SessionID)
	assert.Equal(t, alice.Hex(), claims.Address)
}

func TestJWTRejectsForeignSecret(t *testing.T) {
	issuer := services.NewJWTService(&config.Config{JWTSecret: "one"})
	verifier := services.NewJWTService(&config.Config{JWTSecret: "two"})

	token, err := issuer.GenerateToken("session-1", alice.Hex())
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)

	_, err = verifier.ValidateToken("not.a.token")
	assert.Error(t, err)
}
