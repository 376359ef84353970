package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/leppupy/pkg/auth"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := auth.GenerateToken("65f0c0ffee0000000000abcd", auth.RoleAdmin)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "65f0c0ffee0000000000abcd", claims.UserID)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
}

func TestValidateRejectsTampered(t *testing.T) {
	tok, err := auth.GenerateToken("u1", auth.RoleClient)
	require.NoError(t, err)

	_, err = auth.ValidateToken(tok + "x")
	assert.Error(t, err)
	_, err = auth.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, auth.CheckPassword(hash, "s3cret"))
	assert.False(t, auth.CheckPassword(hash, "other"))
}

func TestClaimsContext(t *testing.T) {
	_, ok := auth.FromContext(context.Background())
	assert.False(t, ok)

	ctx := auth.WithClaims(context.Background(), &auth.Claims{UserID: "u1"})
	c, ok := auth.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", c.UserID)
}
