package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitclass/gitclass-backend/internal/config"
	"github.com/gitclass/gitclass-backend/internal/model"
)

func newAuthService(cfg *config.Config) *AuthService {
	return NewAuthService(cfg, nil, nil, nil, nil)
}

func TestPasswordHashing(t *testing.T) {
	svc := newAuthService(&config.Config{BcryptCost: 4})

	hash, err := svc.HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.NoError(t, svc.CheckPassword(hash, "s3cret"))
	assert.Error(t, svc.CheckPassword(hash, "wrong"))
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newAuthService(&config.Config{
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
	})
	user := &model.User{ID: 7, Username: "rika"}

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "rika", claims.Username)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := newAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.jwt")
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := newAuthService(&config.Config{JWTSecret: "other-secret", JWTExpiry: time.Hour})
		token, err := other.GenerateToken(&model.User{ID: 1, Username: "x"})
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		short := newAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: -time.Minute})
		token, err := short.GenerateToken(&model.User{ID: 1, Username: "x"})
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})
}
