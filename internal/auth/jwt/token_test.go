package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager(TokenConfig{AccessSecret: []byte("secret")})
	user := User{ID: uuid.New(), Nickname: "neo", Grade: "A+"}

	token, err := m.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "neo", claims.Nickname)
	assert.Equal(t, "A+", claims.Grade)
	assert.Equal(t, "loop-battle", claims.Issuer)
}

func TestManager_RejectsBadTokens(t *testing.T) {
	m := NewManager(TokenConfig{AccessSecret: []byte("secret"), AccessTTL: time.Minute})
	other := NewManager(TokenConfig{AccessSecret: []byte("other")})
	user := User{ID: uuid.New(), Nickname: "neo"}

	foreign, err := other.GenerateAccessToken(user)
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := m.GenerateAccessToken(user)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManager_RejectsMissingUserID(t *testing.T) {
	m := NewManager(TokenConfig{AccessSecret: []byte("secret")})
	token, err := m.GenerateAccessToken(User{Nickname: "ghost"})
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
