package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidRoomPassword(t *testing.T) {
	assert.True(t, ValidRoomPassword("0420"))
	assert.False(t, ValidRoomPassword("042"))
	assert.False(t, ValidRoomPassword("04200"))
	assert.False(t, ValidRoomPassword("04a0"))
	assert.False(t, ValidRoomPassword(""))
}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("1234")
	require.NoError(t, err)
	assert.NotEqual(t, "1234", hash)

	assert.True(t, h.Verify(hash, "1234"))
	assert.False(t, h.Verify(hash, "4321"))
	assert.False(t, h.Verify("", "1234"))
}

func TestPasswordHasher_RejectsBadFormat(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	_, err := h.Hash("password")
	assert.ErrorIs(t, err, ErrPasswordFormat)
}
