package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var ErrPasswordFormat = errors.New("room password must be exactly 4 digits")

// DefaultBcryptCost balances join latency against brute-force cost for 4 digit pins.
const DefaultBcryptCost = 10

// PasswordHasher hashes and checks room passwords.
type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewPasswordHasher creates a hasher. A cost outside bcrypt's range falls back to the default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// ValidRoomPassword reports whether pw is exactly four ASCII digits.
func ValidRoomPassword(pw string) bool {
	if len(pw) != 4 {
		return false
	}
	for i := 0; i < len(pw); i++ {
		if pw[i] < '0' || pw[i] > '9' {
			return false
		}
	}
	return true
}

// Hash creates a bcrypt hash of a room password.
func (h *PasswordHasher) Hash(pw string) (string, error) {
	if !ValidRoomPassword(pw) {
		return "", ErrPasswordFormat
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash room password: %w", err)
	}
	return string(hash), nil
}

// Verify compares in constant time. An empty hash still costs one bcrypt comparison
// so a missing room is indistinguishable from a wrong password by timing.
func (h *PasswordHasher) Verify(hash, pw string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(h.dummyHash(), []byte(pw))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (h *PasswordHasher) dummyHash() []byte {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("0000"), h.cost)
	})
	return h.dummy
}
