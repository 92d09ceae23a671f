package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/loop-dev/loop-battle/internal/auth"
	"github.com/loop-dev/loop-battle/internal/battle"
)

func TestRateLimiter_PerKeyBuckets(t *testing.T) {
	l := NewRateLimiter(1, 2)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "other keys are independent")

	now = now.Add(time.Minute)
	assert.True(t, l.Allow("a"))
}

func TestRateLimiter_Prune(t *testing.T) {
	l := NewRateLimiter(10, 1)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(10 * time.Minute)
	l.Allow("fresh")

	assert.Equal(t, 1, l.Prune(5*time.Minute))
	assert.Len(t, l.buckets, 1)
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(1, 1)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	player := battle.Player{ID: uuid.New()}

	call := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req = req.WithContext(auth.WithPlayer(req.Context(), player))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("/rooms/1/verify-password"))
	assert.Equal(t, http.StatusTooManyRequests, call("/rooms/1/verify-password"))
	assert.Equal(t, http.StatusOK, call("/rooms/2/verify-password"))
}
