package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinWindow(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("ana@example.org"))
	assert.True(t, l.Allow("ana@example.org"))
	assert.False(t, l.Allow("ana@example.org"))
	assert.True(t, l.Allow("jon@example.org"))
	assert.True(t, l.Allow(""), "anonymous callers are not limited")
}

func TestReserveReportsRetryAfter(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	defer l.Stop()

	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	ok, _ := l.Reserve("k", 1, time.Minute)
	assert.True(t, ok)

	now = now.Add(20 * time.Second)
	ok, retryAfter := l.Reserve("k", 1, time.Minute)
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, retryAfter)

	now = now.Add(41 * time.Second)
	ok, _ = l.Reserve("k", 1, time.Minute)
	assert.True(t, ok)
}

func TestAllowStrictUsesSeparateBucket(t *testing.T) {
	l := NewLimiter(10, time.Minute)
	defer l.Stop()

	assert.True(t, l.AllowStrict("k", 1, time.Minute))
	assert.False(t, l.AllowStrict("k", 1, time.Minute))
	assert.True(t, l.Allow("k"))
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewLimiter(1, time.Second)
	l.Stop()
	assert.NotPanics(t, l.Stop)
}
