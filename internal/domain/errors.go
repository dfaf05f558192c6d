package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthorized      = errors.New("not authorized")

	// ErrSessionExpired is returned once a refresh failure has forced a logout
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionEnded is returned when a logout happened while a refresh was in flight
	ErrSessionEnded = errors.New("session ended during refresh")

	ErrRefreshRejected    = errors.New("token refresh rejected")
	ErrRefreshUnavailable = errors.New("token refresh unavailable")

	ErrChurchNotAvailable          = errors.New("church not available to user")
	ErrMinistrySelectionNotAllowed = errors.New("ministry selection not allowed for user")

	ErrKeyNotFound = errors.New("key not found")
	ErrCircuitOpen = errors.New("remote api circuit open")
)

// RateLimitError reports a throttled login and the cool-down before retrying
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many login attempts, retry after %s", e.RetryAfter.Round(time.Second))
}
