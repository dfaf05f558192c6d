package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRefreshThreshold outruns normal latency of the renew round-trip
const DefaultRefreshThreshold = 60 * time.Second

// TokenClock decides whether a bearer token is close to expiry.
// It decodes the exp claim without verifying the signature; verification
// belongs to the server.
type TokenClock struct {
	now    func() time.Time
	strict bool
}

// ClockOption configures a TokenClock
type ClockOption func(*TokenClock)

// WithNow overrides the time source
func WithNow(now func() time.Time) ClockOption {
	return func(c *TokenClock) { c.now = now }
}

// WithStrictDecode makes undecodable tokens report as expiring soon
func WithStrictDecode(strict bool) ClockOption {
	return func(c *TokenClock) { c.strict = strict }
}

// NewTokenClock creates a token clock
func NewTokenClock(opts ...ClockOption) *TokenClock {
	c := &TokenClock{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the clock's current time
func (c *TokenClock) Now() time.Time {
	return c.now()
}

// ExpiresAt decodes the exp claim. ok is false when the token cannot be
// decoded or carries no exp.
func (c *TokenClock) ExpiresAt(token string) (exp time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			exp, ok = time.Time{}, false
		}
	}()

	if strings.TrimSpace(token) == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	numeric, err := claims.GetExpirationTime()
	if err != nil || numeric == nil {
		return time.Time{}, false
	}
	return numeric.Time, true
}

// IsExpiringSoon reports exp - now < threshold.
// Malformed tokens return false unless strict decoding is enabled:
// the backend rejecting the next request is the recovery path.
func (c *TokenClock) IsExpiringSoon(token string, threshold time.Duration) bool {
	exp, ok := c.ExpiresAt(token)
	if !ok {
		return c.strict
	}
	return exp.Sub(c.now()) < threshold
}

// IsExpired reports whether the token's exp is in the past.
// Undecodable tokens count as expired.
func (c *TokenClock) IsExpired(token string) bool {
	exp, ok := c.ExpiresAt(token)
	if !ok {
		return true
	}
	return !exp.After(c.now())
}

// Claims are issued by the development API
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates HS256 access tokens
type TokenManager struct {
	secret string
	issuer string
	now    func() time.Time
}

func NewTokenManager(secret, issuer string) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "churchconsole"
	}
	return &TokenManager{secret: secret, issuer: issuer, now: time.Now}
}

func (tm *TokenManager) GenerateToken(userID, email string, expiresIn time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user_id required")
	}
	now := tm.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(tm.secret))
}

func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	}, jwt.WithIssuer(tm.issuer), jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
