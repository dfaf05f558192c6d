package api

import (
	"context"
	"net/http"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
)

// SessionReader exposes the current session
type SessionReader interface {
	Snapshot() domain.Session
}

// TokenSource returns a token that is not about to expire
type TokenSource interface {
	EnsureFresh(ctx context.Context) (string, error)
}

// Authenticator attaches the session's bearer token to outbound requests,
// refreshing it first when it is about to expire.
type Authenticator struct {
	sessions SessionReader
	tokens   TokenSource
	next     http.RoundTripper
}

// NewAuthenticator wraps next. A nil next uses http.DefaultTransport.
func NewAuthenticator(sessions SessionReader, tokens TokenSource, next http.RoundTripper) *Authenticator {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Authenticator{sessions: sessions, tokens: tokens, next: next}
}

// Authenticate returns req unchanged when there is no session, otherwise a
// clone carrying a fresh bearer token. On refresh failure nothing is
// returned and the request must not be sent.
func (a *Authenticator) Authenticate(req *http.Request) (*http.Request, error) {
	if !a.sessions.Snapshot().Authorized() {
		return req, nil
	}

	token, err := a.tokens.EnsureFresh(req.Context())
	if err != nil {
		return nil, err
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out, nil
}

// RoundTrip implements http.RoundTripper
func (a *Authenticator) RoundTrip(req *http.Request) (*http.Response, error) {
	authed, err := a.Authenticate(req)
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	return a.next.RoundTrip(authed)
}

// NewAuthenticatedClient returns a copy of base whose requests pass
// through an Authenticator. base itself stays unauthenticated for the
// login and renew endpoints.
func NewAuthenticatedClient(base *Client, sessions SessionReader, tokens TokenSource) *Client {
	out := *base
	out.http = &http.Client{
		Timeout:   base.http.Timeout,
		Transport: NewAuthenticator(sessions, tokens, base.http.Transport),
	}
	return &out
}
