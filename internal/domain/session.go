package domain

import (
	"context"
	"time"
)

// Storage keys for the two persisted records
const (
	SessionStorageKey = "auth-storage"
	TenantStorageKey  = "church-ministry-context-storage"
)

// SessionStatus is the state of the console session
type SessionStatus string

const (
	StatusPending      SessionStatus = "pending"
	StatusAuthorized   SessionStatus = "authorized"
	StatusUnauthorized SessionStatus = "unauthorized"
)

// Session is the current login state.
// Token and User are set iff Status is StatusAuthorized.
type Session struct {
	Status SessionStatus `json:"status"`
	Token  string        `json:"token,omitempty"`
	User   *User         `json:"user,omitempty"`
}

// Authorized reports whether the session carries a usable token
func (s Session) Authorized() bool {
	return s.Status == StatusAuthorized && s.Token != ""
}

// TenantContext is the active church/ministry selection for the session
type TenantContext struct {
	ActiveChurchID      ID         `json:"activeChurchId"`
	ActiveMinistryID    ID         `json:"activeMinistryId"`
	AvailableChurches   []Church   `json:"availableChurches"`
	AvailableMinistries []Ministry `json:"availableMinistries"`
}

// TenantRecord is the persisted part of TenantContext.
// Available collections are recomputed from the user on every initialize.
type TenantRecord struct {
	ActiveChurchID   ID `json:"activeChurchId"`
	ActiveMinistryID ID `json:"activeMinistryId"`
}

// Credentials are submitted to the login endpoint
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the payload of a successful login
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// AuthAPI is the slice of the remote API used by the session core
type AuthAPI interface {
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)
	RenewToken(ctx context.Context, token string) (string, error)
}

// KVStore is durable key-value storage for persisted records
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// SessionRepository persists the session record
type SessionRepository interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Clear(ctx context.Context) error
}

// TenantRepository persists the active church/ministry selection
type TenantRepository interface {
	Load(ctx context.Context) (*TenantRecord, error)
	Save(ctx context.Context, record *TenantRecord) error
}

// Notification is a user-facing message
type Notification struct {
	Level   string    `json:"level"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notification levels
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notifier surfaces messages to the user. Fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
