package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID identifies a church, ministry or user on the remote API.
// The API is inconsistent about sending ids as strings or numbers,
// so ID accepts both. The empty ID encodes as null.
type ID string

// MarshalJSON encodes the empty ID as null
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a JSON string, number or null
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

// Role is a role assigned to a console user
type Role string

const (
	RoleSuperuser    Role = "superuser"
	RoleAdmin        Role = "admin"
	RoleMinistryUser Role = "ministry_user"
)

// Church is a top-level organization a user may act within
type Church struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Ministry is a sub-organizational unit, optionally bound to one church
type Ministry struct {
	ID     ID      `json:"id"`
	Name   string  `json:"name"`
	Church *Church `json:"church,omitempty"`
}

// ChurchID returns the id of the bound church, or "" when unbound
func (m Ministry) ChurchID() ID {
	if m.Church == nil {
		return ""
	}
	return m.Church.ID
}

// User is the profile returned by the authentication endpoint
type User struct {
	ID         ID         `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email,omitempty"`
	Roles      []Role     `json:"roles"`
	Churches   []Church   `json:"churches"`
	Ministries []Ministry `json:"ministries"`
}

// HasRole reports whether the user holds the given role
func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate service state
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Roles = append([]Role(nil), u.Roles...)
	out.Churches = append([]Church(nil), u.Churches...)
	out.Ministries = make([]Ministry, len(u.Ministries))
	for i, m := range u.Ministries {
		out.Ministries[i] = m
		if m.Church != nil {
			c := *m.Church
			out.Ministries[i].Church = &c
		}
	}
	return &out
}
