package auth

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aryan0dhankhar/churchconsole/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Account is a user known to the development API
type Account struct {
	Profile      domain.User
	PasswordHash []byte
	Active       bool
}

// UserStore holds accounts keyed by lower-cased email
type UserStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewUserStore creates an empty user store
func NewUserStore() *UserStore {
	return &UserStore{accounts: make(map[string]*Account)}
}

// AddUser registers a profile with a bcrypt-hashed password
func (us *UserStore) AddUser(profile domain.User, password string) error {
	if profile.Email == "" || profile.ID == "" {
		return fmt.Errorf("email and id required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	us.accounts[strings.ToLower(profile.Email)] = &Account{
		Profile:      profile,
		PasswordHash: hash,
		Active:       true,
	}
	return nil
}

// Authenticate verifies credentials and returns the profile
func (us *UserStore) Authenticate(email, password string) (*domain.User, error) {
	us.mu.RLock()
	account, exists := us.accounts[strings.ToLower(email)]
	us.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("user not found")
	}
	if !account.Active {
		return nil, fmt.Errorf("user inactive")
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid password")
	}
	return account.Profile.Clone(), nil
}

// GetByID looks up a profile by user id
func (us *UserStore) GetByID(id domain.ID) (*domain.User, error) {
	us.mu.RLock()
	defer us.mu.RUnlock()
	for _, a := range us.accounts {
		if a.Profile.ID == id {
			return a.Profile.Clone(), nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

// Update replaces the stored profile, keeping the password
func (us *UserStore) Update(profile domain.User) error {
	us.mu.Lock()
	defer us.mu.Unlock()
	account, ok := us.accounts[strings.ToLower(profile.Email)]
	if !ok {
		return fmt.Errorf("user not found")
	}
	account.Profile = profile
	return nil
}
