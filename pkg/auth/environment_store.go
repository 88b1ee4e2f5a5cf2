package auth

import (
	"os"
	"time"
)

// Environment variables holding the login pair
const (
	EnvEmail    = "CYWORLD_EMAIL"
	EnvPassword = "CYWORLD_PASSWORD"
)

// EnvironmentStore is a read-only store over CYWORLD_EMAIL and CYWORLD_PASSWORD
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment pair. An empty username matches it, as
// does the email it carries.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	email := os.Getenv(EnvEmail)
	password := os.Getenv(EnvPassword)

	if email == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != email {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     email,
		Email:        email,
		Password:     password,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
