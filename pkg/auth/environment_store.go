package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// This keeps deployments that export GITHUB_USER and PERSONAL_GITHUB_TOKEN
// working unchanged.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	token := os.Getenv("PERSONAL_GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("FOLLOWBACK_TOKEN")
	}
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	envUser := os.Getenv("GITHUB_USER")
	if envUser == "" {
		envUser = os.Getenv("FOLLOWBACK_USERNAME")
	}

	if username == "" {
		username = envUser
	}
	if username == "" {
		username = "default"
	}
	if envUser != "" && username != envUser {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     username,
		Token:        token,
		UserAgent:    os.Getenv("FOLLOWBACK_USER_AGENT"),
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
	account, err := e.Retrieve(username)
	return err == nil && account != nil
}
