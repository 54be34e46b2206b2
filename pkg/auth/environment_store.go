package auth

import (
	"os"
	"strings"
	"time"
)

// TokenEnv is read by EnvironmentStore
const TokenEnv = "TWEETCRAWL_AUTH_TOKEN"

// EnvironmentStore exposes TokenEnv as a read-only account
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve answers for any name since the variable is not keyed
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	token := strings.TrimSpace(os.Getenv(TokenEnv))
	if token == "" {
		return nil, ErrCredentialsNotFound
	}
	if name == "" {
		name = DefaultAccount
	}
	return &Account{Name: name, AuthToken: token, LastModified: time.Now()}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(name string) bool {
	return strings.TrimSpace(os.Getenv(TokenEnv)) != ""
}
