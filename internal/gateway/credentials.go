package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Credentials is the persisted auth state: the opaque bearer token and
// the profile it belongs to. Written at login, cleared at logout or on a
// 401.
type Credentials struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ErrNoCredentials signals that no credential file exists yet.
var ErrNoCredentials = errors.New("no stored credentials")

const credentialsFile = "credentials.json"

// CredentialStore persists credentials under a config directory.
type CredentialStore struct {
	Dir string
}

// DefaultCredentialDir resolves the config directory: SMARTCALL_CONFIG
// when set, otherwise ~/.smartcall.
func DefaultCredentialDir() string {
	if dir := os.Getenv("SMARTCALL_CONFIG"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".smartcall")
}

// Load reads the stored credentials, ErrNoCredentials when absent.
func (s CredentialStore) Load() (Credentials, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, credentialsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return Credentials{}, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials file: %w", err)
	}
	if creds.Token == "" {
		return Credentials{}, ErrNoCredentials
	}
	return creds, nil
}

// Save writes the credentials with owner-only permissions.
func (s CredentialStore) Save(creds Credentials) error {
	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, credentialsFile), data, 0600)
}

// Clear removes the credential file; missing is not an error.
func (s CredentialStore) Clear() error {
	err := os.Remove(filepath.Join(s.Dir, credentialsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
