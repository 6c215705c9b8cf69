package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const tokenFileName = "spotify_token.json"

// TokenRecord is a persisted access token.
type TokenRecord struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ValidAt reports whether the token may still be used at now.
func (r *TokenRecord) ValidAt(now time.Time) bool {
	return r != nil && r.AccessToken != "" && now.Before(r.ExpiresAt)
}

// TokenCache handles persistent storage of access tokens.
type TokenCache struct {
	path string
}

// NewTokenCache creates a TokenCache stored in dir.
func NewTokenCache(dir string) *TokenCache {
	return &TokenCache{path: filepath.Join(dir, tokenFileName)}
}

// Path returns the file path where the token is stored.
func (c *TokenCache) Path() string {
	return c.path
}

// Load reads the cached token from disk.
// Returns (nil, nil) if the token file does not exist.
func (c *TokenCache) Load() (*TokenRecord, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var rec TokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}

	return &rec, nil
}

// Save writes the token to disk, creating the parent directory if needed.
func (c *TokenCache) Save(rec *TokenRecord) error {
	if rec == nil {
		return errors.New("cannot save nil token")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	return nil
}

// Delete removes the cached token file.
// Returns nil if the file does not exist.
func (c *TokenCache) Delete() error {
	err := os.Remove(c.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
