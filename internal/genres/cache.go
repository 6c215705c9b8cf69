package genres

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// CacheFileName is the genre cache file inside the cache directory.
const CacheFileName = "artist_genres.json"

// Cache persists the artist name to genres mapping as a JSON file.
type Cache struct {
	path string
}

// NewCache creates a Cache stored in dir.
func NewCache(dir string) *Cache {
	return &Cache{path: filepath.Join(dir, CacheFileName)}
}

// Path returns the file path of the cache.
func (c *Cache) Path() string {
	return c.path
}

// Exists reports whether the cache file is present.
func (c *Cache) Exists() bool {
	_, err := os.Stat(c.path)
	return err == nil
}

// Load reads the cache. A missing file yields an empty mapping; a file
// that cannot be read or parsed yields an empty mapping and the error.
func (c *Cache) Load() (map[string][]string, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string][]string{}, nil
		}
		return map[string][]string{}, fmt.Errorf("reading genre cache: %w", err)
	}

	var m map[string][]string
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string][]string{}, fmt.Errorf("parsing genre cache: %w", err)
	}
	if m == nil {
		m = map[string][]string{}
	}
	return m, nil
}

// Save writes the full mapping, replacing the file.
func (c *Cache) Save(m map[string][]string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genre cache: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing genre cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replacing genre cache: %w", err)
	}
	return nil
}
