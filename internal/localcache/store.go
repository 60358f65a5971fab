package localcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/monitoring"
)

// Well-known cache keys used by the sync core
const (
	KeyCurrentUser  = "currentUser"
	KeyCaseList     = "caseList"
	KeySelectedCase = "selectedCase"
	KeyActiveTab    = "activeTab"
)

// FileStore is a file-backed key/value store that persists session
// state across process restarts. Each key lives in its own file under
// the state directory. Values are opaque serialized text.
type FileStore struct {
	dir    string
	logger *logger.Logger
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory if needed
func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir, logger: log}, nil
}

// Get returns the raw value for key. A missing or unreadable entry is
// reported as absent, never as an error.
func (s *FileStore) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		monitoring.RecordLocalCacheOperation("get", "miss")
		return nil, false
	}
	monitoring.RecordLocalCacheOperation("get", "hit")
	return data, true
}

// Set stores the raw value for key. The write goes through a temp file
// and rename so a crash mid-write never leaves a torn entry.
func (s *FileStore) Set(key string, value []byte) error {
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		monitoring.RecordLocalCacheOperation("set", "error")
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		monitoring.RecordLocalCacheOperation("set", "error")
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}
	monitoring.RecordLocalCacheOperation("set", "ok")
	return nil
}

// Remove deletes the entry for key. Removing a missing entry is not an
// error.
func (s *FileStore) Remove(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache entry: %w", err)
	}
	monitoring.RecordLocalCacheOperation("remove", "ok")
	return nil
}

// path maps a logical key to its file location
func (s *FileStore) path(key string) string {
	// Keys are internal constants, but sanitize anyway
	safe := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, key)
	return filepath.Join(s.dir, safe+".json")
}

// GetJSON deserializes the entry for key into out. A deserialization
// failure is treated as absent so a corrupted cache never crashes the
// caller.
func GetJSON(s interface {
	Get(key string) ([]byte, bool)
}, key string, out interface{}) bool {
	data, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false
	}
	return true
}

// SetJSON serializes value and stores it under key
func SetJSON(s interface {
	Set(key string, value []byte) error
}, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.Set(key, data)
}
