package token

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// FileStorage persists the token store as a single JSON file.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage creates the parent directory if needed and verifies it
// is writable before returning the adapter.
func NewFileStorage(path string) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		log.Error().Err(err).Msg("Failed to create token storage directory")
		return nil, err
	}
	return &FileStorage{path: path}, nil
}

func (s *FileStorage) GetAll() (map[string]Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]Token), nil
	}
	if err != nil {
		return nil, err
	}
	tokens := make(map[string]Token)
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *FileStorage) SetAll(tokens map[string]Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
