package token

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/habedi/oidckit/pkg/autherr"
	"github.com/rs/zerolog/log"
)

// Storage is the persistence contract for the token store. The manager
// always reads and writes the whole map; adapters never interpret it.
type Storage interface {
	GetAll() (map[string]Token, error)
	SetAll(tokens map[string]Token) error
	Clear() error
}

// StorageKind selects a concrete Storage implementation.
type StorageKind string

const (
	StorageSQLite StorageKind = "sqlite"
	StorageFile   StorageKind = "file"
	StorageMemory StorageKind = "memory"
)

// DefaultStoragePath is where durable adapters keep their data unless
// told otherwise.
var DefaultStoragePath = filepath.Join(os.Getenv("HOME"), ".oidckit")

// SelectStorage returns the Storage for an explicitly requested kind,
// or walks the fallback chain sqlite -> file -> memory when kind is
// empty, warning on every downgrade. An unknown kind is a caller error.
func SelectStorage(kind StorageKind, dir string) (Storage, error) {
	if dir == "" {
		dir = DefaultStoragePath
	}
	switch kind {
	case StorageSQLite:
		return NewSQLiteStorage(filepath.Join(dir, "tokens.db"))
	case StorageFile:
		return NewFileStorage(filepath.Join(dir, "tokens.json"))
	case StorageMemory:
		return NewMemoryStorage(), nil
	case "":
		// Fall through to the chain below.
	default:
		return nil, autherr.New(autherr.Validation, fmt.Sprintf("unknown storage kind: %q", kind), nil)
	}

	if s, err := NewSQLiteStorage(filepath.Join(dir, "tokens.db")); err == nil {
		return s, nil
	} else {
		log.Warn().Err(err).Msg("SQLite token storage unavailable, falling back to file storage")
	}
	if s, err := NewFileStorage(filepath.Join(dir, "tokens.json")); err == nil {
		return s, nil
	} else {
		log.Warn().Err(err).Msg("File token storage unavailable, falling back to in-memory storage")
	}
	return NewMemoryStorage(), nil
}
