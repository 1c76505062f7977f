package token

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// tokenRow is the persisted shape of one token store entry.
type tokenRow struct {
	Key     string `gorm:"primaryKey"`
	Payload []byte
}

func (tokenRow) TableName() string { return "tokens" }

// SQLiteStorage is the preferred durable adapter, backed by a GORM
// SQLite database with one row per token key.
type SQLiteStorage struct {
	db *gorm.DB
}

// NewSQLiteStorage opens (creating if needed) the database at path and
// migrates the tokens table.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		log.Error().Err(err).Msg("Failed to create token database directory")
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to open token database")
		return nil, err
	}
	if err := db.AutoMigrate(&tokenRow{}); err != nil {
		log.Error().Err(err).Msg("Failed to migrate token database")
		return nil, err
	}
	if zerolog.GlobalLevel() == zerolog.Disabled {
		db.Logger = db.Logger.LogMode(0) // Silent mode
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) GetAll() (map[string]Token, error) {
	var rows []tokenRow
	if err := s.db.Find(&rows).Error; err != nil {
		log.Error().Err(err).Msg("Failed to read token rows")
		return nil, err
	}
	tokens := make(map[string]Token, len(rows))
	for _, row := range rows {
		var tok Token
		if err := json.Unmarshal(row.Payload, &tok); err != nil {
			return nil, err
		}
		tokens[row.Key] = tok
	}
	return tokens, nil
}

func (s *SQLiteStorage) SetAll(tokens map[string]Token) error {
	rows := make([]tokenRow, 0, len(tokens))
	for key, tok := range tokens {
		payload, err := json.Marshal(tok)
		if err != nil {
			return err
		}
		rows = append(rows, tokenRow{Key: key, Payload: payload})
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&tokenRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (s *SQLiteStorage) Clear() error {
	return s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&tokenRow{}).Error
}

// Close releases the underlying database connection.
func (s *SQLiteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
