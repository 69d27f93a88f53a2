// Package kv implements the shared key-value store backing the comment
// subsystem, persisted in SQLite via GORM (pure Go driver).
//
// The store exposes plain get/set over opaque JSON documents. Each Set is
// atomic for its key (single-row upsert); the store offers no multi-key
// transactions and no compare-and-swap, so callers that read-modify-write a
// document must serialize per key themselves (see services.postLocks).
//
// Key layout used by the comment subsystem:
//   - "comments:<postID>"   → domain.CommentLog
//   - "anon-users:<postID>" → domain.IdentityMap
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// entry is the storage row for one key. Value holds the serialized JSON
// document.
type entry struct {
	Key       string `gorm:"primaryKey;type:varchar(255)"`
	Value     []byte `gorm:"type:blob;not null"`
	UpdatedAt time.Time
}

// TableName returns the database table name for entry.
func (entry) TableName() string { return "kv_entries" }

// Store is the key-value contract consumed by the service layer.
//
// Get reports found=false for absent keys, never an error. Set overwrites
// any previous value atomically. Implementations must be safe for
// concurrent use and honor the provided context.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// SQLiteStore is the production Store backed by a SQLite database.
type SQLiteStore struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at path, applies PRAGMAs,
// configures the connection pool, and migrates the kv_entries table.
func Open(path string) (*SQLiteStore, error) {
	// Fail early if the parent directory is missing (instead of the driver's
	// opaque "out of memory (14)" on some platforms).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// NewWithDB wraps an already-open GORM handle (tests use in-memory SQLite)
// and migrates the kv_entries table.
func NewWithDB(db *gorm.DB) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the value stored under key. Absent keys report found=false
// with a nil error; only infrastructure failures produce an error.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e entry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Value, true, nil
}

// Set stores value under key, replacing any previous value. The upsert is a
// single-row write and therefore atomic for the key.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	e := entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&e).Error
}

// Close releases the underlying database connections.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetJSON loads the document under key into out. Absent keys leave out
// untouched and report found=false.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, err
	}
	return true, nil
}

// SetJSON serializes doc and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw)
}
