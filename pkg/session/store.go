package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Record is the persisted part of a session.
type Record struct {
	Username  string
	Token     string
	UpdatedAt time.Time
}

// Store persists at most one Record.
type Store interface {
	Load(ctx context.Context) (Record, bool, error)
	Save(ctx context.Context, record Record) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the record in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	record *Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return Record{}, false, nil
	}
	return *s.record, true, nil
}

func (s *MemoryStore) Save(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = &record
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
	return nil
}

// tokenRow is the single-row table behind GormStore.
type tokenRow struct {
	ID        uint `gorm:"primaryKey"`
	Username  string
	Token     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (tokenRow) TableName() string { return "sessions" }

const sessionRowID = 1

// GormStore keeps the record in a sqlite database.
type GormStore struct {
	db *gorm.DB
}

// OpenGormStore opens (creating when needed) the sqlite database at path.
func OpenGormStore(path string) (*GormStore, error) {
	if path == "" {
		return nil, errors.New("session: store path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("session: create store directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("session: open store: %w", err)
	}
	if err := db.AutoMigrate(&tokenRow{}); err != nil {
		return nil, fmt.Errorf("session: migrate store: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Load(ctx context.Context) (Record, bool, error) {
	var row tokenRow
	err := s.db.WithContext(ctx).First(&row, sessionRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("session: load: %w", err)
	}
	return Record{Username: row.Username, Token: row.Token, UpdatedAt: row.UpdatedAt}, true, nil
}

func (s *GormStore) Save(ctx context.Context, record Record) error {
	row := tokenRow{ID: sessionRowID, Username: record.Username, Token: record.Token}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

func (s *GormStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Delete(&tokenRow{}, sessionRowID).Error; err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
