// Package state persists the handful of values that must survive a restart:
// the bearer token and the last-known cart id.
package state

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	KeyToken  = "auth_token"
	KeyCartID = "cart_id"
)

type Entry struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

// Store is a durable key/value table. Read and write failures are swallowed:
// a value that cannot be loaded is simply absent, and the session carries on
// without it.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate state store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key string) string {
	if s == nil || s.db == nil {
		return ""
	}
	var e Entry
	if err := s.db.First(&e, "key = ?", key).Error; err != nil {
		return ""
	}
	return e.Value
}

func (s *Store) Set(key, value string) {
	if s == nil || s.db == nil {
		return
	}
	s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&Entry{Key: key, Value: value})
}

func (s *Store) Delete(key string) {
	if s == nil || s.db == nil {
		return
	}
	s.db.Delete(&Entry{}, "key = ?", key)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
