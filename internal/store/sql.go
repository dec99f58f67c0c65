package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// document is the row shape shared by all SQL-backed categories: one row per
// fingerprint, holding the serialized record. Keeping the record as a JSON
// blob preserves the field-merge semantics of the file backend.
type document struct {
	ID        string `gorm:"primaryKey"`
	Body      []byte
	UpdatedAt time.Time
}

// OpenDB opens the shared database for SQL-backed stores. A postgres:// DSN
// selects the postgres driver; anything else is treated as a sqlite path.
func OpenDB(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open status database: %w", err)
	}
	return db, nil
}

// SQL is a database-backed store with the same contract as File. Each
// category maps to its own table. The embedded mutex serializes
// read-modify-write sequences the same way the file backend's lock does;
// row-level atomicity comes from the database.
type SQL[T any] struct {
	db     *gorm.DB
	table  string
	mu     sync.Mutex
	logger hclog.Logger
}

// NewSQL creates a SQL-backed store persisting to the named table.
func NewSQL[T any](db *gorm.DB, table string, logger hclog.Logger) (*SQL[T], error) {
	if err := db.Table(table).AutoMigrate(&document{}); err != nil {
		return nil, fmt.Errorf("migrate table %s: %w", table, err)
	}
	return &SQL[T]{
		db:     db,
		table:  table,
		logger: logger.Named("store").With("table", table),
	}, nil
}

func (s *SQL[T]) Read() map[string]T {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []document
	if err := s.db.Table(s.table).Find(&rows).Error; err != nil {
		s.logger.Warn("unreadable status table, treating as empty", "error", err)
		return map[string]T{}
	}

	docs := make(map[string]T, len(rows))
	for _, row := range rows {
		var rec T
		if err := json.Unmarshal(row.Body, &rec); err != nil {
			s.logger.Warn("malformed record, skipping", "id", row.ID, "error", err)
			continue
		}
		docs[row.ID] = rec
	}
	return docs
}

func (s *SQL[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	var row document
	if err := s.db.Table(s.table).Where("id = ?", id).First(&row).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("record read failed", "id", id, "error", err)
		}
		return zero, false
	}

	var rec T
	if err := json.Unmarshal(row.Body, &rec); err != nil {
		s.logger.Warn("malformed record, treating as absent", "id", id, "error", err)
		return zero, false
	}
	return rec, true
}

func (s *SQL[T]) Upsert(id string, mutate func(*T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec T
	var row document
	err := s.db.Table(s.table).Where("id = ?", id).First(&row).Error
	switch {
	case err == nil:
		if uerr := json.Unmarshal(row.Body, &rec); uerr != nil {
			s.logger.Warn("malformed record, rebuilding", "id", id, "error", uerr)
			var zero T
			rec = zero
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return fmt.Errorf("read record %s: %w", id, err)
	}

	mutate(&rec)

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", id, err)
	}

	row = document{ID: id, Body: body, UpdatedAt: time.Now()}
	if err := s.db.Table(s.table).Save(&row).Error; err != nil {
		return fmt.Errorf("persist record %s: %w", id, err)
	}
	return nil
}

func (s *SQL[T]) Delete(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	if err := s.db.Table(s.table).Where("id IN ?", ids).Delete(&document{}).Error; err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}
