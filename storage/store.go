package storage

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps a gorm.DB over a pure-Go sqlite file, used for the audit
// trail and terminal-state snapshots cmd/auditexport later reads back.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// applies the current schema migrations.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate brings the schema up to date. AutoMigrate is additive-only and
// safe to call every startup, matching the teacher repo's storage.Migrate
// convention.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&AuditEntry{},
		&RelayHeaderRecord{},
		&RedeemRequestRecord{},
		&VaultLiquidationRecord{},
	)
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AppendAudit records one dispatched call's outcome.
func (s *Store) AppendAudit(entry AuditEntry) error {
	entry.SchemaVersion = SchemaVersion
	return s.db.Create(&entry).Error
}

// UpsertRelayHeader records or updates a stored header's placement.
func (s *Store) UpsertRelayHeader(rec RelayHeaderRecord) error {
	rec.SchemaVersion = SchemaVersion
	return s.db.Save(&rec).Error
}

// UpsertRedeemRequest records or updates a redeem request's current
// status for later audit export.
func (s *Store) UpsertRedeemRequest(rec RedeemRequestRecord) error {
	rec.SchemaVersion = SchemaVersion
	return s.db.Save(&rec).Error
}

// RecordLiquidation appends a vault liquidation event.
func (s *Store) RecordLiquidation(rec VaultLiquidationRecord) error {
	rec.SchemaVersion = SchemaVersion
	return s.db.Create(&rec).Error
}

// AuditTrail returns every audit entry for component (or all components,
// if component is empty) within [from, to], ordered oldest first.
func (s *Store) AuditTrail(component string, from, to time.Time) ([]AuditEntry, error) {
	var entries []AuditEntry
	q := s.db.Order("created_at asc").Where("created_at BETWEEN ? AND ?", from, to)
	if component != "" {
		q = q.Where("component = ?", component)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("storage: query audit trail: %w", err)
	}
	return entries, nil
}

// RedeemRequests returns every persisted redeem request, oldest first.
func (s *Store) RedeemRequests() ([]RedeemRequestRecord, error) {
	var recs []RedeemRequestRecord
	if err := s.db.Order("created_at asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("storage: query redeem requests: %w", err)
	}
	return recs, nil
}

// RelayHeaders returns every persisted relay header, ordered by height.
func (s *Store) RelayHeaders() ([]RelayHeaderRecord, error) {
	var recs []RelayHeaderRecord
	if err := s.db.Order("height asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("storage: query relay headers: %w", err)
	}
	return recs, nil
}
