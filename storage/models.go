// Package storage persists the audit trail of dispatched calls and the
// relay/redeem records needed to recover or export history after a
// restart, via gorm over a pure-Go sqlite driver (no cgo). The live
// engines in internal/world remain in-memory; storage is the
// crash-recoverable audit/export layer described in SPEC_FULL.md, not a
// mirror of every engine's internal map.
package storage

import "time"

// SchemaVersion is bumped whenever a model's column set changes in a way
// that requires an explicit migration step, mirroring the "Storage
// versions are explicit per pallet" convention in spec.md §6.
const SchemaVersion = 1

// AuditEntry records one dispatched call's outcome: which component and
// method handled it, under what origin, and whether it succeeded.
type AuditEntry struct {
	ID            uint   `gorm:"primarykey"`
	SchemaVersion int
	CorrelationID string `gorm:"index"`
	Component     string `gorm:"index"`
	Method        string `gorm:"index"`
	Origin        string
	Height        uint32 `gorm:"index"`
	Timestamp     int64
	Detail        string
	Err           string
	CreatedAt     time.Time
}

// RelayHeaderRecord is a durable copy of a stored Bitcoin header's
// placement, keyed by its 32-byte hash hex-encoded.
type RelayHeaderRecord struct {
	SchemaVersion   int
	Hash            string `gorm:"primarykey"`
	ChainID         uint32 `gorm:"index"`
	Height          uint32 `gorm:"index"`
	ParachainHeight uint32
	Submitter       string
	CreatedAt       time.Time
}

// RedeemRequestRecord is a durable snapshot of a redeem request at the
// point it reached a terminal status, for offline audit export.
type RedeemRequestRecord struct {
	SchemaVersion int
	RequestID     string `gorm:"primarykey"`
	VaultAccount  string `gorm:"index"`
	Redeemer      string `gorm:"index"`
	AmountWrapped string
	Fee           string
	BTCAddress    string
	Status        string `gorm:"index"`
	OpenHeight    uint32
	CreatedAt     time.Time
	SettledAt     *time.Time
}

// VaultLiquidationRecord is a durable record of a vault liquidation event.
type VaultLiquidationRecord struct {
	SchemaVersion int
	ID            uint `gorm:"primarykey"`
	VaultAccount  string `gorm:"index"`
	Pair          string `gorm:"index"`
	IssuedAtEvent string
	CreatedAt     time.Time
}
