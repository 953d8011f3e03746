// Package security tracks the small cross-cutting "is the chain healthy"
// flag referenced by the Relay, Vault Registry, and Redeem components: when
// any of them detects a problem it raises a flag here, and verification
// gates (§4.1's transaction verification gate, §4.3's redeem execution)
// consult it before proceeding.
package security

// Flag identifies one of the independent reasons the parachain can be
// degraded. Flags are combined with bitwise OR; Shutdown is a separate,
// stronger state that governance toggles directly.
type Flag uint8

const (
	// FlagBTCRelay is raised whenever the relay's main chain contains an
	// invalid or no-data height.
	FlagBTCRelay Flag = 1 << iota
	// FlagOracle is raised when the price oracle is stale or unavailable.
	FlagOracle
	// FlagLiquidation is raised when the liquidation vault itself becomes
	// undercollateralized system-wide.
	FlagLiquidation
)

// Status is the global health record. The zero value is "Running" with no
// errors set.
type Status struct {
	shutdown bool
	errors   Flag
}

// NewStatus returns a running, error-free Status.
func NewStatus() *Status { return &Status{} }

// IsShutdown reports whether the chain has been placed into Shutdown.
func (s *Status) IsShutdown() bool {
	if s == nil {
		return false
	}
	return s.shutdown
}

// IsRunning reports whether the chain is neither shut down nor carrying any
// error flag.
func (s *Status) IsRunning() bool {
	if s == nil {
		return true
	}
	return !s.shutdown && s.errors == 0
}

// HasError reports whether a specific flag is currently raised.
func (s *Status) HasError(f Flag) bool {
	if s == nil {
		return false
	}
	return s.errors&f != 0
}

// SetShutdown forces the chain into or out of Shutdown; this is a root-only
// governance action in the real system, modeled here as a plain setter.
func (s *Status) SetShutdown(v bool) { s.shutdown = v }

// RaiseError sets an error flag, moving the chain out of "Running" until the
// corresponding recovery call clears it.
func (s *Status) RaiseError(f Flag) { s.errors |= f }

// RecoverFromBTCRelayFailure clears FlagBTCRelay. This is the cross-cutting
// recovery named in spec.md §7: called by the relay module once a formerly
// erroring chain height becomes clean (a reorg moved it off main, or
// governance cleared it). It does not touch Shutdown or other flags.
func (s *Status) RecoverFromBTCRelayFailure() {
	if s == nil {
		return
	}
	s.errors &^= FlagBTCRelay
}
