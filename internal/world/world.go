// Package world assembles every component engine against one shared
// state.Ledger into the single explicit WorldState named in spec.md §9's
// design notes ("represent as a single WorldState threaded explicitly
// through each operation"). It necessarily lives above internal/state
// rather than inside it: internal/state.Ledger is itself a dependency of
// internal/vault, internal/lending, and internal/amm, so an aggregate that
// references all of them cannot also live in their shared dependency
// without an import cycle. World is that aggregate's top-level home.
package world

import (
	"time"

	"github.com/btc-parachain/core/internal/amm"
	"github.com/btc-parachain/core/internal/governance"
	"github.com/btc-parachain/core/internal/lending"
	"github.com/btc-parachain/core/internal/oracle"
	"github.com/btc-parachain/core/internal/redeem"
	"github.com/btc-parachain/core/internal/relay"
	"github.com/btc-parachain/core/internal/security"
	"github.com/btc-parachain/core/internal/state"
	"github.com/btc-parachain/core/internal/types"
	"github.com/btc-parachain/core/internal/vault"
)

// World is every component's live state, threaded explicitly through the
// dispatcher instead of living as package-level mutable globals.
type World struct {
	Ledger     *state.Ledger
	Security   *security.Status
	Oracle     *oracle.Adapter
	Relay      *relay.Store
	Vaults     *vault.Registry
	Redeems    *redeem.Engine
	Lending    *lending.Engine
	AMM        *amm.Engine
	Governance *governance.Engine

	// Height and Now are the dispatcher's view of the host-supplied
	// monotonic block height and wall-clock time (spec.md §1's
	// non-goals: "the core runs atop a host that supplies ordered,
	// signed, per-origin calls and a monotonic block height +
	// wall-clock time"). The dispatcher advances these before each
	// dispatched call.
	Height uint32
	Now    int64
}

// Config bundles the construction-time parameters every engine needs.
type Config struct {
	Relay                     relay.Config
	OracleMaxAge              time.Duration
	OracleClock               oracle.Clock
	ValuationCurrency         types.CurrencyID
	RewardCurrency            types.CurrencyID
	Redeem                    redeem.Config
	GovernanceLaunchOffset    time.Duration
}

// New wires one instance of every component engine against a freshly
// constructed ledger and security status, per the single-World design note.
func New(cfg Config) *World {
	ledger := state.NewLedger()
	sec := security.NewStatus()
	rateOracle := oracle.NewAdapter(cfg.OracleMaxAge, cfg.OracleClock)
	relayStore := relay.NewStore(cfg.Relay, sec)
	vaults := vault.NewRegistry(ledger, rateOracle)
	redeems := redeem.NewEngine(cfg.Redeem, ledger, vaults, relayStore, rateOracle)
	lend := lending.NewEngine(ledger, rateOracle, cfg.ValuationCurrency, cfg.RewardCurrency)
	ammEngine := amm.NewEngine(ledger)
	gov := governance.NewEngine(cfg.GovernanceLaunchOffset)

	return &World{
		Ledger:     ledger,
		Security:   sec,
		Oracle:     rateOracle,
		Relay:      relayStore,
		Vaults:     vaults,
		Redeems:    redeems,
		Lending:    lend,
		AMM:        ammEngine,
		Governance: gov,
	}
}
