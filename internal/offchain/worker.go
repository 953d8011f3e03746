// Package offchain implements the vault-undercollateralization reporter
// described in spec.md §4.2 and §5: a read-only sweep over the Vault
// Registry that re-enters the dispatcher with unsigned
// report_undercollateralized_vault calls for every vault it finds below the
// liquidation threshold. It never mutates state directly — the dispatcher
// re-validates each report on-chain before acting on it.
package offchain

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/time/rate"

	"github.com/btc-parachain/core/internal/vault"
)

// Reporter is the subset of the Vault Registry's read surface the worker
// needs, named narrowly so tests can substitute a fake.
type Reporter interface {
	VaultIDs() []vault.ID
	IsVaultBelowLiquidationThreshold(id vault.ID) (bool, error)
}

// Submitter re-enters the dispatcher with an unsigned report call. The
// dispatcher is responsible for re-validating the claim against current
// on-chain state before liquidating — the worker's output is advisory.
type Submitter func(ctx context.Context, id vault.ID) error

// Worker runs the sweep at most once per observed block height, per §5's
// "runs at most once per block per node".
type Worker struct {
	registry  Reporter
	submit    Submitter
	limiter   *rate.Limiter
	lastBlock uint32
	swept     bool
}

// NewWorker constructs a Worker against the given registry and submit
// callback. By default the limiter is unconstrained — the block-height
// idempotence check is the primary "once per block" guarantee; use
// WithLimiter to cap wall-clock sweep frequency on a node that wants an
// additional defense-in-depth floor (e.g. during a fast-confirmation
// devnet where blocks can arrive faster than a sweep can complete).
func NewWorker(registry Reporter, submit Submitter, opts ...Option) *Worker {
	w := &Worker{
		registry: registry,
		submit:   submit,
		limiter:  rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Option configures a Worker at construction time.
type Option func(*Worker)

// WithLimiter overrides the default unconstrained rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(w *Worker) { w.limiter = l }
}

// Run executes one sweep for blockHeight, deterministically given the
// registry's current snapshot. Calling Run again for the most recently
// swept blockHeight is a no-op; only that one height is remembered, so an
// earlier height is swept again if Run is called for it.
func (w *Worker) Run(ctx context.Context, blockHeight uint32) error {
	if w.swept && blockHeight == w.lastBlock {
		return nil
	}
	if !w.limiter.Allow() {
		return nil
	}
	w.lastBlock = blockHeight
	w.swept = true

	ids := w.registry.VaultIDs()
	sort.Slice(ids, func(i, j int) bool {
		return fmt.Sprintf("%v", ids[i]) < fmt.Sprintf("%v", ids[j])
	})

	var firstErr error
	for _, id := range ids {
		below, err := w.registry.IsVaultBelowLiquidationThreshold(id)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !below {
			continue
		}
		if err := w.submit(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
