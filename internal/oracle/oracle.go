// Package oracle adapts an external price feed into the RateOracle interface
// consumed by internal/types.Amount.Convert, enforcing the staleness gate
// named in spec.md §2 ("fail if stale").
package oracle

import (
	"errors"
	"time"

	"github.com/btc-parachain/core/internal/types"
)

var (
	// ErrStaleRate is returned when the most recent quote for a currency
	// pair is older than MaxAge.
	ErrStaleRate = errors.New("oracle: rate feed is stale")
	// ErrNoRate is returned when no quote has ever been recorded for a pair.
	ErrNoRate = errors.New("oracle: no rate available")
)

// Clock abstracts wall-clock time so tests can control staleness.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default wall-clock backed Clock.
var SystemClock Clock = systemClock{}

type quote struct {
	rate      types.Fixed18
	updatedAt time.Time
}

// Adapter is an in-memory oracle that a host-side feed writer updates and
// that the core reads through the RateOracle interface. It holds the most
// recent rate for every ordered currency pair and rejects reads once a quote
// exceeds MaxAge.
type Adapter struct {
	clock   Clock
	maxAge  time.Duration
	quotes  map[[2]types.CurrencyID]quote
}

// NewAdapter constructs an Adapter with the given staleness tolerance.
func NewAdapter(maxAge time.Duration, clock Clock) *Adapter {
	if clock == nil {
		clock = SystemClock
	}
	return &Adapter{
		clock:  clock,
		maxAge: maxAge,
		quotes: make(map[[2]types.CurrencyID]quote),
	}
}

// SetRate records the current quote for converting `from` into `to`. Callers
// are expected to also call SetRate for the inverse direction if both are
// needed; the adapter never derives an inverse automatically since rounding
// in one direction does not cleanly invert.
func (a *Adapter) SetRate(from, to types.CurrencyID, rate types.Fixed18, at time.Time) {
	a.quotes[[2]types.CurrencyID{from, to}] = quote{rate: rate, updatedAt: at}
}

// Rate implements types.RateOracle.
func (a *Adapter) Rate(from, to types.CurrencyID) (types.Fixed18, error) {
	q, ok := a.quotes[[2]types.CurrencyID{from, to}]
	if !ok {
		return types.Fixed18{}, ErrNoRate
	}
	if a.maxAge > 0 && a.clock.Now().Sub(q.updatedAt) > a.maxAge {
		return types.Fixed18{}, ErrStaleRate
	}
	return q.rate, nil
}
