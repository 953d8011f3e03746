// Package amm implements a Curve-style stable-swap automated market maker:
// an n-token invariant-D pool for tightly-correlated assets, plus meta-pools
// that compose a 2-asset swap against a base pool's LP token.
package amm

import (
	"math/big"

	"github.com/btc-parachain/core/internal/types"
)

// FeeDenominator is the fixed-point base fee and admin_fee are expressed
// against (a fee of 1e7 is 0.1%).
var FeeDenominator = big.NewInt(1e10)

// Curve's published stable-swap ramp bounds.
var (
	MaxA               = big.NewInt(1_000_000)
	MaxAChangeFactor   = big.NewInt(10)
	MinRampTimeSeconds int64 = 86_400
)

// MaxSwapFee and MaxAdminFee bound the governance-settable fee fractions
// per spec.md §3's AMM invariants ("fee ≤ MAX_SWAP_FEE; admin_fee ≤
// MAX_ADMIN_FEE"), both expressed out of FeeDenominator.
var (
	MaxSwapFee  = big.NewInt(1e8) // 1%
	MaxAdminFee = FeeDenominator  // 100% of the swap fee may be routed to admin
)

// Pool is a Curve-style stable-swap base pool over n tokens.
type Pool struct {
	CurrencyIDs []types.CurrencyID
	Multipliers []*big.Int // 10^(18-decimals), scales a raw balance into the common 18-decimal x_i
	Balances    []types.U128

	Fee      *big.Int // out of FeeDenominator
	AdminFee *big.Int // out of FeeDenominator, a share of Fee

	InitialA     *big.Int
	FutureA      *big.Int
	InitialATime int64
	FutureATime  int64

	LPSupply         types.U128
	LPTokenID        types.CurrencyID
	AdminFeeReceiver types.Address
	AdminBalances    []types.U128
}

// NewPool constructs an empty base pool (no liquidity deposited yet).
func NewPool(currencyIDs []types.CurrencyID, decimals []int, initialA *big.Int, fee, adminFee *big.Int, lpTokenID types.CurrencyID, adminFeeReceiver types.Address, now int64) *Pool {
	n := len(currencyIDs)
	multipliers := make([]*big.Int, n)
	balances := make([]types.U128, n)
	adminBalances := make([]types.U128, n)
	for i := 0; i < n; i++ {
		multipliers[i] = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-decimals[i])), nil)
		balances[i] = types.Zero()
		adminBalances[i] = types.Zero()
	}
	return &Pool{
		CurrencyIDs:      currencyIDs,
		Multipliers:      multipliers,
		Balances:         balances,
		Fee:              fee,
		AdminFee:         adminFee,
		InitialA:         initialA,
		FutureA:          initialA,
		InitialATime:     now,
		FutureATime:      now,
		LPSupply:         types.Zero(),
		LPTokenID:        lpTokenID,
		AdminFeeReceiver: adminFeeReceiver,
		AdminBalances:    adminBalances,
	}
}

// N returns the pool's token count.
func (p *Pool) N() int { return len(p.CurrencyIDs) }

// IndexOf returns a token's slot index, or -1 if it is not in the pool.
func (p *Pool) IndexOf(currency types.CurrencyID) int {
	for i, c := range p.CurrencyIDs {
		if c == currency {
			return i
		}
	}
	return -1
}

// A returns the pool's amplification coefficient, linearly interpolated
// between InitialA/InitialATime and FutureA/FutureATime, clamped to
// FutureA once now is past FutureATime (and to InitialA before
// InitialATime, which is also correct since ramps never schedule in the
// past).
func (p *Pool) A(now int64) *big.Int {
	if now >= p.FutureATime || p.InitialATime == p.FutureATime {
		return new(big.Int).Set(p.FutureA)
	}
	if now <= p.InitialATime {
		return new(big.Int).Set(p.InitialA)
	}
	elapsed := big.NewInt(now - p.InitialATime)
	span := big.NewInt(p.FutureATime - p.InitialATime)
	if p.FutureA.Cmp(p.InitialA) >= 0 {
		delta := new(big.Int).Sub(p.FutureA, p.InitialA)
		delta.Mul(delta, elapsed)
		delta.Quo(delta, span)
		return new(big.Int).Add(p.InitialA, delta)
	}
	delta := new(big.Int).Sub(p.InitialA, p.FutureA)
	delta.Mul(delta, elapsed)
	delta.Quo(delta, span)
	return new(big.Int).Sub(p.InitialA, delta)
}

// RampA schedules a future amplification coefficient change, per Curve's
// ramp_A guard rails: at least MinRampTimeSeconds since the last ramp
// began, the target within [1, MaxA], and the change factor in either
// direction bounded by MaxAChangeFactor.
func (p *Pool) RampA(target *big.Int, futureTime, now int64) error {
	if now-p.InitialATime < MinRampTimeSeconds {
		return ErrRampTooSoon
	}
	if target.Sign() < 0 || target.Sign() == 0 || target.Cmp(MaxA) > 0 {
		return ErrAOutOfRange
	}
	currentA := p.A(now)
	if target.Cmp(currentA) < 0 {
		if new(big.Int).Mul(target, MaxAChangeFactor).Cmp(currentA) < 0 {
			return ErrAChangeTooLarge
		}
	} else {
		if target.Cmp(new(big.Int).Mul(currentA, MaxAChangeFactor)) > 0 {
			return ErrAChangeTooLarge
		}
	}
	p.InitialA = currentA
	p.FutureA = new(big.Int).Set(target)
	p.InitialATime = now
	p.FutureATime = futureTime
	return nil
}

// StopRampA freezes the amplification coefficient at its current
// interpolated value.
func (p *Pool) StopRampA(now int64) {
	current := p.A(now)
	p.InitialA = current
	p.FutureA = new(big.Int).Set(current)
	p.InitialATime = now
	p.FutureATime = now
}

// SetFees updates the pool's swap fee and admin-fee fractions — the
// root-only "set fees" call named in spec.md §6 — enforcing the
// MaxSwapFee/MaxAdminFee ceilings from spec.md §3.
func (p *Pool) SetFees(fee, adminFee *big.Int) error {
	if fee.Sign() < 0 || fee.Cmp(MaxSwapFee) > 0 {
		return ErrFeeOutOfRange
	}
	if adminFee.Sign() < 0 || adminFee.Cmp(MaxAdminFee) > 0 {
		return ErrFeeOutOfRange
	}
	p.Fee = new(big.Int).Set(fee)
	p.AdminFee = new(big.Int).Set(adminFee)
	return nil
}

// scaledBalances returns the pool's balances in the common 18-decimal
// representation used by the invariant solver.
func (p *Pool) scaledBalances() []*big.Int {
	xp := make([]*big.Int, p.N())
	for i := range xp {
		xp[i] = new(big.Int).Mul(p.Balances[i].Int(), p.Multipliers[i])
	}
	return xp
}

// VirtualPrice returns D/lp_supply in the common 18-decimal representation,
// the price of one LP token in pool-value terms.
func (p *Pool) VirtualPrice(now int64) (*big.Int, error) {
	if p.LPSupply.IsZero() {
		return nil, ErrZeroLPSupply
	}
	d, err := GetD(p.scaledBalances(), p.A(now))
	if err != nil {
		return nil, err
	}
	scaled := new(big.Int).Mul(d, big.NewInt(1e18))
	return scaled.Quo(scaled, p.LPSupply.Int()), nil
}

// MetaPool composes a 2-asset pool (meta token + a base pool's LP token)
// with the base pool itself, so swaps between the meta token and any of the
// base pool's underlying tokens route through both without a parallel
// implementation of the invariant math.
type MetaPool struct {
	Pool
	BasePoolID           string
	BaseCurrencies       []types.CurrencyID
	BaseVirtualPrice     *big.Int
	BaseCacheLastUpdated int64
	CachePeriodSeconds   int64
}
