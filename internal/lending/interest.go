package lending

import (
	"math/big"

	"github.com/btc-parachain/core/internal/types"
)

// utilization computes borrows / (cash + borrows - reserves), the fraction
// of a market's loanable funds currently lent out. Zero when the market is
// empty.
func utilization(m *Market, cash types.U128) types.Fixed18 {
	denom, err := cash.Add(m.TotalBorrows)
	if err != nil {
		return types.Fixed18{}
	}
	denom = denom.SaturatingSub(m.TotalReserves)
	if denom.IsZero() {
		return types.Fixed18{}
	}
	num, err := types.NewFixed18FromBigInt(new(big.Int).Mul(m.TotalBorrows.Int(), types.OneFixed18().Int()))
	if err != nil {
		return types.Fixed18{}
	}
	den, err := types.NewFixed18FromBigInt(denom.Int())
	if err != nil {
		return types.Fixed18{}
	}
	u, err := types.DivFixed18(num, den, types.RoundDown)
	if err != nil {
		return types.Fixed18{}
	}
	return u
}

// borrowAPR evaluates a market's rate model at the given utilization.
func borrowAPR(rm RateModel, u types.Fixed18) (types.Fixed18, error) {
	switch rm.Kind {
	case RateModelCurve:
		uSquared, err := types.MulFixed18(u, u, types.RoundDown)
		if err != nil {
			return types.Fixed18{}, err
		}
		term, err := types.MulFixed18(uSquared, rm.CurveFactorAPR, types.RoundDown)
		if err != nil {
			return types.Fixed18{}, err
		}
		sum, err := rm.BaseRateAPR.Add(term.U128)
		if err != nil {
			return types.Fixed18{}, err
		}
		return types.Fixed18{U128: sum}, nil
	default: // RateModelJump
		if rm.KinkUtil.IsZero() || u.Cmp(rm.KinkUtil.U128) <= 0 {
			term, err := types.MulFixed18(rm.Slope1APR, u, types.RoundDown)
			if err != nil {
				return types.Fixed18{}, err
			}
			sum, err := rm.BaseRateAPR.Add(term.U128)
			if err != nil {
				return types.Fixed18{}, err
			}
			return types.Fixed18{U128: sum}, nil
		}
		atKink, err := types.MulFixed18(rm.Slope1APR, rm.KinkUtil, types.RoundDown)
		if err != nil {
			return types.Fixed18{}, err
		}
		base, err := rm.BaseRateAPR.Add(atKink.U128)
		if err != nil {
			return types.Fixed18{}, err
		}
		excess := u.U128.SaturatingSub(rm.KinkUtil.U128)
		beyond, err := types.MulFixed18(rm.Slope2APR, types.Fixed18{U128: excess}, types.RoundDown)
		if err != nil {
			return types.Fixed18{}, err
		}
		sum, err := base.Add(beyond.U128)
		if err != nil {
			return types.Fixed18{}, err
		}
		return types.Fixed18{U128: sum}, nil
	}
}

// perBlockFactor converts an APR into a multiplicative per-block growth
// factor (1 + apr/BlocksPerYear) applied delta times, compounded linearly
// by scaling delta directly into the rate rather than iterating per block.
func perBlockFactor(apr types.Fixed18, delta uint64) (types.Fixed18, error) {
	if delta == 0 || apr.IsZero() {
		return types.OneFixed18(), nil
	}
	perBlock, err := apr.Quo(types.NewU128FromUint64(BlocksPerYear))
	if err != nil {
		return types.Fixed18{}, err
	}
	scaled, err := perBlock.Mul(types.NewU128FromUint64(delta))
	if err != nil {
		return types.Fixed18{}, err
	}
	sum, err := types.OneFixed18().Add(scaled)
	if err != nil {
		return types.Fixed18{}, err
	}
	return types.Fixed18{U128: sum}, nil
}

// interestForPeriod computes the absolute interest accrued on
// totalBorrowed at apr over delta blocks.
func interestForPeriod(totalBorrowed types.U128, apr types.Fixed18, delta uint64) (types.U128, error) {
	if delta == 0 || apr.IsZero() || totalBorrowed.IsZero() {
		return types.Zero(), nil
	}
	factor, err := perBlockFactor(apr, delta)
	if err != nil {
		return types.U128{}, err
	}
	grown, err := types.MulFixed18(types.Fixed18{U128: totalBorrowed}, factor, types.RoundDown)
	if err != nil {
		return types.U128{}, err
	}
	return grown.U128.SaturatingSub(totalBorrowed), nil
}
