// Package lending implements a multi-market money market: suppliers earn a
// floating rate on deposited liquidity, borrowers draw against collateral
// valued across markets through a shared oracle, and under-collateralized
// positions may be liquidated at a discount.
package lending

import (
	"github.com/btc-parachain/core/internal/types"
)

// RateModelKind selects which utilization-to-rate curve a market uses.
type RateModelKind uint8

const (
	// RateModelJump is the two-slope Compound-style curve: a shallow slope
	// below Kink utilization, a steep slope above it.
	RateModelJump RateModelKind = iota
	// RateModelCurve is a single smooth quadratic curve (BaseRate +
	// CurveFactor * utilization^2), used for markets whose liquidity
	// profile does not exhibit a sharp utilization cliff.
	RateModelCurve
)

// RateModel is a market's per-block borrow-rate curve, expressed as an APR
// in Fixed18 (1.0 == 100%).
type RateModel struct {
	Kind RateModelKind

	BaseRateAPR types.Fixed18
	Slope1APR   types.Fixed18
	Slope2APR   types.Fixed18
	KinkUtil    types.Fixed18

	CurveFactorAPR types.Fixed18
}

// BlocksPerYear is the block-rate annualization constant used to convert an
// APR into a per-block accrual factor.
const BlocksPerYear = 31_536_000

// Market is one currency's money-market pool.
type Market struct {
	Underlying types.CurrencyID

	TotalSupply   types.U128 // in supply shares
	TotalBorrows  types.U128
	TotalReserves types.U128

	SupplyIndex types.Fixed18
	BorrowIndex types.Fixed18

	ReserveFactor        types.Fixed18
	CollateralFactor     types.Fixed18
	LiquidationThreshold types.Fixed18
	LiquidationIncentive types.Fixed18
	// CloseFactor caps, per liquidation call, the fraction of a borrower's
	// outstanding debt in this market that may be repaid at once.
	CloseFactor types.Fixed18
	// LiquidateIncentiveReservedFactor is the fraction of a liquidation's
	// seized collateral shares routed to the market's incentive reserve
	// account instead of the liquidator.
	LiquidateIncentiveReservedFactor types.Fixed18

	RateModel RateModel

	RewardSupplyIndex    types.Fixed18
	RewardBorrowIndex    types.Fixed18
	RewardRatePerBlock   types.U128 // total reward-token units minted per block, split across suppliers and borrowers

	LastAccrualBlock uint64
}

// AccountPosition is one account's exposure to a single market.
type AccountPosition struct {
	SupplyShares types.U128
	ScaledDebt   types.U128

	UseAsCollateral bool

	RewardSupplySnapshot types.Fixed18
	RewardBorrowSnapshot types.Fixed18
	RewardAccrued        types.U128
}
