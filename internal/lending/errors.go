package lending

import "errors"

var (
	// ErrMarketNotFound is returned for an operation against an unconfigured
	// market.
	ErrMarketNotFound = errors.New("lending: market not found")
	// ErrMarketAlreadyExists guards against re-adding a market.
	ErrMarketAlreadyExists = errors.New("lending: market already exists")
	// ErrInsufficientShares is returned when Redeem exceeds an account's
	// supply shares.
	ErrInsufficientShares = errors.New("lending: insufficient supply shares")
	// ErrInsufficientLiquidity is returned when a market's idle liquidity
	// cannot cover a redeem or borrow.
	ErrInsufficientLiquidity = errors.New("lending: insufficient market liquidity")
	// ErrInsufficientCollateral is returned when a borrow or collateral
	// withdrawal would leave an account under-collateralized.
	ErrInsufficientCollateral = errors.New("lending: insufficient collateral")
	// ErrNoDebt is returned when RepayBorrow targets an account with no
	// outstanding debt in the market.
	ErrNoDebt = errors.New("lending: no outstanding debt")
	// ErrNotLiquidatable is returned when LiquidateBorrow targets a
	// sufficiently-collateralized account.
	ErrNotLiquidatable = errors.New("lending: account is not liquidatable")
	// ErrSeizeExceedsShares is returned when a liquidation's seize amount
	// exceeds the borrower's available shares in the collateral market.
	ErrSeizeExceedsShares = errors.New("lending: seize exceeds available collateral shares")
	// ErrSelfLiquidation is returned when a liquidator and borrower are the
	// same account.
	ErrSelfLiquidation = errors.New("lending: cannot liquidate own position")
	// ErrRepayExceedsCloseFactor is returned when a liquidation's repay
	// amount exceeds the market's close-factor share of the borrower's
	// outstanding debt.
	ErrRepayExceedsCloseFactor = errors.New("lending: repay amount exceeds close factor")
)
