package lending

import (
	"encoding/binary"
	"math/big"

	"github.com/btc-parachain/core/internal/state"
	"github.com/btc-parachain/core/internal/types"
)

// Engine is a multi-market money market: each currency gets its own Market
// with its own rate curve, and an account's collateral and debt are valued
// across every market it touches through a shared oracle.
type Engine struct {
	ledger *state.Ledger
	oracle types.RateOracle

	markets map[types.CurrencyID]*Market
	// positions is keyed by account then by the market currency that
	// position belongs to, so an account's full cross-market exposure can
	// be walked without a secondary index.
	positions map[types.Address]map[types.CurrencyID]*AccountPosition

	valuationCurrency types.CurrencyID
	rewardCurrency    types.CurrencyID
}

// NewEngine constructs a lending Engine. valuationCurrency is the common
// denomination collateral and debt are converted to when checking account
// health across markets; rewardCurrency is the token ClaimReward pays out.
func NewEngine(ledger *state.Ledger, oracle types.RateOracle, valuationCurrency, rewardCurrency types.CurrencyID) *Engine {
	return &Engine{
		ledger:            ledger,
		oracle:            oracle,
		markets:           make(map[types.CurrencyID]*Market),
		positions:         make(map[types.Address]map[types.CurrencyID]*AccountPosition),
		valuationCurrency: valuationCurrency,
		rewardCurrency:    rewardCurrency,
	}
}

// poolAccount derives the module account a market's idle liquidity is held
// under, distinct per underlying currency.
func poolAccount(currency types.CurrencyID) types.Address {
	buf := make([]byte, 20)
	binary.BigEndian.PutUint32(buf[16:], uint32(currency))
	return types.MustNewAddress(types.ModulePrefix, buf)
}

// AddMarket registers a new market. It is an error to add a market twice.
func (e *Engine) AddMarket(currency types.CurrencyID, model RateModel, reserveFactor, collateralFactor, liquidationThreshold, liquidationIncentive, closeFactor, liquidateIncentiveReservedFactor types.Fixed18, rewardRatePerBlock types.U128, currentHeight uint64) error {
	if _, exists := e.markets[currency]; exists {
		return ErrMarketAlreadyExists
	}
	e.markets[currency] = &Market{
		Underlying:                       currency,
		SupplyIndex:                      types.OneFixed18(),
		BorrowIndex:                      types.OneFixed18(),
		ReserveFactor:                    reserveFactor,
		CollateralFactor:                 collateralFactor,
		LiquidationThreshold:             liquidationThreshold,
		LiquidationIncentive:             liquidationIncentive,
		CloseFactor:                      closeFactor,
		LiquidateIncentiveReservedFactor: liquidateIncentiveReservedFactor,
		RateModel:                        model,
		RewardRatePerBlock:               rewardRatePerBlock,
		LastAccrualBlock:                 currentHeight,
	}
	return nil
}

// Market returns a market by currency.
func (e *Engine) Market(currency types.CurrencyID) (*Market, bool) {
	m, ok := e.markets[currency]
	return m, ok
}

// ForceUpdateMarket overwrites an existing market's governance-set risk
// parameters in place — the root-only "force-update market" call named in
// spec.md §6. It never touches accrual state (TotalBorrows, BorrowIndex,
// LastAccrualBlock, ...), only the knobs governance controls.
func (e *Engine) ForceUpdateMarket(currency types.CurrencyID, model RateModel, reserveFactor, collateralFactor, liquidationThreshold, liquidationIncentive, closeFactor, liquidateIncentiveReservedFactor types.Fixed18, rewardRatePerBlock types.U128) error {
	m, ok := e.markets[currency]
	if !ok {
		return ErrMarketNotFound
	}
	m.RateModel = model
	m.ReserveFactor = reserveFactor
	m.CollateralFactor = collateralFactor
	m.LiquidationThreshold = liquidationThreshold
	m.LiquidationIncentive = liquidationIncentive
	m.CloseFactor = closeFactor
	m.LiquidateIncentiveReservedFactor = liquidateIncentiveReservedFactor
	m.RewardRatePerBlock = rewardRatePerBlock
	return nil
}

// incentiveReserveAccount derives the module account a market's reserved
// slice of liquidation incentive collateral is credited to, distinct per
// underlying currency and from poolAccount's own derivation.
func incentiveReserveAccount(currency types.CurrencyID) types.Address {
	buf := make([]byte, 20)
	buf[0] = 0xfe
	binary.BigEndian.PutUint32(buf[16:], uint32(currency))
	return types.MustNewAddress(types.ModulePrefix, buf)
}

func (e *Engine) position(addr types.Address, currency types.CurrencyID) *AccountPosition {
	byCurrency, ok := e.positions[addr]
	if !ok {
		byCurrency = make(map[types.CurrencyID]*AccountPosition)
		e.positions[addr] = byCurrency
	}
	pos, ok := byCurrency[currency]
	if !ok {
		pos = &AccountPosition{SupplyShares: types.Zero(), ScaledDebt: types.Zero()}
		byCurrency[currency] = pos
	}
	return pos
}

// Position returns an account's position in a market, if one exists.
func (e *Engine) Position(addr types.Address, currency types.CurrencyID) (*AccountPosition, bool) {
	byCurrency, ok := e.positions[addr]
	if !ok {
		return nil, false
	}
	pos, ok := byCurrency[currency]
	return pos, ok
}

// accrueInterest brings a market's indices up to currentHeight: borrowers'
// debt grows by the period's borrow rate, a reserve_factor slice is skimmed
// into TotalReserves, and the supply exchange rate is recomputed from the
// market's backing (cash + borrows - reserves) over outstanding shares.
func (e *Engine) accrueInterest(m *Market, currentHeight uint64) error {
	if currentHeight <= m.LastAccrualBlock {
		return nil
	}
	delta := currentHeight - m.LastAccrualBlock
	cash := e.ledger.Free(poolAccount(m.Underlying), m.Underlying)

	if !m.TotalBorrows.IsZero() {
		u := utilization(m, cash)
		apr, err := borrowAPR(m.RateModel, u)
		if err != nil {
			return err
		}
		factor, err := perBlockFactor(apr, delta)
		if err != nil {
			return err
		}
		grown, err := types.MulFixed18(types.Fixed18{U128: m.TotalBorrows}, factor, types.RoundDown)
		if err != nil {
			return err
		}
		interest := grown.U128.SaturatingSub(m.TotalBorrows)
		if !interest.IsZero() {
			reservesCut, err := types.MulFixed18(types.Fixed18{U128: interest}, m.ReserveFactor, types.RoundDown)
			if err != nil {
				return err
			}
			if m.TotalReserves, err = m.TotalReserves.Add(reservesCut.U128); err != nil {
				return err
			}
			if m.TotalBorrows, err = m.TotalBorrows.Add(interest); err != nil {
				return err
			}
			newIndex, err := types.MulFixed18(m.BorrowIndex, factor, types.RoundDown)
			if err != nil {
				return err
			}
			m.BorrowIndex = newIndex
		}
	}

	if !m.TotalSupply.IsZero() {
		backing, err := cash.Add(m.TotalBorrows)
		if err != nil {
			return err
		}
		backing = backing.SaturatingSub(m.TotalReserves)
		idx, err := types.DivFixed18(types.Fixed18{U128: backing}, types.Fixed18{U128: m.TotalSupply}, types.RoundDown)
		if err != nil {
			return err
		}
		m.SupplyIndex = idx
	} else {
		m.SupplyIndex = types.OneFixed18()
	}

	if !m.RewardRatePerBlock.IsZero() {
		total, err := m.RewardRatePerBlock.Mul(types.NewU128FromUint64(delta))
		if err != nil {
			return err
		}
		half, err := total.Quo(types.NewU128FromUint64(2))
		if err != nil {
			return err
		}
		if !m.TotalSupply.IsZero() {
			inc, err := types.DivFixed18(types.Fixed18{U128: half}, types.Fixed18{U128: m.TotalSupply}, types.RoundDown)
			if err != nil {
				return err
			}
			sum, err := m.RewardSupplyIndex.Add(inc.U128)
			if err != nil {
				return err
			}
			m.RewardSupplyIndex = types.Fixed18{U128: sum}
		}
		if !m.TotalBorrows.IsZero() {
			inc, err := types.DivFixed18(types.Fixed18{U128: half}, types.Fixed18{U128: m.TotalBorrows}, types.RoundDown)
			if err != nil {
				return err
			}
			sum, err := m.RewardBorrowIndex.Add(inc.U128)
			if err != nil {
				return err
			}
			m.RewardBorrowIndex = types.Fixed18{U128: sum}
		}
	}

	m.LastAccrualBlock = currentHeight
	return nil
}

// accrueReward settles a position's pending reward against the market's
// current reward indices before its shares or scaled debt change.
func (e *Engine) accrueReward(pos *AccountPosition, m *Market) error {
	if !pos.SupplyShares.IsZero() {
		delta := m.RewardSupplyIndex.U128.SaturatingSub(pos.RewardSupplySnapshot.U128)
		if !delta.IsZero() {
			earned, err := types.MulFixed18(types.Fixed18{U128: pos.SupplyShares}, types.Fixed18{U128: delta}, types.RoundDown)
			if err != nil {
				return err
			}
			if pos.RewardAccrued, err = pos.RewardAccrued.Add(earned.U128); err != nil {
				return err
			}
		}
	}
	if !pos.ScaledDebt.IsZero() {
		delta := m.RewardBorrowIndex.U128.SaturatingSub(pos.RewardBorrowSnapshot.U128)
		if !delta.IsZero() {
			earned, err := types.MulFixed18(types.Fixed18{U128: pos.ScaledDebt}, types.Fixed18{U128: delta}, types.RoundDown)
			if err != nil {
				return err
			}
			if pos.RewardAccrued, err = pos.RewardAccrued.Add(earned.U128); err != nil {
				return err
			}
		}
	}
	pos.RewardSupplySnapshot = m.RewardSupplyIndex
	pos.RewardBorrowSnapshot = m.RewardBorrowIndex
	return nil
}

// underlyingOf converts supply shares into underlying units at a market's
// current exchange rate.
func underlyingOf(m *Market, shares types.U128) (types.U128, error) {
	v, err := types.MulFixed18(types.Fixed18{U128: shares}, m.SupplyIndex, types.RoundDown)
	if err != nil {
		return types.U128{}, err
	}
	return v.U128, nil
}

// sharesOf converts underlying units into supply shares at a market's
// current exchange rate.
func sharesOf(m *Market, underlying types.U128) (types.U128, error) {
	v, err := types.DivFixed18(types.Fixed18{U128: underlying}, m.SupplyIndex, types.RoundDown)
	if err != nil {
		return types.U128{}, err
	}
	return v.U128, nil
}

// debtOf converts scaled debt into actual owed underlying, rounding up so a
// borrower never benefits from truncation.
func debtOf(m *Market, scaled types.U128) (types.U128, error) {
	v, err := types.MulFixed18(types.Fixed18{U128: scaled}, m.BorrowIndex, types.RoundUp)
	if err != nil {
		return types.U128{}, err
	}
	return v.U128, nil
}

// scaledOf converts actual owed underlying into scaled debt units.
func scaledOf(m *Market, amount types.U128, round func(num, den *big.Int) *big.Int) (types.U128, error) {
	v, err := types.DivFixed18(types.Fixed18{U128: amount}, m.BorrowIndex, round)
	if err != nil {
		return types.U128{}, err
	}
	return v.U128, nil
}

// Mint supplies amount of currency's underlying into its market, crediting
// the caller with newly-minted supply shares at the market's current
// exchange rate.
func (e *Engine) Mint(addr types.Address, currency types.CurrencyID, amount types.U128, currentHeight uint64) error {
	m, ok := e.markets[currency]
	if !ok {
		return ErrMarketNotFound
	}
	if err := e.accrueInterest(m, currentHeight); err != nil {
		return err
	}
	pos := e.position(addr, currency)
	if err := e.accrueReward(pos, m); err != nil {
		return err
	}
	if err := e.ledger.TransferFreeToFree(addr, poolAccount(currency), currency, amount); err != nil {
		return err
	}
	shares, err := sharesOf(m, amount)
	if err != nil {
		return err
	}
	if pos.SupplyShares, err = pos.SupplyShares.Add(shares); err != nil {
		return err
	}
	if m.TotalSupply, err = m.TotalSupply.Add(shares); err != nil {
		return err
	}
	return nil
}

// redeemShares burns shares supply shares and pays the equivalent underlying
// back to addr, checking both pool liquidity and, if addr is using this
// market as collateral, that the account remains healthy afterward.
func (e *Engine) redeemShares(addr types.Address, currency types.CurrencyID, shares types.U128, currentHeight uint64) error {
	m, ok := e.markets[currency]
	if !ok {
		return ErrMarketNotFound
	}
	if err := e.accrueInterest(m, currentHeight); err != nil {
		return err
	}
	pos := e.position(addr, currency)
	if err := e.accrueReward(pos, m); err != nil {
		return err
	}
	if pos.SupplyShares.Cmp(shares) < 0 {
		return ErrInsufficientShares
	}
	underlying, err := underlyingOf(m, shares)
	if err != nil {
		return err
	}
	cash := e.ledger.Free(poolAccount(currency), currency)
	if cash.Cmp(underlying) < 0 {
		return ErrInsufficientLiquidity
	}

	prevShares := pos.SupplyShares
	pos.SupplyShares = pos.SupplyShares.SaturatingSub(shares)
	if pos.UseAsCollateral {
		healthy, err := e.isHealthy(addr, currentHeight)
		if err != nil {
			pos.SupplyShares = prevShares
			return err
		}
		if !healthy {
			pos.SupplyShares = prevShares
			return ErrInsufficientCollateral
		}
	}

	m.TotalSupply = m.TotalSupply.SaturatingSub(shares)
	if err := e.ledger.TransferFreeToFree(poolAccount(currency), addr, currency, underlying); err != nil {
		pos.SupplyShares = prevShares
		m.TotalSupply, _ = m.TotalSupply.Add(shares)
		return err
	}
	return nil
}

// Redeem burns shares supply shares for their underlying value.
func (e *Engine) Redeem(addr types.Address, currency types.CurrencyID, shares types.U128, currentHeight uint64) error {
	return e.redeemShares(addr, currency, shares, currentHeight)
}

// RedeemAll redeems an account's entire supply share balance in a market.
func (e *Engine) RedeemAll(addr types.Address, currency types.CurrencyID, currentHeight uint64) error {
	m, ok := e.markets[currency]
	if !ok {
		return ErrMarketNotFound
	}
	if err := e.accrueInterest(m, currentHeight); err != nil {
		return err
	}
	pos := e.position(addr, currency)
	return e.redeemShares(addr, currency, pos.SupplyShares, currentHeight)
}

// DepositAllCollateral marks an account's entire supply position in a
// market as usable collateral for borrowing in any other market.
func (e *Engine) DepositAllCollateral(addr types.Address, currency types.CurrencyID, currentHeight uint64) error {
	m, ok := e.markets[currency]
	if !ok {
		return ErrMarketNotFound
	}
	if err := e.accrueInterest(m, currentHeight); err != nil {
		return err
	}
	pos := e.position(addr, currency)
	pos.UseAsCollateral = true
	return nil
}

// WithdrawAllCollateral stops treating an account's supply position in a
// market as collateral, refusing if doing so would make the account's
// cross-market debt under-collateralized.
func (e *Engine) WithdrawAllCollateral(addr types.Address, currency types.CurrencyID, currentHeight uint64) error {
	m, ok := e.markets[currency]
	if !ok {
		return ErrMarketNotFound
	}
	if err := e.accrueInterest(m, currentHeight); err != nil {
		return err
	}
	pos := e.position(addr, currency)
	if !pos.UseAsCollateral {
		return nil
	}
	pos.UseAsCollateral = false
	ok2, err := e.isHealthy(addr, currentHeight)
	if err != nil {
		pos.UseAsCollateral = true
		return err
	}
	if !ok2 {
		pos.UseAsCollateral = true
		return ErrInsufficientCollateral
	}
	return nil
}

// Borrow draws amount of currency's underlying against an account's
// cross-market collateral, refusing if the resulting position would be
// under-collateralized.
func (e *Engine) Borrow(addr types.Address, currency types.CurrencyID, amount types.U128, currentHeight uint64) error {
	m, ok := e.markets[currency]
	if !ok {
		return ErrMarketNotFound
	}
	if err := e.accrueInterest(m, currentHeight); err != nil {
		return err
	}
	cash := e.ledger.Free(poolAccount(currency), currency)
	if cash.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	pos := e.position(addr, currency)
	if err := e.accrueReward(pos, m); err != nil {
		return err
	}

	addedScaled, err := scaledOf(m, amount, types.RoundUp)
	if err != nil {
		return err
	}
	prevScaled := pos.ScaledDebt
	prevTotalBorrows := m.TotalBorrows
	if pos.ScaledDebt, err = pos.ScaledDebt.Add(addedScaled); err != nil {
		return err
	}
	if m.TotalBorrows, err = m.TotalBorrows.Add(amount); err != nil {
		pos.ScaledDebt = prevScaled
		return err
	}

	healthy, err := e.isHealthy(addr, currentHeight)
	if err != nil {
		pos.ScaledDebt, m.TotalBorrows = prevScaled, prevTotalBorrows
		return err
	}
	if !healthy {
		pos.ScaledDebt, m.TotalBorrows = prevScaled, prevTotalBorrows
		return ErrInsufficientCollateral
	}

	if err := e.ledger.TransferFreeToFree(poolAccount(currency), addr, currency, amount); err != nil {
		pos.ScaledDebt, m.TotalBorrows = prevScaled, prevTotalBorrows
		return err
	}
	return nil
}

// RepayBorrow pays down an account's outstanding debt in a market, capped
// at the account's actual owed amount.
func (e *Engine) RepayBorrow(addr types.Address, currency types.CurrencyID, amount types.U128, currentHeight uint64) error {
	m, ok := e.markets[currency]
	if !ok {
		return ErrMarketNotFound
	}
	if err := e.accrueInterest(m, currentHeight); err != nil {
		return err
	}
	pos := e.position(addr, currency)
	if err := e.accrueReward(pos, m); err != nil {
		return err
	}
	owed, err := debtOf(m, pos.ScaledDebt)
	if err != nil {
		return err
	}
	if owed.IsZero() {
		return ErrNoDebt
	}
	pay := types.Min(amount, owed)
	if err := e.ledger.TransferFreeToFree(addr, poolAccount(currency), currency, pay); err != nil {
		return err
	}
	remaining := owed.SaturatingSub(pay)
	newScaled, err := scaledOf(m, remaining, types.RoundDown)
	if err != nil {
		return err
	}
	pos.ScaledDebt = newScaled
	m.TotalBorrows = m.TotalBorrows.SaturatingSub(pay)
	return nil
}

// ClaimReward pays out an account's accrued reward-token balance for a
// single market.
func (e *Engine) ClaimReward(addr types.Address, currency types.CurrencyID, currentHeight uint64) (types.U128, error) {
	m, ok := e.markets[currency]
	if !ok {
		return types.U128{}, ErrMarketNotFound
	}
	if err := e.accrueInterest(m, currentHeight); err != nil {
		return types.U128{}, err
	}
	pos := e.position(addr, currency)
	if err := e.accrueReward(pos, m); err != nil {
		return types.U128{}, err
	}
	amount := pos.RewardAccrued
	if amount.IsZero() {
		return amount, nil
	}
	if err := e.ledger.Mint(addr, e.rewardCurrency, amount); err != nil {
		return types.U128{}, err
	}
	pos.RewardAccrued = types.Zero()
	return amount, nil
}

// accountHealth sums an account's collateral value and debt value across
// every market it has a position in, both expressed in valuationCurrency.
// Collateral is weighted by each market's CollateralFactor when
// forLiquidation is false (the borrowing/withdrawal limit), or by its
// LiquidationThreshold when forLiquidation is true — the two
// thresholds bound a buffer zone where a position can no longer borrow
// more but is not yet liquidatable.
func (e *Engine) accountHealth(addr types.Address, currentHeight uint64, forLiquidation bool) (collateralValue, debtValue types.U128, err error) {
	collateralValue, debtValue = types.Zero(), types.Zero()
	byCurrency, ok := e.positions[addr]
	if !ok {
		return collateralValue, debtValue, nil
	}
	for currency, pos := range byCurrency {
		m, ok := e.markets[currency]
		if !ok {
			continue
		}
		if err := e.accrueInterest(m, currentHeight); err != nil {
			return types.U128{}, types.U128{}, err
		}
		if pos.UseAsCollateral && !pos.SupplyShares.IsZero() {
			underlying, err := underlyingOf(m, pos.SupplyShares)
			if err != nil {
				return types.U128{}, types.U128{}, err
			}
			valued, err := types.NewAmount(underlying, currency).Convert(e.valuationCurrency, e.oracle)
			if err != nil {
				return types.U128{}, types.U128{}, err
			}
			factor := m.CollateralFactor
			if forLiquidation {
				factor = m.LiquidationThreshold
			}
			weighted, err := types.MulFixed18(types.Fixed18{U128: valued.Value}, factor, types.RoundDown)
			if err != nil {
				return types.U128{}, types.U128{}, err
			}
			if collateralValue, err = collateralValue.Add(weighted.U128); err != nil {
				return types.U128{}, types.U128{}, err
			}
		}
		if !pos.ScaledDebt.IsZero() {
			owed, err := debtOf(m, pos.ScaledDebt)
			if err != nil {
				return types.U128{}, types.U128{}, err
			}
			valued, err := types.NewAmount(owed, currency).Convert(e.valuationCurrency, e.oracle)
			if err != nil {
				return types.U128{}, types.U128{}, err
			}
			if debtValue, err = debtValue.Add(valued.Value); err != nil {
				return types.U128{}, types.U128{}, err
			}
		}
	}
	return collateralValue, debtValue, nil
}

// isHealthy reports whether addr's debt is within its borrowing limit
// (collateral weighted by CollateralFactor).
func (e *Engine) isHealthy(addr types.Address, currentHeight uint64) (bool, error) {
	collateral, debt, err := e.accountHealth(addr, currentHeight, false)
	if err != nil {
		return false, err
	}
	return collateral.Cmp(debt) >= 0, nil
}

// isLiquidatable reports whether addr's debt exceeds its liquidation limit
// (collateral weighted by the LiquidationThreshold).
func (e *Engine) isLiquidatable(addr types.Address, currentHeight uint64) (bool, error) {
	collateral, debt, err := e.accountHealth(addr, currentHeight, true)
	if err != nil {
		return false, err
	}
	return collateral.Cmp(debt) < 0, nil
}

// LiquidateBorrow repays part of an under-collateralized account's debt in
// debtCurrency on the liquidator's behalf, seizing the liquidator's reward
// from the borrower's collateral shares in collateralCurrency at the
// market's liquidation incentive.
func (e *Engine) LiquidateBorrow(liquidator, borrower types.Address, debtCurrency, collateralCurrency types.CurrencyID, repayAmount types.U128, currentHeight uint64) error {
	if liquidator == borrower {
		return ErrSelfLiquidation
	}
	debtMarket, ok := e.markets[debtCurrency]
	if !ok {
		return ErrMarketNotFound
	}
	collateralMarket, ok := e.markets[collateralCurrency]
	if !ok {
		return ErrMarketNotFound
	}
	if err := e.accrueInterest(debtMarket, currentHeight); err != nil {
		return err
	}
	if err := e.accrueInterest(collateralMarket, currentHeight); err != nil {
		return err
	}

	liquidatable, err := e.isLiquidatable(borrower, currentHeight)
	if err != nil {
		return err
	}
	if !liquidatable {
		return ErrNotLiquidatable
	}

	borrowerDebtPos := e.position(borrower, debtCurrency)
	owed, err := debtOf(debtMarket, borrowerDebtPos.ScaledDebt)
	if err != nil {
		return err
	}
	if owed.IsZero() {
		return ErrNoDebt
	}
	closeFactorCap, err := types.MulFixed18(types.Fixed18{U128: owed}, debtMarket.CloseFactor, types.RoundDown)
	if err != nil {
		return err
	}
	if repayAmount.Cmp(closeFactorCap.U128) > 0 {
		return ErrRepayExceedsCloseFactor
	}
	repay := types.Min(repayAmount, owed)

	if err := e.ledger.TransferFreeToFree(liquidator, poolAccount(debtCurrency), debtCurrency, repay); err != nil {
		return err
	}
	remaining := owed.SaturatingSub(repay)
	newScaled, err := scaledOf(debtMarket, remaining, types.RoundDown)
	if err != nil {
		return err
	}
	borrowerDebtPos.ScaledDebt = newScaled
	debtMarket.TotalBorrows = debtMarket.TotalBorrows.SaturatingSub(repay)

	seizeValue, err := types.NewAmount(repay, debtCurrency).Convert(e.valuationCurrency, e.oracle)
	if err != nil {
		return err
	}
	// LiquidationIncentive is the full seize multiplier (e.g. 1.08), not a
	// bonus-only fraction added on top of the repaid value.
	seizeValueWithBonus, err := types.MulFixed18(types.Fixed18{U128: seizeValue.Value}, collateralMarket.LiquidationIncentive, types.RoundUp)
	if err != nil {
		return err
	}
	seizeInCollateral, err := types.NewAmount(seizeValueWithBonus.U128, e.valuationCurrency).Convert(collateralCurrency, e.oracle)
	if err != nil {
		return err
	}
	seizeShares, err := sharesOf(collateralMarket, seizeInCollateral.Value)
	if err != nil {
		return err
	}

	borrowerCollateralPos := e.position(borrower, collateralCurrency)
	if borrowerCollateralPos.SupplyShares.Cmp(seizeShares) < 0 {
		return ErrSeizeExceedsShares
	}
	borrowerCollateralPos.SupplyShares = borrowerCollateralPos.SupplyShares.SaturatingSub(seizeShares)

	reservedShares, err := types.MulFixed18(types.Fixed18{U128: seizeShares}, collateralMarket.LiquidateIncentiveReservedFactor, types.RoundDown)
	if err != nil {
		return err
	}
	liquidatorShares := seizeShares.SaturatingSub(reservedShares.U128)

	liquidatorCollateralPos := e.position(liquidator, collateralCurrency)
	if liquidatorCollateralPos.SupplyShares, err = liquidatorCollateralPos.SupplyShares.Add(liquidatorShares); err != nil {
		return err
	}
	if !reservedShares.U128.IsZero() {
		reservePos := e.position(incentiveReserveAccount(collateralCurrency), collateralCurrency)
		if reservePos.SupplyShares, err = reservePos.SupplyShares.Add(reservedShares.U128); err != nil {
			return err
		}
	}
	return nil
}
