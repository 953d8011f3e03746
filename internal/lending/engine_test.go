package lending

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btc-parachain/core/internal/oracle"
	"github.com/btc-parachain/core/internal/state"
	"github.com/btc-parachain/core/internal/types"
)

const (
	currencyBTC    types.CurrencyID = 0
	currencyDOT    types.CurrencyID = 1
	currencyReward types.CurrencyID = 2
)

func testAddress(t *testing.T, b byte) types.Address {
	t.Helper()
	buf := make([]byte, 20)
	buf[0] = b
	addr, err := types.NewAddress(types.AccountPrefix, buf)
	require.NoError(t, err)
	return addr
}

// fixed18FromPermille builds a Fixed18 equal to permille/1000, e.g. 800 -> 0.8.
func fixed18FromPermille(t *testing.T, permille int64) types.Fixed18 {
	t.Helper()
	scaled := types.OneFixed18().Int()
	scaled.Mul(scaled, big.NewInt(permille))
	scaled.Quo(scaled, big.NewInt(1000))
	f, err := types.NewFixed18FromBigInt(scaled)
	require.NoError(t, err)
	return f
}

var zeroRateModel = RateModel{Kind: RateModelJump}

func setupEngine(t *testing.T) (*Engine, *state.Ledger, *oracle.Adapter) {
	t.Helper()
	ledger := state.NewLedger()
	feed := oracle.NewAdapter(time.Hour, nil)
	engine := NewEngine(ledger, feed, currencyDOT, currencyReward)
	return engine, ledger, feed
}

func TestSupplyAndRedeem(t *testing.T) {
	engine, ledger, _ := setupEngine(t)
	require.NoError(t, engine.AddMarket(currencyDOT, zeroRateModel, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Zero(), 0))

	lender := testAddress(t, 0x01)
	require.NoError(t, ledger.Mint(lender, currencyDOT, types.NewU128FromUint64(1000)))
	require.NoError(t, engine.Mint(lender, currencyDOT, types.NewU128FromUint64(1000), 0))

	m, ok := engine.Market(currencyDOT)
	require.True(t, ok)
	require.Equal(t, uint64(1000), m.TotalSupply.Int().Uint64())
	require.True(t, ledger.Free(lender, currencyDOT).IsZero())

	require.NoError(t, engine.Redeem(lender, currencyDOT, types.NewU128FromUint64(400), 0))
	require.Equal(t, uint64(400), ledger.Free(lender, currencyDOT).Int().Uint64())
	require.Equal(t, uint64(600), m.TotalSupply.Int().Uint64())

	pos, ok := engine.Position(lender, currencyDOT)
	require.True(t, ok)
	require.Equal(t, uint64(600), pos.SupplyShares.Int().Uint64())
}

func setupBorrowScenario(t *testing.T) (engine *Engine, ledger *state.Ledger, borrower types.Address) {
	t.Helper()
	engine, ledger, feed := setupEngine(t)

	collateralFactor := fixed18FromPermille(t, 800)
	liquidationThreshold := fixed18FromPermille(t, 900)
	require.NoError(t, engine.AddMarket(currencyDOT, zeroRateModel, types.Fixed18{}, collateralFactor, liquidationThreshold, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Zero(), 0))

	require.NoError(t, engine.AddMarket(currencyBTC, zeroRateModel, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.OneFixed18(), types.Fixed18{}, types.Zero(), 0))

	rate, err := types.NewFixed18FromBigInt(new(big.Int).Mul(types.OneFixed18().Int(), big.NewInt(100)))
	require.NoError(t, err)
	feed.SetRate(currencyBTC, currencyDOT, rate, time.Now())

	supplier := testAddress(t, 0x02)
	require.NoError(t, ledger.Mint(supplier, currencyBTC, types.NewU128FromUint64(10)))
	require.NoError(t, engine.Mint(supplier, currencyBTC, types.NewU128FromUint64(10), 0))

	borrower = testAddress(t, 0x03)
	require.NoError(t, ledger.Mint(borrower, currencyDOT, types.NewU128FromUint64(1000)))
	require.NoError(t, engine.Mint(borrower, currencyDOT, types.NewU128FromUint64(1000), 0))
	require.NoError(t, engine.DepositAllCollateral(borrower, currencyDOT, 0))

	return engine, ledger, borrower
}

func TestBorrowRespectsCollateral(t *testing.T) {
	engine, ledger, borrower := setupBorrowScenario(t)

	// 1000 DOT * 0.8 collateral factor = 800 DOT of borrowing power, worth
	// 8 BTC at the 100 DOT/BTC rate.
	require.NoError(t, engine.Borrow(borrower, currencyBTC, types.NewU128FromUint64(2), 1))
	require.Equal(t, uint64(2), ledger.Free(borrower, currencyBTC).Int().Uint64())

	// Borrowing 7 more would push total debt to 9 BTC (900 DOT value),
	// breaching the 800 DOT limit.
	err := engine.Borrow(borrower, currencyBTC, types.NewU128FromUint64(7), 1)
	require.ErrorIs(t, err, ErrInsufficientCollateral)

	// Borrowing exactly up to the limit (6 more, 8 BTC total = 800 DOT) succeeds.
	require.NoError(t, engine.Borrow(borrower, currencyBTC, types.NewU128FromUint64(6), 1))
	require.Equal(t, uint64(8), ledger.Free(borrower, currencyBTC).Int().Uint64())

	m, _ := engine.Market(currencyBTC)
	require.Equal(t, uint64(8), m.TotalBorrows.Int().Uint64())

	// Any further borrow now exceeds the limit.
	err = engine.Borrow(borrower, currencyBTC, types.NewU128FromUint64(1), 1)
	require.ErrorIs(t, err, ErrInsufficientCollateral)
}

func TestRepayBorrow(t *testing.T) {
	engine, ledger, borrower := setupBorrowScenario(t)
	require.NoError(t, engine.Borrow(borrower, currencyBTC, types.NewU128FromUint64(2), 1))

	require.NoError(t, ledger.Mint(borrower, currencyBTC, types.NewU128FromUint64(2)))
	require.NoError(t, engine.RepayBorrow(borrower, currencyBTC, types.NewU128FromUint64(2), 2))

	pos, ok := engine.Position(borrower, currencyBTC)
	require.True(t, ok)
	require.True(t, pos.ScaledDebt.IsZero())

	m, _ := engine.Market(currencyBTC)
	require.True(t, m.TotalBorrows.IsZero())
	require.Equal(t, uint64(10), ledger.Free(poolAccount(currencyBTC), currencyBTC).Int().Uint64())

	err := engine.RepayBorrow(borrower, currencyBTC, types.NewU128FromUint64(1), 3)
	require.ErrorIs(t, err, ErrNoDebt)
}

func TestClaimReward(t *testing.T) {
	engine, ledger, _ := setupEngine(t)
	require.NoError(t, engine.AddMarket(currencyDOT, zeroRateModel, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.NewU128FromUint64(100), 0))

	lender := testAddress(t, 0x04)
	require.NoError(t, ledger.Mint(lender, currencyDOT, types.NewU128FromUint64(1000)))
	require.NoError(t, engine.Mint(lender, currencyDOT, types.NewU128FromUint64(1000), 0))

	// 100 reward units/block * 10 blocks = 1000 total, half (500) to
	// suppliers, spread over 1000 shares = 0.5 per share * 1000 shares = 500.
	claimed, err := engine.ClaimReward(lender, currencyDOT, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(500), claimed.Int().Uint64())
	require.Equal(t, uint64(500), ledger.Free(lender, currencyReward).Int().Uint64())

	pos, ok := engine.Position(lender, currencyDOT)
	require.True(t, ok)
	require.True(t, pos.RewardAccrued.IsZero())
}

func TestLiquidateBorrow(t *testing.T) {
	engine, ledger, feed := setupEngine(t)

	collateralFactor := fixed18FromPermille(t, 800)
	liquidationThreshold := fixed18FromPermille(t, 900)
	liquidationIncentive := fixed18FromPermille(t, 1050)
	require.NoError(t, engine.AddMarket(currencyDOT, zeroRateModel, types.Fixed18{}, collateralFactor, liquidationThreshold, liquidationIncentive, types.Fixed18{}, types.Fixed18{}, types.Zero(), 0))
	require.NoError(t, engine.AddMarket(currencyBTC, zeroRateModel, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.OneFixed18(), types.Fixed18{}, types.Zero(), 0))

	rate, err := types.NewFixed18FromBigInt(new(big.Int).Mul(types.OneFixed18().Int(), big.NewInt(100)))
	require.NoError(t, err)
	feed.SetRate(currencyBTC, currencyDOT, rate, time.Now())

	supplier := testAddress(t, 0x05)
	require.NoError(t, ledger.Mint(supplier, currencyBTC, types.NewU128FromUint64(10)))
	require.NoError(t, engine.Mint(supplier, currencyBTC, types.NewU128FromUint64(10), 0))

	borrower := testAddress(t, 0x06)
	require.NoError(t, ledger.Mint(borrower, currencyDOT, types.NewU128FromUint64(1000)))
	require.NoError(t, engine.Mint(borrower, currencyDOT, types.NewU128FromUint64(1000), 0))
	require.NoError(t, engine.DepositAllCollateral(borrower, currencyDOT, 0))

	// Borrow right up to the 800 DOT (8 BTC) borrowing limit.
	require.NoError(t, engine.Borrow(borrower, currencyBTC, types.NewU128FromUint64(8), 1))

	// Not yet liquidatable: at the 900 DOT liquidation threshold, 800 DOT of
	// debt value is still covered.
	liquidatable, err := engine.isLiquidatable(borrower, 1)
	require.NoError(t, err)
	require.False(t, liquidatable)

	// BTC repricing to 120 DOT pushes debt value to 960 DOT, breaching the
	// 900 DOT liquidation threshold.
	rate2, err := types.NewFixed18FromBigInt(new(big.Int).Mul(types.OneFixed18().Int(), big.NewInt(120)))
	require.NoError(t, err)
	feed.SetRate(currencyBTC, currencyDOT, rate2, time.Now())

	liquidator := testAddress(t, 0x07)
	require.NoError(t, ledger.Mint(liquidator, currencyBTC, types.NewU128FromUint64(4)))

	require.NoError(t, engine.LiquidateBorrow(liquidator, borrower, currencyBTC, currencyDOT, types.NewU128FromUint64(4), 2))

	borrowerDebt, ok := engine.Position(borrower, currencyBTC)
	require.True(t, ok)
	require.Equal(t, uint64(4), borrowerDebt.ScaledDebt.Int().Uint64())

	// Seized value: 4 BTC repaid * 120 DOT/BTC = 480 DOT, plus a 5% bonus =
	// 504 DOT, seized from the borrower's DOT collateral shares 1-for-1
	// (DOT supply index is still 1.0).
	liquidatorCollateral, ok := engine.Position(liquidator, currencyDOT)
	require.True(t, ok)
	require.Equal(t, uint64(504), liquidatorCollateral.SupplyShares.Int().Uint64())

	borrowerCollateral, _ := engine.Position(borrower, currencyDOT)
	require.Equal(t, uint64(1000-504), borrowerCollateral.SupplyShares.Int().Uint64())
}

func TestLiquidateBorrowRejectsSelfLiquidation(t *testing.T) {
	engine, ledger, borrower := setupBorrowScenario(t)
	require.NoError(t, engine.Borrow(borrower, currencyBTC, types.NewU128FromUint64(8), 1))
	require.NoError(t, ledger.Mint(borrower, currencyBTC, types.NewU128FromUint64(4)))

	err := engine.LiquidateBorrow(borrower, borrower, currencyBTC, currencyDOT, types.NewU128FromUint64(4), 1)
	require.ErrorIs(t, err, ErrSelfLiquidation)
}

func TestLiquidateBorrowRejectsRepayAboveCloseFactor(t *testing.T) {
	engine, ledger, feed := setupEngine(t)

	collateralFactor := fixed18FromPermille(t, 800)
	liquidationThreshold := fixed18FromPermille(t, 750)
	closeFactor := fixed18FromPermille(t, 500)
	require.NoError(t, engine.AddMarket(currencyDOT, zeroRateModel, types.Fixed18{}, collateralFactor, liquidationThreshold, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Zero(), 0))
	require.NoError(t, engine.AddMarket(currencyBTC, zeroRateModel, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, closeFactor, types.Fixed18{}, types.Zero(), 0))

	rate, err := types.NewFixed18FromBigInt(new(big.Int).Mul(types.OneFixed18().Int(), big.NewInt(100)))
	require.NoError(t, err)
	feed.SetRate(currencyBTC, currencyDOT, rate, time.Now())

	supplier := testAddress(t, 0x08)
	require.NoError(t, ledger.Mint(supplier, currencyBTC, types.NewU128FromUint64(10)))
	require.NoError(t, engine.Mint(supplier, currencyBTC, types.NewU128FromUint64(10), 0))

	borrower := testAddress(t, 0x09)
	require.NoError(t, ledger.Mint(borrower, currencyDOT, types.NewU128FromUint64(1000)))
	require.NoError(t, engine.Mint(borrower, currencyDOT, types.NewU128FromUint64(1000), 0))
	require.NoError(t, engine.DepositAllCollateral(borrower, currencyDOT, 0))
	require.NoError(t, engine.Borrow(borrower, currencyBTC, types.NewU128FromUint64(8), 1))

	liquidator := testAddress(t, 0x0a)
	require.NoError(t, ledger.Mint(liquidator, currencyBTC, types.NewU128FromUint64(5)))

	// owed=8, close_factor=0.5 caps a single liquidation call at 4; 5 exceeds it.
	err = engine.LiquidateBorrow(liquidator, borrower, currencyBTC, currencyDOT, types.NewU128FromUint64(5), 1)
	require.ErrorIs(t, err, ErrRepayExceedsCloseFactor)
}

// TestLiquidateBorrowReservedFactorSplit exercises spec.md §8 scenario 5's
// liquidation-incentive split: the seized collateral is divided between the
// liquidator and the market's incentive reserve account per
// LiquidateIncentiveReservedFactor, not handed to the liquidator whole.
func TestLiquidateBorrowReservedFactorSplit(t *testing.T) {
	engine, ledger, feed := setupEngine(t)

	collateralFactor := fixed18FromPermille(t, 800)
	liquidationThreshold := fixed18FromPermille(t, 750)
	liquidationIncentive := fixed18FromPermille(t, 1080)
	reservedFactor := fixed18FromPermille(t, 30)
	closeFactor := fixed18FromPermille(t, 500)
	require.NoError(t, engine.AddMarket(currencyDOT, zeroRateModel, types.Fixed18{}, collateralFactor, liquidationThreshold, liquidationIncentive, types.Fixed18{}, reservedFactor, types.Zero(), 0))
	require.NoError(t, engine.AddMarket(currencyBTC, zeroRateModel, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, types.Fixed18{}, closeFactor, types.Fixed18{}, types.Zero(), 0))

	rate, err := types.NewFixed18FromBigInt(new(big.Int).Mul(types.OneFixed18().Int(), big.NewInt(100)))
	require.NoError(t, err)
	feed.SetRate(currencyBTC, currencyDOT, rate, time.Now())

	supplier := testAddress(t, 0x0b)
	require.NoError(t, ledger.Mint(supplier, currencyBTC, types.NewU128FromUint64(10)))
	require.NoError(t, engine.Mint(supplier, currencyBTC, types.NewU128FromUint64(10), 0))

	borrower := testAddress(t, 0x0c)
	require.NoError(t, ledger.Mint(borrower, currencyDOT, types.NewU128FromUint64(1000)))
	require.NoError(t, engine.Mint(borrower, currencyDOT, types.NewU128FromUint64(1000), 0))
	require.NoError(t, engine.DepositAllCollateral(borrower, currencyDOT, 0))
	// Collateral factor 0.8 * 1000 DOT = 800 DOT borrowing power = 8 BTC at
	// 100 DOT/BTC, right at the limit; liquidation threshold 0.75 * 1000 =
	// 750 DOT is already exceeded by the 800 DOT debt, so the position is
	// liquidatable immediately without needing a repricing step.
	require.NoError(t, engine.Borrow(borrower, currencyBTC, types.NewU128FromUint64(8), 1))

	liquidator := testAddress(t, 0x0d)
	require.NoError(t, ledger.Mint(liquidator, currencyBTC, types.NewU128FromUint64(4)))

	// repay=4 sits exactly at the close-factor cap (owed=8, close_factor=0.5).
	require.NoError(t, engine.LiquidateBorrow(liquidator, borrower, currencyBTC, currencyDOT, types.NewU128FromUint64(4), 1))

	// Seized: 4 BTC repaid * 100 DOT/BTC = 400 DOT value, * 1.08 incentive =
	// 432 DOT seized. Reserve takes floor(432*0.03) = 12; liquidator takes
	// the remaining 420.
	liquidatorCollateral, ok := engine.Position(liquidator, currencyDOT)
	require.True(t, ok)
	require.Equal(t, uint64(420), liquidatorCollateral.SupplyShares.Int().Uint64())

	reservePos, ok := engine.Position(incentiveReserveAccount(currencyDOT), currencyDOT)
	require.True(t, ok)
	require.Equal(t, uint64(12), reservePos.SupplyShares.Int().Uint64())

	borrowerCollateral, _ := engine.Position(borrower, currencyDOT)
	require.Equal(t, uint64(1000-432), borrowerCollateral.SupplyShares.Int().Uint64())
}
