package amm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btc-parachain/core/internal/state"
	"github.com/btc-parachain/core/internal/types"
)

const (
	currencyUSDC  types.CurrencyID = 10
	currencyUSDT  types.CurrencyID = 11
	currencyLP    types.CurrencyID = 12
	currencyDAI   types.CurrencyID = 13
	currencyMetaLP types.CurrencyID = 14
)

func testAddr(t *testing.T, b byte) types.Address {
	t.Helper()
	buf := make([]byte, 20)
	buf[0] = b
	addr, err := types.NewAddress(types.AccountPrefix, buf)
	require.NoError(t, err)
	return addr
}

func oneE18() types.U128 {
	v, err := types.NewU128FromBigInt(big.NewInt(1e18))
	if err != nil {
		panic(err)
	}
	return v
}

func newTwoTokenPool(t *testing.T, fee, adminFee *big.Int, a int64) (*Engine, *Pool, types.Address) {
	t.Helper()
	ledger := state.NewLedger()
	engine := NewEngine(ledger)
	admin := testAddr(t, 0xAD)
	pool := NewPool(
		[]types.CurrencyID{currencyUSDC, currencyUSDT},
		[]int{18, 18},
		big.NewInt(a),
		fee, adminFee,
		currencyLP, admin, 0,
	)
	require.NoError(t, engine.AddPool("usdc-usdt", pool))

	provider := testAddr(t, 0x01)
	amt, err := types.NewU128FromBigInt(big.NewInt(1e18))
	require.NoError(t, err)
	require.NoError(t, ledger.Mint(provider, currencyUSDC, amt))
	require.NoError(t, ledger.Mint(provider, currencyUSDT, amt))

	_, err = engine.AddLiquidity("usdc-usdt", provider, []types.U128{amt, amt}, types.Zero(), 0)
	require.NoError(t, err)

	return engine, pool, provider
}

// TestSwapScenarioSix reproduces the canonical Curve stable-swap reference
// numbers for a balanced 2-token A=50 pool: swapping in 1e17 of token 0
// with a 1e7 (0.1%) fee and zero admin fee yields exactly 99702611562565288
// of token 1, and the post-swap virtual price is 1000050005862349911/1e18.
func TestSwapScenarioSix(t *testing.T) {
	fee := big.NewInt(1e7)
	adminFee := big.NewInt(0)
	engine, pool, _ := newTwoTokenPool(t, fee, adminFee, 50)

	trader := testAddr(t, 0x02)
	dx, err := types.NewU128FromBigInt(big.NewInt(1e17))
	require.NoError(t, err)

	ledger := engineLedger(engine)
	require.NoError(t, ledger.Mint(trader, currencyUSDC, dx))

	dy, err := engine.Swap("usdc-usdt", trader, 0, 1, dx, types.Zero(), 0)
	require.NoError(t, err)
	require.Equal(t, "99702611562565288", dy.Int().String())

	vp, err := pool.VirtualPrice(0)
	require.NoError(t, err)
	require.Equal(t, "1000050005862349911", vp.String())
}

func engineLedger(e *Engine) *state.Ledger { return e.ledger }

func TestAddAndRemoveLiquidityRoundTrip(t *testing.T) {
	engine, pool, provider := newTwoTokenPool(t, big.NewInt(1e7), big.NewInt(0), 50)

	lpBalance := engineLedger(engine).Free(provider, currencyLP)
	require.Equal(t, pool.LPSupply.Int().String(), lpBalance.Int().String())

	out, err := engine.RemoveLiquidity("usdc-usdt", provider, lpBalance, []types.U128{types.Zero(), types.Zero()}, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.True(t, pool.LPSupply.IsZero())
}

func TestSwapRespectsSlippage(t *testing.T) {
	engine, _, _ := newTwoTokenPool(t, big.NewInt(1e7), big.NewInt(0), 50)
	trader := testAddr(t, 0x03)
	dx, err := types.NewU128FromBigInt(big.NewInt(1e17))
	require.NoError(t, err)
	require.NoError(t, engineLedger(engine).Mint(trader, currencyUSDC, dx))

	huge, err := types.NewU128FromBigInt(big.NewInt(1e18))
	require.NoError(t, err)
	_, err = engine.Swap("usdc-usdt", trader, 0, 1, dx, huge, 0)
	require.ErrorIs(t, err, ErrSlippage)
}

func TestRampAGuards(t *testing.T) {
	_, pool, _ := newTwoTokenPool(t, big.NewInt(1e7), big.NewInt(0), 50)

	err := pool.RampA(big.NewInt(100), MinRampTimeSeconds+1, 0)
	require.ErrorIs(t, err, ErrRampTooSoon)

	err = pool.RampA(big.NewInt(100), MinRampTimeSeconds+1, MinRampTimeSeconds)
	require.NoError(t, err)
	require.Equal(t, int64(100), pool.A(MinRampTimeSeconds+1).Int64())

	laterNow := MinRampTimeSeconds + 1 + MinRampTimeSeconds
	err = pool.RampA(big.NewInt(100_000), laterNow+1, laterNow)
	require.ErrorIs(t, err, ErrAChangeTooLarge)
}

// TestSwapUnderlyingRegistersMetaPool guards against a meta pool's
// embedded 2-asset [meta token, base LP token] Pool never being reachable
// through Swap — AddMetaPool must register it under the same id in the
// base-pool table, or SwapUnderlying's meta-level leg always fails with
// ErrPoolNotFound.
func TestSwapUnderlyingRegistersMetaPool(t *testing.T) {
	engine, _, provider := newTwoTokenPool(t, big.NewInt(1e7), big.NewInt(0), 50)
	ledger := engineLedger(engine)

	baseLP := ledger.Free(provider, currencyLP)
	require.False(t, baseLP.IsZero())

	metaPool := NewPool(
		[]types.CurrencyID{currencyDAI, currencyLP},
		[]int{18, 18},
		big.NewInt(50),
		big.NewInt(1e7), big.NewInt(0),
		currencyMetaLP, testAddr(t, 0xAE), 0,
	)
	mp := &MetaPool{
		Pool:           *metaPool,
		BasePoolID:     "usdc-usdt",
		BaseCurrencies: []types.CurrencyID{currencyUSDC, currencyUSDT},
	}
	require.NoError(t, engine.AddMetaPool("dai-3pool", mp))

	daiAmt, err := types.NewU128FromBigInt(big.NewInt(1e18))
	require.NoError(t, err)
	require.NoError(t, ledger.Mint(provider, currencyDAI, daiAmt))
	_, err = engine.AddLiquidity("dai-3pool", provider, []types.U128{daiAmt, baseLP}, types.Zero(), 0)
	require.NoError(t, err)

	trader := testAddr(t, 0x04)
	dx, err := types.NewU128FromBigInt(big.NewInt(1e17))
	require.NoError(t, err)
	require.NoError(t, ledger.Mint(trader, currencyDAI, dx))

	dy, err := engine.SwapUnderlying("dai-3pool", trader, currencyDAI, currencyUSDC, dx, types.Zero(), 0)
	require.NoError(t, err)
	require.True(t, dy.Sign() > 0)
	require.Equal(t, uint64(0), ledger.Free(trader, currencyDAI).Int().Uint64())
}

func TestRemoveLiquidityOneCoin(t *testing.T) {
	engine, pool, provider := newTwoTokenPool(t, big.NewInt(1e7), big.NewInt(0), 50)

	lpBalance := engineLedger(engine).Free(provider, currencyLP)
	burn, err := types.NewU128FromBigInt(new(big.Int).Quo(lpBalance.Int(), big.NewInt(10)))
	require.NoError(t, err)

	dy, err := engine.RemoveLiquidityOneCoin("usdc-usdt", provider, burn, 0, types.Zero(), 0)
	require.NoError(t, err)
	require.True(t, dy.Sign() > 0)
	require.True(t, pool.Balances[0].Cmp(oneE18()) < 0)
}
