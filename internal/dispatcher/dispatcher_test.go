package dispatcher

import (
	"context"
	"testing"

	"github.com/btc-parachain/core/internal/oracle"
	"github.com/btc-parachain/core/internal/relay"
	"github.com/btc-parachain/core/internal/types"
	"github.com/btc-parachain/core/internal/vault"
	"github.com/btc-parachain/core/internal/world"
	"github.com/stretchr/testify/require"
)

func testWorld(t *testing.T) *world.World {
	t.Helper()
	return world.New(world.Config{
		Relay: relay.Config{
			StableBitcoinConfirmations:   6,
			StableParachainConfirmations: 10,
		},
		OracleMaxAge:      0,
		OracleClock:       oracle.SystemClock,
		ValuationCurrency: types.CurrencyID(1),
		RewardCurrency:    types.CurrencyID(2),
	})
}

func TestDispatchRejectsSignedOriginForRootOnlyMethod(t *testing.T) {
	w := testWorld(t)
	d := New(w, nil, nil)
	pair := vault.PairKey{Collateral: types.CurrencyID(1), Wrapped: types.CurrencyID(3)}

	_, err := d.Dispatch(context.Background(), OriginSigned, "vault.SetPairParams", 1, 0, Args{
		Pair: pair,
		PairParams: vault.PairParams{
			SystemCollateralCeiling: types.NewU128FromUint64(1_000_000),
			MinimumCollateralVault:  types.NewU128FromUint64(100),
		},
	})

	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestDispatchRootCanSetPairParamsThenRegisterVault(t *testing.T) {
	w := testWorld(t)
	d := New(w, nil, nil)
	pair := vault.PairKey{Collateral: types.CurrencyID(1), Wrapped: types.CurrencyID(3)}

	_, err := d.Dispatch(context.Background(), OriginRoot, "vault.SetPairParams", 1, 0, Args{
		Pair: pair,
		PairParams: vault.PairParams{
			SystemCollateralCeiling: types.NewU128FromUint64(1_000_000),
			MinimumCollateralVault:  types.NewU128FromUint64(100),
		},
	})
	require.NoError(t, err)

	vaultAddr := types.MustNewAddress(types.AccountPrefix, bytes20(1))
	id := vault.ID{Account: vaultAddr, Pair: pair}

	result, err := d.Dispatch(context.Background(), OriginSigned, "vault.Register", 2, 0, Args{
		VaultID:       id,
		WalletAddress: "bc1qexampleaddressxxxxxxxxxxxxxxxxxxxxx",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestDispatchRejectsUnknownMethod(t *testing.T) {
	w := testWorld(t)
	d := New(w, nil, nil)

	_, err := d.Dispatch(context.Background(), OriginRoot, "vault.DoesNotExist", 1, 0, Args{})
	require.Error(t, err)
}

func bytes20(b byte) []byte {
	return append([]byte{b}, make([]byte, 19)...)
}
