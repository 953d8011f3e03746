package offchain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btc-parachain/core/internal/types"
	"github.com/btc-parachain/core/internal/vault"
)

type fakeRegistry struct {
	ids    []vault.ID
	below  map[vault.ID]bool
	err    map[vault.ID]error
	calls  int
}

func (f *fakeRegistry) VaultIDs() []vault.ID {
	f.calls++
	return f.ids
}

func (f *fakeRegistry) IsVaultBelowLiquidationThreshold(id vault.ID) (bool, error) {
	if err, ok := f.err[id]; ok {
		return false, err
	}
	return f.below[id], nil
}

func testVaultID(n byte) vault.ID {
	addr := types.MustNewAddress(types.AccountPrefix, append([]byte{n}, make([]byte, 19)...))
	return vault.ID{Account: addr, Pair: vault.PairKey{Collateral: 1, Wrapped: 2}}
}

func TestWorkerReportsOnlyBelowThreshold(t *testing.T) {
	idA := testVaultID(1)
	idB := testVaultID(2)
	reg := &fakeRegistry{
		ids:   []vault.ID{idA, idB},
		below: map[vault.ID]bool{idA: true, idB: false},
	}

	var reported []vault.ID
	w := NewWorker(reg, func(ctx context.Context, id vault.ID) error {
		reported = append(reported, id)
		return nil
	})

	require.NoError(t, w.Run(context.Background(), 100))
	require.Equal(t, []vault.ID{idA}, reported)
}

func TestWorkerIsIdempotentPerBlockHeight(t *testing.T) {
	reg := &fakeRegistry{ids: []vault.ID{testVaultID(1)}, below: map[vault.ID]bool{}}
	w := NewWorker(reg, func(ctx context.Context, id vault.ID) error { return nil })

	require.NoError(t, w.Run(context.Background(), 100))
	require.NoError(t, w.Run(context.Background(), 100))
	require.Equal(t, 1, reg.calls)

	require.NoError(t, w.Run(context.Background(), 101))
	require.Equal(t, 2, reg.calls)
}
