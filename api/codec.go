package api

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/btc-parachain/core/internal/types"
	"github.com/btc-parachain/core/internal/vault"
)

func errNotFound(what string) error {
	return fmt.Errorf("%s not found", what)
}

// decodeAccount parses a bech32-encoded account address, the same
// encoding types.Address.String produces, so GET views and POST request
// bodies round-trip through the same textual form.
func decodeAccount(raw string) (types.Address, error) {
	return types.DecodeAddress(raw)
}

func decodePair(collateral, wrapped string) (vault.PairKey, error) {
	c, err := decodeCurrency(collateral)
	if err != nil {
		return vault.PairKey{}, err
	}
	w, err := decodeCurrency(wrapped)
	if err != nil {
		return vault.PairKey{}, err
	}
	return vault.PairKey{Collateral: c, Wrapped: w}, nil
}

func decodeCurrency(raw string) (types.CurrencyID, error) {
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid currency id %q: %w", raw, err)
	}
	return types.CurrencyID(v), nil
}

func decodeU128(raw string) (types.U128, error) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return types.U128{}, fmt.Errorf("invalid integer %q", raw)
	}
	return types.NewU128FromBigInt(n)
}
