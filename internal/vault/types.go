// Package vault implements the Vault Registry: collateralized custodians
// that back issued wrapped-BTC tokens and the staking pools that fund them.
package vault

import (
	"github.com/btc-parachain/core/internal/types"
)

// Status is the lifecycle state of a vault.
type Status uint8

const (
	// StatusActive is a vault that can accept new issue/redeem requests.
	StatusActive Status = iota
	// StatusLiquidated is a vault whose collateral has been seized and
	// moved into the currency pair's liquidation vault.
	StatusLiquidated
	// StatusCommittedTheft is a vault that submitted a Bitcoin payment not
	// matching any of its outstanding redeem requests and was slashed.
	StatusCommittedTheft
)

// PairKey identifies one (collateral currency, wrapped currency) market
// that the registry tracks independently — its own ceiling, thresholds,
// and liquidation vault.
type PairKey struct {
	Collateral types.CurrencyID
	Wrapped    types.CurrencyID
}

// ID identifies a single vault within a currency pair.
type ID struct {
	Account types.Address
	Pair    PairKey
}

// Vault is a single collateralized custodian's bookkeeping record.
type Vault struct {
	ID ID

	Status Status

	// Issued is the amount of wrapped tokens this vault currently backs.
	Issued types.U128
	// ToBeIssued is wrapped-token amount reserved by in-flight issue
	// requests not yet completed.
	ToBeIssued types.U128
	// ToBeRedeemed is wrapped-token amount reserved by in-flight redeem
	// requests against this vault, still backed by its collateral until
	// the redeem completes or is cancelled.
	ToBeRedeemed types.U128
	// ToBeReplaced is wrapped-token amount this vault has offered to
	// transfer to a replacement vault, pending acceptance.
	ToBeReplaced types.U128

	// ReplaceCollateral is collateral this vault has escrowed against its
	// ToBeReplaced offer.
	ReplaceCollateral types.U128
	// LiquidatedCollateral is collateral moved out of this vault's active
	// collateral into escrow at the moment of liquidation, to be paid out
	// to redeemers still owed wrapped tokens by this vault.
	LiquidatedCollateral types.U128
	// ToBeRedeemedAtLiquidation snapshots ToBeRedeemed at the moment this
	// vault was liquidated — the denominator of the per-redeem
	// liquidated_collateral release formula (spec.md §4.3), since
	// ToBeRedeemed itself is zeroed out by LiquidateVault.
	ToBeRedeemedAtLiquidation types.U128

	// BannedUntilBlock is non-zero while the vault is barred from new
	// issue requests following a BanVault call (a redeem the vault failed
	// to pay before it expired).
	BannedUntilBlock uint32

	// Wallet is the set of Bitcoin scriptPubKey hex strings this vault has
	// registered as belonging to it — used to attribute a Bitcoin payment
	// to this vault during redeem execution.
	Wallet map[string]struct{}
}

// BackingCollateral returns the collateral actively securing this vault's
// issued + to_be_issued + to_be_redeemed tokens, excluding collateral
// already escrowed toward a replace offer or moved out at liquidation.
func (v *Vault) BackingCollateral(staked types.U128) types.U128 {
	free, err := staked.Sub(v.ReplaceCollateral)
	if err != nil {
		return types.Zero()
	}
	return free
}

// IssuedTokens returns issued + to_be_issued: the wrapped-token exposure a
// threshold check must be collateralized against (to_be_redeemed tokens
// are already backed 1:1 and excluded from new-collateral ratio checks
// per spec.md §4.2).
func (v *Vault) IssuedTokens() (types.U128, error) {
	return v.Issued.Add(v.ToBeIssued)
}

// RedeemableTokens returns the amount of wrapped tokens a redeemer may
// still draw against this vault: issued minus what is already reserved by
// other in-flight redeems or replace offers.
func (v *Vault) RedeemableTokens() (types.U128, error) {
	reserved, err := v.ToBeRedeemed.Add(v.ToBeReplaced)
	if err != nil {
		return types.U128{}, err
	}
	return v.Issued.SaturatingSub(reserved), nil
}

// PairParams holds the governance-set risk parameters for one currency
// pair market.
type PairParams struct {
	SystemCollateralCeiling types.U128
	SecureThreshold         types.Fixed18
	PremiumThreshold        types.Fixed18
	LiquidationThreshold    types.Fixed18
	MinimumCollateralVault  types.U128
	PunishmentFee           types.Fixed18
}

// LiquidationVault is the per-pair aggregate that absorbs a liquidated
// vault's issued/to_be_issued/to_be_redeemed exposure and collateral, so
// redeemers of a liquidated vault can still be paid out.
type LiquidationVault struct {
	Issued       types.U128
	ToBeIssued   types.U128
	ToBeRedeemed types.U128
	Collateral   types.U128
}
