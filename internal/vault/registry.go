package vault

import (
	"github.com/btc-parachain/core/internal/state"
	"github.com/btc-parachain/core/internal/types"
)

type idKey struct {
	addr [20]byte
	pair PairKey
}

func keyOf(id ID) idKey {
	var k idKey
	copy(k.addr[:], id.Account.Bytes())
	k.pair = id.Pair
	return k
}

// Registry is the Vault Registry engine: it owns every vault's bookkeeping
// state, its staking pool, and the per-pair risk parameters and
// liquidation-vault aggregates, and mutates them through a shared ledger.
type Registry struct {
	ledger *state.Ledger
	oracle types.RateOracle

	vaults      map[idKey]*Vault
	staking     map[idKey]*StakingPool
	params      map[PairKey]PairParams
	liquidation map[PairKey]*LiquidationVault
	totalIssued map[PairKey]types.U128
}

// NewRegistry constructs an empty registry against the given ledger and
// rate oracle.
func NewRegistry(ledger *state.Ledger, oracle types.RateOracle) *Registry {
	return &Registry{
		ledger:      ledger,
		oracle:      oracle,
		vaults:      make(map[idKey]*Vault),
		staking:     make(map[idKey]*StakingPool),
		params:      make(map[PairKey]PairParams),
		liquidation: make(map[PairKey]*LiquidationVault),
		totalIssued: make(map[PairKey]types.U128),
	}
}

// SetPairParams registers or updates a currency pair's risk parameters.
func (r *Registry) SetPairParams(pair PairKey, params PairParams) {
	r.params[pair] = params
	if _, ok := r.liquidation[pair]; !ok {
		r.liquidation[pair] = &LiquidationVault{
			Issued:       types.Zero(),
			ToBeIssued:   types.Zero(),
			ToBeRedeemed: types.Zero(),
			Collateral:   types.Zero(),
		}
	}
	if _, ok := r.totalIssued[pair]; !ok {
		r.totalIssued[pair] = types.Zero()
	}
}

// Vault looks up a vault by ID.
func (r *Registry) Vault(id ID) (*Vault, bool) {
	v, ok := r.vaults[keyOf(id)]
	return v, ok
}

// VaultIDs returns every registered vault's ID. Order is unspecified; the
// off-chain undercollateralization worker (spec.md §4.2/§5) sorts or
// otherwise tolerates arbitrary iteration order since it only reports, it
// never relies on a particular scan sequence for correctness.
func (r *Registry) VaultIDs() []ID {
	ids := make([]ID, 0, len(r.vaults))
	for _, v := range r.vaults {
		ids = append(ids, v.ID)
	}
	return ids
}

// LiquidationVault returns the per-pair liquidation aggregate.
func (r *Registry) LiquidationVault(pair PairKey) (*LiquidationVault, bool) {
	lv, ok := r.liquidation[pair]
	return lv, ok
}

// Register creates a new vault for the given ID and records its Bitcoin
// wallet address as the attribution target for future redeem payments.
func (r *Registry) Register(id ID, walletAddress string) (*Vault, error) {
	if _, ok := r.params[id.Pair]; !ok {
		return nil, ErrUnknownPair
	}
	k := keyOf(id)
	if _, ok := r.vaults[k]; ok {
		return nil, ErrVaultAlreadyRegistered
	}
	v := &Vault{
		ID:           id,
		Status:       StatusActive,
		Issued:       types.Zero(),
		ToBeIssued:   types.Zero(),
		ToBeRedeemed: types.Zero(),
		ToBeReplaced: types.Zero(),
		Wallet:       map[string]struct{}{walletAddress: {}},
	}
	r.vaults[k] = v
	r.staking[k] = newStakingPool()
	return v, nil
}

func (r *Registry) mustGet(id ID) (*Vault, *StakingPool, PairParams, error) {
	k := keyOf(id)
	v, ok := r.vaults[k]
	if !ok {
		return nil, nil, PairParams{}, ErrVaultNotFound
	}
	pool := r.staking[k]
	params, ok := r.params[id.Pair]
	if !ok {
		return nil, nil, PairParams{}, ErrUnknownPair
	}
	return v, pool, params, nil
}

// TryDepositCollateral locks amount from the depositor's free balance into
// the vault's staking pool. The depositor need not be the vault operator —
// this is how nominators back a vault.
func (r *Registry) TryDepositCollateral(id ID, depositor types.Address, amount types.U128) error {
	v, pool, params, err := r.mustGet(id)
	if err != nil {
		return err
	}
	if v.Status != StatusActive {
		return ErrVaultNotFound
	}
	total, err := pool.Total().Add(amount)
	if err != nil {
		return err
	}
	if total.Cmp(params.MinimumCollateralVault) < 0 {
		return ErrBelowMinimumCollateral
	}
	if err := r.ledger.Lock(depositor, id.Pair.Collateral, amount); err != nil {
		return err
	}
	return pool.Deposit(depositor, amount)
}

// TryWithdrawCollateral releases amount of a depositor's stake back to
// their free balance, refusing if doing so would leave the vault below
// its pair's secure collateralization threshold or minimum-collateral floor.
func (r *Registry) TryWithdrawCollateral(id ID, depositor types.Address, amount types.U128) error {
	v, pool, params, err := r.mustGet(id)
	if err != nil {
		return err
	}
	remaining, err := pool.Total().Sub(amount)
	if err != nil {
		return ErrInsufficientCollateral
	}
	if remaining.Cmp(params.MinimumCollateralVault) < 0 && !remaining.IsZero() {
		return ErrBelowMinimumCollateral
	}
	below, err := r.belowThresholdWithCollateral(v, params, params.SecureThreshold, remaining)
	if err != nil {
		return err
	}
	if below {
		return ErrInsufficientCollateral
	}
	if err := pool.Withdraw(depositor, amount); err != nil {
		return err
	}
	return r.ledger.Unlock(depositor, id.Pair.Collateral, amount)
}

// TryIncreaseToBeIssued reserves amount of new issuance against the vault,
// refusing if it would breach the pair's system collateral ceiling or
// leave the vault below its secure threshold.
func (r *Registry) TryIncreaseToBeIssued(id ID, amount types.U128, currentHeight uint32) error {
	v, pool, params, err := r.mustGet(id)
	if err != nil {
		return err
	}
	if v.Status != StatusActive {
		return ErrVaultNotFound
	}
	if v.BannedUntilBlock != 0 && currentHeight < v.BannedUntilBlock {
		return ErrVaultBanned
	}
	totalIssued, err := r.totalIssued[id.Pair].Add(amount)
	if err != nil {
		return err
	}
	if totalIssued.Cmp(params.SystemCollateralCeiling) > 0 {
		return ErrCurrencyCeilingExceeded
	}
	nextToBeIssued, err := v.ToBeIssued.Add(amount)
	if err != nil {
		return err
	}
	projected := &Vault{ID: v.ID, Issued: v.Issued, ToBeIssued: nextToBeIssued, ReplaceCollateral: v.ReplaceCollateral}
	below, err := r.belowThresholdWithCollateral(projected, params, params.SecureThreshold, pool.Total())
	if err != nil {
		return err
	}
	if below {
		return ErrInsufficientCollateral
	}
	v.ToBeIssued = nextToBeIssued
	r.totalIssued[id.Pair] = totalIssued
	return nil
}

// DecreaseToBeIssued releases a reservation made by TryIncreaseToBeIssued
// without ever minting tokens — used on issue-request expiry.
func (r *Registry) DecreaseToBeIssued(id ID, amount types.U128) error {
	v, _, _, err := r.mustGet(id)
	if err != nil {
		return err
	}
	next, err := v.ToBeIssued.Sub(amount)
	if err != nil {
		return ErrInsufficientTokensCommitted
	}
	v.ToBeIssued = next
	r.totalIssued[id.Pair] = r.totalIssued[id.Pair].SaturatingSub(amount)
	return nil
}

// IssueTokens converts a to_be_issued reservation into actually-issued
// tokens once a Bitcoin deposit has enough confirmations, minting the
// wrapped tokens to the requester's free balance.
func (r *Registry) IssueTokens(id ID, requester types.Address, amount types.U128) error {
	v, _, _, err := r.mustGet(id)
	if err != nil {
		return err
	}
	nextToBeIssued, err := v.ToBeIssued.Sub(amount)
	if err != nil {
		return ErrInsufficientTokensCommitted
	}
	nextIssued, err := v.Issued.Add(amount)
	if err != nil {
		return err
	}
	if err := r.ledger.Mint(requester, id.Pair.Wrapped, amount); err != nil {
		return err
	}
	v.ToBeIssued = nextToBeIssued
	v.Issued = nextIssued
	return nil
}

// TryIncreaseToBeRedeemed reserves amount of this vault's issued tokens
// against an in-flight redeem request.
func (r *Registry) TryIncreaseToBeRedeemed(id ID, amount types.U128) error {
	v, _, _, err := r.mustGet(id)
	if err != nil {
		return err
	}
	redeemable, err := v.RedeemableTokens()
	if err != nil {
		return err
	}
	if redeemable.Cmp(amount) < 0 {
		return ErrInsufficientTokensCommitted
	}
	next, err := v.ToBeRedeemed.Add(amount)
	if err != nil {
		return err
	}
	v.ToBeRedeemed = next
	return nil
}

// DecreaseToBeRedeemed releases a to_be_redeemed reservation without
// burning tokens — used when a redeem is cancelled for retry, and when it
// is cancelled and reimbursed by a vault that stays above its secure
// threshold.
func (r *Registry) DecreaseToBeRedeemed(id ID, amount types.U128) error {
	v, _, _, err := r.mustGet(id)
	if err != nil {
		return err
	}
	next, err := v.ToBeRedeemed.Sub(amount)
	if err != nil {
		return ErrInsufficientTokensCommitted
	}
	v.ToBeRedeemed = next
	return nil
}

// DecreaseTokens burns amount out of both issued and to_be_redeemed,
// completing a redeem once the Bitcoin payment has been verified.
func (r *Registry) DecreaseTokens(id ID, amount types.U128) error {
	v, _, _, err := r.mustGet(id)
	if err != nil {
		return err
	}
	nextToBeRedeemed, err := v.ToBeRedeemed.Sub(amount)
	if err != nil {
		return ErrInsufficientTokensCommitted
	}
	nextIssued, err := v.Issued.Sub(amount)
	if err != nil {
		return ErrInsufficientTokensCommitted
	}
	v.ToBeRedeemed = nextToBeRedeemed
	v.Issued = nextIssued
	r.totalIssued[id.Pair] = r.totalIssued[id.Pair].SaturatingSub(amount)
	return nil
}

// RedeemTokens completes a redeem against a still-active vault: it burns
// the redeemer's locked wrapped tokens and releases the vault's
// collateral-backing exposure for that amount.
func (r *Registry) RedeemTokens(id ID, redeemer types.Address, amount types.U128) error {
	if err := r.ledger.BurnLocked(redeemer, id.Pair.Wrapped, amount); err != nil {
		return err
	}
	return r.DecreaseTokens(id, amount)
}

// RedeemTokensLiquidation pays a redeemer directly out of a pair's
// liquidation vault, proportional to the amount of wrapped tokens they are
// owed, for redeems whose backing vault has since been liquidated.
func (r *Registry) RedeemTokensLiquidation(pair PairKey, redeemer types.Address, amount types.U128) error {
	lv, ok := r.liquidation[pair]
	if !ok {
		return ErrUnknownPair
	}
	if lv.ToBeRedeemed.Cmp(amount) < 0 {
		return ErrInsufficientTokensCommitted
	}
	if err := r.ledger.BurnLocked(redeemer, pair.Wrapped, amount); err != nil {
		return err
	}
	// Pay out collateral proportional to amount / (issued + to_be_issued +
	// to_be_redeemed), the liquidation vault's total backed exposure.
	exposure, err := lv.Issued.Add(lv.ToBeIssued)
	if err != nil {
		return err
	}
	exposure, err = exposure.Add(lv.ToBeRedeemed)
	if err != nil {
		return err
	}
	payout := types.Zero()
	if !exposure.IsZero() {
		numerator, err := lv.Collateral.Mul(amount)
		if err != nil {
			return err
		}
		payout, err = numerator.Quo(exposure)
		if err != nil {
			return err
		}
	}
	nextToBeRedeemed, err := lv.ToBeRedeemed.Sub(amount)
	if err != nil {
		return err
	}
	nextCollateral, err := lv.Collateral.Sub(payout)
	if err != nil {
		nextCollateral = types.Zero()
	}
	lv.ToBeRedeemed = nextToBeRedeemed
	lv.Collateral = nextCollateral
	if payout.IsZero() {
		return nil
	}
	return r.ledger.Mint(redeemer, pair.Collateral, payout)
}

// DecreaseLiquidationVaultTokens settles amount of a pair's liquidation
// vault exposure once a redeem against an already-liquidated vault has had
// its Bitcoin payment verified: both the aggregate's issued and
// to_be_redeemed counters shrink, mirroring DecreaseTokens for a vault
// that is still active.
func (r *Registry) DecreaseLiquidationVaultTokens(pair PairKey, amount types.U128) error {
	lv, ok := r.liquidation[pair]
	if !ok {
		return ErrUnknownPair
	}
	nextToBeRedeemed, err := lv.ToBeRedeemed.Sub(amount)
	if err != nil {
		return ErrInsufficientTokensCommitted
	}
	nextIssued, err := lv.Issued.Sub(amount)
	if err != nil {
		return ErrInsufficientTokensCommitted
	}
	lv.ToBeRedeemed = nextToBeRedeemed
	lv.Issued = nextIssued
	r.totalIssued[pair] = r.totalIssued[pair].SaturatingSub(amount)
	return nil
}

// DecreaseLiquidationVaultToBeRedeemed releases a pair's liquidation vault
// reservation for amount without burning tokens or paying out collateral —
// used when a redeem against an already-liquidated vault is cancelled and
// retried rather than reimbursed, so the redeemer keeps their locked
// wrapped tokens to try again against a different vault.
func (r *Registry) DecreaseLiquidationVaultToBeRedeemed(pair PairKey, amount types.U128) error {
	lv, ok := r.liquidation[pair]
	if !ok {
		return ErrUnknownPair
	}
	next, err := lv.ToBeRedeemed.Sub(amount)
	if err != nil {
		return ErrInsufficientTokensCommitted
	}
	lv.ToBeRedeemed = next
	return nil
}

// LiquidateVault seizes a vault's staking-pool collateral into its pair's
// liquidation vault, transfers its issued/to_be_issued/to_be_redeemed
// exposure onto the liquidation vault's aggregate, and marks it liquidated.
func (r *Registry) LiquidateVault(id ID) error {
	v, pool, params, err := r.mustGet(id)
	if err != nil {
		return err
	}
	if v.Status == StatusLiquidated {
		return ErrVaultAlreadyLiquidated
	}
	below, err := r.isBelowThreshold(v, pool, params, params.LiquidationThreshold)
	if err != nil {
		return err
	}
	if !below {
		return ErrVaultNotBelowLiquidationThreshold
	}
	lv := r.liquidation[id.Pair]
	seized := pool.SlashAll()

	// Of the seized collateral, the slice backing this vault's still-open
	// to_be_redeemed obligations is parked on the vault itself so it can be
	// released per-redeem as those requests settle; the rest moves to the
	// pair's liquidation vault, which takes over the remaining exposure.
	exposure, err := v.Issued.Add(v.ToBeIssued)
	if err != nil {
		return err
	}
	exposure, err = exposure.Add(v.ToBeRedeemed)
	if err != nil {
		return err
	}
	liquidatedPortion := types.Zero()
	if !exposure.IsZero() && !v.ToBeRedeemed.IsZero() {
		numerator, err := seized.Mul(v.ToBeRedeemed)
		if err != nil {
			return err
		}
		liquidatedPortion, err = numerator.Quo(exposure)
		if err != nil {
			return err
		}
	}
	remainder, err := seized.Sub(liquidatedPortion)
	if err != nil {
		remainder = types.Zero()
	}

	lv.Collateral, err = lv.Collateral.Add(remainder)
	if err != nil {
		return err
	}
	lv.Issued, err = lv.Issued.Add(v.Issued)
	if err != nil {
		return err
	}
	lv.ToBeIssued, err = lv.ToBeIssued.Add(v.ToBeIssued)
	if err != nil {
		return err
	}
	lv.ToBeRedeemed, err = lv.ToBeRedeemed.Add(v.ToBeRedeemed)
	if err != nil {
		return err
	}
	v.LiquidatedCollateral = liquidatedPortion
	v.ToBeRedeemedAtLiquidation = v.ToBeRedeemed
	v.Status = StatusLiquidated
	v.Issued = types.Zero()
	v.ToBeIssued = types.Zero()
	v.ToBeRedeemed = types.Zero()
	return nil
}

// ReleaseLiquidatedCollateral computes and deducts this liquidated vault's
// per-redeem share of its parked LiquidatedCollateral, proportional to
// burned against the to_be_redeemed snapshot taken at liquidation time
// (spec.md §4.3's `liquidated_collateral × burned / to_be_redeemed_at_open`).
// It only deducts the bookkeeping; callers route the returned amount to
// whichever account the calling redeem path requires.
func (r *Registry) ReleaseLiquidatedCollateral(id ID, burned types.U128) (types.U128, error) {
	v, _, _, err := r.mustGet(id)
	if err != nil {
		return types.U128{}, err
	}
	if v.Status != StatusLiquidated || v.ToBeRedeemedAtLiquidation.IsZero() {
		return types.Zero(), nil
	}
	numerator, err := v.LiquidatedCollateral.Mul(burned)
	if err != nil {
		return types.U128{}, err
	}
	payout, err := numerator.Quo(v.ToBeRedeemedAtLiquidation)
	if err != nil {
		return types.U128{}, err
	}
	next, err := v.LiquidatedCollateral.Sub(payout)
	if err != nil {
		next = types.Zero()
	}
	v.LiquidatedCollateral = next
	return payout, nil
}

// CreditLiquidationVaultCollateral adds amount to a pair's liquidation
// vault collateral aggregate directly, used when a liquidated vault's
// parked per-redeem release (ReleaseLiquidatedCollateral) is routed to the
// liquidation vault rather than paid out to an account.
func (r *Registry) CreditLiquidationVaultCollateral(pair PairKey, amount types.U128) error {
	lv, ok := r.liquidation[pair]
	if !ok {
		return ErrUnknownPair
	}
	next, err := lv.Collateral.Add(amount)
	if err != nil {
		return err
	}
	lv.Collateral = next
	return nil
}

// PayCollateralFromVault slashes amount of collateral out of a vault's
// staking pool (preferring the operator's own stake, then nominators) and
// credits it to recipient's free balance. This is the mechanism behind
// premium redeems and reimbursement payouts alike: both compensate a
// redeemer in collateral currency out of the vault's stake.
func (r *Registry) PayCollateralFromVault(id ID, recipient types.Address, amount types.U128) (types.U128, error) {
	v, pool, _, err := r.mustGet(id)
	if err != nil {
		return types.U128{}, err
	}
	seized := pool.SlashAmount(v.ID.Account, amount)
	if seized.IsZero() {
		return types.Zero(), nil
	}
	if err := r.ledger.Mint(recipient, id.Pair.Collateral, seized); err != nil {
		return types.U128{}, err
	}
	return seized, nil
}

// WouldRemainAboveSecureAfterPayout reports whether a vault would stay at
// or above its pair's secure threshold after paying amount of collateral
// out of its staking pool — used by cancel_redeem to decide whether a
// reimbursement lands as Reimbursed(true) or the under-collateralized
// Reimbursed(false) sub-branch.
func (r *Registry) WouldRemainAboveSecureAfterPayout(id ID, amount types.U128) (bool, error) {
	v, pool, params, err := r.mustGet(id)
	if err != nil {
		return false, err
	}
	remaining, err := pool.Total().Sub(amount)
	if err != nil {
		remaining = types.Zero()
	}
	below, err := r.belowThresholdWithCollateral(v, params, params.SecureThreshold, remaining)
	if err != nil {
		return false, err
	}
	return !below, nil
}

// MintTokensForReimbursedRedeem re-credits a vault's Issued balance for a
// redeem that was cancelled with reimbursement: the redeemer was already
// paid out in collateral and their locked wrapped tokens burned, but the
// vault still owes the underlying Bitcoin into the system, so its
// issuance liability is restored rather than silently vanishing from
// total supply accounting.
func (r *Registry) MintTokensForReimbursedRedeem(id ID, amount types.U128) error {
	v, _, _, err := r.mustGet(id)
	if err != nil {
		return err
	}
	next, err := v.Issued.Add(amount)
	if err != nil {
		return err
	}
	v.Issued = next
	total, err := r.totalIssued[id.Pair].Add(amount)
	if err != nil {
		return err
	}
	r.totalIssued[id.Pair] = total
	return nil
}

// PunishForFailedRedeem slashes a vault's staking pool for failing to pay
// out a redeem within its period, paying the seized collateral to the
// redeemer as compensation. The punishment is sized at fee times the
// collateral-equivalent value of the wrapped-token amount that was not
// delivered.
func (r *Registry) PunishForFailedRedeem(id ID, recipient types.Address, wrappedAmount types.U128, fee types.Fixed18) error {
	v, pool, _, err := r.mustGet(id)
	if err != nil {
		return err
	}
	amt := types.NewAmount(wrappedAmount, id.Pair.Wrapped)
	valueInCollateral, err := amt.Convert(id.Pair.Collateral, r.oracle)
	if err != nil {
		return err
	}
	punishment, err := types.MulFixed18(types.Fixed18{U128: valueInCollateral.Value}, fee, types.RoundUp)
	if err != nil {
		return err
	}
	seized := pool.SlashAmount(v.ID.Account, punishment.U128)
	if seized.IsZero() {
		return nil
	}
	return r.ledger.Mint(recipient, id.Pair.Collateral, seized)
}

// BanVault bars a vault from accepting new issue reservations until
// untilHeight, used when a redeem is cancelled against it for failing to
// pay out within its period (spec.md §4.3's "ban the vault for
// punishment_delay"). Banning never blocks a vault's existing
// to_be_redeemed/to_be_replaced obligations, only new issuance.
func (r *Registry) BanVault(id ID, untilHeight uint32) error {
	v, _, _, err := r.mustGet(id)
	if err != nil {
		return err
	}
	if untilHeight > v.BannedUntilBlock {
		v.BannedUntilBlock = untilHeight
	}
	return nil
}

// IsVaultBelowSecureThreshold reports whether a vault's collateralization
// has fallen below the pair's secure threshold (the level below which new
// issue requests are refused).
func (r *Registry) IsVaultBelowSecureThreshold(id ID) (bool, error) {
	v, pool, params, err := r.mustGet(id)
	if err != nil {
		return false, err
	}
	return r.isBelowThreshold(v, pool, params, params.SecureThreshold)
}

// IsVaultBelowPremiumThreshold reports whether a vault has fallen below
// the premium threshold, the level at which third parties may perform a
// discounted premium redeem against it.
func (r *Registry) IsVaultBelowPremiumThreshold(id ID) (bool, error) {
	v, pool, params, err := r.mustGet(id)
	if err != nil {
		return false, err
	}
	return r.isBelowThreshold(v, pool, params, params.PremiumThreshold)
}

// IsVaultBelowLiquidationThreshold reports whether a vault has fallen
// below the liquidation threshold and is eligible for LiquidateVault.
func (r *Registry) IsVaultBelowLiquidationThreshold(id ID) (bool, error) {
	v, pool, params, err := r.mustGet(id)
	if err != nil {
		return false, err
	}
	return r.isBelowThreshold(v, pool, params, params.LiquidationThreshold)
}

func (r *Registry) isBelowThreshold(v *Vault, pool *StakingPool, params PairParams, threshold types.Fixed18) (bool, error) {
	return r.belowThresholdWithCollateral(v, params, threshold, pool.Total())
}

func (r *Registry) belowThresholdWithCollateral(v *Vault, params PairParams, threshold types.Fixed18, staked types.U128) (bool, error) {
	issuedTokens, err := v.IssuedTokens()
	if err != nil {
		return false, err
	}
	if issuedTokens.IsZero() {
		return false, nil
	}
	backing := v.BackingCollateral(staked)
	amt := types.NewAmount(issuedTokens, v.ID.Pair.Wrapped)
	valueInCollateral, err := amt.Convert(v.ID.Pair.Collateral, r.oracle)
	if err != nil {
		return false, err
	}
	required, err := types.MulFixed18(types.Fixed18{U128: valueInCollateral.Value}, threshold, types.RoundUp)
	if err != nil {
		return false, err
	}
	return backing.Cmp(required.U128) < 0, nil
}
