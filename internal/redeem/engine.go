package redeem

import (
	"bytes"
	"encoding/binary"

	"github.com/btc-parachain/core/internal/relay"
	"github.com/btc-parachain/core/internal/state"
	"github.com/btc-parachain/core/internal/types"
	"github.com/btc-parachain/core/internal/vault"
)

// Engine drives the redeem protocol's state machine across the shared
// ledger, the vault registry, and the BTC-Relay's inclusion proofs.
type Engine struct {
	cfg      Config
	ledger   *state.Ledger
	vaults   *vault.Registry
	relay    verifier
	oracle   types.RateOracle
	requests map[ID]*Request
}

// NewEngine constructs a redeem Engine.
func NewEngine(cfg Config, ledger *state.Ledger, vaults *vault.Registry, rel verifier, oracle types.RateOracle) *Engine {
	return &Engine{cfg: cfg, ledger: ledger, vaults: vaults, relay: rel, oracle: oracle, requests: make(map[ID]*Request)}
}

// feePoolAccount derives the module account the protocol's redeem fees
// accumulate in, distinct per wrapped currency.
func feePoolAccount(currency types.CurrencyID) types.Address {
	buf := make([]byte, 20)
	buf[0] = 0xfc
	binary.BigEndian.PutUint32(buf[16:], uint32(currency))
	return types.MustNewAddress(types.ModulePrefix, buf)
}

// Request looks up a redeem request by ID.
func (e *Engine) Request(id ID) (*Request, bool) {
	r, ok := e.requests[id]
	return r, ok
}

// SetConfig replaces the engine's governance-controlled parameters
// (period, dust floor, fee rates, punishment fee/delay, confirmation
// floor). Per spec.md §4.3, the redeem period and punishment parameters
// in force at cancel time are whatever the current config says, not a
// snapshot taken at request-open time — so changing them here immediately
// affects every pending request's expiry and cancellation outcome.
func (e *Engine) SetConfig(cfg Config) { e.cfg = cfg }

// RequestRedeem opens a new redeem. Per spec.md §4.3 step 2, amount_wrapped
// decomposes into fee = redeem_fee_rate·amount_wrapped, inclusion_fee =
// redeem_tx_size·oracle_fee_rate, burned = amount_wrapped − fee, and
// amount_btc = burned − inclusion_fee — the amount_btc figure is what the
// dust check and the vault's actual Bitcoin payment are measured against.
// If the vault is below its pair's premium threshold, a premium is also
// computed now and carried on the request for execute_redeem to pay out.
func (e *Engine) RequestRedeem(id ID, redeemer types.Address, vaultID vault.ID, amountWrapped types.U128, btcAddress string, currentHeight uint32) (*Request, error) {
	if _, exists := e.requests[id]; exists {
		return nil, ErrRequestAlreadySettled
	}
	v, ok := e.vaults.Vault(vaultID)
	if !ok {
		return nil, vault.ErrVaultNotFound
	}
	if v.Status == vault.StatusLiquidated {
		return nil, ErrVaultLiquidated
	}

	fee, err := types.MulFixed18(types.Fixed18{U128: amountWrapped}, e.cfg.RedeemFeeRate, types.RoundDown)
	if err != nil {
		return nil, err
	}
	burned, err := amountWrapped.Sub(fee.U128)
	if err != nil {
		return nil, err
	}
	inclusionFee, err := types.NewU128FromUint64(e.cfg.RedeemTxSizeBytes).Mul(e.cfg.BitcoinFeeRatePerByte)
	if err != nil {
		return nil, err
	}
	amountBTC, err := burned.Sub(inclusionFee)
	if err != nil {
		return nil, ErrAmountBelowDustLimit
	}
	if amountBTC.Int().Uint64() < e.cfg.DustValueSatoshis {
		return nil, ErrAmountBelowDustLimit
	}

	if err := e.vaults.TryIncreaseToBeRedeemed(vaultID, burned); err != nil {
		return nil, err
	}
	if err := e.ledger.Lock(redeemer, vaultID.Pair.Wrapped, amountWrapped); err != nil {
		return nil, err
	}

	premium := types.Zero()
	belowPremium, err := e.vaults.IsVaultBelowPremiumThreshold(vaultID)
	if err != nil {
		return nil, err
	}
	if belowPremium {
		valueInCollateral, err := types.NewAmount(amountBTC, vaultID.Pair.Wrapped).Convert(vaultID.Pair.Collateral, e.oracle)
		if err != nil {
			return nil, err
		}
		p, err := types.MulFixed18(types.Fixed18{U128: valueInCollateral.Value}, e.cfg.PremiumRate, types.RoundUp)
		if err != nil {
			return nil, err
		}
		premium = p.U128
	}

	req := &Request{
		ID:            id,
		Redeemer:      redeemer,
		Vault:         vaultID,
		BTCAddress:    btcAddress,
		AmountWrapped: amountWrapped,
		Fee:           fee.U128,
		InclusionFee:  inclusionFee,
		Burned:        burned,
		AmountBTC:     amountBTC,
		Premium:       premium,
		OpenHeight:    currentHeight,
		Status:        StatusPending,
	}
	e.requests[id] = req
	return req, nil
}

// ExecuteRedeem verifies a vault's Bitcoin payment against the relay and,
// on success, burns the redeemer's locked tokens, credits the fee pool,
// releases the vault's reservation, and pays out any premium or
// liquidated-vault collateral release owed per spec.md §4.3 step 4.
func (e *Engine) ExecuteRedeem(id ID, rawTx []byte, proof relay.MerkleProof, confirmations uint32, currentParachainHeight uint32) error {
	req, ok := e.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	if req.Status != StatusPending {
		return ErrRequestAlreadySettled
	}

	tx, err := ParseTransaction(rawTx)
	if err != nil {
		return err
	}
	root, txHash, err := proof.Verify()
	if err != nil {
		return err
	}
	if root != proof.BlockHeader.MerkleRoot {
		return ErrMalformedTransaction
	}
	if txHash != tx.TxID {
		return ErrMalformedTransaction
	}
	if confirmations < e.cfg.BitcoinConfirmations {
		confirmations = e.cfg.BitcoinConfirmations
	}
	if err := e.relay.VerifyInclusion(tx.TxID, proof, confirmations, currentParachainHeight); err != nil {
		return err
	}

	v, ok := e.vaults.Vault(req.Vault)
	if !ok {
		return ErrRequestNotFound
	}
	paid, opReturn, err := scanPayment(tx, v.Wallet)
	if err != nil {
		return err
	}
	if !bytes.Equal(opReturn, req.ID[:]) {
		return ErrPaymentMismatch
	}
	if paid < req.AmountBTC.Int().Uint64() {
		return ErrInsufficientPayment
	}

	if err := e.ledger.TransferLockedToFree(req.Redeemer, feePoolAccount(req.Vault.Pair.Wrapped), req.Vault.Pair.Wrapped, req.Fee); err != nil {
		return err
	}
	if err := e.ledger.BurnLocked(req.Redeemer, req.Vault.Pair.Wrapped, req.Burned); err != nil {
		return err
	}

	if v.Status == vault.StatusLiquidated {
		if err := e.vaults.DecreaseLiquidationVaultTokens(req.Vault.Pair, req.Burned); err != nil {
			return err
		}
		payout, err := e.vaults.ReleaseLiquidatedCollateral(req.Vault, req.Burned)
		if err != nil {
			return err
		}
		if !payout.IsZero() {
			if err := e.ledger.Mint(req.Vault.Account, req.Vault.Pair.Collateral, payout); err != nil {
				return err
			}
		}
	} else if err := e.vaults.DecreaseTokens(req.Vault, req.Burned); err != nil {
		return err
	}

	if !req.Premium.IsZero() {
		if _, err := e.vaults.PayCollateralFromVault(req.Vault, req.Redeemer, req.Premium); err != nil {
			return err
		}
	}

	req.Status = StatusCompleted
	return nil
}

// CancelRedeem settles an expired, unpaid redeem request per spec.md
// §4.3's cancel_redeem. A vault that is not liquidated is always punished
// and banned for failing to pay within its period, whether the request is
// then retried or reimbursed. A liquidated vault pays no punishment;
// instead its parked liquidated_collateral moves proportionally to either
// the liquidation vault (retry) or the redeemer (reimburse).
func (e *Engine) CancelRedeem(id ID, currentHeight uint32, reimburse bool) error {
	req, ok := e.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	if req.Status != StatusPending {
		return ErrRequestAlreadySettled
	}
	if !req.Expired(currentHeight, e.cfg.Period) {
		return ErrRequestNotExpired
	}

	v, ok := e.vaults.Vault(req.Vault)
	if !ok {
		return ErrRequestNotFound
	}
	liquidated := v.Status == vault.StatusLiquidated

	if !liquidated {
		punishmentValue := types.NewAmount(req.AmountBTC, req.Vault.Pair.Wrapped)
		valueInCollateral, err := punishmentValue.Convert(req.Vault.Pair.Collateral, e.oracle)
		if err != nil {
			return err
		}
		punishment, err := types.MulFixed18(types.Fixed18{U128: valueInCollateral.Value}, e.cfg.PunishmentFee, types.RoundUp)
		if err != nil {
			return err
		}
		if _, err := e.vaults.PayCollateralFromVault(req.Vault, req.Redeemer, punishment.U128); err != nil {
			return err
		}
		if err := e.vaults.BanVault(req.Vault, currentHeight+e.cfg.PunishmentDelay); err != nil {
			return err
		}
	}

	if !reimburse {
		return e.cancelRetry(req, liquidated)
	}
	return e.cancelReimburse(req, liquidated)
}

// cancelRetry unwinds a request without reimbursement: the redeemer's
// locked tokens are released back to their free balance to retry against
// a different vault.
func (e *Engine) cancelRetry(req *Request, liquidated bool) error {
	if liquidated {
		payout, err := e.vaults.ReleaseLiquidatedCollateral(req.Vault, req.Burned)
		if err != nil {
			return err
		}
		if !payout.IsZero() {
			if err := e.vaults.CreditLiquidationVaultCollateral(req.Vault.Pair, payout); err != nil {
				return err
			}
		}
		if err := e.vaults.DecreaseLiquidationVaultToBeRedeemed(req.Vault.Pair, req.Burned); err != nil {
			return err
		}
		if err := e.ledger.Unlock(req.Redeemer, req.Vault.Pair.Wrapped, req.AmountWrapped); err != nil {
			return err
		}
	} else {
		if err := e.vaults.DecreaseToBeRedeemed(req.Vault, req.Burned); err != nil {
			return err
		}
		if err := e.ledger.Unlock(req.Redeemer, req.Vault.Pair.Wrapped, req.AmountWrapped); err != nil {
			return err
		}
	}
	req.Status = StatusRetried
	return nil
}

// cancelReimburse unwinds a request with reimbursement. amount_without_fee
// is what the redeemer is compensated in collateral; whether the vault
// can afford it while staying above its secure threshold decides whether
// the request lands as Reimbursed(true) directly or passes through the
// under-collateralized Reimbursed(false) state first.
func (e *Engine) cancelReimburse(req *Request, liquidated bool) error {
	sansFee, err := req.AmountBTC.Add(req.InclusionFee)
	if err != nil {
		return err
	}
	amountWithoutFeeInCollateral, err := types.NewAmount(sansFee, req.Vault.Pair.Wrapped).Convert(req.Vault.Pair.Collateral, e.oracle)
	if err != nil {
		return err
	}

	if liquidated {
		payout, err := e.vaults.ReleaseLiquidatedCollateral(req.Vault, req.Burned)
		if err != nil {
			return err
		}
		if !payout.IsZero() {
			if err := e.ledger.Mint(req.Redeemer, req.Vault.Pair.Collateral, payout); err != nil {
				return err
			}
		}
		if err := e.vaults.DecreaseLiquidationVaultToBeRedeemed(req.Vault.Pair, req.Burned); err != nil {
			return err
		}
		if err := e.ledger.BurnLocked(req.Redeemer, req.Vault.Pair.Wrapped, req.Burned); err != nil {
			return err
		}
		if err := e.ledger.TransferLockedToFree(req.Redeemer, feePoolAccount(req.Vault.Pair.Wrapped), req.Vault.Pair.Wrapped, req.Fee); err != nil {
			return err
		}
		req.Status = StatusReimbursedTrue
		return nil
	}

	aboveSecure, err := e.vaults.WouldRemainAboveSecureAfterPayout(req.Vault, amountWithoutFeeInCollateral.Value)
	if err != nil {
		return err
	}
	if _, err := e.vaults.PayCollateralFromVault(req.Vault, req.Redeemer, amountWithoutFeeInCollateral.Value); err != nil {
		return err
	}
	if err := e.ledger.TransferLockedToFree(req.Redeemer, feePoolAccount(req.Vault.Pair.Wrapped), req.Vault.Pair.Wrapped, req.Fee); err != nil {
		return err
	}

	if aboveSecure {
		if err := e.vaults.DecreaseToBeRedeemed(req.Vault, req.Burned); err != nil {
			return err
		}
		if err := e.ledger.TransferLockedToFree(req.Redeemer, req.Vault.Account, req.Vault.Pair.Wrapped, req.Burned); err != nil {
			return err
		}
		req.Status = StatusReimbursedTrue
		return nil
	}

	if err := e.vaults.DecreaseTokens(req.Vault, req.Burned); err != nil {
		return err
	}
	if err := e.ledger.BurnLocked(req.Redeemer, req.Vault.Pair.Wrapped, req.Burned); err != nil {
		return err
	}
	req.Status = StatusReimbursedFalse
	return nil
}

// MintTokensForReimbursedRedeem re-mints a vault's liability for a
// Reimbursed(false) request once its collateralization permits,
// transitioning it onward to the terminal Reimbursed(true) state.
func (e *Engine) MintTokensForReimbursedRedeem(id ID) error {
	req, ok := e.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	if req.Status != StatusReimbursedFalse {
		return ErrNotReimbursedPending
	}
	if err := e.vaults.MintTokensForReimbursedRedeem(req.Vault, req.Burned); err != nil {
		return err
	}
	req.Status = StatusReimbursedTrue
	return nil
}
