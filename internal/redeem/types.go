// Package redeem implements the burn-then-pay BTC redemption protocol: a
// user locks wrapped tokens, a vault pays out real Bitcoin, and the
// protocol verifies that payment against the BTC-Relay before releasing
// the locked tokens.
package redeem

import (
	"github.com/btc-parachain/core/internal/relay"
	"github.com/btc-parachain/core/internal/types"
	"github.com/btc-parachain/core/internal/vault"
)

// Status is the lifecycle state of a redeem request.
type Status uint8

const (
	// StatusPending is a request awaiting a Bitcoin payment.
	StatusPending Status = iota
	// StatusCompleted is a request whose Bitcoin payment has been
	// verified and whose locked tokens have been burned.
	StatusCompleted
	// StatusRetried is a request cancelled without reimbursement — the
	// redeemer's locked tokens are released back to their free balance to
	// retry against a different vault.
	StatusRetried
	// StatusReimbursedFalse is a request cancelled with reimbursement
	// whose backing vault was under-collateralized at the time: the
	// redeemer was paid out in collateral and the vault's tokens were
	// burned, but the vault's issuance liability has not yet been
	// restored. MintTokensForReimbursedRedeem transitions it onward to
	// StatusReimbursedTrue.
	StatusReimbursedFalse
	// StatusReimbursedTrue is a reimbursed request whose vault's issuance
	// liability has been restored (either immediately, because the vault
	// remained above its secure threshold, or later via
	// MintTokensForReimbursedRedeem). This is the terminal reimbursed state.
	StatusReimbursedTrue
)

// ID identifies a single redeem request; it also doubles as the OP_RETURN
// payload a redeeming vault must embed in its Bitcoin payment so the
// payment can be attributed to this request.
type ID [32]byte

// Request is one in-flight or settled redeem. Per spec.md §4.3 step 2, the
// single amount_wrapped the redeemer locks decomposes into a redeem fee,
// a Bitcoin inclusion fee, and the amount actually paid out on Bitcoin:
// AmountWrapped = Burned + Fee, and Burned = AmountBTC + InclusionFee.
type Request struct {
	ID ID

	Redeemer   types.Address
	Vault      vault.ID
	BTCAddress string

	// AmountWrapped is the gross amount the redeemer locked when opening
	// the request.
	AmountWrapped types.U128
	// Fee is the protocol's redeem fee, carved out of AmountWrapped and
	// routed to the fee pool on settlement.
	Fee types.U128
	// InclusionFee is the Bitcoin miner fee the vault is expected to pay
	// making its payment, quoted in wrapped units and deducted from
	// Burned to give AmountBTC.
	InclusionFee types.U128
	// Burned is AmountWrapped - Fee: the amount whose backing the vault's
	// issued/to_be_redeemed counters carry, and what gets burned or
	// returned to the vault as the request settles.
	Burned types.U128
	// AmountBTC is Burned - InclusionFee: the exact satoshi amount the
	// vault must pay to BTCAddress.
	AmountBTC types.U128
	// Premium is additional collateral, computed at request time, that
	// the vault must pay the redeemer on execution if the vault was below
	// its pair's premium threshold when the request was opened.
	Premium types.U128

	// OpenHeight is recorded only as the epoch expiry is measured from;
	// the period itself is deliberately NOT snapshotted onto the request
	// (see Request.Expired).
	OpenHeight uint32

	Status Status
}

// Expired reports whether period parachain blocks have elapsed since the
// request was opened, evaluated against the period given, not one stored
// on the request — spec.md §4.3 requires the *current* redeem_period
// setting at cancel time, so governance can tighten or loosen the limit
// for requests already in flight.
func (r *Request) Expired(currentHeight, period uint32) bool {
	return currentHeight >= r.OpenHeight+period
}

// Config holds the governance-set parameters of the redeem protocol.
type Config struct {
	// Period is the number of parachain blocks a vault has to pay out a
	// redeem before it can be cancelled.
	Period uint32
	// DustValueSatoshis is the minimum acceptable amount_btc for a new
	// redeem request, mirroring Bitcoin's own anti-dust policy.
	DustValueSatoshis uint64
	// RedeemFeeRate is the fraction of amount_wrapped carved out as the
	// protocol's redeem fee on every request.
	RedeemFeeRate types.Fixed18
	// BitcoinFeeRatePerByte is the governance-fed proxy for the live
	// Bitcoin network fee rate (satoshis per byte) used to price the
	// inclusion fee a vault must spend making its payment.
	BitcoinFeeRatePerByte types.U128
	// RedeemTxSizeBytes is the assumed size of a vault's redeem payment
	// transaction, used with BitcoinFeeRatePerByte to compute the
	// inclusion fee.
	RedeemTxSizeBytes uint64
	// PremiumRate is the collateral-currency premium factor paid by a
	// vault on top of its normal redeem payout when the vault is below
	// its pair's premium threshold at request time.
	PremiumRate types.Fixed18
	// PunishmentFee is the collateral-currency compensation factor paid
	// to a redeemer when a vault fails to service their request within
	// its period, regardless of whether the request is then retried or
	// reimbursed.
	PunishmentFee types.Fixed18
	// PunishmentDelay is the number of parachain blocks a vault is barred
	// from accepting new issue reservations after a cancelled redeem is
	// punished against it.
	PunishmentDelay uint32
	// BitcoinConfirmations is the number of confirmations ExecuteRedeem
	// requires on top of the relay's own stable-confirmation floor.
	BitcoinConfirmations uint32
}

// verifier is the subset of *relay.Store's read surface ExecuteRedeem
// needs, named narrowly so tests can substitute a fake.
type verifier interface {
	VerifyInclusion(txID relay.Hash, proof relay.MerkleProof, confirmations uint32, currentParachainHeight uint32) error
}
