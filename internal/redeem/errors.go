package redeem

import "errors"

var (
	// ErrRequestNotFound is returned for an unknown redeem ID.
	ErrRequestNotFound = errors.New("redeem: request not found")
	// ErrAmountBelowDustLimit is returned when a requested amount is too
	// small to produce a spendable Bitcoin output.
	ErrAmountBelowDustLimit = errors.New("redeem: amount below dust limit")
	// ErrRequestAlreadySettled is returned when execute/cancel targets a
	// request that is no longer pending.
	ErrRequestAlreadySettled = errors.New("redeem: request already settled")
	// ErrRequestNotExpired is returned by CancelRedeem before the
	// configured period has elapsed.
	ErrRequestNotExpired = errors.New("redeem: request has not expired")
	// ErrUnauthorizedRedeemer names a caller acting on a request that is not
	// theirs. Engine methods take no caller argument and do not return it.
	ErrUnauthorizedRedeemer = errors.New("redeem: caller does not own this request")
	// ErrPaymentMismatch is returned when a submitted Bitcoin transaction's
	// OP_RETURN payload does not reference this request.
	ErrPaymentMismatch = errors.New("redeem: payment does not reference this request")
	// ErrInsufficientPayment is returned when the amount paid to the
	// vault's wallet falls short of the requested amount.
	ErrInsufficientPayment = errors.New("redeem: insufficient Bitcoin payment")
	// ErrNoOpReturn is returned when a payment transaction carries no
	// OP_RETURN output at all.
	ErrNoOpReturn = errors.New("redeem: transaction has no OP_RETURN output")
	// ErrMultipleOpReturns is returned when a payment transaction carries
	// more than one OP_RETURN output, which this protocol's accepted
	// transaction shape forbids.
	ErrMultipleOpReturns = errors.New("redeem: transaction has multiple OP_RETURN outputs")
	// ErrMalformedTransaction is returned when the raw Bitcoin transaction
	// bytes cannot be parsed.
	ErrMalformedTransaction = errors.New("redeem: malformed bitcoin transaction")
	// ErrVaultLiquidated is returned by RequestRedeem when the target
	// vault has already been liquidated; new requests may not open
	// against it, though requests already in flight at liquidation time
	// still settle through it.
	ErrVaultLiquidated = errors.New("redeem: vault is liquidated")
	// ErrNotReimbursedPending is returned by MintTokensForReimbursedRedeem
	// when the target request is not in the StatusReimbursedFalse state.
	ErrNotReimbursedPending = errors.New("redeem: request is not pending re-mint")
)
