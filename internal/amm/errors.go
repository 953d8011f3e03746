package amm

import "errors"

var (
	// ErrPoolNotFound is returned for an operation against an unknown pool.
	ErrPoolNotFound = errors.New("amm: pool not found")
	// ErrPoolAlreadyExists guards against re-adding a pool.
	ErrPoolAlreadyExists = errors.New("amm: pool already exists")
	// ErrWrongCoinCount is returned when a liquidity operation's amount
	// slice does not match the pool's token count.
	ErrWrongCoinCount = errors.New("amm: wrong number of coin amounts")
	// ErrInitialDepositIncomplete is returned when a pool's first deposit
	// omits one of its tokens.
	ErrInitialDepositIncomplete = errors.New("amm: initial deposit must supply every token")
	// ErrInvalidIndex is returned for an out-of-range token index.
	ErrInvalidIndex = errors.New("amm: invalid token index")
	// ErrSameIndex is returned when a swap's input and output index match.
	ErrSameIndex = errors.New("amm: swap input and output index must differ")
	// ErrSlippage is returned when a computed output falls below the
	// caller's minimum.
	ErrSlippage = errors.New("amm: output below minimum")
	// ErrInsufficientLPTokens is returned when a withdrawal burns more LP
	// tokens than the caller holds.
	ErrInsufficientLPTokens = errors.New("amm: insufficient LP token balance")
	// ErrZeroLPSupply is returned when an operation needing a priced pool
	// is attempted before any liquidity has been deposited.
	ErrZeroLPSupply = errors.New("amm: pool has no LP supply")
	// ErrRampTooSoon is returned when ramp_a is called before MinRampTime
	// has elapsed since the last ramp began.
	ErrRampTooSoon = errors.New("amm: ramp_a called too soon after the previous ramp")
	// ErrAOutOfRange is returned when a ramp_a target falls outside [1, MaxA].
	ErrAOutOfRange = errors.New("amm: amplification target out of range")
	// ErrAChangeTooLarge is returned when a ramp_a target changes A by more
	// than MaxAChangeFactor in either direction.
	ErrAChangeTooLarge = errors.New("amm: amplification change too large")
	// ErrFeeOutOfRange is returned when SetFees is called with a fee or
	// admin-fee fraction outside [0, MaxSwapFee]/[0, MaxAdminFee].
	ErrFeeOutOfRange = errors.New("amm: fee fraction out of range")
)
