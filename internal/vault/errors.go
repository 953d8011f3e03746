package vault

import "errors"

var (
	// ErrVaultAlreadyRegistered is returned by Register for an account that
	// already has a vault in the given pair.
	ErrVaultAlreadyRegistered = errors.New("vault: already registered")
	// ErrVaultNotFound is returned when an operation targets an unknown
	// vault ID.
	ErrVaultNotFound = errors.New("vault: not found")
	// ErrInsufficientCollateral is returned when a vault's free collateral
	// cannot cover a withdrawal or a new issue reservation.
	ErrInsufficientCollateral = errors.New("vault: insufficient free collateral")
	// ErrCurrencyCeilingExceeded is returned when a new issue reservation
	// would push a pair's total issued+to_be_issued past its system
	// collateral ceiling.
	ErrCurrencyCeilingExceeded = errors.New("vault: system collateral ceiling exceeded")
	// ErrInsufficientTokensCommitted is returned when a decrease or redeem
	// operation exceeds a vault's to_be_issued or to_be_redeemed reservation.
	ErrInsufficientTokensCommitted = errors.New("vault: insufficient tokens committed")
	// ErrVaultBanned is returned when an issue request targets a vault
	// still serving a ban set by BanVault.
	ErrVaultBanned = errors.New("vault: banned")
	// ErrVaultNotBelowLiquidationThreshold is returned by LiquidateVault
	// when the target is not actually under-collateralized.
	ErrVaultNotBelowLiquidationThreshold = errors.New("vault: not below liquidation threshold")
	// ErrVaultAlreadyLiquidated guards against double-liquidation.
	ErrVaultAlreadyLiquidated = errors.New("vault: already liquidated")
	// ErrBelowMinimumCollateral is returned when a deposit or withdrawal
	// would leave total vault collateral below the pair's configured floor.
	ErrBelowMinimumCollateral = errors.New("vault: below minimum collateral")
	// ErrUnknownPair is returned for an operation against an unconfigured
	// currency pair.
	ErrUnknownPair = errors.New("vault: unknown currency pair")
)
