// Package state holds the shared free/locked balance Ledger that the
// component engines are built on. The aggregate that owns the engines is
// internal/world.World.
package state

import (
	"errors"

	"github.com/btc-parachain/core/internal/types"
)

var (
	// ErrInsufficientFree is returned when an account's free balance cannot
	// cover a debit.
	ErrInsufficientFree = errors.New("state: insufficient free balance")
	// ErrInsufficientLocked is returned when an account's locked balance
	// cannot cover a debit.
	ErrInsufficientLocked = errors.New("state: insufficient locked balance")
)

type balanceKey struct {
	addr     [20]byte
	currency types.CurrencyID
}

type balance struct {
	free   types.U128
	locked types.U128
}

// Ledger is the shared free/locked balance table used by the Vault Registry,
// Redeem engine, and Lending engine. Locking models a token reserved for a
// specific in-flight operation (a pending redeem, collateral pledged to a
// vault) without removing it from the owner's total holdings.
type Ledger struct {
	balances map[balanceKey]*balance
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[balanceKey]*balance)}
}

func (l *Ledger) key(addr types.Address, currency types.CurrencyID) balanceKey {
	var k balanceKey
	copy(k.addr[:], addr.Bytes())
	k.currency = currency
	return k
}

func (l *Ledger) entry(addr types.Address, currency types.CurrencyID) *balance {
	k := l.key(addr, currency)
	b, ok := l.balances[k]
	if !ok {
		b = &balance{free: types.Zero(), locked: types.Zero()}
		l.balances[k] = b
	}
	return b
}

// Free returns an account's free (unlocked, spendable) balance.
func (l *Ledger) Free(addr types.Address, currency types.CurrencyID) types.U128 {
	return l.entry(addr, currency).free
}

// Locked returns an account's locked balance.
func (l *Ledger) Locked(addr types.Address, currency types.CurrencyID) types.U128 {
	return l.entry(addr, currency).locked
}

// Mint credits newly created tokens to an account's free balance.
func (l *Ledger) Mint(addr types.Address, currency types.CurrencyID, amount types.U128) error {
	e := l.entry(addr, currency)
	v, err := e.free.Add(amount)
	if err != nil {
		return err
	}
	e.free = v
	return nil
}

// BurnLocked destroys tokens from an account's locked balance (used by
// redeem execution, which burns previously-locked wrapped tokens).
func (l *Ledger) BurnLocked(addr types.Address, currency types.CurrencyID, amount types.U128) error {
	e := l.entry(addr, currency)
	v, err := e.locked.Sub(amount)
	if err != nil {
		return ErrInsufficientLocked
	}
	e.locked = v
	return nil
}

// BurnFree destroys tokens from an account's free balance.
func (l *Ledger) BurnFree(addr types.Address, currency types.CurrencyID, amount types.U128) error {
	e := l.entry(addr, currency)
	v, err := e.free.Sub(amount)
	if err != nil {
		return ErrInsufficientFree
	}
	e.free = v
	return nil
}

// Lock moves amount from an account's free balance into its locked balance.
func (l *Ledger) Lock(addr types.Address, currency types.CurrencyID, amount types.U128) error {
	e := l.entry(addr, currency)
	free, err := e.free.Sub(amount)
	if err != nil {
		return ErrInsufficientFree
	}
	locked, err := e.locked.Add(amount)
	if err != nil {
		return err
	}
	e.free, e.locked = free, locked
	return nil
}

// Unlock moves amount from an account's locked balance back to its free
// balance.
func (l *Ledger) Unlock(addr types.Address, currency types.CurrencyID, amount types.U128) error {
	e := l.entry(addr, currency)
	locked, err := e.locked.Sub(amount)
	if err != nil {
		return ErrInsufficientLocked
	}
	free, err := e.free.Add(amount)
	if err != nil {
		return err
	}
	e.locked, e.free = locked, free
	return nil
}

// TransferLockedToFree moves amount out of from's locked balance into to's
// free balance — the shape used when a redeemer's locked wrapped tokens
// move to the fee pool (the redeem fee), or to a vault's free balance on a
// cancelled-redeem reimbursement.
func (l *Ledger) TransferLockedToFree(from, to types.Address, currency types.CurrencyID, amount types.U128) error {
	if err := l.BurnLocked(from, currency, amount); err != nil {
		return err
	}
	return l.Mint(to, currency, amount)
}

// TransferFreeToFree moves amount between two accounts' free balances.
func (l *Ledger) TransferFreeToFree(from, to types.Address, currency types.CurrencyID, amount types.U128) error {
	if err := l.BurnFree(from, currency, amount); err != nil {
		return err
	}
	return l.Mint(to, currency, amount)
}

// TransferLockedToLocked moves amount between two accounts' locked
// balances without ever becoming spendable in between (used when a
// cancelled redeem's burned amount moves from the user's locked wrapped
// balance directly into the vault's free balance is handled by
// TransferLockedToFree instead; this variant exists for collateral moves
// between locked pools, e.g. vault collateral reserved for to_be_redeemed
// moving to the liquidation vault's locked collateral on liquidate_vault).
func (l *Ledger) TransferLockedToLocked(from, to types.Address, currency types.CurrencyID, amount types.U128) error {
	if err := l.BurnLocked(from, currency, amount); err != nil {
		return err
	}
	e := l.entry(to, currency)
	v, err := e.locked.Add(amount)
	if err != nil {
		return err
	}
	e.locked = v
	return nil
}
