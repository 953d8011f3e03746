// Package types provides the scalar, currency, and amount primitives shared
// by every component: fixed-width checked arithmetic, currency-tagged
// amounts, and account addresses.
package types

import (
	"errors"
	"math/big"
)

var (
	// ErrOverflow is returned by any checked arithmetic operation whose
	// result would exceed the 128-bit unsigned range.
	ErrOverflow = errors.New("types: arithmetic overflow")
	// ErrUnderflow is returned by any checked subtraction that would go
	// negative.
	ErrUnderflow = errors.New("types: arithmetic underflow")
	// ErrDivideByZero guards checked division.
	ErrDivideByZero = errors.New("types: division by zero")
)

var u128Bound = new(big.Int).Lsh(big.NewInt(1), 128)

// U128 is a checked 128-bit unsigned integer. The zero value is a valid
// representation of zero. All mutating methods return a new value; U128
// never aliases the caller's big.Int.
type U128 struct {
	v *big.Int
}

// Zero returns the zero U128.
func Zero() U128 { return U128{v: big.NewInt(0)} }

// NewU128FromUint64 constructs a U128 from a uint64.
func NewU128FromUint64(x uint64) U128 {
	return U128{v: new(big.Int).SetUint64(x)}
}

// NewU128FromBigInt constructs a checked U128 from a big.Int, validating the
// range.
func NewU128FromBigInt(x *big.Int) (U128, error) {
	if x == nil {
		return Zero(), nil
	}
	if x.Sign() < 0 {
		return U128{}, ErrUnderflow
	}
	if x.Cmp(u128Bound) >= 0 {
		return U128{}, ErrOverflow
	}
	return U128{v: new(big.Int).Set(x)}, nil
}

// Int returns a defensive copy of the underlying big.Int.
func (u U128) Int() *big.Int {
	if u.v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(u.v)
}

// Sign returns -1, 0, or 1.
func (u U128) Sign() int {
	if u.v == nil {
		return 0
	}
	return u.v.Sign()
}

// Cmp compares two U128 values.
func (u U128) Cmp(o U128) int { return u.Int().Cmp(o.Int()) }

// IsZero reports whether u is zero.
func (u U128) IsZero() bool { return u.Sign() == 0 }

// Add computes a checked addition.
func (u U128) Add(o U128) (U128, error) {
	sum := new(big.Int).Add(u.Int(), o.Int())
	return NewU128FromBigInt(sum)
}

// Sub computes a checked subtraction; underflow is reported rather than
// wrapping, matching the "all arithmetic is checked" data-model invariant.
func (u U128) Sub(o U128) (U128, error) {
	diff := new(big.Int).Sub(u.Int(), o.Int())
	if diff.Sign() < 0 {
		return U128{}, ErrUnderflow
	}
	return NewU128FromBigInt(diff)
}

// SaturatingSub computes a subtraction that floors at zero instead of
// erroring — used where the spec calls for saturating subtraction (e.g.
// lending's total_borrows bookkeeping).
func (u U128) SaturatingSub(o U128) U128 {
	diff := new(big.Int).Sub(u.Int(), o.Int())
	if diff.Sign() < 0 {
		return Zero()
	}
	out, _ := NewU128FromBigInt(diff)
	return out
}

// Mul computes a checked multiplication.
func (u U128) Mul(o U128) (U128, error) {
	prod := new(big.Int).Mul(u.Int(), o.Int())
	return NewU128FromBigInt(prod)
}

// Quo computes checked integer division (floor).
func (u U128) Quo(o U128) (U128, error) {
	if o.Sign() == 0 {
		return U128{}, ErrDivideByZero
	}
	quo := new(big.Int).Quo(u.Int(), o.Int())
	return NewU128FromBigInt(quo)
}

// Min returns the smaller of two U128 values.
func Min(a, b U128) U128 {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// Max returns the larger of two U128 values.
func Max(a, b U128) U128 {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// fixed18Scale is the implicit denominator of all Fixed18 values (U128.18).
var fixed18Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Fixed18 is a U128 interpreted with 18 implicit decimal places, used for
// exchange rates, fee factors, and interest indices throughout the spec.
type Fixed18 struct{ U128 }

// OneFixed18 is the fixed-point representation of 1.0.
func OneFixed18() Fixed18 {
	v, _ := NewU128FromBigInt(fixed18Scale)
	return Fixed18{v}
}

// NewFixed18FromBigInt wraps a raw scaled big.Int as Fixed18.
func NewFixed18FromBigInt(x *big.Int) (Fixed18, error) {
	v, err := NewU128FromBigInt(x)
	if err != nil {
		return Fixed18{}, err
	}
	return Fixed18{v}, nil
}

// MulFixed18 multiplies two Fixed18 values with rounding performed by round.
func MulFixed18(a, b Fixed18, round func(num, den *big.Int) *big.Int) (Fixed18, error) {
	num := new(big.Int).Mul(a.Int(), b.Int())
	result := round(num, fixed18Scale)
	return NewFixed18FromBigInt(result)
}

// DivFixed18 divides two Fixed18 values with rounding performed by round.
func DivFixed18(a, b Fixed18, round func(num, den *big.Int) *big.Int) (Fixed18, error) {
	if b.IsZero() {
		return Fixed18{}, ErrDivideByZero
	}
	num := new(big.Int).Mul(a.Int(), fixed18Scale)
	result := round(num, b.Int())
	return NewFixed18FromBigInt(result)
}

// RoundDown performs floor division (never benefits the rounding party).
func RoundDown(num, den *big.Int) *big.Int {
	return new(big.Int).Quo(num, den)
}

// RoundUp performs ceiling division — used for borrower-side debt
// recomputation so that borrowers never benefit from rounding, per §4.4.
func RoundUp(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
