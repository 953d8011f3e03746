package types

import "errors"

// ErrInvalidCurrency is returned whenever an operation mixes Amounts of
// differing currencies without going through Convert.
var ErrInvalidCurrency = errors.New("types: invalid currency for operation")

// CurrencyID identifies a scalar's denomination. Currency zero is reserved
// and never assigned.
type CurrencyID uint32

// Amount pairs a checked scalar with the currency it is denominated in. All
// cross-currency arithmetic must go through Convert.
type Amount struct {
	Value    U128
	Currency CurrencyID
}

// NewAmount constructs an Amount.
func NewAmount(value U128, currency CurrencyID) Amount {
	return Amount{Value: value, Currency: currency}
}

// Add adds two same-currency amounts.
func (a Amount) Add(o Amount) (Amount, error) {
	if a.Currency != o.Currency {
		return Amount{}, ErrInvalidCurrency
	}
	v, err := a.Value.Add(o.Value)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: v, Currency: a.Currency}, nil
}

// Sub subtracts two same-currency amounts.
func (a Amount) Sub(o Amount) (Amount, error) {
	if a.Currency != o.Currency {
		return Amount{}, ErrInvalidCurrency
	}
	v, err := a.Value.Sub(o.Value)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: v, Currency: a.Currency}, nil
}

// RateOracle supplies the exchange rate used by Convert. Rate(from, to)
// returns a Fixed18 multiplier such that amount_to = amount_from * rate.
type RateOracle interface {
	Rate(from, to CurrencyID) (Fixed18, error)
}

// Convert converts an Amount into a different currency via the supplied
// oracle, the only sanctioned path between currencies per the Amount
// invariant in §3 of the spec.
func (a Amount) Convert(to CurrencyID, oracle RateOracle) (Amount, error) {
	if a.Currency == to {
		return a, nil
	}
	if oracle == nil {
		return Amount{}, ErrInvalidCurrency
	}
	rate, err := oracle.Rate(a.Currency, to)
	if err != nil {
		return Amount{}, err
	}
	scaled, err := MulFixed18(Fixed18{a.Value}, rate, RoundDown)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: scaled.U128, Currency: to}, nil
}
