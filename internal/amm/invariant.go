package amm

import "math/big"

// ErrNonConvergence is returned when a Newton iteration fails to settle
// within the allotted iteration budget.
type nonConvergenceError string

func (e nonConvergenceError) Error() string { return string(e) }

// ErrNonConvergence is returned by GetD/GetY if 255 iterations do not bring
// the successive approximations within one unit of each other.
const ErrNonConvergence = nonConvergenceError("amm: invariant solver did not converge")

const maxIterations = 255

// GetD solves the stable-swap invariant for D given the pool's scaled
// balances xp and amplification coefficient amp, via Newton's method. xp
// must already be expressed in the pool's common 18-decimal representation.
func GetD(xp []*big.Int, amp *big.Int) (*big.Int, error) {
	n := int64(len(xp))
	nBig := big.NewInt(n)

	s := big.NewInt(0)
	for _, x := range xp {
		s.Add(s, x)
	}
	if s.Sign() == 0 {
		return big.NewInt(0), nil
	}

	ann := new(big.Int).Mul(amp, nBig)
	d := new(big.Int).Set(s)

	for i := 0; i < maxIterations; i++ {
		dP := new(big.Int).Set(d)
		for _, x := range xp {
			denom := new(big.Int).Mul(nBig, x)
			dP.Mul(dP, d)
			dP.Quo(dP, denom)
		}
		dPrev := new(big.Int).Set(d)

		num := new(big.Int).Mul(ann, s)
		num.Add(num, new(big.Int).Mul(dP, nBig))
		num.Mul(num, d)

		den := new(big.Int).Sub(ann, big.NewInt(1))
		den.Mul(den, d)
		den.Add(den, new(big.Int).Mul(big.NewInt(n+1), dP))

		if den.Sign() == 0 {
			return nil, ErrNonConvergence
		}
		d.Quo(num, den)

		diff := new(big.Int).Sub(d, dPrev)
		diff.Abs(diff)
		if diff.Cmp(big.NewInt(1)) <= 0 {
			return d, nil
		}
	}
	return nil, ErrNonConvergence
}

// GetYGivenD solves for the scaled balance of token i that would make the
// invariant equal D, holding every other token's balance at its xp value —
// the inverse direction used by one-coin withdrawal, where D is reduced
// first and then a single slot absorbs the whole change.
func GetYGivenD(i int, xp []*big.Int, d, amp *big.Int) (*big.Int, error) {
	n := int64(len(xp))
	nBig := big.NewInt(n)
	ann := new(big.Int).Mul(amp, nBig)

	c := new(big.Int).Set(d)
	s := big.NewInt(0)
	for k, xk := range xp {
		if k == i {
			continue
		}
		s.Add(s, xk)
		c.Mul(c, d)
		c.Quo(c, new(big.Int).Mul(xk, nBig))
	}
	c.Mul(c, d)
	c.Quo(c, new(big.Int).Mul(ann, nBig))

	b := new(big.Int).Add(s, new(big.Int).Quo(d, ann))

	y := new(big.Int).Set(d)
	for iter := 0; iter < maxIterations; iter++ {
		yPrev := new(big.Int).Set(y)

		num := new(big.Int).Mul(y, y)
		num.Add(num, c)

		den := new(big.Int).Mul(big.NewInt(2), y)
		den.Add(den, b)
		den.Sub(den, d)
		if den.Sign() == 0 {
			return nil, ErrNonConvergence
		}
		y.Quo(num, den)

		diff := new(big.Int).Sub(y, yPrev)
		diff.Abs(diff)
		if diff.Cmp(big.NewInt(1)) <= 0 {
			return y, nil
		}
	}
	return nil, ErrNonConvergence
}

// GetY solves for the new balance of token j given that token i's scaled
// balance becomes x, holding the invariant D constant. i and j must differ
// and both be valid indices into xp.
func GetY(i, j int, x *big.Int, xp []*big.Int, amp *big.Int) (*big.Int, error) {
	n := int64(len(xp))
	nBig := big.NewInt(n)

	d, err := GetD(xp, amp)
	if err != nil {
		return nil, err
	}
	ann := new(big.Int).Mul(amp, nBig)

	c := new(big.Int).Set(d)
	sSum := big.NewInt(0)
	for k := 0; k < len(xp); k++ {
		var xk *big.Int
		switch {
		case k == i:
			xk = x
		case k == j:
			continue
		default:
			xk = xp[k]
		}
		sSum.Add(sSum, xk)
		c.Mul(c, d)
		c.Quo(c, new(big.Int).Mul(xk, nBig))
	}
	c.Mul(c, d)
	c.Quo(c, new(big.Int).Mul(ann, nBig))

	b := new(big.Int).Add(sSum, new(big.Int).Quo(d, ann))

	y := new(big.Int).Set(d)
	for iter := 0; iter < maxIterations; iter++ {
		yPrev := new(big.Int).Set(y)

		num := new(big.Int).Mul(y, y)
		num.Add(num, c)

		den := new(big.Int).Mul(big.NewInt(2), y)
		den.Add(den, b)
		den.Sub(den, d)
		if den.Sign() == 0 {
			return nil, ErrNonConvergence
		}
		y.Quo(num, den)

		diff := new(big.Int).Sub(y, yPrev)
		diff.Abs(diff)
		if diff.Cmp(big.NewInt(1)) <= 0 {
			return y, nil
		}
	}
	return nil, ErrNonConvergence
}
