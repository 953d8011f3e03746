package amm

import (
	"encoding/binary"
	"hash/fnv"
	"math/big"

	"github.com/btc-parachain/core/internal/state"
	"github.com/btc-parachain/core/internal/types"
)

// Engine holds every stable-swap pool and routes liquidity and swap
// operations against the shared ledger.
type Engine struct {
	ledger *state.Ledger
	pools  map[string]*Pool
	metas  map[string]*MetaPool
}

// NewEngine constructs an empty AMM Engine.
func NewEngine(ledger *state.Ledger) *Engine {
	return &Engine{ledger: ledger, pools: make(map[string]*Pool), metas: make(map[string]*MetaPool)}
}

// AddPool registers a base pool under id.
func (e *Engine) AddPool(id string, p *Pool) error {
	if _, exists := e.pools[id]; exists {
		return ErrPoolAlreadyExists
	}
	e.pools[id] = p
	return nil
}

// AddMetaPool registers a meta pool under id; basePoolID must already be
// registered as a base pool. The meta pool's embedded 2-asset [meta token,
// base LP token] Pool is also registered under id in the base-pool table,
// so Swap(id, ...) can drive the meta-level leg of SwapUnderlying the same
// way it drives any other pool.
func (e *Engine) AddMetaPool(id string, mp *MetaPool) error {
	if _, exists := e.metas[id]; exists {
		return ErrPoolAlreadyExists
	}
	if _, exists := e.pools[id]; exists {
		return ErrPoolAlreadyExists
	}
	if _, ok := e.pools[mp.BasePoolID]; !ok {
		return ErrPoolNotFound
	}
	e.metas[id] = mp
	e.pools[id] = &mp.Pool
	return nil
}

// Pool returns a base pool by id.
func (e *Engine) Pool(id string) (*Pool, bool) {
	p, ok := e.pools[id]
	return p, ok
}

// MetaPool returns a meta pool by id.
func (e *Engine) MetaPool(id string) (*MetaPool, bool) {
	mp, ok := e.metas[id]
	return mp, ok
}

// poolAccount derives the module account a pool's slot reserve is held
// under — distinct per pool id and slot index so different pools never
// share a reserve account.
func poolAccount(poolID string, index int) types.Address {
	h := fnv.New64a()
	_, _ = h.Write([]byte(poolID))
	sum := h.Sum64()
	buf := make([]byte, 20)
	binary.BigEndian.PutUint64(buf[8:16], sum)
	binary.BigEndian.PutUint32(buf[16:], uint32(index))
	return types.MustNewAddress(types.ModulePrefix, buf)
}

func rawFromScaled(scaled, multiplier *big.Int) types.U128 {
	v := new(big.Int).Quo(scaled, multiplier)
	out, err := types.NewU128FromBigInt(v)
	if err != nil {
		return types.Zero()
	}
	return out
}

// imbalanceFeeFraction is the per-slot fee applied during add/remove
// liquidity: fee * n / (4*(n-1)), scaled like Fee against FeeDenominator.
func imbalanceFeeFraction(fee *big.Int, n int) *big.Int {
	if n <= 1 {
		return big.NewInt(0)
	}
	f := new(big.Int).Mul(fee, big.NewInt(int64(n)))
	f.Quo(f, big.NewInt(int64(4*(n-1))))
	return f
}

// AddLiquidity deposits amounts (one per pool token, in token-raw units)
// and mints LP tokens at the pool's current exchange rate. The pool's very
// first deposit must supply every token and mints D1 LP with no fee.
func (e *Engine) AddLiquidity(poolID string, provider types.Address, amounts []types.U128, minMintAmount types.U128, now int64) (types.U128, error) {
	p, ok := e.pools[poolID]
	if !ok {
		return types.U128{}, ErrPoolNotFound
	}
	n := p.N()
	if len(amounts) != n {
		return types.U128{}, ErrWrongCoinCount
	}
	amp := p.A(now)
	xp := p.scaledBalances()
	isInitial := p.LPSupply.IsZero()

	var d0 *big.Int
	var err error
	if !isInitial {
		d0, err = GetD(xp, amp)
		if err != nil {
			return types.U128{}, err
		}
	}

	newXp := make([]*big.Int, n)
	for i, amt := range amounts {
		if isInitial && amt.IsZero() {
			return types.U128{}, ErrInitialDepositIncomplete
		}
		scaled := new(big.Int).Mul(amt.Int(), p.Multipliers[i])
		newXp[i] = new(big.Int).Add(xp[i], scaled)
	}

	var mintAmount types.U128
	finalXp := newXp
	adminFeeScaled := make([]*big.Int, n)
	for i := range adminFeeScaled {
		adminFeeScaled[i] = big.NewInt(0)
	}

	if isInitial {
		d1, err := GetD(newXp, amp)
		if err != nil {
			return types.U128{}, err
		}
		mintAmount, err = types.NewU128FromBigInt(d1)
		if err != nil {
			return types.U128{}, err
		}
	} else {
		d1, err := GetD(newXp, amp)
		if err != nil {
			return types.U128{}, err
		}
		feeFrac := imbalanceFeeFraction(p.Fee, n)
		adjusted := make([]*big.Int, n)
		for i := range newXp {
			ideal := new(big.Int).Mul(xp[i], d1)
			ideal.Quo(ideal, d0)
			diff := new(big.Int).Sub(newXp[i], ideal)
			diff.Abs(diff)
			fee := new(big.Int).Mul(diff, feeFrac)
			fee.Quo(fee, FeeDenominator)
			adjusted[i] = new(big.Int).Sub(newXp[i], fee)
			adminFeeScaled[i] = new(big.Int).Mul(fee, p.AdminFee)
			adminFeeScaled[i].Quo(adminFeeScaled[i], FeeDenominator)
		}
		d2, err := GetD(adjusted, amp)
		if err != nil {
			return types.U128{}, err
		}
		num := new(big.Int).Sub(d2, d0)
		num.Mul(num, p.LPSupply.Int())
		num.Quo(num, d0)
		mintAmount, err = types.NewU128FromBigInt(num)
		if err != nil {
			return types.U128{}, err
		}
		finalXp = adjusted
	}

	if mintAmount.Cmp(minMintAmount) < 0 {
		return types.U128{}, ErrSlippage
	}

	for i, amt := range amounts {
		if amt.IsZero() {
			continue
		}
		if err := e.ledger.TransferFreeToFree(provider, poolAccount(poolID, i), p.CurrencyIDs[i], amt); err != nil {
			return types.U128{}, err
		}
	}
	for i := range finalXp {
		p.Balances[i] = rawFromScaled(finalXp[i], p.Multipliers[i])
		if adminFeeScaled[i].Sign() > 0 {
			chunk := rawFromScaled(adminFeeScaled[i], p.Multipliers[i])
			p.AdminBalances[i], _ = p.AdminBalances[i].Add(chunk)
		}
	}
	p.LPSupply, err = p.LPSupply.Add(mintAmount)
	if err != nil {
		return types.U128{}, err
	}
	if err := e.ledger.Mint(provider, p.LPTokenID, mintAmount); err != nil {
		return types.U128{}, err
	}
	return mintAmount, nil
}

// RemoveLiquidity burns lpAmount LP tokens for a proportional share of
// every pool token, charging no fee.
func (e *Engine) RemoveLiquidity(poolID string, provider types.Address, lpAmount types.U128, minAmounts []types.U128, now int64) ([]types.U128, error) {
	p, ok := e.pools[poolID]
	if !ok {
		return nil, ErrPoolNotFound
	}
	n := p.N()
	if len(minAmounts) != n {
		return nil, ErrWrongCoinCount
	}
	if e.ledger.Free(provider, p.LPTokenID).Cmp(lpAmount) < 0 {
		return nil, ErrInsufficientLPTokens
	}
	if p.LPSupply.Cmp(lpAmount) < 0 {
		return nil, ErrInsufficientLPTokens
	}

	out := make([]types.U128, n)
	for i := 0; i < n; i++ {
		amt := new(big.Int).Mul(p.Balances[i].Int(), lpAmount.Int())
		amt.Quo(amt, p.LPSupply.Int())
		v, err := types.NewU128FromBigInt(amt)
		if err != nil {
			return nil, err
		}
		if v.Cmp(minAmounts[i]) < 0 {
			return nil, ErrSlippage
		}
		out[i] = v
	}

	if err := e.ledger.BurnFree(provider, p.LPTokenID, lpAmount); err != nil {
		return nil, err
	}
	newSupply, err := p.LPSupply.Sub(lpAmount)
	if err != nil {
		return nil, err
	}
	p.LPSupply = newSupply
	for i := 0; i < n; i++ {
		if out[i].IsZero() {
			continue
		}
		if err := e.ledger.TransferFreeToFree(poolAccount(poolID, i), provider, p.CurrencyIDs[i], out[i]); err != nil {
			return nil, err
		}
		p.Balances[i] = p.Balances[i].SaturatingSub(out[i])
	}
	return out, nil
}

// RemoveLiquidityOneCoin burns burnAmount LP tokens for a single token i,
// applying the same per-slot imbalance fee add_liquidity uses (since a
// one-coin withdrawal is equivalent to a proportional withdrawal followed
// by a swap of every other slot back into i). Rounding always favors the
// pool.
func (e *Engine) RemoveLiquidityOneCoin(poolID string, provider types.Address, burnAmount types.U128, i int, minAmount types.U128, now int64) (types.U128, error) {
	p, ok := e.pools[poolID]
	if !ok {
		return types.U128{}, ErrPoolNotFound
	}
	n := p.N()
	if i < 0 || i >= n {
		return types.U128{}, ErrInvalidIndex
	}
	if e.ledger.Free(provider, p.LPTokenID).Cmp(burnAmount) < 0 {
		return types.U128{}, ErrInsufficientLPTokens
	}
	if p.LPSupply.IsZero() {
		return types.U128{}, ErrZeroLPSupply
	}

	amp := p.A(now)
	xp := p.scaledBalances()
	d0, err := GetD(xp, amp)
	if err != nil {
		return types.U128{}, err
	}
	d1 := new(big.Int).Mul(burnAmount.Int(), d0)
	d1.Quo(d1, p.LPSupply.Int())
	d1.Sub(d0, d1)

	newY, err := GetYGivenD(i, xp, d1, amp)
	if err != nil {
		return types.U128{}, err
	}

	feeFrac := imbalanceFeeFraction(p.Fee, n)
	reduced := make([]*big.Int, n)
	for k := range xp {
		var dxExpected *big.Int
		ideal := new(big.Int).Mul(xp[k], d1)
		ideal.Quo(ideal, d0)
		if k == i {
			dxExpected = new(big.Int).Sub(ideal, newY)
		} else {
			dxExpected = new(big.Int).Sub(xp[k], ideal)
		}
		fee := new(big.Int).Mul(dxExpected, feeFrac)
		fee.Quo(fee, FeeDenominator)
		reduced[k] = new(big.Int).Sub(xp[k], fee)
	}
	newYAfterFee, err := GetYGivenD(i, reduced, d1, amp)
	if err != nil {
		return types.U128{}, err
	}

	dyScaled := new(big.Int).Sub(xp[i], newYAfterFee)
	dyScaled.Sub(dyScaled, big.NewInt(1))
	if dyScaled.Sign() < 0 {
		dyScaled = big.NewInt(0)
	}
	dy := rawFromScaled(dyScaled, p.Multipliers[i])
	if dy.Cmp(minAmount) < 0 {
		return types.U128{}, ErrSlippage
	}

	feeTotalScaled := new(big.Int).Sub(newYAfterFee, newY)
	if feeTotalScaled.Sign() < 0 {
		feeTotalScaled = big.NewInt(0)
	}
	adminFeeScaled := new(big.Int).Mul(feeTotalScaled, p.AdminFee)
	adminFeeScaled.Quo(adminFeeScaled, FeeDenominator)

	if err := e.ledger.BurnFree(provider, p.LPTokenID, burnAmount); err != nil {
		return types.U128{}, err
	}
	newSupply, err := p.LPSupply.Sub(burnAmount)
	if err != nil {
		return types.U128{}, err
	}
	p.LPSupply = newSupply

	for k := range xp {
		if k == i {
			continue
		}
		p.Balances[k] = rawFromScaled(reduced[k], p.Multipliers[k])
	}
	p.Balances[i] = rawFromScaled(newYAfterFee, p.Multipliers[i])
	if adminFeeScaled.Sign() > 0 {
		chunk := rawFromScaled(adminFeeScaled, p.Multipliers[i])
		p.AdminBalances[i], _ = p.AdminBalances[i].Add(chunk)
	}

	if !dy.IsZero() {
		if err := e.ledger.TransferFreeToFree(poolAccount(poolID, i), provider, p.CurrencyIDs[i], dy); err != nil {
			return types.U128{}, err
		}
	}
	return dy, nil
}

// Swap exchanges dx of token i for token j, charging Fee and routing
// AdminFee's share of it to the pool's admin balance.
func (e *Engine) Swap(poolID string, trader types.Address, i, j int, dx types.U128, minDy types.U128, now int64) (types.U128, error) {
	p, ok := e.pools[poolID]
	if !ok {
		return types.U128{}, ErrPoolNotFound
	}
	n := p.N()
	if i == j {
		return types.U128{}, ErrSameIndex
	}
	if i < 0 || i >= n || j < 0 || j >= n {
		return types.U128{}, ErrInvalidIndex
	}

	amp := p.A(now)
	xp := p.scaledBalances()
	dxScaled := new(big.Int).Mul(dx.Int(), p.Multipliers[i])
	x := new(big.Int).Add(xp[i], dxScaled)

	y, err := GetY(i, j, x, xp, amp)
	if err != nil {
		return types.U128{}, err
	}
	dyGross := new(big.Int).Sub(xp[j], y)
	dyGross.Sub(dyGross, big.NewInt(1))
	if dyGross.Sign() < 0 {
		dyGross = big.NewInt(0)
	}

	feeScaled := new(big.Int).Mul(dyGross, p.Fee)
	feeScaled.Quo(feeScaled, FeeDenominator)
	dyNetScaled := new(big.Int).Sub(dyGross, feeScaled)
	adminFeeScaled := new(big.Int).Mul(feeScaled, p.AdminFee)
	adminFeeScaled.Quo(adminFeeScaled, FeeDenominator)

	dy := rawFromScaled(dyNetScaled, p.Multipliers[j])
	if dy.Cmp(minDy) < 0 {
		return types.U128{}, ErrSlippage
	}

	if err := e.ledger.TransferFreeToFree(trader, poolAccount(poolID, i), p.CurrencyIDs[i], dx); err != nil {
		return types.U128{}, err
	}
	if err := e.ledger.TransferFreeToFree(poolAccount(poolID, j), trader, p.CurrencyIDs[j], dy); err != nil {
		return types.U128{}, err
	}

	newXj := new(big.Int).Sub(xp[j], dyNetScaled)
	newXj.Sub(newXj, adminFeeScaled)
	p.Balances[i] = rawFromScaled(x, p.Multipliers[i])
	p.Balances[j] = rawFromScaled(newXj, p.Multipliers[j])
	if adminFeeScaled.Sign() > 0 {
		chunk := rawFromScaled(adminFeeScaled, p.Multipliers[j])
		p.AdminBalances[j], _ = p.AdminBalances[j].Add(chunk)
	}
	return dy, nil
}

// refreshBaseVirtualPrice recomputes a meta pool's cached base-pool virtual
// price once the cache period has elapsed.
func (e *Engine) refreshBaseVirtualPrice(mp *MetaPool, now int64) error {
	if now < mp.BaseCacheLastUpdated+mp.CachePeriodSeconds && mp.BaseVirtualPrice != nil {
		return nil
	}
	base, ok := e.pools[mp.BasePoolID]
	if !ok {
		return ErrPoolNotFound
	}
	vp, err := base.VirtualPrice(now)
	if err != nil {
		return err
	}
	mp.BaseVirtualPrice = vp
	mp.BaseCacheLastUpdated = now
	return nil
}

// SwapUnderlying exchanges a meta pool's meta token for one of the base
// pool's underlying tokens (or vice versa) by composing a meta-level
// 2-asset swap (meta token <-> base LP token) with a base-pool
// add/remove-one-coin. It refreshes the meta pool's cached base virtual
// price but does not read it: the intermediate leg is sized by the LP
// amount the first leg actually returns, and fees are charged by each leg
// on its own.
func (e *Engine) SwapUnderlying(metaPoolID string, trader types.Address, fromCurrency, toCurrency types.CurrencyID, dx types.U128, minDy types.U128, now int64) (types.U128, error) {
	mp, ok := e.metas[metaPoolID]
	if !ok {
		return types.U128{}, ErrPoolNotFound
	}
	if err := e.refreshBaseVirtualPrice(mp, now); err != nil {
		return types.U128{}, err
	}
	base, ok := e.pools[mp.BasePoolID]
	if !ok {
		return types.U128{}, ErrPoolNotFound
	}

	metaIdx := mp.IndexOf(fromCurrency)
	baseLPIdx := mp.IndexOf(mp.BaseCurrencies[0])
	_ = baseLPIdx
	baseUnderlyingIdx := base.IndexOf(toCurrency)

	if metaIdx >= 0 && baseUnderlyingIdx >= 0 {
		// meta token -> base LP token (meta-level swap), then base LP ->
		// underlying token (base-pool one-coin withdrawal).
		lpIdx := 1 - metaIdx
		lpOut, err := e.Swap(metaPoolID, trader, metaIdx, lpIdx, dx, types.Zero(), now)
		if err != nil {
			return types.U128{}, err
		}
		return e.RemoveLiquidityOneCoin(mp.BasePoolID, trader, lpOut, baseUnderlyingIdx, minDy, now)
	}

	fromBaseIdx := base.IndexOf(fromCurrency)
	toMetaIdx := mp.IndexOf(toCurrency)
	if fromBaseIdx >= 0 && toMetaIdx >= 0 {
		amounts := make([]types.U128, base.N())
		for k := range amounts {
			amounts[k] = types.Zero()
		}
		amounts[fromBaseIdx] = dx
		lpMinted, err := e.AddLiquidity(mp.BasePoolID, trader, amounts, types.Zero(), now)
		if err != nil {
			return types.U128{}, err
		}
		lpIdx := 1 - toMetaIdx
		return e.Swap(metaPoolID, trader, lpIdx, toMetaIdx, lpMinted, minDy, now)
	}

	return types.U128{}, ErrInvalidIndex
}
