package vault

import (
	"github.com/btc-parachain/core/internal/types"
)

// StakingPool tracks one vault's collateral as contributions from the
// vault operator itself plus any nominators backing it, so that a
// liquidation slash can be distributed pro rata instead of only hitting
// the operator's own deposit.
type StakingPool struct {
	total   types.U128
	nominee map[[20]byte]types.U128
}

func newStakingPool() *StakingPool {
	return &StakingPool{total: types.Zero(), nominee: make(map[[20]byte]types.U128)}
}

func nomineeKey(addr types.Address) [20]byte {
	var k [20]byte
	copy(k[:], addr.Bytes())
	return k
}

// Total returns the pool's combined stake — the collateral actively
// backing the vault.
func (p *StakingPool) Total() types.U128 {
	return p.total
}

// StakeOf returns a single nominator's contribution.
func (p *StakingPool) StakeOf(addr types.Address) types.U128 {
	if v, ok := p.nominee[nomineeKey(addr)]; ok {
		return v
	}
	return types.Zero()
}

// Deposit records a contribution from addr (the vault operator or a
// nominator) and adds it to the pool total.
func (p *StakingPool) Deposit(addr types.Address, amount types.U128) error {
	k := nomineeKey(addr)
	cur := p.nominee[k]
	next, err := cur.Add(amount)
	if err != nil {
		return err
	}
	total, err := p.total.Add(amount)
	if err != nil {
		return err
	}
	p.nominee[k] = next
	p.total = total
	return nil
}

// Withdraw removes amount from addr's contribution and the pool total.
func (p *StakingPool) Withdraw(addr types.Address, amount types.U128) error {
	k := nomineeKey(addr)
	cur := p.nominee[k]
	next, err := cur.Sub(amount)
	if err != nil {
		return ErrInsufficientCollateral
	}
	total, err := p.total.Sub(amount)
	if err != nil {
		return ErrInsufficientCollateral
	}
	p.nominee[k] = next
	p.total = total
	return nil
}

// SlashAmount seizes amount out of the pool, preferring the vault
// operator's own stake before reaching into nominator stakes, and returns
// what was actually seized (capped at the pool total).
func (p *StakingPool) SlashAmount(operator types.Address, amount types.U128) types.U128 {
	if amount.Cmp(p.total) > 0 {
		amount = p.total
	}
	remaining := amount
	opKey := nomineeKey(operator)
	if opStake, ok := p.nominee[opKey]; ok && !opStake.IsZero() {
		take := types.Min(opStake, remaining)
		p.nominee[opKey] = opStake.SaturatingSub(take)
		remaining = remaining.SaturatingSub(take)
	}
	if !remaining.IsZero() {
		for k, stake := range p.nominee {
			if remaining.IsZero() {
				break
			}
			take := types.Min(stake, remaining)
			p.nominee[k] = stake.SaturatingSub(take)
			remaining = remaining.SaturatingSub(take)
		}
	}
	p.total = p.total.SaturatingSub(amount)
	return amount
}

// SlashAll zeroes the pool and returns what was seized, for transfer into
// a currency pair's LiquidationVault.Collateral on liquidation. Individual
// nominator shares are not needed downstream — the liquidation vault pays
// out to redeemers pro rata against its own aggregate, not against
// original nominators — so this only needs to return the total.
func (p *StakingPool) SlashAll() types.U128 {
	seized := p.total
	p.total = types.Zero()
	p.nominee = make(map[[20]byte]types.U128)
	return seized
}
