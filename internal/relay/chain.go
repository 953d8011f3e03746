package relay

import "sort"

// Chain tracks one branch of the Bitcoin header tree. ChainID 0 is always
// the main chain. A Chain is "usable" — eligible to back inclusion proofs —
// iff both NoData and Invalid are empty, per the §3 Data Model invariant.
type Chain struct {
	ChainID    uint32
	StartHeight uint32
	MaxHeight  uint32
	NoData     map[uint32]struct{}
	Invalid    map[uint32]struct{}
}

// NewChain constructs an empty chain starting at startHeight.
func NewChain(chainID, startHeight uint32) *Chain {
	return &Chain{
		ChainID:     chainID,
		StartHeight: startHeight,
		MaxHeight:   startHeight,
		NoData:      make(map[uint32]struct{}),
		Invalid:     make(map[uint32]struct{}),
	}
}

// Usable reports whether the chain carries no error markers.
func (c *Chain) Usable() bool {
	return len(c.NoData) == 0 && len(c.Invalid) == 0
}

// clone deep-copies a Chain so callers can mutate a working copy before
// committing it back to the store (see design note on cyclic references:
// Chain and RichHeader are two owned maps keyed by id/hash, never pointers
// into each other).
func (c *Chain) clone() *Chain {
	out := &Chain{
		ChainID:     c.ChainID,
		StartHeight: c.StartHeight,
		MaxHeight:   c.MaxHeight,
		NoData:      make(map[uint32]struct{}, len(c.NoData)),
		Invalid:     make(map[uint32]struct{}, len(c.Invalid)),
	}
	for h := range c.NoData {
		out.NoData[h] = struct{}{}
	}
	for h := range c.Invalid {
		out.Invalid[h] = struct{}{}
	}
	return out
}

// sortedHeights returns a set's members in ascending order.
func sortedHeights(set map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// partition splits heights >= pivot from those below it.
func partition(set map[uint32]struct{}, pivot uint32) (below, atOrAbove map[uint32]struct{}) {
	below = make(map[uint32]struct{})
	atOrAbove = make(map[uint32]struct{})
	for h := range set {
		if h >= pivot {
			atOrAbove[h] = struct{}{}
		} else {
			below[h] = struct{}{}
		}
	}
	return below, atOrAbove
}
