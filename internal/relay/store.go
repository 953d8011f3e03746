package relay

import (
	"sort"

	"github.com/btc-parachain/core/internal/security"
	"github.com/btc-parachain/core/internal/types"
)

// RichHeader is a stored header enriched with the placement metadata the
// relay needs: which chain it belongs to, its height within that chain, who
// submitted it, and the parachain height at submission time (used by the
// parachain-confirmations gate in verify_inclusion).
type RichHeader struct {
	Header          Header
	Height          uint32
	ChainID         uint32
	Submitter       types.Address
	ParachainHeight uint32
}

// Config carries the governance-controlled relay parameters.
type Config struct {
	DisableDifficultyCheck       bool
	StableBitcoinConfirmations   uint32
	StableParachainConfirmations uint32
}

type chainHeightKey struct {
	chainID uint32
	height  uint32
}

// Store is the relay's slice of WorldState: the best block pointer, the
// chain priority list, and the two owned maps (chain-by-id, header-by-hash)
// that stand in for the conceptual Header<->Chain cycle per the design
// note in spec.md §9.
type Store struct {
	cfg      Config
	security *security.Status

	bestBlock    Hash
	bestHeight   uint32
	chainCounter uint32

	chains      []uint32
	chainIndex  map[uint32]*Chain
	chainHashes map[chainHeightKey]Hash
	headers     map[Hash]*RichHeader
}

// NewStore constructs an uninitialized relay store.
func NewStore(cfg Config, sec *security.Status) *Store {
	return &Store{
		cfg:         cfg,
		security:    sec,
		chainIndex:  make(map[uint32]*Chain),
		chainHashes: make(map[chainHeightKey]Hash),
		headers:     make(map[Hash]*RichHeader),
	}
}

// BestBlock returns the current main-chain tip hash.
func (s *Store) BestBlock() Hash { return s.bestBlock }

// BestHeight returns the current main-chain tip height.
func (s *Store) BestHeight() uint32 { return s.bestHeight }

// Header looks up a stored header by hash.
func (s *Store) Header(h Hash) (*RichHeader, bool) {
	rh, ok := s.headers[h]
	return rh, ok
}

// HashAt returns the hash stored at (chainID, height).
func (s *Store) HashAt(chainID, height uint32) (Hash, bool) {
	h, ok := s.chainHashes[chainHeightKey{chainID, height}]
	return h, ok
}

// Chain returns the chain record for chainID.
func (s *Store) Chain(chainID uint32) (*Chain, bool) {
	c, ok := s.chainIndex[chainID]
	return c, ok
}

// MainChain is a convenience accessor for chain 0.
func (s *Store) MainChain() *Chain { return s.chainIndex[0] }

// Initialize is the one-shot bootstrap operation: it fails if a best block
// already exists, else parses header and stores it as the sole member of
// chain 0.
func (s *Store) Initialize(submitter types.Address, raw []byte, height uint32, parachainHeight uint32) error {
	if !s.bestBlock.IsZero() || len(s.headers) != 0 {
		return ErrAlreadyInitialized
	}
	header, err := ParseHeader(raw)
	if err != nil {
		return err
	}
	chain := NewChain(0, height)
	s.chainIndex[0] = chain
	s.chains = []uint32{0}
	s.chainCounter = 1
	s.headers[header.Hash] = &RichHeader{Header: header, Height: height, ChainID: 0, Submitter: submitter, ParachainHeight: parachainHeight}
	s.chainHashes[chainHeightKey{0, height}] = header.Hash
	s.bestHeight = height
	s.bestBlock = header.Hash
	return nil
}

// StoreHeader parses, validates, and places a new header per spec.md §4.1.
// The bool return reports whether this call was an idempotent resubmission
// of the current best block (a DuplicateBlockSubmission event, not an
// error).
func (s *Store) StoreHeader(submitter types.Address, raw []byte, parachainHeight uint32) (*RichHeader, bool, error) {
	if s.bestBlock.IsZero() && len(s.headers) == 0 {
		return nil, false, ErrNotInitialized
	}
	header, err := ParseHeader(raw)
	if err != nil {
		return nil, false, err
	}

	if existing, ok := s.headers[header.Hash]; ok {
		if header.Hash == s.bestBlock {
			return existing, true, nil
		}
		return nil, false, ErrDuplicateBlock
	}

	prev, ok := s.headers[header.PrevHash]
	if !ok {
		return nil, false, ErrPrevBlock
	}

	if !HashLessThanTarget(header.Hash, header.Target) {
		return nil, false, ErrLowDiff
	}

	newHeight := prev.Height + 1
	expectedTarget := prev.Header.Target
	if !s.cfg.DisableDifficultyCheck && newHeight >= RetargetInterval && newHeight%RetargetInterval == 0 {
		anchorHeight := newHeight - RetargetInterval
		anchorHash, ok := s.chainHashes[chainHeightKey{prev.ChainID, anchorHeight}]
		if !ok {
			return nil, false, ErrPrevBlock
		}
		anchor, ok := s.headers[anchorHash]
		if !ok {
			return nil, false, ErrPrevBlock
		}
		actualTimespan := int64(prev.Header.Timestamp) - int64(anchor.Header.Timestamp)
		expectedTarget = computeNextTarget(prev.Header.Target, actualTimespan)
	}
	if header.Target.Cmp(expectedTarget) != 0 {
		return nil, false, ErrDiffTargetHeader
	}

	prevChain := s.chainIndex[prev.ChainID]
	var chainID uint32
	extend := prev.Height == prevChain.MaxHeight
	if extend {
		chainID = prev.ChainID
	} else {
		chainID = s.chainCounter
		s.chainCounter++
		s.chainIndex[chainID] = NewChain(chainID, newHeight)
	}

	rich := &RichHeader{Header: header, Height: newHeight, ChainID: chainID, Submitter: submitter, ParachainHeight: parachainHeight}
	s.headers[header.Hash] = rich
	s.chainHashes[chainHeightKey{chainID, newHeight}] = header.Hash

	if extend {
		prevChain.MaxHeight = newHeight
		if chainID == 0 {
			s.bestHeight = newHeight
			s.bestBlock = header.Hash
		}
	} else {
		s.insertChainByPriority(chainID)
	}

	if err := s.afterChainGrew(chainID); err != nil {
		return nil, false, err
	}

	return rich, false, nil
}

// insertChainByPriority inserts a freshly created fork at the correct
// position in the priority list, ordered by descending max_height with ties
// broken by insertion order (i.e. a new chain with an equal max_height is
// placed after existing chains of the same height).
func (s *Store) insertChainByPriority(chainID uint32) {
	height := s.chainIndex[chainID].MaxHeight
	idx := sort.Search(len(s.chains), func(i int) bool {
		return s.chainIndex[s.chains[i]].MaxHeight < height
	})
	s.chains = append(s.chains, 0)
	copy(s.chains[idx+1:], s.chains[idx:])
	s.chains[idx] = chainID
}

func (s *Store) indexOf(chainID uint32) int {
	for i, id := range s.chains {
		if id == chainID {
			return i
		}
	}
	return -1
}

// afterChainGrew implements the reorg policy: walk the grown chain upward
// through the priority list, swapping with weaker forks and, upon reaching
// main, swapping the main chain if the fork leads by enough confirmations.
func (s *Store) afterChainGrew(chainID uint32) error {
	idx := s.indexOf(chainID)
	for idx > 0 {
		aboveID := s.chains[idx-1]
		cur := s.chainIndex[chainID]
		above := s.chainIndex[aboveID]
		if cur.MaxHeight <= above.MaxHeight {
			break
		}
		if aboveID == 0 {
			lead := cur.MaxHeight - above.MaxHeight
			if lead < s.cfg.StableBitcoinConfirmations {
				break
			}
			if err := s.swapMainChain(chainID); err != nil {
				return err
			}
			idx = s.indexOf(0)
			chainID = 0
			continue
		}
		s.chains[idx-1], s.chains[idx] = s.chains[idx], s.chains[idx-1]
		idx--
	}
	return nil
}

// swapMainChain promotes forkID to be the new main chain (id 0), demoting
// the old main chain's divergent tail to a new fork id, per the reorg policy
// in spec.md §4.1.
func (s *Store) swapMainChain(forkID uint32) error {
	oldMain := s.chainIndex[0]
	fork := s.chainIndex[forkID]

	displacedID := s.chainCounter
	s.chainCounter++

	belowNoData, aboveNoData := partition(oldMain.NoData, fork.StartHeight)
	belowInvalid, aboveInvalid := partition(oldMain.Invalid, fork.StartHeight)

	// Move the old main's displaced tail (heights >= fork.StartHeight) to
	// displacedID.
	for h := fork.StartHeight; h <= oldMain.MaxHeight; h++ {
		key := chainHeightKey{0, h}
		hash, ok := s.chainHashes[key]
		if !ok {
			continue
		}
		delete(s.chainHashes, key)
		s.chainHashes[chainHeightKey{displacedID, h}] = hash
		if rh, ok := s.headers[hash]; ok {
			rh.ChainID = displacedID
		}
	}
	// Move the fork's own blocks into chain 0.
	for h := fork.StartHeight; h <= fork.MaxHeight; h++ {
		key := chainHeightKey{forkID, h}
		hash, ok := s.chainHashes[key]
		if !ok {
			continue
		}
		delete(s.chainHashes, key)
		s.chainHashes[chainHeightKey{0, h}] = hash
		if rh, ok := s.headers[hash]; ok {
			rh.ChainID = 0
		}
	}

	newMain := &Chain{
		ChainID:     0,
		StartHeight: oldMain.StartHeight,
		MaxHeight:   fork.MaxHeight,
		NoData:      union(belowNoData, fork.NoData),
		Invalid:     union(belowInvalid, fork.Invalid),
	}
	displaced := &Chain{
		ChainID:     displacedID,
		StartHeight: fork.StartHeight,
		MaxHeight:   oldMain.MaxHeight,
		NoData:      aboveNoData,
		Invalid:     aboveInvalid,
	}

	s.chainIndex[0] = newMain
	s.chainIndex[displacedID] = displaced
	delete(s.chainIndex, forkID)

	idxFork := s.indexOf(forkID)
	idxMain := s.indexOf(0)
	if idxFork >= 0 {
		s.chains[idxFork] = 0
	}
	if idxMain >= 0 && idxMain != idxFork {
		s.chains[idxMain] = displacedID
	}

	s.bestHeight = newMain.MaxHeight
	s.bestBlock, _ = s.chainHashes[chainHeightKey{0, s.bestHeight}]

	if newMain.Usable() {
		s.security.RecoverFromBTCRelayFailure()
	} else {
		s.security.RaiseError(security.FlagBTCRelay)
	}
	return nil
}

func union(a, b map[uint32]struct{}) map[uint32]struct{} {
	out := make(map[uint32]struct{}, len(a)+len(b))
	for h := range a {
		out[h] = struct{}{}
	}
	for h := range b {
		out[h] = struct{}{}
	}
	return out
}

// MarkNoData flags a main-chain height as missing transaction data.
func (s *Store) MarkNoData(height uint32) {
	chain := s.chainIndex[0]
	chain.NoData[height] = struct{}{}
	s.security.RaiseError(security.FlagBTCRelay)
}

// MarkInvalid flags a main-chain height as carrying an invalid block.
func (s *Store) MarkInvalid(height uint32) {
	chain := s.chainIndex[0]
	chain.Invalid[height] = struct{}{}
	s.security.RaiseError(security.FlagBTCRelay)
}

// transactionVerificationAllowed implements the verification gate in
// spec.md §4.1: disallowed if the main chain has any invalid height, any
// no-data height at or below blockHeight, or the parachain is shut down.
func (s *Store) transactionVerificationAllowed(blockHeight uint32) bool {
	if s.security.IsShutdown() {
		return false
	}
	main := s.chainIndex[0]
	if len(main.Invalid) > 0 {
		return false
	}
	for h := range main.NoData {
		if h <= blockHeight {
			return false
		}
	}
	return true
}

// VerifyInclusion checks that txID is included at sufficient depth in the
// main chain, per spec.md §4.1.
func (s *Store) VerifyInclusion(txID Hash, proof MerkleProof, confirmations uint32, currentParachainHeight uint32) error {
	root, extractedTx, err := proof.Verify()
	if err != nil {
		return err
	}
	if root != proof.BlockHeader.MerkleRoot {
		return ErrInvalidMerkleProof
	}
	if extractedTx != txID {
		return ErrInvalidMerkleProof
	}

	rich, ok := s.headers[proof.BlockHeader.Hash]
	if !ok {
		return ErrUnknownBlock
	}
	if rich.ChainID != 0 {
		return ErrOngoingFork
	}
	if !s.transactionVerificationAllowed(rich.Height) {
		main := s.chainIndex[0]
		if len(main.Invalid) > 0 {
			return ErrInvalid
		}
		if s.security.IsShutdown() {
			return ErrShutdown
		}
		return ErrNoData
	}

	needConfirmations := confirmations
	if s.cfg.StableBitcoinConfirmations > needConfirmations {
		needConfirmations = s.cfg.StableBitcoinConfirmations
	}
	if s.bestHeight < rich.Height+needConfirmations-1 {
		return ErrBitcoinConfirmations
	}
	if currentParachainHeight < rich.ParachainHeight+s.cfg.StableParachainConfirmations {
		return ErrParachainConfirmations
	}
	return nil
}
