package governance

import (
	"time"

	"lukechampine.com/blake3"

	"github.com/btc-parachain/core/internal/types"
)

// VotingPeriodBlocks is the number of parachain blocks a launched
// referendum remains open for before OnInitialize finalizes it.
const VotingPeriodBlocks uint32 = 100_800 // ~7 days at 6s blocks

// Engine is the minimal referendum launcher named in spec.md §4.6: a
// preimage store plus a queue of backed proposals, advanced once per block
// via OnInitialize (mirroring the host's on_initialize hook described in
// spec.md §5).
type Engine struct {
	preimages map[[32]byte]*Proposal
	queued    []*Proposal

	referenda         map[uint64]*Referendum
	referendumCounter uint64

	launchOffset        time.Duration
	nextLaunchTimestamp int64
}

// NewEngine constructs an empty launcher. launchOffset shifts the weekly
// launch window past Monday 00:00 UTC (spec.md §4.6's "launch_offset_millis").
func NewEngine(launchOffset time.Duration) *Engine {
	return &Engine{
		preimages:    make(map[[32]byte]*Proposal),
		referenda:    make(map[uint64]*Referendum),
		launchOffset: launchOffset,
	}
}

// NotePreimage hashes and stores a proposal's call payload, keyed by its
// Blake3 digest per SPEC_FULL.md's preimage-store grounding note — this
// hash never crosses a security boundary requiring a NIST-standard digest,
// so a fast non-cryptographic-strength hash is the right tool here.
func (e *Engine) NotePreimage(payload []byte) ([32]byte, error) {
	hash := blake3.Sum256(payload)
	if _, exists := e.preimages[hash]; exists {
		return hash, ErrPreimageAlreadyNoted
	}
	e.preimages[hash] = &Proposal{Hash: hash, Payload: payload, Backing: types.Zero()}
	return hash, nil
}

// Propose enqueues a previously-noted preimage with its backing stake. A
// second Propose call for the same hash replaces the prior backing amount
// rather than double-queuing it.
func (e *Engine) Propose(hash [32]byte, backing types.U128) error {
	p, ok := e.preimages[hash]
	if !ok {
		return ErrPreimageMissing
	}
	p.Backing = backing
	for _, q := range e.queued {
		if q.Hash == hash {
			return nil
		}
	}
	e.queued = append(e.queued, p)
	return nil
}

// Referendum returns a referendum by index.
func (e *Engine) Referendum(index uint64) (*Referendum, bool) {
	r, ok := e.referenda[index]
	return r, ok
}

// nextMonday projects a UNIX-seconds timestamp forward to the next Monday
// 00:00 UTC strictly after it, per spec.md §4.6.
func nextMonday(nowUnix int64) int64 {
	now := time.Unix(nowUnix, 0).UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	daysUntilMonday := (int(time.Monday) - int(midnight.Weekday()) + 7) % 7
	next := midnight.AddDate(0, 0, daysUntilMonday)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next.Unix()
}

// OnInitialize is the per-block hook: it finalizes any referendum whose End
// equals currentHeight, and — at most once per wall-clock week — launches
// the highest-backed queued proposal as a new referendum.
func (e *Engine) OnInitialize(nowUnix int64, currentHeight uint32) []uint64 {
	var ended []uint64
	for idx, r := range e.referenda {
		if r.End == currentHeight {
			ended = append(ended, idx)
			delete(e.referenda, idx)
		}
	}

	if e.nextLaunchTimestamp == 0 {
		// Bootstrap: the very first on_initialize call is itself an
		// eligible launch window; subsequent windows fall on the
		// following Monday 00:00 UTC plus the configured offset.
		e.nextLaunchTimestamp = nowUnix
	}
	if nowUnix >= e.nextLaunchTimestamp {
		e.launchNext(currentHeight)
		e.nextLaunchTimestamp = nextMonday(nowUnix) + int64(e.launchOffset/time.Second)
	}
	return ended
}

// launchNext pulls the highest-backed queued proposal and opens it as a new
// referendum. A tie is broken by queue (insertion) order, matching the
// relay's own "ties by insertion order" convention elsewhere in this spec.
func (e *Engine) launchNext(currentHeight uint32) (*Referendum, error) {
	if len(e.queued) == 0 {
		return nil, ErrNoProposalsQueued
	}
	best := 0
	for i, p := range e.queued[1:] {
		if p.Backing.Cmp(e.queued[best].Backing) > 0 {
			best = i + 1
		}
	}
	winner := e.queued[best]
	e.queued = append(e.queued[:best], e.queued[best+1:]...)

	e.referendumCounter++
	r := &Referendum{
		Index:        e.referendumCounter,
		ProposalHash: winner.Hash,
		End:          currentHeight + VotingPeriodBlocks,
		Threshold:    ThresholdSuperMajorityAgainst,
	}
	e.referenda[r.Index] = r
	return r, nil
}
