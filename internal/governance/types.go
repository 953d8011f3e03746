// Package governance implements the weekly referendum launcher shim
// described in spec.md §4.6: a preimage-indexed proposal store plus a
// once-per-wall-clock-week launch of the highest-backed queued proposal.
package governance

import (
	"github.com/btc-parachain/core/internal/types"
)

// Threshold selects the voting rule a referendum is judged against. The
// launcher always uses SuperMajorityAgainst per §4.6; other thresholds exist
// for the Root-only "fast track" path named in spec.md §6.
type Threshold uint8

const (
	// ThresholdSuperMajorityAgainst requires a supermajority of votes
	// against to defeat a proposal — the default for launched referenda.
	ThresholdSuperMajorityAgainst Threshold = iota
	// ThresholdSuperMajorityApprove requires a supermajority of votes for
	// to pass a proposal.
	ThresholdSuperMajorityApprove
	// ThresholdSimpleMajority passes on a plain majority of cast votes.
	ThresholdSimpleMajority
)

// Proposal is a preimage-indexed call payload waiting to be launched as a
// referendum. Backing is the accumulated stake/endorsement behind it,
// compared across the queue to pick the next referendum to launch.
type Proposal struct {
	Hash    [32]byte
	Payload []byte
	Backing types.U128
}

// Referendum is a proposal under active vote, ending at a specific
// parachain block height.
type Referendum struct {
	Index        uint64
	ProposalHash [32]byte
	End          uint32
	Threshold    Threshold
}
