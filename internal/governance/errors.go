package governance

import "errors"

var (
	// ErrPreimageMissing is returned by Propose for a hash that has never
	// been noted via NotePreimage.
	ErrPreimageMissing = errors.New("governance: preimage not noted")
	// ErrPreimageAlreadyNoted guards against re-submitting the same payload.
	ErrPreimageAlreadyNoted = errors.New("governance: preimage already noted")
	// ErrProposalAlreadyQueued names a proposal hash that is already queued.
	// Propose does not return it: proposing a queued hash again only
	// replaces its backing.
	ErrProposalAlreadyQueued = errors.New("governance: proposal already queued")
	// ErrNoProposalsQueued is returned when a launch window opens but the
	// queue is empty.
	ErrNoProposalsQueued = errors.New("governance: no proposals queued")
	// ErrReferendumNotFound is returned for an operation against an
	// unknown referendum index.
	ErrReferendumNotFound = errors.New("governance: referendum not found")
	// ErrReferendumNotEnded names a referendum whose End height has not yet
	// been reached. OnInitialize finalizes referenda itself and does not
	// return it.
	ErrReferendumNotEnded = errors.New("governance: referendum has not ended")
)
