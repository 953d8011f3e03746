package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btc-parachain/core/internal/types"
)

func TestNextMondayProjectsForward(t *testing.T) {
	// 2026-07-30 is a Thursday.
	thursday := time.Date(2026, time.July, 30, 12, 0, 0, 0, time.UTC)
	got := nextMonday(thursday.Unix())
	want := time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC)
	require.Equal(t, want.Unix(), got)
}

func TestNextMondayOnExactMidnightAdvancesAWeek(t *testing.T) {
	monday := time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC)
	got := nextMonday(monday.Unix())
	want := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)
	require.Equal(t, want.Unix(), got)
}

func TestLaunchNextPicksHighestBacking(t *testing.T) {
	e := NewEngine(0)

	hashA, err := e.NotePreimage([]byte("proposal-a"))
	require.NoError(t, err)
	hashB, err := e.NotePreimage([]byte("proposal-b"))
	require.NoError(t, err)

	require.NoError(t, e.Propose(hashA, types.NewU128FromUint64(10)))
	require.NoError(t, e.Propose(hashB, types.NewU128FromUint64(50)))

	r, err := e.launchNext(1_000)
	require.NoError(t, err)
	require.Equal(t, hashB, r.ProposalHash)
	require.Equal(t, ThresholdSuperMajorityAgainst, r.Threshold)
	require.Equal(t, uint32(1_000)+VotingPeriodBlocks, r.End)

	// The runner-up is still queued.
	r2, err := e.launchNext(2_000)
	require.NoError(t, err)
	require.Equal(t, hashA, r2.ProposalHash)

	_, err = e.launchNext(3_000)
	require.ErrorIs(t, err, ErrNoProposalsQueued)
}

func TestOnInitializeLaunchesAtMostOncePerWeek(t *testing.T) {
	e := NewEngine(0)
	hash, err := e.NotePreimage([]byte("weekly"))
	require.NoError(t, err)
	require.NoError(t, e.Propose(hash, types.NewU128FromUint64(1)))

	monday := time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC).Unix()
	e.OnInitialize(monday, 1)
	require.Len(t, e.referenda, 1)

	// Still within the same week: no second launch even though the queue
	// could in principle supply one.
	hash2, err := e.NotePreimage([]byte("weekly-2"))
	require.NoError(t, err)
	require.NoError(t, e.Propose(hash2, types.NewU128FromUint64(1)))
	e.OnInitialize(monday+3600, 2)
	require.Len(t, e.referenda, 1)

	nextWeek := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC).Unix()
	e.OnInitialize(nextWeek, 3)
	require.Len(t, e.referenda, 2)
}

func TestOnInitializeFinalizesEndedReferenda(t *testing.T) {
	e := NewEngine(0)
	hash, err := e.NotePreimage([]byte("ending"))
	require.NoError(t, err)
	require.NoError(t, e.Propose(hash, types.NewU128FromUint64(1)))

	r, err := e.launchNext(100)
	require.NoError(t, err)

	ended := e.OnInitialize(0, r.End)
	require.Contains(t, ended, r.Index)
	_, ok := e.Referendum(r.Index)
	require.False(t, ok)
}
