package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
)

func TestStartRoundWithNoPriorRounds(t *testing.T) {
	f := newFixture(t)

	r := f.startRound(t)
	require.EqualValues(t, 1, r.RoundNo)
	require.True(t, r.IsActive)
	require.Equal(t, 0, r.WinnerCount)
	require.Equal(t, 10, r.WinnerQuota)
	require.Equal(t, f.clock.Now(), r.StartedAt)
	require.Nil(t, r.EndedAt)
}

func TestStartRoundEndsActiveRound(t *testing.T) {
	f := newFixture(t)
	first := f.startRound(t)

	second := f.startRound(t)
	require.EqualValues(t, 2, second.RoundNo)

	prev := f.round(t, first.ID)
	require.False(t, prev.IsActive)
	require.NotNil(t, prev.EndedAt)

	active, err := f.rounds.ActiveRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, second.ID, active.ID)
}

func TestEndRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.startRound(t)

	ended, err := f.rounds.EndRound(ctx, r.ID)
	require.NoError(t, err)
	require.False(t, ended.IsActive)
	require.NotNil(t, ended.EndedAt)

	_, err = f.rounds.EndRound(ctx, r.ID)
	requireKind(t, apperr.FailedPrecondition, err)

	_, err = f.rounds.EndRound(ctx, "missing")
	requireKind(t, apperr.NotFound, err)

	_, err = f.rounds.EndRound(ctx, "")
	requireKind(t, apperr.InvalidArgument, err)

	_, err = f.rounds.ActiveRound(ctx)
	requireKind(t, apperr.FailedPrecondition, err)

	// numbering continues after an explicitly ended round
	next := f.startRound(t)
	require.EqualValues(t, 2, next.RoundNo)
}

func TestEnsureActiveRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r, started, err := f.rounds.EnsureActiveRound(ctx)
	require.NoError(t, err)
	require.True(t, started)
	require.EqualValues(t, 1, r.RoundNo)

	again, started, err := f.rounds.EnsureActiveRound(ctx)
	require.NoError(t, err)
	require.False(t, started)
	require.Equal(t, r.ID, again.ID)
}

func TestEnsureActiveRoundAfterHonorsEndTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// nothing has ended yet, so the first round opens immediately
	r, started, err := f.rounds.EnsureActiveRoundAfter(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, started)

	_, err = f.rounds.EndRound(ctx, r.ID)
	require.NoError(t, err)

	f.clock.Advance(59 * time.Second)
	none, started, err := f.rounds.EnsureActiveRoundAfter(ctx, time.Minute)
	require.NoError(t, err)
	require.False(t, started)
	require.Nil(t, none)

	f.clock.Advance(time.Second)
	next, started, err := f.rounds.EnsureActiveRoundAfter(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, started)
	require.EqualValues(t, 2, next.RoundNo)
}

func TestWinnersOfUnknownRound(t *testing.T) {
	_, err := newFixture(t).rounds.Winners(context.Background(), "nope")
	requireKind(t, apperr.NotFound, err)
}
