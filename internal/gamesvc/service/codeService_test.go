package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
	"github.com/avvvet/codebreak-services/internal/gamesvc/codegen"
)

func TestAssignCodeWithoutActiveRound(t *testing.T) {
	_, err := newFixture(t).codes.AssignCode(context.Background(), "alice")
	requireKind(t, apperr.FailedPrecondition, err)
}

func TestAssignCodeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.startRound(t)

	first, err := f.codes.AssignCode(ctx, "alice")
	require.NoError(t, err)
	require.False(t, first.AlreadyAssigned)
	require.Equal(t, r.ID, first.RoundID)
	code := f.userCode(t, "alice", r.ID).Code

	again, err := f.codes.AssignCode(ctx, "alice")
	require.NoError(t, err)
	require.True(t, again.AlreadyAssigned)
	require.Equal(t, code, f.userCode(t, "alice", r.ID).Code)

	require.True(t, codegen.IsValid(digitsOf(code)))
}

func TestAssignCodeSkipsCodesTakenInRound(t *testing.T) {
	src := &scripted{digits: []int{
		0, 1, 2, 3, 4, 5, 6, // alice
		0, 1, 2, 3, 4, 5, 6, // bob, collides
		6, 5, 4, 3, 2, 1, 0, // bob
	}}
	f := newFixtureWithGen(t, codegen.New(src))
	r := f.startRound(t)

	f.assign(t, "alice")
	f.assign(t, "bob")

	require.Equal(t, "0123456", f.userCode(t, "alice", r.ID).Code)
	require.Equal(t, "6543210", f.userCode(t, "bob", r.ID).Code)
}

func TestAssignCodeFailsWhenNoFreeCodeIsFound(t *testing.T) {
	f := newFixtureWithGen(t, codegen.New(&scripted{digits: []int{0, 1, 2, 3, 4, 5, 6}}))
	f.startRound(t)
	f.assign(t, "alice")

	_, err := f.codes.AssignCode(context.Background(), "bob")
	requireKind(t, apperr.Internal, err)
}

func TestAssignedCodesAreUniqueWithinRound(t *testing.T) {
	f := newFixture(t)
	r := f.startRound(t)

	seen := make(map[string]string)
	for i := 0; i < 300; i++ {
		player := fmt.Sprintf("player-%d", i)
		f.assign(t, player)
		code := f.userCode(t, player, r.ID).Code
		other, dup := seen[code]
		require.False(t, dup, "%s and %s share code %s", player, other, code)
		seen[code] = player
	}
}

func TestAssignCodeResetsPlayerForNewRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.startRound(t)
	f.assign(t, "alice")

	_, err := f.guesses.SubmitGuess(ctx, "alice", []int{0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.Equal(t, 1, f.player(t, "alice").AttemptCount)

	second := f.startRound(t)
	f.assign(t, "alice")

	p := f.player(t, "alice")
	require.Equal(t, second.ID, p.CurrentRoundID)
	require.Equal(t, 0, p.AttemptCount)
	require.False(t, p.IsWinnerInCurrentRound)
	require.Empty(t, p.RevealedDigits)

	// the old round's record is untouched
	require.Equal(t, 1, f.userCode(t, "alice", first.ID).Attempts)
	require.Equal(t, 0, f.userCode(t, "alice", second.ID).Attempts)
}

func TestMyCodeNeverIncludesSecret(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.startRound(t)

	_, err := f.codes.MyCode(ctx, "alice")
	requireKind(t, apperr.NotFound, err)

	f.assign(t, "alice")
	view, err := f.codes.MyCode(ctx, "alice")
	require.NoError(t, err)
	require.EqualValues(t, 1, view.RoundNo)
	require.Empty(t, view.Revealed)
	require.False(t, view.IsWinner)
}
