package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
	"github.com/avvvet/codebreak-services/internal/gamesvc/codegen"
	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
	"github.com/avvvet/codebreak-services/internal/gamesvc/store"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// scripted replays a fixed digit sequence, wrapping around.
type scripted struct {
	digits []int
	pos    int
}

func (s *scripted) Intn(n int) int {
	d := s.digits[s.pos%len(s.digits)] % n
	s.pos++
	return d
}

type fixture struct {
	store   *store.MemoryStore
	clock   *testClock
	rounds  *RoundService
	codes   *CodeService
	guesses *GuessService
	hints   *HintService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithGen(t, codegen.New(rand.New(rand.NewSource(1))))
}

func newFixtureWithGen(t *testing.T, gen *codegen.Generator) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	clock := newTestClock()
	opts := []Option{WithClock(clock.Now)}
	return &fixture{
		store:   s,
		clock:   clock,
		rounds:  NewRoundService(s, opts...),
		codes:   NewCodeService(s, gen, opts...),
		guesses: NewGuessService(s, opts...),
		hints:   NewHintService(s, rand.New(rand.NewSource(2)), opts...),
	}
}

func (f *fixture) startRound(t *testing.T) *models.Round {
	t.Helper()
	r, err := f.rounds.StartRound(context.Background())
	require.NoError(t, err)
	return r
}

func (f *fixture) assign(t *testing.T, playerID string) {
	t.Helper()
	_, err := f.codes.AssignCode(context.Background(), playerID)
	require.NoError(t, err)
}

// userCode reads straight from the store, bypassing the player facing API.
func (f *fixture) userCode(t *testing.T, playerID, roundID string) *models.UserCode {
	t.Helper()
	var uc *models.UserCode
	err := f.store.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		uc, err = tx.UserCode(ctx, playerID, roundID)
		return err
	})
	require.NoError(t, err)
	return uc
}

func (f *fixture) player(t *testing.T, playerID string) *models.Player {
	t.Helper()
	var p *models.Player
	err := f.store.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = tx.PlayerByID(ctx, playerID)
		return err
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) round(t *testing.T, roundID string) *models.Round {
	t.Helper()
	var r *models.Round
	err := f.store.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		r, err = tx.RoundByID(ctx, roundID)
		return err
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) secret(t *testing.T, playerID, roundID string) []int {
	t.Helper()
	return digitsOf(f.userCode(t, playerID, roundID).Code)
}

func digitsOf(code string) []int {
	out := make([]int, len(code))
	for i := range code {
		out[i] = int(code[i] - '0')
	}
	return out
}

func requireKind(t *testing.T, want apperr.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, apperr.KindOf(err), "error: %v", err)
}
