package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
	"github.com/avvvet/codebreak-services/internal/gamesvc/store"
)

// Rules are the game constants every service agrees on.
type Rules struct {
	CodeLength   int
	WinnerQuota  int
	HintQuota    int
	HintPrice    decimal.Decimal
	GuessWindow  time.Duration
	GuessMax     int
	HintCooldown time.Duration
	// PendingTTL is how long an unpaid hint request holds a quota slot.
	// Zero keeps pending requests alive until confirmed or failed.
	PendingTTL time.Duration
	// MaxCodeDraws bounds the search for a code no one else holds in the round.
	MaxCodeDraws int
}

func DefaultRules() Rules {
	return Rules{
		CodeLength:   7,
		WinnerQuota:  10,
		HintQuota:    3,
		HintPrice:    decimal.NewFromInt(10),
		GuessWindow:  60 * time.Second,
		GuessMax:     10,
		HintCooldown: 10 * time.Second,
		PendingTTL:   15 * time.Minute,
		MaxCodeDraws: 100,
	}
}

func (r Rules) Limiter() Limiter {
	return Limiter{
		GuessWindow:  r.GuessWindow,
		GuessMax:     r.GuessMax,
		HintCooldown: r.HintCooldown,
	}
}

type base struct {
	store  store.Store
	rules  Rules
	now    func() time.Time
	notify Notifier
}

type Option func(*base)

func WithRules(r Rules) Option {
	return func(b *base) { b.rules = r }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func newBase(s store.Store, opts []Option) base {
	b := base{store: s, rules: DefaultRules(), now: time.Now, notify: nopNotifier{}}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// translate maps store sentinels onto the error taxonomy. Typed errors pass
// through untouched.
func translate(err error, what string) error {
	var appErr *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFoundf("%s not found", what)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func activeRound(ctx context.Context, tx store.Tx) (*models.Round, error) {
	r, err := tx.ActiveRound(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.FailedPreconditionf("no active round")
	}
	if err != nil {
		return nil, fmt.Errorf("load active round: %w", err)
	}
	return r, nil
}

// closeRound is the only place a round leaves the active state.
func closeRound(r *models.Round, now time.Time) {
	end := now
	r.IsActive = false
	r.EndedAt = &end
}
