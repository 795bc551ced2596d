package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
	"github.com/avvvet/codebreak-services/internal/gamesvc/store"
)

// RoundService owns the round lifecycle: created -> active -> ended.
type RoundService struct {
	base
}

func NewRoundService(s store.Store, opts ...Option) *RoundService {
	return &RoundService{base: newBase(s, opts)}
}

// StartRound ends the active round, if any, and opens the next one.
func (s *RoundService) StartRound(ctx context.Context) (*models.Round, error) {
	var started, ended *models.Round
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		started, ended, err = s.startRound(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if ended != nil {
		log.WithFields(log.Fields{"round": ended.RoundNo, "winners": ended.WinnerCount}).Info("round ended by new round")
		s.notify.RoundEnded(ended)
	}
	log.WithFields(log.Fields{"round": started.RoundNo, "id": started.ID}).Info("round started")
	s.notify.RoundStarted(started)
	return started, nil
}

func (s *RoundService) startRound(ctx context.Context, tx store.Tx) (*models.Round, *models.Round, error) {
	now := s.now()

	prev, err := tx.ActiveRound(ctx)
	switch {
	case err == nil:
		closeRound(prev, now)
		if err := tx.UpdateRound(ctx, prev); err != nil {
			return nil, nil, fmt.Errorf("end round %d: %w", prev.RoundNo, err)
		}
	case errors.Is(err, store.ErrNotFound):
		prev = nil
	default:
		return nil, nil, fmt.Errorf("load active round: %w", err)
	}

	var lastNo int64
	last, err := tx.LastRound(ctx)
	switch {
	case err == nil:
		lastNo = last.RoundNo
	case !errors.Is(err, store.ErrNotFound):
		return nil, nil, fmt.Errorf("load last round: %w", err)
	}

	r := &models.Round{
		ID:          uuid.New().String(),
		RoundNo:     lastNo + 1,
		IsActive:    true,
		WinnerQuota: s.rules.WinnerQuota,
		StartedAt:   now,
	}
	if err := tx.InsertRound(ctx, r); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, nil, apperr.FailedPreconditionf("round %d was started concurrently", r.RoundNo)
		}
		return nil, nil, fmt.Errorf("insert round: %w", err)
	}
	return r, prev, nil
}

// EnsureActiveRound returns the open round, starting one when none is open.
func (s *RoundService) EnsureActiveRound(ctx context.Context) (*models.Round, bool, error) {
	return s.EnsureActiveRoundAfter(ctx, 0)
}

// EnsureActiveRoundAfter is EnsureActiveRound but keeps the game closed until
// delay has passed since the last round ended. It returns a nil round while
// waiting.
func (s *RoundService) EnsureActiveRoundAfter(ctx context.Context, delay time.Duration) (*models.Round, bool, error) {
	var (
		round   *models.Round
		started bool
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		round, started = nil, false
		r, err := tx.ActiveRound(ctx)
		if err == nil {
			round = r
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load active round: %w", err)
		}

		if delay > 0 {
			last, err := tx.LastRound(ctx)
			switch {
			case err == nil:
				if last.EndedAt != nil && s.now().Before(last.EndedAt.Add(delay)) {
					return nil
				}
			case !errors.Is(err, store.ErrNotFound):
				return fmt.Errorf("load last round: %w", err)
			}
		}

		r, _, err = s.startRound(ctx, tx)
		if err != nil {
			return err
		}
		round, started = r, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if started {
		log.WithFields(log.Fields{"round": round.RoundNo, "id": round.ID}).Info("round started")
		s.notify.RoundStarted(round)
	}
	return round, started, nil
}

// EndRound closes roundID. Ending a round that is already closed is an error.
func (s *RoundService) EndRound(ctx context.Context, roundID string) (*models.Round, error) {
	if roundID == "" {
		return nil, apperr.InvalidArgumentf("round id is required")
	}

	var ended *models.Round
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		r, err := tx.RoundByID(ctx, roundID)
		if err != nil {
			return translate(err, "round "+roundID)
		}
		if !r.IsActive {
			return apperr.FailedPreconditionf("round %d already ended", r.RoundNo)
		}
		closeRound(r, s.now())
		if err := tx.UpdateRound(ctx, r); err != nil {
			return fmt.Errorf("end round %d: %w", r.RoundNo, err)
		}
		ended = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"round": ended.RoundNo, "winners": ended.WinnerCount}).Info("round ended")
	s.notify.RoundEnded(ended)
	return ended, nil
}

func (s *RoundService) ActiveRound(ctx context.Context) (*models.Round, error) {
	var round *models.Round
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		r, err := activeRound(ctx, tx)
		round = r
		return err
	})
	return round, err
}

// Winners returns the audit trail of a round ordered by rank.
func (s *RoundService) Winners(ctx context.Context, roundID string) ([]*models.Winner, error) {
	if roundID == "" {
		return nil, apperr.InvalidArgumentf("round id is required")
	}

	var winners []*models.Winner
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.RoundByID(ctx, roundID); err != nil {
			return translate(err, "round "+roundID)
		}
		w, err := tx.Winners(ctx, roundID)
		if err != nil {
			return fmt.Errorf("load winners: %w", err)
		}
		winners = w
		return nil
	})
	return winners, err
}
