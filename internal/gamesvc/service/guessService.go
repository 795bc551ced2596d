package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
	"github.com/avvvet/codebreak-services/internal/gamesvc/store"
)

type GuessResult struct {
	Correct    bool
	RoundEnded bool
	WinnerRank *int // set only for a correct guess
}

type GuessService struct {
	base
	limiter Limiter
}

func NewGuessService(s store.Store, opts ...Option) *GuessService {
	b := newBase(s, opts)
	return &GuessService{base: b, limiter: b.rules.Limiter()}
}

// ValidateGuess checks shape only: exactly length entries, each 0-9.
func ValidateGuess(guess []int, length int) error {
	if len(guess) != length {
		return apperr.InvalidArgumentf("guess must have %d digits, got %d", length, len(guess))
	}
	for i, d := range guess {
		if d < 0 || d > 9 {
			return apperr.InvalidArgumentf("guess digit %d out of range: %d", i, d)
		}
	}
	return nil
}

func matches(code string, guess []int) bool {
	if len(code) != len(guess) {
		return false
	}
	for i, d := range guess {
		if int(code[i]-'0') != d {
			return false
		}
	}
	return true
}

// SubmitGuess charges one attempt and compares guess with the player's code
// for the active round. A correct guess takes the next winner rank; the
// guess that fills the quota closes the round.
func (s *GuessService) SubmitGuess(ctx context.Context, playerID string, guess []int) (*GuessResult, error) {
	if playerID == "" {
		return nil, apperr.InvalidArgumentf("player id is required")
	}
	if err := ValidateGuess(guess, s.rules.CodeLength); err != nil {
		return nil, err
	}

	var (
		res    *GuessResult
		round  *models.Round
		winner *models.Winner
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()

		var err error
		round, err = activeRound(ctx, tx)
		if err != nil {
			return err
		}

		player, err := tx.PlayerByID(ctx, playerID)
		if err != nil {
			return translate(err, "player "+playerID)
		}
		code, err := tx.UserCode(ctx, playerID, round.ID)
		if err != nil {
			return translate(err, fmt.Sprintf("code for round %d", round.RoundNo))
		}

		// both flags are checked in case an earlier write only reached one record
		if code.IsWinner || (player.CurrentRoundID == round.ID && player.IsWinnerInCurrentRound) {
			return apperr.FailedPreconditionf("player already won round %d", round.RoundNo)
		}

		if err := s.limiter.ChargeGuess(player, now); err != nil {
			return err
		}
		code.Attempts++
		code.UpdatedAt = now
		player.UpdatedAt = now

		res = &GuessResult{}
		winner = nil
		if matches(code.Code, guess) {
			if winner, err = s.recordWin(ctx, tx, round, player, code, res); err != nil {
				return err
			}
		}

		if err := tx.UpdateUserCode(ctx, code); err != nil {
			return fmt.Errorf("update user code: %w", err)
		}
		if err := tx.SavePlayer(ctx, player); err != nil {
			return fmt.Errorf("save player: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if winner != nil {
		log.WithFields(log.Fields{"player": playerID, "round": round.RoundNo, "rank": winner.Rank}).Info("winner recorded")
		s.notify.WinnerRecorded(round, winner)
		if res.RoundEnded {
			log.WithFields(log.Fields{"round": round.RoundNo}).Info("round ended, winner quota reached")
			s.notify.RoundEnded(round)
		}
	}
	return res, nil
}

func (s *GuessService) recordWin(ctx context.Context, tx store.Tx, round *models.Round, player *models.Player, code *models.UserCode, res *GuessResult) (*models.Winner, error) {
	// serializable isolation makes this check authoritative
	if round.QuotaReached() {
		return nil, apperr.FailedPreconditionf("round %d already has %d winners", round.RoundNo, round.WinnerQuota)
	}

	now := s.now()
	round.WinnerCount++
	code.IsWinner = true
	player.IsWinnerInCurrentRound = true

	rank := round.WinnerCount
	w := &models.Winner{
		ID:           uuid.New().String(),
		RoundID:      round.ID,
		PlayerID:     player.ID,
		Rank:         rank,
		CodeSnapshot: code.Code,
		WonAt:        now,
	}
	if err := tx.InsertWinner(ctx, w); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Internalf("rank %d of round %d already taken", rank, round.RoundNo)
		}
		return nil, fmt.Errorf("insert winner: %w", err)
	}

	res.Correct = true
	res.WinnerRank = &rank

	if round.QuotaReached() {
		closeRound(round, now)
		player.ResetRound("")
		res.RoundEnded = true
	}
	if err := tx.UpdateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("update round: %w", err)
	}
	return w, nil
}
