package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
	"github.com/avvvet/codebreak-services/internal/gamesvc/codegen"
	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
	"github.com/avvvet/codebreak-services/internal/gamesvc/store"
)

// Assignment is what a player learns about their code: never the digits.
type Assignment struct {
	RoundID         string
	RoundNo         int64
	AlreadyAssigned bool
}

// CodeView is the player's own progress on the active round.
type CodeView struct {
	RoundID       string
	RoundNo       int64
	Attempts      int
	HintPurchases int
	Revealed      []models.RevealedDigit
	IsWinner      bool
}

type CodeService struct {
	base
	gen *codegen.Generator
}

func NewCodeService(s store.Store, gen *codegen.Generator, opts ...Option) *CodeService {
	if gen == nil {
		gen = codegen.New(nil)
	}
	return &CodeService{base: newBase(s, opts), gen: gen}
}

// AssignCode gives playerID a code for the active round. Calling it again in
// the same round is a no-op.
func (s *CodeService) AssignCode(ctx context.Context, playerID string) (*Assignment, error) {
	if playerID == "" {
		return nil, apperr.InvalidArgumentf("player id is required")
	}

	var out *Assignment
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		round, err := activeRound(ctx, tx)
		if err != nil {
			return err
		}
		out = &Assignment{RoundID: round.ID, RoundNo: round.RoundNo}

		_, err = tx.UserCode(ctx, playerID, round.ID)
		if err == nil {
			out.AlreadyAssigned = true
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load user code: %w", err)
		}

		code, err := s.uniqueCode(ctx, tx, round.ID)
		if err != nil {
			return err
		}

		now := s.now()
		uc := &models.UserCode{
			ID:        uuid.New().String(),
			PlayerID:  playerID,
			RoundID:   round.ID,
			Code:      code,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertUserCode(ctx, uc); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperr.FailedPreconditionf("code assignment collided, retry")
			}
			return fmt.Errorf("insert user code: %w", err)
		}

		player, err := tx.PlayerByID(ctx, playerID)
		if errors.Is(err, store.ErrNotFound) {
			player = &models.Player{ID: playerID, CreatedAt: now}
		} else if err != nil {
			return fmt.Errorf("load player: %w", err)
		}
		player.ResetRound(round.ID)
		player.UpdatedAt = now
		if err := tx.SavePlayer(ctx, player); err != nil {
			return fmt.Errorf("save player: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !out.AlreadyAssigned {
		log.WithFields(log.Fields{"player": playerID, "round": out.RoundNo}).Info("code assigned")
	}
	return out, nil
}

func (s *CodeService) uniqueCode(ctx context.Context, tx store.Tx, roundID string) (string, error) {
	for i := 0; i < s.rules.MaxCodeDraws; i++ {
		code := codegen.String(s.gen.Generate(s.rules.CodeLength))
		taken, err := tx.CodeTaken(ctx, roundID, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", apperr.Internalf("no free code after %d draws", s.rules.MaxCodeDraws)
}

// MyCode reports the player's attempts and revealed digits in the active round.
func (s *CodeService) MyCode(ctx context.Context, playerID string) (*CodeView, error) {
	if playerID == "" {
		return nil, apperr.InvalidArgumentf("player id is required")
	}

	var view *CodeView
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		round, err := activeRound(ctx, tx)
		if err != nil {
			return err
		}
		uc, err := tx.UserCode(ctx, playerID, round.ID)
		if err != nil {
			return translate(err, "code for round "+fmt.Sprint(round.RoundNo))
		}
		view = &CodeView{
			RoundID:       round.ID,
			RoundNo:       round.RoundNo,
			Attempts:      uc.Attempts,
			HintPurchases: uc.HintPurchases,
			IsWinner:      uc.IsWinner,
			Revealed:      make([]models.RevealedDigit, 0, len(uc.RevealedPositions)),
		}
		for _, pos := range uc.RevealedPositions {
			view.Revealed = append(view.Revealed, models.RevealedDigit{Position: pos, Digit: uc.Digit(pos)})
		}
		return nil
	})
	return view, err
}
