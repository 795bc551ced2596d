package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
	"github.com/avvvet/codebreak-services/internal/gamesvc/codegen"
	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
	"github.com/avvvet/codebreak-services/internal/gamesvc/store"
)

// ExpiredReason is the failure reason stamped on requests that outlived PendingTTL.
const ExpiredReason = "expired"

type HintRequest struct {
	PaymentRequestID string
	RoundID          string
	Price            decimal.Decimal
}

type ConfirmResult struct {
	PaymentRequestID string
	// AlreadyProcessed is set when the request had been confirmed before;
	// nothing was changed by this call.
	AlreadyProcessed bool
	Position         int
}

// HintService sells digit reveals. A hint is reserved by RequestHint and only
// disclosed once the payment collaborator calls ConfirmPayment.
type HintService struct {
	base
	limiter Limiter
	rnd     codegen.Rand
}

func NewHintService(s store.Store, rnd codegen.Rand, opts ...Option) *HintService {
	if rnd == nil {
		rnd = codegen.Default()
	}
	b := newBase(s, opts)
	return &HintService{base: b, limiter: b.rules.Limiter(), rnd: rnd}
}

// RequestHint creates a pending payment entitled to one random position that
// is neither revealed nor reserved by another pending request.
func (s *HintService) RequestHint(ctx context.Context, playerID string) (*HintRequest, error) {
	if playerID == "" {
		return nil, apperr.InvalidArgumentf("player id is required")
	}

	var (
		req     *models.PaymentRequest
		roundNo int64
		expired []string
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		expired = expired[:0]

		round, err := activeRound(ctx, tx)
		if err != nil {
			return err
		}
		roundNo = round.RoundNo

		player, err := tx.PlayerByID(ctx, playerID)
		if err != nil {
			return translate(err, "player "+playerID)
		}
		code, err := tx.UserCode(ctx, playerID, round.ID)
		if err != nil {
			return translate(err, fmt.Sprintf("code for round %d", round.RoundNo))
		}
		if code.IsWinner || (player.CurrentRoundID == round.ID && player.IsWinnerInCurrentRound) {
			return apperr.FailedPreconditionf("player already won round %d", round.RoundNo)
		}

		pending, err := tx.PendingPayments(ctx, playerID, round.ID)
		if err != nil {
			return fmt.Errorf("load pending payments: %w", err)
		}
		if pending, err = s.expireStale(ctx, tx, pending, now, &expired); err != nil {
			return err
		}
		if code.HintPurchases+len(pending) >= s.rules.HintQuota {
			return apperr.ResourceExhaustedf("hint quota of %d reached", s.rules.HintQuota)
		}
		if err := s.limiter.CheckHint(player, now); err != nil {
			return err
		}

		reserved := make(map[int]bool, len(pending))
		for _, p := range pending {
			reserved[p.RequestedDigitIndex] = true
		}
		var free []int
		for i := 0; i < len(code.Code); i++ {
			if !code.IsRevealed(i) && !reserved[i] {
				free = append(free, i)
			}
		}
		if len(free) == 0 {
			return apperr.FailedPreconditionf("all digits already revealed")
		}

		req = &models.PaymentRequest{
			ID:                  uuid.New().String(),
			PlayerID:            playerID,
			RoundID:             round.ID,
			Price:               s.rules.HintPrice,
			Status:              models.PaymentPending,
			RequestedDigitIndex: free[s.rnd.Intn(len(free))],
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := tx.InsertPayment(ctx, req); err != nil {
			return fmt.Errorf("insert payment request: %w", err)
		}

		at := now
		player.LastHintAt = &at
		player.UpdatedAt = now
		if err := tx.SavePlayer(ctx, player); err != nil {
			return fmt.Errorf("save player: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range expired {
		log.WithFields(log.Fields{"request": id, "player": playerID}).Info("hint payment request expired")
	}
	log.WithFields(log.Fields{"player": playerID, "round": roundNo, "request": req.ID}).Info("hint payment requested")
	return &HintRequest{PaymentRequestID: req.ID, RoundID: req.RoundID, Price: req.Price}, nil
}

// ConfirmPayment completes a pending request and reveals its digit. It is
// safe to call again with the same request id: a completed request is
// reported as already processed and nothing changes.
func (s *HintService) ConfirmPayment(ctx context.Context, requestID, externalTxID string) (*ConfirmResult, error) {
	if requestID == "" {
		return nil, apperr.InvalidArgumentf("payment request id is required")
	}
	if externalTxID == "" {
		return nil, apperr.InvalidArgumentf("transaction id is required")
	}

	var res *ConfirmResult
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()

		p, err := tx.PaymentByID(ctx, requestID)
		if err != nil {
			return translate(err, "payment request "+requestID)
		}
		res = &ConfirmResult{PaymentRequestID: p.ID, Position: p.RequestedDigitIndex}

		if p.Status == models.PaymentCompleted && p.HintProvided {
			res.AlreadyProcessed = true
			return nil
		}
		if p.Status != models.PaymentPending {
			return apperr.FailedPreconditionf("payment request %s is %s", p.ID, p.Status)
		}

		code, err := tx.UserCode(ctx, p.PlayerID, p.RoundID)
		if err != nil {
			return translate(err, "code for payment "+p.ID)
		}
		player, err := tx.PlayerByID(ctx, p.PlayerID)
		if err != nil {
			return translate(err, "player "+p.PlayerID)
		}

		p.Status = models.PaymentCompleted
		p.ExternalTxID = externalTxID

		code.Reveal(p.RequestedDigitIndex)
		code.HintPurchases++
		code.UpdatedAt = now

		if player.CurrentRoundID == p.RoundID {
			mirrorReveal(player, p.RequestedDigitIndex, code.Digit(p.RequestedDigitIndex))
			player.HintCount++
			player.UpdatedAt = now
		}

		p.HintProvided = true
		p.UpdatedAt = now

		if err := tx.UpdateUserCode(ctx, code); err != nil {
			return fmt.Errorf("update user code: %w", err)
		}
		if err := tx.SavePlayer(ctx, player); err != nil {
			return fmt.Errorf("save player: %w", err)
		}
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return fmt.Errorf("update payment request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !res.AlreadyProcessed {
		log.WithFields(log.Fields{"request": requestID, "tx": externalTxID, "position": res.Position}).Info("hint revealed")
	}
	return res, nil
}

// FailPayment records that the collaborator could not verify the payment.
// Failing an already failed request is a no-op.
func (s *HintService) FailPayment(ctx context.Context, requestID, reason string) (bool, error) {
	if requestID == "" {
		return false, apperr.InvalidArgumentf("payment request id is required")
	}

	var already bool
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		already = false
		p, err := tx.PaymentByID(ctx, requestID)
		if err != nil {
			return translate(err, "payment request "+requestID)
		}
		switch p.Status {
		case models.PaymentFailed:
			already = true
			return nil
		case models.PaymentCompleted:
			return apperr.FailedPreconditionf("payment request %s is already completed", p.ID)
		}

		p.Status = models.PaymentFailed
		p.FailureReason = reason
		p.UpdatedAt = s.now()
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return fmt.Errorf("update payment request: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if !already {
		log.WithFields(log.Fields{"request": requestID, "reason": reason}).Warn("hint payment failed")
	}
	return already, nil
}

// expireStale fails pending requests older than PendingTTL and returns the
// ones still alive.
func (s *HintService) expireStale(ctx context.Context, tx store.Tx, pending []*models.PaymentRequest, now time.Time, expired *[]string) ([]*models.PaymentRequest, error) {
	if s.rules.PendingTTL <= 0 {
		return pending, nil
	}
	live := pending[:0]
	for _, p := range pending {
		if now.Sub(p.CreatedAt) < s.rules.PendingTTL {
			live = append(live, p)
			continue
		}
		p.Status = models.PaymentFailed
		p.FailureReason = ExpiredReason
		p.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return nil, fmt.Errorf("expire payment request %s: %w", p.ID, err)
		}
		*expired = append(*expired, p.ID)
	}
	return live, nil
}

func mirrorReveal(p *models.Player, pos, digit int) {
	for _, d := range p.RevealedDigits {
		if d.Position == pos {
			return
		}
	}
	p.RevealedDigits = append(p.RevealedDigits, models.RevealedDigit{Position: pos, Digit: digit})
	sort.Slice(p.RevealedDigits, func(i, j int) bool {
		return p.RevealedDigits[i].Position < p.RevealedDigits[j].Position
	})
}
