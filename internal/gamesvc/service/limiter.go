package service

import (
	"time"

	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
)

// Limiter throttles guesses and hint requests per player. It only reads and
// mutates the player record it is handed, so callers run it inside the same
// transaction as the action it gates.
type Limiter struct {
	GuessWindow  time.Duration
	GuessMax     int
	HintCooldown time.Duration
}

// ChargeGuess counts one guess attempt. The counter starts over once a full
// window has passed since the player's last attempt.
func (l Limiter) ChargeGuess(p *models.Player, now time.Time) error {
	if p.LastAttemptAt == nil || now.Sub(*p.LastAttemptAt) >= l.GuessWindow {
		p.AttemptCount = 0
	}
	if p.AttemptCount >= l.GuessMax {
		wait := l.GuessWindow - now.Sub(*p.LastAttemptAt)
		return apperr.ResourceExhaustedf("too many guesses, try again in %s", wait.Round(time.Second))
	}
	p.AttemptCount++
	at := now
	p.LastAttemptAt = &at
	return nil
}

func (l Limiter) CheckHint(p *models.Player, now time.Time) error {
	if p.LastHintAt != nil && now.Sub(*p.LastHintAt) < l.HintCooldown {
		wait := l.HintCooldown - now.Sub(*p.LastHintAt)
		return apperr.ResourceExhaustedf("hint requested too recently, try again in %s", wait.Round(time.Second))
	}
	return nil
}
