package service

import "github.com/avvvet/codebreak-services/internal/gamesvc/models"

// Notifier hears about round transitions once their transaction has
// committed. Implementations must not block.
type Notifier interface {
	RoundStarted(r *models.Round)
	RoundEnded(r *models.Round)
	WinnerRecorded(r *models.Round, w *models.Winner)
}

type nopNotifier struct{}

func (nopNotifier) RoundStarted(*models.Round)                   {}
func (nopNotifier) RoundEnded(*models.Round)                     {}
func (nopNotifier) WinnerRecorded(*models.Round, *models.Winner) {}

func WithNotifier(n Notifier) Option {
	return func(b *base) {
		if n != nil {
			b.notify = n
		}
	}
}
