package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/codebreak-services/internal/comm"
	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
	"github.com/avvvet/codebreak-services/internal/gamesvc/service"
)

// Scheduler keeps a round open. After a round ends it waits Delay, counted
// from the round's stored end time, before opening the next one.
type Scheduler struct {
	Rounds   *service.RoundService
	Delay    time.Duration
	Interval time.Duration
}

func New(rounds *service.RoundService, delay, interval time.Duration) *Scheduler {
	return &Scheduler{Rounds: rounds, Delay: delay, Interval: interval}
}

// Tick opens a round when none is open and the delay has passed. It returns
// the round it started, or nil.
func (s *Scheduler) Tick(ctx context.Context) (*models.Round, error) {
	r, started, err := s.Rounds.EnsureActiveRoundAfter(ctx, s.Delay)
	if err != nil || !started {
		return nil, err
	}
	return r, nil
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		r, err := s.Tick(ctx)
		if err != nil {
			log.Errorf("Error [Scheduler.Tick] %s", err)
		} else if r != nil {
			log.WithFields(log.Fields{"round": r.RoundNo}).Info("scheduler opened round")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// HandleGameEvent logs round-ended events from game.service. The wait itself
// is read from the store on every tick.
func (s *Scheduler) HandleGameEvent(m *nats.Msg) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(m.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}
	if msg.Type != comm.TypeRoundEnded {
		return
	}

	var st comm.RoundStatus
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		log.Errorf("Error decoding %s %s", msg.Type, err)
		return
	}
	fields := log.Fields{"round": st.RoundNo, "next_in": s.Delay}
	if st.EndedAt != nil {
		fields["next_at"] = st.EndedAt.Add(s.Delay)
	}
	log.WithFields(fields).Info("round ended, next round scheduled")
}
