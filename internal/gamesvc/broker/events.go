package broker

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/codebreak-services/internal/comm"
	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
)

// Events publishes round transitions on game.service. It satisfies
// service.Notifier.
type Events struct {
	pub publisher
}

func NewEvents(nc *nats.Conn) *Events {
	return &Events{pub: nc}
}

func (e *Events) RoundStarted(r *models.Round) {
	e.publish(comm.TypeRoundStarted, comm.NewRoundStatus(r))
}

func (e *Events) RoundEnded(r *models.Round) {
	e.publish(comm.TypeRoundEnded, comm.NewRoundStatus(r))
}

func (e *Events) WinnerRecorded(r *models.Round, w *models.Winner) {
	e.publish(comm.TypeWinnerRecorded, comm.WinnerEvent{
		RoundID:  r.ID,
		RoundNo:  r.RoundNo,
		PlayerID: w.PlayerID,
		Rank:     w.Rank,
		RoundEnd: !r.IsActive,
		WonAt:    w.WonAt,
	})
}

func (e *Events) publish(typ string, data interface{}) {
	msg, err := comm.NewMessage(typ, data, "")
	if err != nil {
		log.Errorf("error [Events.publish] marshaling %s: %v", typ, err)
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("error [Events.publish] marshaling WSMessage: %v", err)
		return
	}
	if err := e.pub.Publish(comm.GameTopic, payload); err != nil {
		log.Errorf("error publishing %s: %v", typ, err)
	}
}
