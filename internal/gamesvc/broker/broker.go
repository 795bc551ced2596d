package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/codebreak-services/internal/comm"
	"github.com/avvvet/codebreak-services/internal/gamesvc/apperr"
	"github.com/avvvet/codebreak-services/internal/gamesvc/service"
)

type publisher interface {
	Publish(subj string, data []byte) error
}

// Broker consumes payment collaborator callbacks from NATS.
type Broker struct {
	Conn  *nats.Conn
	Hints *service.HintService

	pub publisher
}

func NewBroker(nc *nats.Conn, hints *service.HintService) *Broker {
	return &Broker{Conn: nc, Hints: hints, pub: nc}
}

// handlePayment answers every message exactly once, on its reply subject
// when the sender used request-reply and on payment.replies otherwise.
func (b *Broker) handlePayment(msgNat *nats.Msg) {
	reply := b.processPayment(msgNat.Data)

	payload, err := json.Marshal(reply)
	if err != nil {
		log.Errorf("Error marshalling payment reply %s", err)
		return
	}
	msg := &comm.WSMessage{Type: comm.TypePaymentReply, Data: payload}
	out, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	topic := comm.PaymentReplies
	if msgNat.Reply != "" {
		topic = msgNat.Reply
	}
	b.Publish(topic, out)
}

func (b *Broker) processPayment(data []byte) comm.PaymentReply {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return failedReply("", apperr.InvalidArgumentf("malformed message"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch msg.Type {
	case comm.TypeHintPaymentConfirmed:
		var req comm.PaymentConfirmation
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return failedReply("", apperr.InvalidArgumentf("malformed %s payload", msg.Type))
		}
		res, err := b.Hints.ConfirmPayment(ctx, req.PaymentRequestID, req.ExternalTxID)
		if err != nil {
			logFailure("HintService.ConfirmPayment", err)
			return failedReply(req.PaymentRequestID, err)
		}
		return comm.PaymentReply{PaymentRequestID: res.PaymentRequestID, OK: true, AlreadyProcessed: res.AlreadyProcessed}

	case comm.TypeHintPaymentFailed:
		var req comm.PaymentFailure
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return failedReply("", apperr.InvalidArgumentf("malformed %s payload", msg.Type))
		}
		already, err := b.Hints.FailPayment(ctx, req.PaymentRequestID, req.Reason)
		if err != nil {
			logFailure("HintService.FailPayment", err)
			return failedReply(req.PaymentRequestID, err)
		}
		return comm.PaymentReply{PaymentRequestID: req.PaymentRequestID, OK: true, AlreadyProcessed: already}

	default:
		log.Errorf("Unknown message %s", msg.Type)
		return failedReply("", apperr.InvalidArgumentf("unknown message type %q", msg.Type))
	}
}

func failedReply(id string, err error) comm.PaymentReply {
	return comm.PaymentReply{
		PaymentRequestID: id,
		Kind:             string(apperr.KindOf(err)),
		Error:            apperr.Message(err),
	}
}

func logFailure(op string, err error) {
	if apperr.KindOf(err) == apperr.Internal {
		log.Errorf("Error [%s] %s", op, err)
		return
	}
	log.Warnf("[%s] %s", op, err)
}

// consume payment callbacks (Queue) so each is handled by one instance
func (b *Broker) QueueSubscribePayments(queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(comm.PaymentTopic, queueGroup, b.handlePayment)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.pub.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
