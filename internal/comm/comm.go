package comm

import (
	"encoding/json"
	"time"

	"github.com/avvvet/codebreak-services/internal/gamesvc/models"
)

// NATS subjects.
const (
	GameTopic      = "game.service"
	PaymentTopic   = "payment.service"
	PaymentReplies = "payment.replies"
)

// Message types carried in WSMessage.Type.
const (
	TypeRoundStarted   = "round-started"
	TypeRoundEnded     = "round-ended"
	TypeWinnerRecorded = "winner-recorded"

	TypeHintPaymentConfirmed = "hint-payment-confirmed"
	TypeHintPaymentFailed    = "hint-payment-failed"
	TypePaymentReply         = "payment-reply"

	TypeAssignCode  = "assign-code"
	TypeMyCode      = "my-code"
	TypeSubmitGuess = "submit-guess"
	TypeRequestHint = "request-hint"
	TypeRoundStatus = "round-status"
	TypeError       = "error"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "submit-guess", "round-ended"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
}

// NewMessage marshals data into a WSMessage of type typ.
func NewMessage(typ string, data interface{}, socketId string) (*WSMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &WSMessage{Type: typ, Data: raw, SocketId: socketId}, nil
}

type RoundStatus struct {
	RoundID     string     `json:"round_id"`
	RoundNo     int64      `json:"round_no"`
	IsActive    bool       `json:"is_active"`
	WinnerCount int        `json:"winner_count"`
	WinnerQuota int        `json:"winner_quota"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

func NewRoundStatus(r *models.Round) RoundStatus {
	return RoundStatus{
		RoundID:     r.ID,
		RoundNo:     r.RoundNo,
		IsActive:    r.IsActive,
		WinnerCount: r.WinnerCount,
		WinnerQuota: r.WinnerQuota,
		StartedAt:   r.StartedAt,
		EndedAt:     r.EndedAt,
	}
}

// WinnerEvent is broadcast to internal consumers; it never carries the code.
type WinnerEvent struct {
	RoundID  string    `json:"round_id"`
	RoundNo  int64     `json:"round_no"`
	PlayerID string    `json:"player_id"`
	Rank     int       `json:"rank"`
	RoundEnd bool      `json:"round_end"`
	WonAt    time.Time `json:"won_at"`
}

// Winner is the privileged audit view.
type Winner struct {
	Rank         int       `json:"rank"`
	PlayerID     string    `json:"player_id"`
	CodeSnapshot string    `json:"code_snapshot"`
	WonAt        time.Time `json:"won_at"`
}

type Assignment struct {
	RoundID         string `json:"round_id"`
	RoundNo         int64  `json:"round_no"`
	AlreadyAssigned bool   `json:"already_assigned"`
}

type CodeView struct {
	RoundID       string                 `json:"round_id"`
	RoundNo       int64                  `json:"round_no"`
	Attempts      int                    `json:"attempts"`
	HintPurchases int                    `json:"hint_purchases"`
	Revealed      []models.RevealedDigit `json:"revealed"`
	IsWinner      bool                   `json:"is_winner"`
}

type GuessRequest struct {
	Guess string `json:"guess"` // seven digits, e.g. "0123456"
}

type GuessResult struct {
	Correct    bool `json:"correct"`
	RoundEnded bool `json:"round_ended"`
	WinnerRank *int `json:"winner_rank,omitempty"`
}

type HintRequest struct {
	PaymentRequestID string `json:"payment_request_id"`
	RoundID          string `json:"round_id"`
	Price            string `json:"price"`
}

type PaymentConfirmation struct {
	PaymentRequestID string `json:"payment_request_id"`
	ExternalTxID     string `json:"external_tx_id"`
}

type PaymentFailure struct {
	PaymentRequestID string `json:"payment_request_id"`
	Reason           string `json:"reason"`
}

// PaymentReply is the single terminal answer to a payment callback.
type PaymentReply struct {
	PaymentRequestID string `json:"payment_request_id"`
	OK               bool   `json:"ok"`
	AlreadyProcessed bool   `json:"already_processed"`
	Kind             string `json:"kind,omitempty"`
	Error            string `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
