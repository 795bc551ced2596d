package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentRequest struct {
	ID                  string          `json:"id" bson:"_id"`
	PlayerID            string          `json:"player_id" bson:"player_id"`
	RoundID             string          `json:"round_id" bson:"round_id"`
	Price               decimal.Decimal `json:"price" bson:"price"`
	Status              PaymentStatus   `json:"status" bson:"status"`
	RequestedDigitIndex int             `json:"-" bson:"requested_digit_index"` // position revealed on completion
	HintProvided        bool            `json:"hint_provided" bson:"hint_provided"`
	ExternalTxID        string          `json:"external_tx_id,omitempty" bson:"external_tx_id,omitempty"`
	FailureReason       string          `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CreatedAt           time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" bson:"updated_at"`
}
