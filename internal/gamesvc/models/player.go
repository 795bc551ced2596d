package models

import (
	"time"
)

// Player represents the player profile. Round scoped fields refer to CurrentRoundID.
type Player struct {
	ID                     string          `json:"id" bson:"_id"`
	CurrentRoundID         string          `json:"current_round_id,omitempty" bson:"current_round_id"`
	IsWinnerInCurrentRound bool            `json:"is_winner_in_current_round" bson:"is_winner_in_current_round"`
	HintCount              int             `json:"hint_count" bson:"hint_count"`
	AttemptCount           int             `json:"attempt_count" bson:"attempt_count"` // attempts in the current rate limit window
	LastAttemptAt          *time.Time      `json:"last_attempt_at,omitempty" bson:"last_attempt_at,omitempty"`
	LastHintAt             *time.Time      `json:"last_hint_at,omitempty" bson:"last_hint_at,omitempty"`
	RevealedDigits         []RevealedDigit `json:"revealed_digits" bson:"revealed_digits"`
	CreatedAt              time.Time       `json:"createdAt" bson:"created_at"`
	UpdatedAt              time.Time       `json:"updatedAt" bson:"updated_at"`
}

type RevealedDigit struct {
	Position int `json:"position" bson:"position"`
	Digit    int `json:"digit" bson:"digit"`
}

// ResetRound clears every round scoped field and points the profile at roundID.
func (p *Player) ResetRound(roundID string) {
	p.CurrentRoundID = roundID
	p.IsWinnerInCurrentRound = false
	p.HintCount = 0
	p.AttemptCount = 0
	p.LastAttemptAt = nil
	p.RevealedDigits = nil
}
