package models

import "time"

// UserCode is the secret assigned to one player for one round.
type UserCode struct {
	ID                string    `json:"id" bson:"_id"`                                // Primary key
	PlayerID          string    `json:"player_id" bson:"player_id"`                   // Unique together with RoundID
	RoundID           string    `json:"round_id" bson:"round_id"`                     // FK to rounds
	Code              string    `json:"-" bson:"code"`                                // Secret digits, never sent to the player
	Attempts          int       `json:"attempts" bson:"attempts"`                     // Guesses charged in this round
	HintPurchases     int       `json:"hint_purchases" bson:"hint_purchases"`         // Completed hint payments
	RevealedPositions []int     `json:"revealed_positions" bson:"revealed_positions"` // Ascending, at most HintQuota entries
	IsWinner          bool      `json:"is_winner" bson:"is_winner"`                   // Never reverts once true
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" bson:"updated_at"`
}

// Digit returns the secret digit at position i.
func (c *UserCode) Digit(i int) int {
	return int(c.Code[i] - '0')
}

// IsRevealed reports whether position i has already been disclosed.
func (c *UserCode) IsRevealed(i int) bool {
	for _, p := range c.RevealedPositions {
		if p == i {
			return true
		}
	}
	return false
}

// Reveal inserts position i keeping the set ascending. It returns false if
// the position was already present.
func (c *UserCode) Reveal(i int) bool {
	at := len(c.RevealedPositions)
	for k, p := range c.RevealedPositions {
		if p == i {
			return false
		}
		if p > i {
			at = k
			break
		}
	}
	c.RevealedPositions = append(c.RevealedPositions, 0)
	copy(c.RevealedPositions[at+1:], c.RevealedPositions[at:])
	c.RevealedPositions[at] = i
	return true
}
