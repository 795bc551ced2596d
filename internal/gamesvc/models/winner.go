package models

import "time"

// Winner is an append only audit record.
type Winner struct {
	ID           string    `json:"id" bson:"_id"`
	RoundID      string    `json:"round_id" bson:"round_id"`
	PlayerID     string    `json:"player_id" bson:"player_id"`
	Rank         int       `json:"rank" bson:"rank"`                   // 1..WinnerQuota, gapless per round
	CodeSnapshot string    `json:"code_snapshot" bson:"code_snapshot"` // secret at the moment of the win
	WonAt        time.Time `json:"won_at" bson:"won_at"`
}
