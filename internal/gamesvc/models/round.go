package models

import (
	"time"
)

type Round struct {
	ID          string     `json:"id" bson:"_id"`                                // Primary key
	RoundNo     int64      `json:"round_no" bson:"round_no"`                     // Sequential round number, starts at 1
	IsActive    bool       `json:"is_active" bson:"is_active"`                   // At most one active round at a time
	WinnerCount int        `json:"winner_count" bson:"winner_count"`             // Never exceeds WinnerQuota
	WinnerQuota int        `json:"winner_quota" bson:"winner_quota"`             // Round closes when reached
	StartedAt   time.Time  `json:"started_at" bson:"started_at"`                 // Timestamp
	EndedAt     *time.Time `json:"ended_at,omitempty" bson:"ended_at,omitempty"` // Set once the round is closed
}

// QuotaReached reports whether no more winners can be recorded.
func (r *Round) QuotaReached() bool {
	return r.WinnerCount >= r.WinnerQuota
}
