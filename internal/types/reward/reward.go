package reward

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeBadge  Type = "BADGE"
	TypePoints Type = "POINTS"
)

type Reward struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	ParticipationID uuid.UUID `json:"participation_id" db:"participation_id"`
	ChallengeID     uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Type            Type      `json:"type" db:"type"`
	Title           string    `json:"title" db:"title"`
	Points          int       `json:"points" db:"points"`
	BadgeID         string    `json:"badge_id" db:"badge_id"`
	IssuedAt        time.Time `json:"issued_at" db:"issued_at"`
}

type RewardSummary struct {
	Rewards     []*Reward `json:"rewards"`
	TotalPoints int       `json:"total_points"`
}
