package challenge

import (
	"time"

	"github.com/google/uuid"
)

type CreateChallengeRequest struct {
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Points        int         `json:"points"`
	BadgeID       string      `json:"badge_id"`
	ExperienceIDs []uuid.UUID `json:"experience_ids"`
	Categories    []string    `json:"categories"`
	StartDate     time.Time   `json:"start_date"`
	EndDate       time.Time   `json:"end_date"`
}

type JoinResponse struct {
	Participation *Participation `json:"participation"`
}
