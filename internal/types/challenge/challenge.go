package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusEnded  Status = "ENDED"
)

type ParticipationStatus string

const (
	ParticipationInProgress ParticipationStatus = "IN_PROGRESS"
	ParticipationCompleted  ParticipationStatus = "COMPLETED"
	ParticipationFailed     ParticipationStatus = "FAILED"
)

// MaxProgress is the percentage at which a participation completes.
const MaxProgress = 100

type Challenge struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	Title         string      `json:"title" db:"title"`
	Description   string      `json:"description" db:"description"`
	Points        int         `json:"points" db:"points"`
	BadgeID       string      `json:"badge_id" db:"badge_id"`
	BadgeImageURL *string     `json:"badge_image_url,omitempty" db:"badge_image_url"`
	ExperienceIDs []uuid.UUID `json:"experience_ids" db:"-"`
	Categories    []string    `json:"categories" db:"categories"`
	StartDate     time.Time   `json:"start_date" db:"start_date"`
	EndDate       time.Time   `json:"end_date" db:"end_date"`
	Status        Status      `json:"status" db:"status"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// IsOpen reports whether the challenge accepts joins and progress at t.
func (c *Challenge) IsOpen(t time.Time) bool {
	if c.Status != StatusActive {
		return false
	}
	if t.Before(c.StartDate) {
		return false
	}
	return !t.After(c.EndDate)
}

// Matches applies the eligibility rule: explicit experience linkage wins,
// category membership is the fallback.
func (c *Challenge) Matches(experienceID uuid.UUID, category string) bool {
	for _, id := range c.ExperienceIDs {
		if id == experienceID {
			return true
		}
	}
	if category == "" {
		return false
	}
	for _, cat := range c.Categories {
		if cat == category {
			return true
		}
	}
	return false
}

type Participation struct {
	ID           uuid.UUID           `json:"id" db:"id"`
	UserID       uuid.UUID           `json:"user_id" db:"user_id"`
	ChallengeID  uuid.UUID           `json:"challenge_id" db:"challenge_id"`
	Progress     int                 `json:"progress" db:"progress"`
	Status       ParticipationStatus `json:"status" db:"status"`
	PointsEarned int                 `json:"points_earned" db:"points_earned"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty" db:"completed_at"`
	JoinedAt     time.Time           `json:"joined_at" db:"joined_at"`
	UpdatedAt    time.Time           `json:"updated_at" db:"updated_at"`
}

type ParticipationWithChallenge struct {
	Participation
	Challenge Challenge `json:"challenge"`
}

// ProgressUpdate is a compare-and-set write of one participation. The write
// only applies while the stored row still has ExpectedProgress and is
// IN_PROGRESS.
type ProgressUpdate struct {
	ParticipationID  uuid.UUID
	UserID           uuid.UUID
	ExpectedProgress int
	NewProgress      int
	Status           ParticipationStatus
	PointsEarned     int
	CompletedAt      *time.Time
	// BookingID, when set, makes the write a no-op on replay of the same booking.
	BookingID *uuid.UUID
	// Reward is inserted in the same transaction when the update completes the participation.
	Reward *RewardGrant
}

type RewardGrant struct {
	ChallengeID uuid.UUID
	Title       string
	Points      int
	BadgeID     string
}

// Outcome is the per-challenge result of one advance call.
type Outcome struct {
	ChallengeID     uuid.UUID           `json:"challenge_id"`
	ParticipationID uuid.UUID           `json:"participation_id"`
	Title           string              `json:"title"`
	Progress        int                 `json:"progress"`
	Status          ParticipationStatus `json:"status"`
	PointsEarned    int                 `json:"points_earned"`
	Error           string              `json:"error,omitempty"`
}
