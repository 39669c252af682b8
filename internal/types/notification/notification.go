package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	TypeChallengeJoined    NotificationType = "challenge_joined"
	TypeChallengeProgress  NotificationType = "challenge_progress"
	TypeChallengeCompleted NotificationType = "challenge_completed"
	TypeChallengeFailed    NotificationType = "challenge_failed"
	TypeBookingConfirmed   NotificationType = "booking_confirmed"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

type NotificationStatus string

const (
	StatusPending NotificationStatus = "pending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
	StatusRead    NotificationStatus = "read"
)

type Notification struct {
	ID            uuid.UUID            `json:"id" db:"id"`
	UserID        uuid.UUID            `json:"user_id" db:"user_id"`
	Type          NotificationType     `json:"type" db:"type"`
	Priority      NotificationPriority `json:"priority" db:"priority"`
	Status        NotificationStatus   `json:"status" db:"status"`
	Title         string               `json:"title" db:"title"`
	Body          string               `json:"body" db:"body"`
	Data          map[string]any       `json:"data,omitempty" db:"data"`
	SentAt        *time.Time           `json:"sent_at,omitempty" db:"sent_at"`
	ReadAt        *time.Time           `json:"read_at,omitempty" db:"read_at"`
	FailureReason *string              `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`
}

type DeviceToken struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}
