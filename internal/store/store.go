// Package store is the persistence gateway. Services depend on the narrow
// interfaces below; PostgresStore backs production and MemoryStore backs
// tests and local runs.
package store

import (
	"context"
	"errors"
	"time"

	"xHuntAPI/internal/types/booking"
	"xHuntAPI/internal/types/challenge"
	"xHuntAPI/internal/types/notification"
	"xHuntAPI/internal/types/reward"
	"xHuntAPI/internal/types/user"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("record already exists")
	// ErrConflict is returned when a compare-and-set write lost the race.
	ErrConflict = errors.New("record changed concurrently")
	// ErrAlreadyApplied is returned when a keyed progress write was already committed.
	ErrAlreadyApplied = errors.New("update already applied")
)

type UserStore interface {
	UpsertUser(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error)
	GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error)
	DeleteUserByClerkID(ctx context.Context, clerkID string) error
}

type ChallengeStore interface {
	CreateChallenge(ctx context.Context, c *challenge.Challenge) error
	GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error)
	ListChallenges(ctx context.Context, status challenge.Status) ([]*challenge.Challenge, error)
	SetBadgeImage(ctx context.Context, id uuid.UUID, url string) error
	// EndExpiredChallenges moves ACTIVE challenges whose end date is before now
	// to ENDED and fails their IN_PROGRESS participations.
	EndExpiredChallenges(ctx context.Context, now time.Time) ([]*challenge.Challenge, []*challenge.Participation, error)

	// CreateParticipation returns ErrDuplicate when the user already joined.
	CreateParticipation(ctx context.Context, p *challenge.Participation) error
	GetParticipation(ctx context.Context, id uuid.UUID) (*challenge.Participation, error)
	ListParticipations(ctx context.Context, userID uuid.UUID) ([]*challenge.ParticipationWithChallenge, error)
	ListInProgress(ctx context.Context, userID uuid.UUID) ([]*challenge.ParticipationWithChallenge, error)
	// ApplyProgress writes the update and its reward atomically. It returns
	// ErrConflict when the row no longer matches the expected state and
	// ErrAlreadyApplied when the booking key was seen before.
	ApplyProgress(ctx context.Context, u *challenge.ProgressUpdate) (*reward.Reward, error)

	ListRewards(ctx context.Context, userID uuid.UUID) ([]*reward.Reward, error)
}

type BookingStore interface {
	CreateExperience(ctx context.Context, e *booking.Experience) error
	GetExperience(ctx context.Context, id uuid.UUID) (*booking.Experience, error)
	ListExperiences(ctx context.Context, category string) ([]*booking.Experience, error)

	CreateBooking(ctx context.Context, b *booking.Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	SetPaymentRef(ctx context.Context, id uuid.UUID, provider booking.Provider, ref string) error
	// ConfirmBooking moves a PENDING booking to CONFIRMED and records the
	// payment in one transaction. confirmed is false when the booking was
	// already CONFIRMED.
	ConfirmBooking(ctx context.Context, id uuid.UUID, p *booking.Payment) (b *booking.Booking, confirmed bool, err error)
	CancelBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *notification.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	MarkSent(ctx context.Context, notificationID uuid.UUID) error
	MarkFailed(ctx context.Context, notificationID uuid.UUID, reason string) error
	RegisterDevice(ctx context.Context, userID uuid.UUID, token notification.DeviceToken) error
	DeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error)
}

// Gateway is the full persistence surface.
type Gateway interface {
	UserStore
	ChallengeStore
	BookingStore
	NotificationStore
	Ping(ctx context.Context) error
}
