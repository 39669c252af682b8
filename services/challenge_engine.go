package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"xHuntAPI/internal/store"
	"xHuntAPI/internal/types/booking"
	"xHuntAPI/internal/types/challenge"
	"xHuntAPI/internal/types/notification"
	"xHuntAPI/internal/types/reward"

	"github.com/google/uuid"
)

const (
	DefaultProgressStep = 10
	maxCASAttempts      = 3
)

// errSkip marks a participation that needs no write: already completed,
// already advanced for this booking, or no longer in progress.
var errSkip = errors.New("participation skipped")

// NotificationEmitter records a user notification. Callers treat it as
// fire-and-forget.
type NotificationEmitter interface {
	Emit(ctx context.Context, req *notification.CreateNotificationRequest) error
}

// ChallengeEngine advances a user's in-progress challenges when one of their
// bookings is confirmed.
type ChallengeEngine struct {
	store    store.ChallengeStore
	notifier NotificationEmitter
	step     int
	now      func() time.Time
}

func NewChallengeEngine(s store.ChallengeStore, notifier NotificationEmitter) *ChallengeEngine {
	return &ChallengeEngine{
		store:    s,
		notifier: notifier,
		step:     DefaultProgressStep,
		now:      time.Now,
	}
}

// SetStep overrides the percentage added per qualifying booking.
func (e *ChallengeEngine) SetStep(step int) error {
	if step <= 0 || step > challenge.MaxProgress {
		return invalid("progress step must be between 1 and %d, got %d", challenge.MaxProgress, step)
	}
	e.step = step
	return nil
}

// Advance applies one qualifying booking for experienceID/category to every
// matching in-progress challenge of userID.
func (e *ChallengeEngine) Advance(ctx context.Context, userID, experienceID uuid.UUID, category string) ([]challenge.Outcome, error) {
	return e.advance(ctx, userID, experienceID, category, nil)
}

// AdvanceBooking is Advance for a confirmed booking. The booking ID keys each
// write so a redelivered payment event never counts twice.
func (e *ChallengeEngine) AdvanceBooking(ctx context.Context, b *booking.Booking) ([]challenge.Outcome, error) {
	if b.Status != booking.StatusConfirmed {
		return nil, invalid("booking %s is %s, not confirmed", b.ID, b.Status)
	}
	bookingID := b.ID
	return e.advance(ctx, b.UserID, b.ExperienceID, b.Category, &bookingID)
}

func (e *ChallengeEngine) advance(ctx context.Context, userID, experienceID uuid.UUID, category string, bookingID *uuid.UUID) ([]challenge.Outcome, error) {
	participations, err := e.store.ListInProgress(ctx, userID)
	if err != nil {
		log.Printf("Challenge engine: failed to load participations for user %s: %v", userID, err)
		return nil, fmt.Errorf("%w: failed to load participations: %w", ErrPersistenceFailure, err)
	}

	category = strings.ToLower(strings.TrimSpace(category))
	now := e.now()
	outcomes := []challenge.Outcome{}
	var failures []error

	for _, pc := range participations {
		c := pc.Challenge
		if !c.IsOpen(now) || !c.Matches(experienceID, category) {
			continue
		}

		outcome, issued, err := e.advanceOne(ctx, &pc.Participation, &c, bookingID, now)
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			log.Printf("Challenge engine: failed to advance challenge %s for user %s: %v", c.ID, userID, err)
			failures = append(failures, fmt.Errorf("challenge %s: %w", c.ID, err))
			outcomes = append(outcomes, challenge.Outcome{
				ChallengeID:     c.ID,
				ParticipationID: pc.ID,
				Title:           c.Title,
				Progress:        pc.Progress,
				Status:          pc.Status,
				PointsEarned:    pc.PointsEarned,
				Error:           err.Error(),
			})
			continue
		}

		outcomes = append(outcomes, *outcome)
		e.notify(ctx, userID, &c, outcome, issued)
	}

	if len(failures) > 0 {
		return outcomes, fmt.Errorf("%w: %w", ErrPersistenceFailure, errors.Join(failures...))
	}
	return outcomes, nil
}

func (e *ChallengeEngine) advanceOne(ctx context.Context, p *challenge.Participation, c *challenge.Challenge, bookingID *uuid.UUID, now time.Time) (*challenge.Outcome, *reward.Reward, error) {
	current := p
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if current.Status != challenge.ParticipationInProgress {
			return nil, nil, errSkip
		}

		update := e.nextUpdate(current, c, bookingID, now)
		issued, err := e.store.ApplyProgress(ctx, update)
		switch {
		case err == nil:
			challengeProgressUpdates.WithLabelValues(string(update.Status)).Inc()
			if issued != nil {
				challengeRewardsIssued.Inc()
			}
			return &challenge.Outcome{
				ChallengeID:     c.ID,
				ParticipationID: current.ID,
				Title:           c.Title,
				Progress:        update.NewProgress,
				Status:          update.Status,
				PointsEarned:    update.PointsEarned,
			}, issued, nil

		case errors.Is(err, store.ErrAlreadyApplied):
			return nil, nil, errSkip

		case errors.Is(err, store.ErrConflict):
			challengeCASConflicts.Inc()
			current, err = e.store.GetParticipation(ctx, p.ID)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to reload participation: %w", err)
			}

		default:
			return nil, nil, err
		}
	}
	return nil, nil, fmt.Errorf("participation %s kept changing after %d attempts", p.ID, maxCASAttempts)
}

func (e *ChallengeEngine) nextUpdate(p *challenge.Participation, c *challenge.Challenge, bookingID *uuid.UUID, now time.Time) *challenge.ProgressUpdate {
	next := p.Progress + e.step
	if next > challenge.MaxProgress {
		next = challenge.MaxProgress
	}

	update := &challenge.ProgressUpdate{
		ParticipationID:  p.ID,
		UserID:           p.UserID,
		ExpectedProgress: p.Progress,
		NewProgress:      next,
		Status:           challenge.ParticipationInProgress,
		PointsEarned:     p.PointsEarned,
		BookingID:        bookingID,
	}

	if next == challenge.MaxProgress {
		completedAt := now
		update.Status = challenge.ParticipationCompleted
		update.PointsEarned = c.Points
		update.CompletedAt = &completedAt
		update.Reward = &challenge.RewardGrant{
			ChallengeID: c.ID,
			Title:       c.Title,
			Points:      c.Points,
			BadgeID:     c.BadgeID,
		}
	}
	return update
}

func (e *ChallengeEngine) notify(ctx context.Context, userID uuid.UUID, c *challenge.Challenge, outcome *challenge.Outcome, issued *reward.Reward) {
	if e.notifier == nil {
		return
	}

	req := &notification.CreateNotificationRequest{
		UserID:   userID,
		Type:     notification.TypeChallengeProgress,
		Priority: notification.PriorityNormal,
		Title:    "Challenge progress",
		Body:     fmt.Sprintf("%s is now %d%% complete", c.Title, outcome.Progress),
		Data: map[string]any{
			"challenge_id": c.ID.String(),
			"progress":     outcome.Progress,
		},
	}

	if outcome.Status == challenge.ParticipationCompleted {
		req.Type = notification.TypeChallengeCompleted
		req.Priority = notification.PriorityHigh
		req.Title = "Challenge completed!"
		req.Body = fmt.Sprintf("You completed %s and earned %d points", c.Title, outcome.PointsEarned)
		req.Data["points"] = outcome.PointsEarned
		req.Data["badge_id"] = c.BadgeID
		if issued != nil {
			req.Data["reward_id"] = issued.ID.String()
		}
	}

	if err := e.notifier.Emit(ctx, req); err != nil {
		log.Printf("Challenge engine: notification for challenge %s failed: %v", c.ID, err)
	}
}
