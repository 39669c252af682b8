package store

import (
	"context"
	"testing"
	"time"

	"xHuntAPI/internal/types/booking"
	"xHuntAPI/internal/types/challenge"
	"xHuntAPI/internal/types/notification"
	"xHuntAPI/internal/types/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runGatewayTests checks the behaviour every Gateway must share.
func runGatewayTests(t *testing.T, g Gateway) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	newUser := func(t *testing.T) uuid.UUID {
		u, err := g.UpsertUser(ctx, &user.UpsertUserRequest{
			ClerkID: "user_" + uuid.NewString(),
			Email:   "test." + uuid.NewString()[:8] + "@example.com",
		})
		require.NoError(t, err)
		return u.ID
	}

	newChallenge := func(t *testing.T, end time.Time) *challenge.Challenge {
		c := &challenge.Challenge{
			ID:         uuid.New(),
			Title:      "Gateway Test",
			Points:     200,
			BadgeID:    "gateway-test",
			Categories: []string{"hiking"},
			StartDate:  now.Add(-48 * time.Hour),
			EndDate:    end,
			Status:     challenge.StatusActive,
		}
		require.NoError(t, g.CreateChallenge(ctx, c))
		return c
	}

	newParticipation := func(t *testing.T, userID uuid.UUID, c *challenge.Challenge) *challenge.Participation {
		p := &challenge.Participation{
			ID:          uuid.New(),
			UserID:      userID,
			ChallengeID: c.ID,
			Status:      challenge.ParticipationInProgress,
		}
		require.NoError(t, g.CreateParticipation(ctx, p))
		return p
	}

	t.Run("participation is unique per user and challenge", func(t *testing.T) {
		userID := newUser(t)
		c := newChallenge(t, now.Add(24*time.Hour))
		newParticipation(t, userID, c)

		err := g.CreateParticipation(ctx, &challenge.Participation{
			ID:          uuid.New(),
			UserID:      userID,
			ChallengeID: c.ID,
			Status:      challenge.ParticipationInProgress,
		})
		assert.ErrorIs(t, err, ErrDuplicate)

		list, err := g.ListInProgress(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, c.ID, list[0].Challenge.ID)
		assert.Equal(t, []string{"hiking"}, list[0].Challenge.Categories)
	})

	t.Run("apply progress compares and sets", func(t *testing.T) {
		userID := newUser(t)
		c := newChallenge(t, now.Add(24*time.Hour))
		p := newParticipation(t, userID, c)

		_, err := g.ApplyProgress(ctx, &challenge.ProgressUpdate{
			ParticipationID: p.ID, UserID: userID,
			ExpectedProgress: 0, NewProgress: 10, Status: challenge.ParticipationInProgress,
		})
		require.NoError(t, err)

		_, err = g.ApplyProgress(ctx, &challenge.ProgressUpdate{
			ParticipationID: p.ID, UserID: userID,
			ExpectedProgress: 0, NewProgress: 10, Status: challenge.ParticipationInProgress,
		})
		assert.ErrorIs(t, err, ErrConflict)

		got, err := g.GetParticipation(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Progress)
	})

	t.Run("booking key is applied once", func(t *testing.T) {
		userID := newUser(t)
		c := newChallenge(t, now.Add(24*time.Hour))
		p := newParticipation(t, userID, c)
		bookingID := uuid.New()

		_, err := g.ApplyProgress(ctx, &challenge.ProgressUpdate{
			ParticipationID: p.ID, UserID: userID, BookingID: &bookingID,
			ExpectedProgress: 0, NewProgress: 10, Status: challenge.ParticipationInProgress,
		})
		require.NoError(t, err)

		_, err = g.ApplyProgress(ctx, &challenge.ProgressUpdate{
			ParticipationID: p.ID, UserID: userID, BookingID: &bookingID,
			ExpectedProgress: 10, NewProgress: 20, Status: challenge.ParticipationInProgress,
		})
		assert.ErrorIs(t, err, ErrAlreadyApplied)
	})

	t.Run("completion issues exactly one reward", func(t *testing.T) {
		userID := newUser(t)
		c := newChallenge(t, now.Add(24*time.Hour))
		p := newParticipation(t, userID, c)
		completedAt := now

		issued, err := g.ApplyProgress(ctx, &challenge.ProgressUpdate{
			ParticipationID: p.ID, UserID: userID,
			ExpectedProgress: 0, NewProgress: 100,
			Status: challenge.ParticipationCompleted, PointsEarned: c.Points, CompletedAt: &completedAt,
			Reward: &challenge.RewardGrant{ChallengeID: c.ID, Title: c.Title, Points: c.Points, BadgeID: c.BadgeID},
		})
		require.NoError(t, err)
		require.NotNil(t, issued)
		assert.Equal(t, c.Points, issued.Points)

		_, err = g.ApplyProgress(ctx, &challenge.ProgressUpdate{
			ParticipationID: p.ID, UserID: userID,
			ExpectedProgress: 100, NewProgress: 100,
			Status: challenge.ParticipationCompleted, PointsEarned: c.Points,
			Reward: &challenge.RewardGrant{ChallengeID: c.ID, Title: c.Title, Points: c.Points, BadgeID: c.BadgeID},
		})
		assert.ErrorIs(t, err, ErrConflict)

		rewards, err := g.ListRewards(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, rewards, 1)

		inProgress, err := g.ListInProgress(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, inProgress)
	})

	t.Run("expired challenges end and fail open participations", func(t *testing.T) {
		userID := newUser(t)
		c := newChallenge(t, now.Add(-time.Hour))
		p := newParticipation(t, userID, c)

		ended, failed, err := g.EndExpiredChallenges(ctx, now)
		require.NoError(t, err)

		var endedIDs []uuid.UUID
		for _, e := range ended {
			endedIDs = append(endedIDs, e.ID)
		}
		assert.Contains(t, endedIDs, c.ID)

		var failedIDs []uuid.UUID
		for _, f := range failed {
			failedIDs = append(failedIDs, f.ID)
		}
		assert.Contains(t, failedIDs, p.ID)

		got, err := g.GetParticipation(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, challenge.ParticipationFailed, got.Status)
	})

	t.Run("booking confirmation", func(t *testing.T) {
		userID := newUser(t)
		exp := &booking.Experience{ID: uuid.New(), Title: "Sea Kayak Tour", Category: "kayaking", PriceCents: 12000, Currency: "usd"}
		require.NoError(t, g.CreateExperience(ctx, exp))

		newBooking := func() *booking.Booking {
			b := &booking.Booking{
				ID: uuid.New(), UserID: userID, ExperienceID: exp.ID, Category: exp.Category,
				AmountCents: exp.PriceCents, Currency: exp.Currency, Status: booking.StatusPending,
			}
			require.NoError(t, g.CreateBooking(ctx, b))
			return b
		}

		b := newBooking()
		payment := &booking.Payment{BookingID: b.ID, Provider: booking.ProviderStripe, ProviderRef: "pi_" + uuid.NewString()[:8]}

		confirmed, first, err := g.ConfirmBooking(ctx, b.ID, payment)
		require.NoError(t, err)
		assert.True(t, first)
		assert.Equal(t, booking.StatusConfirmed, confirmed.Status)

		again, first, err := g.ConfirmBooking(ctx, b.ID, payment)
		require.NoError(t, err)
		assert.False(t, first)
		assert.Equal(t, b.ID, again.ID)

		cancelled := newBooking()
		_, err = g.CancelBooking(ctx, cancelled.ID)
		require.NoError(t, err)
		_, _, err = g.ConfirmBooking(ctx, cancelled.ID, &booking.Payment{BookingID: cancelled.ID, Provider: booking.ProviderPaddle, ProviderRef: "txn_" + uuid.NewString()[:8]})
		assert.ErrorIs(t, err, ErrConflict)

		_, _, err = g.ConfirmBooking(ctx, uuid.New(), payment)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("notifications are scoped to their user", func(t *testing.T) {
		userID := newUser(t)
		n := &notification.Notification{
			ID: uuid.New(), UserID: userID, Type: notification.TypeChallengeJoined,
			Priority: notification.PriorityLow, Status: notification.StatusPending,
			Title: "Challenge joined", Data: map[string]any{"challenge_id": "abc"},
		}
		require.NoError(t, g.CreateNotification(ctx, n))

		assert.ErrorIs(t, g.MarkRead(ctx, uuid.New(), n.ID), ErrNotFound)
		require.NoError(t, g.MarkRead(ctx, userID, n.ID))

		count, err := g.UnreadCount(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		require.NoError(t, g.RegisterDevice(ctx, userID, notification.DeviceToken{Token: "tok", Platform: "ios"}))
		require.NoError(t, g.RegisterDevice(ctx, userID, notification.DeviceToken{Token: "tok", Platform: "ios"}))
		tokens, err := g.DeviceTokens(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, tokens, 1)
	})
}

func TestMemoryStore(t *testing.T) {
	runGatewayTests(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	c := &challenge.Challenge{
		ID: uuid.New(), Title: "Original", Points: 10, BadgeID: "b",
		Categories: []string{"hiking"}, Status: challenge.StatusActive,
	}
	require.NoError(t, s.CreateChallenge(ctx, c))

	got, err := s.GetChallenge(ctx, c.ID)
	require.NoError(t, err)
	got.Title = "Mutated"
	got.Categories[0] = "climbing"

	again, err := s.GetChallenge(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", again.Title)
	assert.Equal(t, []string{"hiking"}, again.Categories)
}
