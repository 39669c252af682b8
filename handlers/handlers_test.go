package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"xHuntAPI/internal/store"
	"xHuntAPI/internal/types/booking"
	"xHuntAPI/internal/types/challenge"
	"xHuntAPI/internal/types/user"
	"xHuntAPI/middleware"
	"xHuntAPI/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store      *store.MemoryStore
	users      *services.UserService
	challenges *services.ChallengeService
	bookings   *services.BookingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s := store.NewMemoryStore()
	engine := services.NewChallengeEngine(s, nil)
	return &testEnv{
		store:      s,
		users:      services.NewUserService(s),
		challenges: services.NewChallengeService(s, nil),
		bookings:   services.NewBookingService(s, engine, nil, nil),
	}
}

func (e *testEnv) createUser(t *testing.T, clerkID string) *user.User {
	t.Helper()
	u, err := e.users.SyncFromClerk(context.Background(), &user.UpsertUserRequest{
		ClerkID: clerkID,
		Email:   clerkID + "@example.com",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) createChallenge(t *testing.T, start, end time.Time) *challenge.Challenge {
	t.Helper()
	c := &challenge.Challenge{
		ID:         uuid.New(),
		Title:      "Canyon Crawler",
		Points:     250,
		BadgeID:    "canyon-crawler",
		Categories: []string{"canyoning"},
		StartDate:  start,
		EndDate:    end,
		Status:     challenge.StatusActive,
	}
	require.NoError(t, e.store.CreateChallenge(context.Background(), c))
	return c
}

func (e *testEnv) createPendingBooking(t *testing.T, userID uuid.UUID, category string) *booking.Booking {
	t.Helper()
	exp := &booking.Experience{
		ID:         uuid.New(),
		Title:      "Slot Canyon Descent",
		Category:   category,
		PriceCents: 14500,
		Currency:   "usd",
	}
	require.NoError(t, e.store.CreateExperience(context.Background(), exp))

	b, err := e.bookings.CreateBooking(context.Background(), userID, exp.ID)
	require.NoError(t, err)
	return b
}

func withClerkID(r *http.Request, clerkID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.ClerkIDKey, clerkID))
}
