package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"xHuntAPI/internal/store"
	"xHuntAPI/internal/types/booking"
	"xHuntAPI/internal/types/challenge"
	"xHuntAPI/internal/types/notification"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	mu   sync.Mutex
	sent []*notification.CreateNotificationRequest
}

func (r *recordingEmitter) Emit(ctx context.Context, req *notification.CreateNotificationRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, req)
	return nil
}

func (r *recordingEmitter) count(t notification.NotificationType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.sent {
		if req.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	store      *store.MemoryStore
	emitter    *recordingEmitter
	engine     *ChallengeEngine
	challenges *ChallengeService
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := store.NewMemoryStore()
	emitter := &recordingEmitter{}
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	engine := NewChallengeEngine(s, emitter)
	engine.now = func() time.Time { return now }

	challenges := NewChallengeService(s, emitter)
	challenges.now = func() time.Time { return now }

	return &fixture{store: s, emitter: emitter, engine: engine, challenges: challenges, now: now}
}

// createChallenge stores an open hiking challenge worth 500 points. mutate
// may adjust it before it is saved.
func (f *fixture) createChallenge(t *testing.T, mutate func(c *challenge.Challenge)) *challenge.Challenge {
	t.Helper()

	c := &challenge.Challenge{
		ID:         uuid.New(),
		Title:      "Summit Seeker",
		Points:     500,
		BadgeID:    "summit-seeker",
		Categories: []string{"hiking"},
		StartDate:  f.now.Add(-24 * time.Hour),
		EndDate:    f.now.Add(30 * 24 * time.Hour),
		Status:     challenge.StatusActive,
	}
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, f.store.CreateChallenge(context.Background(), c))
	return c
}

func (f *fixture) join(t *testing.T, userID uuid.UUID, c *challenge.Challenge) *challenge.Participation {
	t.Helper()
	p, err := f.challenges.Join(context.Background(), userID, c.ID)
	require.NoError(t, err)
	return p
}

func (f *fixture) participation(t *testing.T, id uuid.UUID) *challenge.Participation {
	t.Helper()
	p, err := f.store.GetParticipation(context.Background(), id)
	require.NoError(t, err)
	return p
}

// setProgress moves an in-progress participation straight to progress.
func (f *fixture) setProgress(t *testing.T, p *challenge.Participation, progress int) {
	t.Helper()
	current := f.participation(t, p.ID)
	_, err := f.store.ApplyProgress(context.Background(), &challenge.ProgressUpdate{
		ParticipationID:  p.ID,
		UserID:           p.UserID,
		ExpectedProgress: current.Progress,
		NewProgress:      progress,
		Status:           challenge.ParticipationInProgress,
	})
	require.NoError(t, err)
}

func (f *fixture) createExperience(t *testing.T, category string) *booking.Experience {
	t.Helper()
	e := &booking.Experience{
		ID:         uuid.New(),
		Title:      "Ridge Trail Day Hike",
		Category:   category,
		PriceCents: 8900,
		Currency:   "usd",
	}
	require.NoError(t, f.store.CreateExperience(context.Background(), e))
	return e
}
