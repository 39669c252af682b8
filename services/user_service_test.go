package services

import (
	"context"
	"testing"

	"xHuntAPI/internal/types/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncFromClerk(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.store)
	ctx := context.Background()

	created, err := svc.SyncFromClerk(ctx, &user.UpsertUserRequest{
		ClerkID: "user_2abc",
		Email:   "alex@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "alex", created.Username)

	updated, err := svc.SyncFromClerk(ctx, &user.UpsertUserRequest{
		ClerkID:   "user_2abc",
		Email:     "alex@example.com",
		Username:  "trailrunner",
		FirstName: "Alex",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "trailrunner", updated.Username)

	_, err = svc.SyncFromClerk(ctx, &user.UpsertUserRequest{ClerkID: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)

	noEmail, err := svc.SyncFromClerk(ctx, &user.UpsertUserRequest{ClerkID: "user_9xyz"})
	require.NoError(t, err)
	assert.Equal(t, "hunter_9xyz", noEmail.Username)
}

func TestDeleteAndResolveUser(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.store)
	ctx := context.Background()

	_, err := svc.ResolveUser(ctx, "user_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteByClerkID(ctx, "user_missing"), ErrNotFound)

	_, err = svc.SyncFromClerk(ctx, &user.UpsertUserRequest{ClerkID: "user_1", Email: "a@example.com"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteByClerkID(ctx, "user_1"))

	_, err = svc.ResolveUser(ctx, "user_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)
	svc := NewUserService(f.store)
	ctx := context.Background()

	u, err := svc.SyncFromClerk(ctx, &user.UpsertUserRequest{ClerkID: "user_1", Email: "sam@example.com"})
	require.NoError(t, err)

	done := f.createChallenge(t, nil)
	f.createChallenge(t, nil)
	p := f.join(t, u.ID, done)
	f.setProgress(t, p, 90)

	other := f.createChallenge(t, nil)
	f.join(t, u.ID, other)

	_, err = f.engine.Advance(ctx, u.ID, uuid.New(), "hiking")
	require.NoError(t, err)

	profile, err := svc.GetProfile(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, profile.ID)
	assert.Equal(t, 1, profile.CompletedChallenges)
	assert.Equal(t, 1, profile.ActiveChallenges)
	assert.Equal(t, done.Points, profile.TotalPoints)
	assert.Equal(t, 1, profile.BadgesEarned)
}
