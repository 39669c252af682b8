package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"xHuntAPI/internal/store"
	"xHuntAPI/internal/types/challenge"
	"xHuntAPI/internal/types/reward"
	"xHuntAPI/internal/types/user"

	"github.com/google/uuid"
)

// UserProfileStore is what UserService needs from the gateway.
type UserProfileStore interface {
	store.UserStore
	ListParticipations(ctx context.Context, userID uuid.UUID) ([]*challenge.ParticipationWithChallenge, error)
	ListRewards(ctx context.Context, userID uuid.UUID) ([]*reward.Reward, error)
}

type UserService struct {
	store UserProfileStore
}

func NewUserService(s UserProfileStore) *UserService {
	return &UserService{store: s}
}

// SyncFromClerk creates or updates the local user mirrored from Clerk.
func (s *UserService) SyncFromClerk(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error) {
	if strings.TrimSpace(req.ClerkID) == "" {
		return nil, invalid("clerk id is required")
	}
	if req.Username == "" {
		req.Username = defaultUsername(req)
	}

	u, err := s.store.UpsertUser(ctx, req)
	if err != nil {
		return nil, storeErr(err, "upsert user")
	}
	log.Printf("Synced user %s (clerk %s)", u.ID, u.ClerkID)
	return u, nil
}

func (s *UserService) DeleteByClerkID(ctx context.Context, clerkID string) error {
	if err := s.store.DeleteUserByClerkID(ctx, clerkID); err != nil {
		return storeErr(err, "user")
	}
	log.Printf("Deleted user with clerk id %s", clerkID)
	return nil
}

// ResolveUser maps an authenticated Clerk ID onto the local user.
func (s *UserService) ResolveUser(ctx context.Context, clerkID string) (*user.User, error) {
	u, err := s.store.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return u, nil
}

func (s *UserService) GetProfile(ctx context.Context, clerkID string) (*user.Profile, error) {
	u, err := s.ResolveUser(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	participations, err := s.store.ListParticipations(ctx, u.ID)
	if err != nil {
		return nil, storeErr(err, "list participations")
	}
	rewards, err := s.store.ListRewards(ctx, u.ID)
	if err != nil {
		return nil, storeErr(err, "list rewards")
	}

	profile := &user.Profile{User: *u}
	for _, p := range participations {
		switch p.Status {
		case challenge.ParticipationInProgress:
			profile.ActiveChallenges++
		case challenge.ParticipationCompleted:
			profile.CompletedChallenges++
		}
	}
	for _, r := range rewards {
		profile.TotalPoints += r.Points
		if r.BadgeID != "" {
			profile.BadgesEarned++
		}
	}
	return profile, nil
}

func defaultUsername(req *user.UpsertUserRequest) string {
	if at := strings.Index(req.Email, "@"); at > 0 {
		return req.Email[:at]
	}
	return fmt.Sprintf("hunter_%s", strings.TrimPrefix(req.ClerkID, "user_"))
}
