package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"xHuntAPI/internal/store"
	"xHuntAPI/internal/types/challenge"
	"xHuntAPI/internal/types/notification"
	"xHuntAPI/internal/types/reward"

	"github.com/google/uuid"
)

const maxBadgeImageBytes = 2 << 20

type ChallengeService struct {
	store    store.ChallengeStore
	notifier NotificationEmitter
	badges   BadgeStorage
	now      func() time.Time
}

func NewChallengeService(s store.ChallengeStore, notifier NotificationEmitter) *ChallengeService {
	return &ChallengeService{
		store:    s,
		notifier: notifier,
		now:      time.Now,
	}
}

// SetBadgeStorage enables badge artwork uploads.
func (s *ChallengeService) SetBadgeStorage(b BadgeStorage) {
	s.badges = b
}

// Join enrolls userID in challengeID with zero progress.
func (s *ChallengeService) Join(ctx context.Context, userID, challengeID uuid.UUID) (*challenge.Participation, error) {
	c, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, storeErr(err, "challenge")
	}

	if c.Status != challenge.StatusActive || s.now().After(c.EndDate) {
		return nil, ErrChallengeNotActive
	}

	p := &challenge.Participation{
		ID:           uuid.New(),
		UserID:       userID,
		ChallengeID:  challengeID,
		Progress:     0,
		Status:       challenge.ParticipationInProgress,
		PointsEarned: 0,
	}

	if err := s.store.CreateParticipation(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadyParticipating
		}
		return nil, storeErr(err, "create participation")
	}

	log.Printf("User %s joined challenge %s", userID, challengeID)

	if s.notifier != nil {
		err := s.notifier.Emit(ctx, &notification.CreateNotificationRequest{
			UserID:   userID,
			Type:     notification.TypeChallengeJoined,
			Priority: notification.PriorityLow,
			Title:    "Challenge joined",
			Body:     fmt.Sprintf("You joined %s. Every qualifying booking counts!", c.Title),
			Data:     map[string]any{"challenge_id": c.ID.String()},
		})
		if err != nil {
			log.Printf("Failed to emit join notification: %v", err)
		}
	}

	return p, nil
}

func (s *ChallengeService) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	c, err := s.store.GetChallenge(ctx, id)
	if err != nil {
		return nil, storeErr(err, "challenge")
	}
	return c, nil
}

func (s *ChallengeService) ListActiveChallenges(ctx context.Context) ([]*challenge.Challenge, error) {
	challenges, err := s.store.ListChallenges(ctx, challenge.StatusActive)
	if err != nil {
		return nil, storeErr(err, "list challenges")
	}
	return challenges, nil
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if req.Points <= 0 {
		return nil, invalid("points must be positive")
	}
	if strings.TrimSpace(req.BadgeID) == "" {
		return nil, invalid("badge_id is required")
	}
	if len(req.ExperienceIDs) == 0 && len(req.Categories) == 0 {
		return nil, invalid("at least one experience or category is required")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, invalid("start_date must be before end_date")
	}

	categories := make([]string, 0, len(req.Categories))
	for _, cat := range req.Categories {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			categories = append(categories, cat)
		}
	}

	c := &challenge.Challenge{
		ID:            uuid.New(),
		Title:         title,
		Description:   req.Description,
		Points:        req.Points,
		BadgeID:       req.BadgeID,
		ExperienceIDs: req.ExperienceIDs,
		Categories:    categories,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Status:        challenge.StatusActive,
	}

	if err := s.store.CreateChallenge(ctx, c); err != nil {
		return nil, storeErr(err, "create challenge")
	}

	log.Printf("Created challenge %s (%s)", c.ID, c.Title)
	return c, nil
}

func (s *ChallengeService) ListParticipations(ctx context.Context, userID uuid.UUID) ([]*challenge.ParticipationWithChallenge, error) {
	participations, err := s.store.ListParticipations(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "list participations")
	}
	return participations, nil
}

func (s *ChallengeService) ListRewards(ctx context.Context, userID uuid.UUID) (*reward.RewardSummary, error) {
	rewards, err := s.store.ListRewards(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "list rewards")
	}

	summary := &reward.RewardSummary{Rewards: rewards}
	for _, r := range rewards {
		summary.TotalPoints += r.Points
	}
	return summary, nil
}

// AttachBadgeImage uploads badge artwork for a challenge and stores its URL.
func (s *ChallengeService) AttachBadgeImage(ctx context.Context, challengeID uuid.UUID, filename, contentType string, body io.Reader) (*challenge.Challenge, error) {
	if s.badges == nil {
		return nil, fmt.Errorf("badge storage is not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, invalid("badge must be an image, got %q", contentType)
	}

	c, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, storeErr(err, "challenge")
	}

	data, err := io.ReadAll(io.LimitReader(body, maxBadgeImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read badge image: %w", err)
	}
	if len(data) > maxBadgeImageBytes {
		return nil, invalid("badge image exceeds %d bytes", maxBadgeImageBytes)
	}

	key := fmt.Sprintf("badges/%s/%s%s", c.ID, c.BadgeID, strings.ToLower(path.Ext(filename)))
	url, err := s.badges.UploadBadge(ctx, key, contentType, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if err := s.store.SetBadgeImage(ctx, c.ID, url); err != nil {
		return nil, storeErr(err, "set badge image")
	}
	c.BadgeImageURL = &url
	return c, nil
}

// EndExpiredChallenges closes challenges past their end date. Unfinished
// participations fail without partial points.
func (s *ChallengeService) EndExpiredChallenges(ctx context.Context) (int, error) {
	ended, failed, err := s.store.EndExpiredChallenges(ctx, s.now())
	if err != nil {
		return 0, storeErr(err, "end expired challenges")
	}

	titles := make(map[uuid.UUID]string, len(ended))
	for _, c := range ended {
		titles[c.ID] = c.Title
		log.Printf("Challenge %s (%s) ended", c.ID, c.Title)
	}

	if s.notifier != nil {
		for _, p := range failed {
			err := s.notifier.Emit(ctx, &notification.CreateNotificationRequest{
				UserID:   p.UserID,
				Type:     notification.TypeChallengeFailed,
				Priority: notification.PriorityNormal,
				Title:    "Challenge ended",
				Body:     fmt.Sprintf("%s ended at %d%% progress", titles[p.ChallengeID], p.Progress),
				Data:     map[string]any{"challenge_id": p.ChallengeID.String(), "progress": p.Progress},
			})
			if err != nil {
				log.Printf("Failed to emit challenge ended notification: %v", err)
			}
		}
	}

	return len(ended), nil
}
