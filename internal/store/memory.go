package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"xHuntAPI/internal/types/booking"
	"xHuntAPI/internal/types/challenge"
	"xHuntAPI/internal/types/notification"
	"xHuntAPI/internal/types/reward"
	"xHuntAPI/internal/types/user"

	"github.com/google/uuid"
)

type progressKey struct {
	participationID uuid.UUID
	bookingID       uuid.UUID
}

type participantKey struct {
	userID      uuid.UUID
	challengeID uuid.UUID
}

// MemoryStore is an in-process Gateway. Every method holds the store lock for
// its whole duration, which gives the same atomicity as one Postgres
// transaction.
type MemoryStore struct {
	mu sync.RWMutex

	users          map[uuid.UUID]*user.User
	usersByClerk   map[string]uuid.UUID
	experiences    map[uuid.UUID]*booking.Experience
	bookings       map[uuid.UUID]*booking.Booking
	payments       map[uuid.UUID]*booking.Payment
	challenges     map[uuid.UUID]*challenge.Challenge
	participations map[uuid.UUID]*challenge.Participation
	participants   map[participantKey]uuid.UUID
	progressEvents map[progressKey]time.Time
	rewards        map[uuid.UUID]*reward.Reward
	rewardsByPart  map[uuid.UUID]uuid.UUID
	notifications  map[uuid.UUID]*notification.Notification
	devices        map[uuid.UUID]map[string]notification.DeviceToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:          make(map[uuid.UUID]*user.User),
		usersByClerk:   make(map[string]uuid.UUID),
		experiences:    make(map[uuid.UUID]*booking.Experience),
		bookings:       make(map[uuid.UUID]*booking.Booking),
		payments:       make(map[uuid.UUID]*booking.Payment),
		challenges:     make(map[uuid.UUID]*challenge.Challenge),
		participations: make(map[uuid.UUID]*challenge.Participation),
		participants:   make(map[participantKey]uuid.UUID),
		progressEvents: make(map[progressKey]time.Time),
		rewards:        make(map[uuid.UUID]*reward.Reward),
		rewardsByPart:  make(map[uuid.UUID]uuid.UUID),
		notifications:  make(map[uuid.UUID]*notification.Notification),
		devices:        make(map[uuid.UUID]map[string]notification.DeviceToken),
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func copyChallenge(c *challenge.Challenge) *challenge.Challenge {
	cp := *c
	cp.ExperienceIDs = append([]uuid.UUID(nil), c.ExperienceIDs...)
	cp.Categories = append([]string(nil), c.Categories...)
	return &cp
}

func copyParticipation(p *challenge.Participation) *challenge.Participation {
	cp := *p
	return &cp
}

// ---------------------------------------------------------
// USERS
// ---------------------------------------------------------

func (s *MemoryStore) UpsertUser(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if id, ok := s.usersByClerk[req.ClerkID]; ok {
		u := s.users[id]
		u.Email = req.Email
		u.Username = req.Username
		u.FirstName = req.FirstName
		u.LastName = req.LastName
		u.ImageURL = req.ImageURL
		u.EmailVerified = req.EmailVerified
		u.UpdatedAt = now
		cp := *u
		return &cp, nil
	}

	u := &user.User{
		ID:            uuid.New(),
		ClerkID:       req.ClerkID,
		Email:         req.Email,
		Username:      req.Username,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		ImageURL:      req.ImageURL,
		EmailVerified: req.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.users[u.ID] = u
	s.usersByClerk[u.ClerkID] = u.ID
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByClerk[clerkID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *MemoryStore) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByClerk[clerkID]
	if !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	delete(s.usersByClerk, clerkID)
	return nil
}

// ---------------------------------------------------------
// CHALLENGES
// ---------------------------------------------------------

func (s *MemoryStore) CreateChallenge(ctx context.Context, c *challenge.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.challenges[c.ID]; exists {
		return ErrDuplicate
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.challenges[c.ID] = copyChallenge(c)
	return nil
}

func (s *MemoryStore) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyChallenge(c), nil
}

func (s *MemoryStore) ListChallenges(ctx context.Context, status challenge.Status) ([]*challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*challenge.Challenge{}
	for _, c := range s.challenges {
		if status != "" && c.Status != status {
			continue
		}
		result = append(result, copyChallenge(c))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EndDate.Before(result[j].EndDate) })
	return result, nil
}

func (s *MemoryStore) SetBadgeImage(ctx context.Context, id uuid.UUID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return ErrNotFound
	}
	c.BadgeImageURL = &url
	return nil
}

func (s *MemoryStore) EndExpiredChallenges(ctx context.Context, now time.Time) ([]*challenge.Challenge, []*challenge.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ended []*challenge.Challenge
	endedIDs := make(map[uuid.UUID]bool)
	for _, c := range s.challenges {
		if c.Status == challenge.StatusActive && c.EndDate.Before(now) {
			c.Status = challenge.StatusEnded
			ended = append(ended, copyChallenge(c))
			endedIDs[c.ID] = true
		}
	}

	var failed []*challenge.Participation
	for _, p := range s.participations {
		if endedIDs[p.ChallengeID] && p.Status == challenge.ParticipationInProgress {
			p.Status = challenge.ParticipationFailed
			p.UpdatedAt = now
			failed = append(failed, copyParticipation(p))
		}
	}
	return ended, failed, nil
}

// ---------------------------------------------------------
// PARTICIPATIONS
// ---------------------------------------------------------

func (s *MemoryStore) CreateParticipation(ctx context.Context, p *challenge.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := participantKey{userID: p.UserID, challengeID: p.ChallengeID}
	if _, exists := s.participants[key]; exists {
		return ErrDuplicate
	}
	now := time.Now()
	p.JoinedAt = now
	p.UpdatedAt = now
	s.participations[p.ID] = copyParticipation(p)
	s.participants[key] = p.ID
	return nil
}

func (s *MemoryStore) GetParticipation(ctx context.Context, id uuid.UUID) (*challenge.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyParticipation(p), nil
}

func (s *MemoryStore) listParticipations(userID uuid.UUID, onlyInProgress bool) []*challenge.ParticipationWithChallenge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*challenge.ParticipationWithChallenge{}
	for _, p := range s.participations {
		if p.UserID != userID {
			continue
		}
		if onlyInProgress && p.Status != challenge.ParticipationInProgress {
			continue
		}
		c, ok := s.challenges[p.ChallengeID]
		if !ok {
			continue
		}
		result = append(result, &challenge.ParticipationWithChallenge{
			Participation: *p,
			Challenge:     *copyChallenge(c),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.Before(result[j].JoinedAt) })
	return result
}

func (s *MemoryStore) ListParticipations(ctx context.Context, userID uuid.UUID) ([]*challenge.ParticipationWithChallenge, error) {
	return s.listParticipations(userID, false), nil
}

func (s *MemoryStore) ListInProgress(ctx context.Context, userID uuid.UUID) ([]*challenge.ParticipationWithChallenge, error) {
	return s.listParticipations(userID, true), nil
}

func (s *MemoryStore) ApplyProgress(ctx context.Context, u *challenge.ProgressUpdate) (*reward.Reward, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participations[u.ParticipationID]
	if !ok {
		return nil, ErrNotFound
	}

	var key progressKey
	if u.BookingID != nil {
		key = progressKey{participationID: u.ParticipationID, bookingID: *u.BookingID}
		if _, seen := s.progressEvents[key]; seen {
			return nil, ErrAlreadyApplied
		}
	}

	if p.Status != challenge.ParticipationInProgress || p.Progress != u.ExpectedProgress {
		return nil, ErrConflict
	}

	var issued *reward.Reward
	if u.Reward != nil {
		if _, exists := s.rewardsByPart[u.ParticipationID]; exists {
			return nil, ErrConflict
		}
		issued = &reward.Reward{
			ID:              uuid.New(),
			UserID:          u.UserID,
			ParticipationID: u.ParticipationID,
			ChallengeID:     u.Reward.ChallengeID,
			Type:            reward.TypeBadge,
			Title:           u.Reward.Title,
			Points:          u.Reward.Points,
			BadgeID:         u.Reward.BadgeID,
			IssuedAt:        time.Now(),
		}
	}

	now := time.Now()
	p.Progress = u.NewProgress
	p.Status = u.Status
	p.PointsEarned = u.PointsEarned
	if p.CompletedAt == nil && u.CompletedAt != nil {
		t := *u.CompletedAt
		p.CompletedAt = &t
	}
	p.UpdatedAt = now

	if u.BookingID != nil {
		s.progressEvents[key] = now
	}
	if issued != nil {
		s.rewards[issued.ID] = issued
		s.rewardsByPart[issued.ParticipationID] = issued.ID
		cp := *issued
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) ListRewards(ctx context.Context, userID uuid.UUID) ([]*reward.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*reward.Reward{}
	for _, r := range s.rewards {
		if r.UserID == userID {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].IssuedAt.After(result[j].IssuedAt) })
	return result, nil
}

// ---------------------------------------------------------
// EXPERIENCES & BOOKINGS
// ---------------------------------------------------------

func (s *MemoryStore) CreateExperience(ctx context.Context, e *booking.Experience) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	s.experiences[e.ID] = &cp
	return nil
}

func (s *MemoryStore) GetExperience(ctx context.Context, id uuid.UUID) (*booking.Experience, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.experiences[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) ListExperiences(ctx context.Context, category string) ([]*booking.Experience, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*booking.Experience{}
	for _, e := range s.experiences {
		if category != "" && e.Category != category {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Title < result[j].Title })
	return result, nil
}

func (s *MemoryStore) CreateBooking(ctx context.Context, b *booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *MemoryStore) GetBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) SetPaymentRef(ctx context.Context, id uuid.UUID, provider booking.Provider, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok || b.Status != booking.StatusPending {
		return ErrConflict
	}
	b.PaymentProvider = &provider
	b.PaymentRef = &ref
	return nil
}

func (s *MemoryStore) ConfirmBooking(ctx context.Context, id uuid.UUID, p *booking.Payment) (*booking.Booking, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	switch b.Status {
	case booking.StatusConfirmed:
		cp := *b
		return &cp, false, nil
	case booking.StatusCancelled:
		cp := *b
		return &cp, false, ErrConflict
	}

	now := time.Now()
	provider := p.Provider
	ref := p.ProviderRef
	b.Status = booking.StatusConfirmed
	b.PaymentProvider = &provider
	b.PaymentRef = &ref
	b.ConfirmedAt = &now

	s.payments[b.ID] = &booking.Payment{
		ID:          uuid.New(),
		BookingID:   b.ID,
		Provider:    p.Provider,
		ProviderRef: p.ProviderRef,
		AmountCents: b.AmountCents,
		Currency:    b.Currency,
		CreatedAt:   now,
	}

	cp := *b
	return &cp, true, nil
}

func (s *MemoryStore) CancelBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok || b.Status != booking.StatusPending {
		return nil, ErrConflict
	}
	b.Status = booking.StatusCancelled
	cp := *b
	return &cp, nil
}

// ---------------------------------------------------------
// NOTIFICATIONS
// ---------------------------------------------------------

func (s *MemoryStore) CreateNotification(ctx context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *MemoryStore) userNotifications(userID uuid.UUID, unreadOnly bool) []*notification.Notification {
	result := []*notification.Notification{}
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.ReadAt != nil {
			continue
		}
		cp := *n
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

func (s *MemoryStore) ListNotifications(ctx context.Context, userID uuid.UUID, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.userNotifications(userID, false)
	filtered := all
	if unreadOnly {
		filtered = s.userNotifications(userID, true)
	}

	unread := 0
	for _, n := range all {
		if n.ReadAt == nil {
			unread++
		}
	}

	start := (page - 1) * pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	return &notification.NotificationListResponse{
		Notifications: filtered[start:end],
		UnreadCount:   unread,
		TotalCount:    len(all),
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

func (s *MemoryStore) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.userNotifications(userID, true)), nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[notificationID]
	if !ok || n.UserID != userID || n.ReadAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	n.ReadAt = &now
	n.Status = notification.StatusRead
	return nil
}

func (s *MemoryStore) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, n := range s.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &now
			n.Status = notification.StatusRead
		}
	}
	return nil
}

func (s *MemoryStore) MarkSent(ctx context.Context, notificationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.notifications[notificationID]; ok && n.Status == notification.StatusPending {
		now := time.Now()
		n.Status = notification.StatusSent
		n.SentAt = &now
	}
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, notificationID uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.notifications[notificationID]; ok && n.Status == notification.StatusPending {
		n.Status = notification.StatusFailed
		n.FailureReason = &reason
	}
	return nil
}

func (s *MemoryStore) RegisterDevice(ctx context.Context, userID uuid.UUID, token notification.DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.devices[userID] == nil {
		s.devices[userID] = make(map[string]notification.DeviceToken)
	}
	s.devices[userID][token.Token] = token
	return nil
}

func (s *MemoryStore) DeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tokens []notification.DeviceToken
	for _, t := range s.devices[userID] {
		tokens = append(tokens, t)
	}
	return tokens, nil
}

var _ Gateway = (*MemoryStore)(nil)
