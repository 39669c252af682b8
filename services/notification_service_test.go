package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"xHuntAPI/internal/store"
	"xHuntAPI/internal/types/notification"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPush struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *recordingPush) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *recordingPush) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newNotificationService(t *testing.T) (*NotificationService, *store.MemoryStore) {
	s := store.NewMemoryStore()
	svc := NewNotificationService(s)
	t.Cleanup(svc.Stop)
	return svc, s
}

func notificationStatus(s *store.MemoryStore, userID uuid.UUID) notification.NotificationStatus {
	resp, err := s.ListNotifications(context.Background(), userID, 1, 10, false)
	if err != nil || len(resp.Notifications) != 1 {
		return ""
	}
	return resp.Notifications[0].Status
}

func TestEmit_DeliversPush(t *testing.T) {
	svc, s := newNotificationService(t)
	ctx := context.Background()
	userID := uuid.New()
	push := &recordingPush{}
	svc.SetPushProvider(push)

	require.NoError(t, svc.RegisterDevice(ctx, userID, &notification.RegisterDeviceRequest{Token: "fcm-token", Platform: "Android"}))

	err := svc.Emit(ctx, &notification.CreateNotificationRequest{
		UserID: userID,
		Type:   notification.TypeChallengeCompleted,
		Title:  "Challenge completed!",
		Body:   "You earned 500 points",
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return notificationStatus(s, userID) == notification.StatusSent
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, push.callCount())
}

func TestEmit_PushFailureMarksFailed(t *testing.T) {
	svc, s := newNotificationService(t)
	ctx := context.Background()
	userID := uuid.New()
	svc.SetPushProvider(&recordingPush{err: errors.New("unregistered token")})

	require.NoError(t, svc.RegisterDevice(ctx, userID, &notification.RegisterDeviceRequest{Token: "stale", Platform: "ios"}))
	require.NoError(t, svc.Emit(ctx, &notification.CreateNotificationRequest{
		UserID:   userID,
		Type:     notification.TypeChallengeProgress,
		Priority: notification.PriorityNormal,
		Title:    "Challenge progress",
	}))

	assert.Eventually(t, func() bool {
		return notificationStatus(s, userID) == notification.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotificationReadFlow(t *testing.T) {
	svc, _ := newNotificationService(t)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(ctx, &notification.CreateNotificationRequest{
			UserID: userID,
			Type:   notification.TypeChallengeProgress,
			Title:  "Challenge progress",
		}))
	}

	count, err := svc.GetUnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	list, err := svc.GetNotifications(ctx, userID, 1, 2, false)
	require.NoError(t, err)
	assert.Len(t, list.Notifications, 2)
	assert.Equal(t, 3, list.TotalCount)
	assert.Equal(t, notification.PriorityNormal, list.Notifications[0].Priority)

	first := list.Notifications[0].ID
	assert.ErrorIs(t, svc.MarkAsRead(ctx, uuid.New(), first), ErrNotFound)
	require.NoError(t, svc.MarkAsRead(ctx, userID, first))

	unread, err := svc.GetNotifications(ctx, userID, 1, 10, true)
	require.NoError(t, err)
	assert.Len(t, unread.Notifications, 2)

	require.NoError(t, svc.MarkAllAsRead(ctx, userID))
	count, err = svc.GetUnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRegisterDevice_Validation(t *testing.T) {
	svc, _ := newNotificationService(t)
	ctx := context.Background()

	err := svc.RegisterDevice(ctx, uuid.New(), &notification.RegisterDeviceRequest{Token: " ", Platform: "ios"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = svc.RegisterDevice(ctx, uuid.New(), &notification.RegisterDeviceRequest{Token: "abc", Platform: "blackberry"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
