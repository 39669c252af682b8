package services

import (
	"context"
	"log"
	"strings"

	"xHuntAPI/internal/store"
	"xHuntAPI/internal/types/notification"

	"github.com/google/uuid"
)

type NotificationService struct {
	store      store.NotificationStore
	dispatcher *NotificationDispatcher
}

func NewNotificationService(s store.NotificationStore) *NotificationService {
	return &NotificationService{
		store:      s,
		dispatcher: NewNotificationDispatcher(s, 5),
	}
}

func (s *NotificationService) SetPushProvider(provider PushNotificationProvider) {
	s.dispatcher.SetPushProvider(provider)
}

// Emit records the notification and queues it for push delivery without
// waiting for the push.
func (s *NotificationService) Emit(ctx context.Context, req *notification.CreateNotificationRequest) error {
	priority := req.Priority
	if priority == "" {
		priority = notification.PriorityNormal
	}

	notif := &notification.Notification{
		ID:       uuid.New(),
		UserID:   req.UserID,
		Type:     req.Type,
		Priority: priority,
		Status:   notification.StatusPending,
		Title:    req.Title,
		Body:     req.Body,
		Data:     req.Data,
	}

	if err := s.store.CreateNotification(ctx, notif); err != nil {
		return storeErr(err, "create notification")
	}

	go s.dispatcher.DispatchNotification(&DispatchJob{Notification: notif})
	return nil
}

func (s *NotificationService) GetNotifications(ctx context.Context, userID uuid.UUID, page, pageSize int, unreadOnly bool) (*notification.NotificationListResponse, error) {
	resp, err := s.store.ListNotifications(ctx, userID, page, pageSize, unreadOnly)
	if err != nil {
		return nil, storeErr(err, "list notifications")
	}
	return resp, nil
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return 0, storeErr(err, "unread count")
	}
	return count, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return storeErr(s.store.MarkRead(ctx, userID, notificationID), "notification")
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return storeErr(s.store.MarkAllRead(ctx, userID), "mark all read")
}

func (s *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, req *notification.RegisterDeviceRequest) error {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return invalid("token is required")
	}
	platform := strings.ToLower(req.Platform)
	switch platform {
	case "ios", "android", "web":
	default:
		return invalid("platform must be ios, android or web")
	}

	if err := s.store.RegisterDevice(ctx, userID, notification.DeviceToken{Token: token, Platform: platform}); err != nil {
		return storeErr(err, "register device")
	}
	log.Printf("Registered %s device for user %s", platform, userID)
	return nil
}

func (s *NotificationService) Stop() {
	s.dispatcher.Stop()
}
