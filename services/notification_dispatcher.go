package services

import (
	"context"
	"log"
	"sync"
	"time"

	"xHuntAPI/internal/store"
	"xHuntAPI/internal/types/notification"
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

const (
	maxPushAttempts = 3
	pushRetryDelay  = 30 * time.Second
)

// NotificationDispatcher delivers stored notifications through the push
// provider on a fixed pool of workers.
type NotificationDispatcher struct {
	store        store.NotificationStore
	pushProvider PushNotificationProvider
	workers      int
	jobQueue     chan *DispatchJob
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	mu           sync.RWMutex
}

type DispatchJob struct {
	Notification *notification.Notification
	Attempt      int
}

func NewNotificationDispatcher(s store.NotificationStore, workers int) *NotificationDispatcher {
	if workers <= 0 {
		workers = 5
	}
	dispatcher := &NotificationDispatcher{
		store:    s,
		workers:  workers,
		jobQueue: make(chan *DispatchJob, 100),
		stopChan: make(chan struct{}),
	}

	dispatcher.startWorkers()
	return dispatcher
}

// SetPushProvider injects the real FCM provider from main.go
func (d *NotificationDispatcher) SetPushProvider(provider PushNotificationProvider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushProvider = provider
}

func (d *NotificationDispatcher) provider() PushNotificationProvider {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pushProvider
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(job *DispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notif := job.Notification
	provider := d.provider()

	tokens, err := d.store.DeviceTokens(ctx, notif.UserID)
	if err != nil {
		log.Printf("Failed to load device tokens for user %s: %v", notif.UserID, err)
	}

	if provider != nil && len(tokens) > 0 {
		if err := provider.SendPush(ctx, tokens, notif.Title, notif.Body, notif.Data); err != nil {
			log.Printf("Push failed for user %s (attempt %d): %v", notif.UserID, job.Attempt, err)
			notificationsDispatched.WithLabelValues("failed").Inc()
			if job.Attempt < maxPushAttempts && notif.Priority == notification.PriorityHigh {
				d.retryLater(job)
				return
			}
			if err := d.store.MarkFailed(ctx, notif.ID, err.Error()); err != nil {
				log.Printf("Failed to mark notification %s as failed: %v", notif.ID, err)
			}
			return
		}
		notificationsDispatched.WithLabelValues("sent").Inc()
	} else {
		notificationsDispatched.WithLabelValues("skipped").Inc()
	}

	if err := d.store.MarkSent(ctx, notif.ID); err != nil {
		log.Printf("Failed to mark notification %s as sent: %v", notif.ID, err)
	}
}

func (d *NotificationDispatcher) retryLater(job *DispatchJob) {
	next := &DispatchJob{Notification: job.Notification, Attempt: job.Attempt + 1}
	time.AfterFunc(pushRetryDelay*time.Duration(job.Attempt), func() {
		d.DispatchNotification(next)
	})
}

// DispatchNotification queues a job, giving up after 5 seconds when the
// queue stays full.
func (d *NotificationDispatcher) DispatchNotification(job *DispatchJob) {
	if job.Attempt == 0 {
		job.Attempt = 1
	}

	select {
	case d.jobQueue <- job:
	case <-d.stopChan:
		log.Printf("Dispatcher stopped, dropping notification %s", job.Notification.ID)
	case <-time.After(5 * time.Second):
		log.Printf("Failed to queue notification %s: queue full", job.Notification.ID)
	}
}

// Stop the dispatcher gracefully
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		log.Println("Stopping notification dispatcher...")
		close(d.stopChan)
		d.wg.Wait()
		log.Println("Notification dispatcher stopped")
	})
}

// MockPushProvider logs pushes instead of sending them. Used when FCM
// credentials are missing.
type MockPushProvider struct{}

func (m *MockPushProvider) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	log.Printf("MOCK PUSH: Sending to %d devices: %s - %s", len(tokens), title, body)
	return nil
}
