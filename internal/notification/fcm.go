package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	"xHuntAPI/internal/types/notification"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type FCMService struct {
	client *messaging.Client
}

// NewFCMService reads base64 service-account JSON from FCM_SERVICE_ACCOUNT_JSON
// and falls back to credentialsFile.
func NewFCMService(ctx context.Context, credentialsFile string) (*FCMService, error) {
	var opt option.ClientOption

	if encoded := os.Getenv("FCM_SERVICE_ACCOUNT_JSON"); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FCM_SERVICE_ACCOUNT_JSON: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Println("FCM: using credentials from environment")
	} else {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("firebase credentials file %s: %w", credentialsFile, err)
		}
		opt = option.WithCredentialsFile(credentialsFile)
		log.Printf("FCM: using credentials file %s", credentialsFile)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

// SendPush sends one message per device. It only fails when every send failed.
func (s *FCMService) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	if len(tokens) == 0 {
		return nil
	}

	payload := make(map[string]string, len(data))
	for k, v := range data {
		payload[k] = fmt.Sprintf("%v", v)
	}

	sent, failed := 0, 0
	for _, t := range tokens {
		_, err := s.client.Send(ctx, buildMessage(t, title, body, payload))
		if err != nil {
			log.Printf("FCM: send to %s device failed: %v", t.Platform, err)
			failed++
			continue
		}
		sent++
	}

	log.Printf("FCM: sent %d, failed %d", sent, failed)
	if sent == 0 && failed > 0 {
		return fmt.Errorf("all %d push sends failed", failed)
	}
	return nil
}

func buildMessage(t notification.DeviceToken, title, body string, payload map[string]string) *messaging.Message {
	msg := &messaging.Message{
		Token:        t.Token,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         payload,
	}

	switch t.Platform {
	case "ios":
		msg.APNS = &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		}
	case "web":
		msg.Webpush = &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{Title: title, Body: body},
		}
	default:
		msg.Android = &messaging.AndroidConfig{
			Priority:     "high",
			Notification: &messaging.AndroidNotification{Sound: "default"},
		}
	}
	return msg
}
