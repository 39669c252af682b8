package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"xHuntAPI/internal/types/booking"
	"xHuntAPI/internal/types/challenge"
	"xHuntAPI/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

const testStripeSecret = "whsec_test_stripe"

var testClerkSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("clerk-signing-key"))

func stripeEvent(t *testing.T, eventType string, object map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_" + uuid.NewString()[:8],
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        eventType,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	return payload
}

func stripeRequest(payload []byte, secret string) *http.Request {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write(payload)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

func paymentIntent(id string, bookingID string) map[string]any {
	return map[string]any{
		"id":       id,
		"object":   "payment_intent",
		"status":   "succeeded",
		"metadata": map[string]string{"booking_id": bookingID},
	}
}

func TestHandleStripeWebhook_PaymentSucceededAdvancesChallenge(t *testing.T) {
	env := newTestEnv(t)
	h := NewWebhookHandler(env.users, env.bookings, testClerkSecret, testStripeSecret)

	u := env.createUser(t, "user_canyoneer")
	c := env.createChallenge(t, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	p, err := env.challenges.Join(context.Background(), u.ID, c.ID)
	require.NoError(t, err)
	b := env.createPendingBooking(t, u.ID, "canyoning")

	payload := stripeEvent(t, "payment_intent.succeeded", paymentIntent("pi_123", b.ID.String()))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.HandleStripeWebhook(rec, stripeRequest(payload, testStripeSecret))
		require.Equal(t, http.StatusOK, rec.Code, "delivery %d", i)
	}

	got, err := env.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, got.Status)

	part, err := env.store.GetParticipation(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, services.DefaultProgressStep, part.Progress, "a redelivered event must not count twice")
	assert.Equal(t, challenge.ParticipationInProgress, part.Status)
}

func TestHandleStripeWebhook_BadSignature(t *testing.T) {
	env := newTestEnv(t)
	h := NewWebhookHandler(env.users, env.bookings, testClerkSecret, testStripeSecret)

	payload := stripeEvent(t, "payment_intent.succeeded", paymentIntent("pi_123", uuid.NewString()))

	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, stripeRequest(payload, "whsec_wrong"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	rec = httptest.NewRecorder()
	h.HandleStripeWebhook(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStripeWebhook_AcknowledgesUnknownBookings(t *testing.T) {
	env := newTestEnv(t)
	h := NewWebhookHandler(env.users, env.bookings, testClerkSecret, testStripeSecret)

	for _, bookingID := range []string{uuid.NewString(), "", "garbage"} {
		payload := stripeEvent(t, "payment_intent.succeeded", paymentIntent("pi_456", bookingID))
		rec := httptest.NewRecorder()
		h.HandleStripeWebhook(rec, stripeRequest(payload, testStripeSecret))
		assert.Equal(t, http.StatusOK, rec.Code, "booking id %q", bookingID)
	}
}

func TestHandleStripeWebhook_PaymentFailedCancelsBooking(t *testing.T) {
	env := newTestEnv(t)
	h := NewWebhookHandler(env.users, env.bookings, testClerkSecret, testStripeSecret)

	u := env.createUser(t, "user_unlucky")
	b := env.createPendingBooking(t, u.ID, "canyoning")

	payload := stripeEvent(t, "payment_intent.payment_failed", paymentIntent("pi_789", b.ID.String()))
	rec := httptest.NewRecorder()
	h.HandleStripeWebhook(rec, stripeRequest(payload, testStripeSecret))
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)

	// A late success for the cancelled booking is acknowledged and ignored.
	payload = stripeEvent(t, "payment_intent.succeeded", paymentIntent("pi_789", b.ID.String()))
	rec = httptest.NewRecorder()
	h.HandleStripeWebhook(rec, stripeRequest(payload, testStripeSecret))
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err = env.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)
}

func svixHeaders(t *testing.T, secret, id string, sent time.Time, body []byte) http.Header {
	t.Helper()
	key, err := base64.StdEncoding.DecodeString(secret[len("whsec_"):])
	require.NoError(t, err)

	ts := strconv.FormatInt(sent.Unix(), 10)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + ts + "."))
	mac.Write(body)

	h := http.Header{}
	h.Set("svix-id", id)
	h.Set("svix-timestamp", ts)
	h.Set("svix-signature", "v1,bm90LXRoaXMtb25l v1,"+base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return h
}

func TestVerifySvixSignature(t *testing.T) {
	body := []byte(`{"type":"user.created"}`)
	now := time.Now()

	assert.NoError(t, verifySvixSignature(testClerkSecret, svixHeaders(t, testClerkSecret, "msg_1", now, body), body, now))

	t.Run("tampered body", func(t *testing.T) {
		h := svixHeaders(t, testClerkSecret, "msg_1", now, body)
		assert.Error(t, verifySvixSignature(testClerkSecret, h, []byte(`{"type":"user.deleted"}`), now))
	})

	t.Run("stale timestamp", func(t *testing.T) {
		h := svixHeaders(t, testClerkSecret, "msg_1", now.Add(-10*time.Minute), body)
		assert.Error(t, verifySvixSignature(testClerkSecret, h, body, now))
	})

	t.Run("missing headers", func(t *testing.T) {
		assert.Error(t, verifySvixSignature(testClerkSecret, http.Header{}, body, now))
	})

	t.Run("no secret", func(t *testing.T) {
		h := svixHeaders(t, testClerkSecret, "msg_1", now, body)
		assert.Error(t, verifySvixSignature("", h, body, now))
	})
}

func TestHandleClerkWebhook_UserLifecycle(t *testing.T) {
	env := newTestEnv(t)
	h := NewWebhookHandler(env.users, env.bookings, testClerkSecret, testStripeSecret)

	send := func(body []byte) int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
		for k, v := range svixHeaders(t, testClerkSecret, "msg_"+uuid.NewString()[:8], time.Now(), body) {
			req.Header[k] = v
		}
		rec := httptest.NewRecorder()
		h.HandleClerkWebhook(rec, req)
		return rec.Code
	}

	created := []byte(`{"type":"user.created","object":"event","data":{
		"id":"user_2abc","first_name":"Ada","primary_email_address_id":"idn_1",
		"email_addresses":[{"id":"idn_1","email_address":"ada@example.com","verification":{"status":"verified"}}]}}`)
	require.Equal(t, http.StatusOK, send(created))

	u, err := env.users.ResolveUser(context.Background(), "user_2abc")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.True(t, u.EmailVerified)

	deleted := []byte(`{"type":"user.deleted","object":"event","data":{"id":"user_2abc"}}`)
	require.Equal(t, http.StatusOK, send(deleted))
	require.Equal(t, http.StatusOK, send(deleted))

	_, err = env.users.ResolveUser(context.Background(), "user_2abc")
	assert.Error(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(created))
	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
