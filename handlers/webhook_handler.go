package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"xHuntAPI/internal/types/booking"
	"xHuntAPI/internal/types/clerk"
	"xHuntAPI/internal/types/user"
	"xHuntAPI/services"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	maxWebhookBodyBytes = int64(65536)
	svixTolerance       = 5 * time.Minute
)

type WebhookHandler struct {
	userService    *services.UserService
	bookingService *services.BookingService
	clerkSecret    string
	stripeSecret   string
}

func NewWebhookHandler(userService *services.UserService, bookingService *services.BookingService, clerkSecret, stripeSecret string) *WebhookHandler {
	return &WebhookHandler{
		userService:    userService,
		bookingService: bookingService,
		clerkSecret:    clerkSecret,
		stripeSecret:   stripeSecret,
	}
}

// POST /webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading request body: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if h.stripeSecret == "" {
		log.Println("STRIPE_WEBHOOK_SECRET is not set")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.stripeSecret)
	if err != nil {
		log.Printf("Error verifying webhook signature: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	log.Printf("Received Stripe event %s (%s)", event.ID, event.Type)

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Printf("Error parsing payment intent: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		respondToConfirm(w, confirmPayment(ctx, h.bookingService, pi.Metadata["booking_id"], booking.ProviderStripe, pi.ID))
		return

	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			log.Printf("Error parsing checkout session: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			log.Printf("Checkout session %s not paid yet (%s)", session.ID, session.PaymentStatus)
			break
		}
		ref := session.ID
		if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
			ref = session.PaymentIntent.ID
		}
		respondToConfirm(w, confirmPayment(ctx, h.bookingService, session.Metadata["booking_id"], booking.ProviderStripe, ref))
		return

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			log.Printf("Error parsing payment intent: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		bookingID, err := uuid.Parse(pi.Metadata["booking_id"])
		if err != nil {
			log.Printf("Payment intent %s has no booking_id", pi.ID)
			break
		}
		if err := h.bookingService.CancelPayment(ctx, bookingID); err != nil {
			log.Printf("Error cancelling booking %s: %v", bookingID, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

	default:
		log.Printf("Unhandled Stripe event type: %s", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

// confirmPayment runs the payment confirmation. Events that cannot refer to a
// known booking are acknowledged so the provider stops retrying them.
func confirmPayment(ctx context.Context, bookings *services.BookingService, rawBookingID string, provider booking.Provider, ref string) error {
	bookingID, err := uuid.Parse(rawBookingID)
	if err != nil {
		log.Printf("%s payment %s has no valid booking id %q", provider, ref, rawBookingID)
		return nil
	}

	outcomes, err := bookings.ConfirmPayment(ctx, bookingID, provider, ref)
	switch {
	case err == nil:
		log.Printf("Booking %s: %d challenge(s) advanced", bookingID, len(outcomes))
		return nil
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrBookingCancelled):
		log.Printf("Ignoring %s payment %s: %v", provider, ref, err)
		return nil
	default:
		return err
	}
}

func respondToConfirm(w http.ResponseWriter, err error) {
	if err != nil {
		log.Printf("Error confirming payment: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// POST /webhooks/clerk
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	if err := verifySvixSignature(h.clerkSecret, r.Header, body, time.Now()); err != nil {
		log.Printf("Invalid Clerk webhook signature: %v", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	var event clerk.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		http.Error(w, "Error parsing webhook", http.StatusBadRequest)
		return
	}

	log.Printf("Received Clerk event: %s", event.Type)

	ctx := r.Context()
	switch event.Type {
	case "user.created", "user.updated":
		var data clerk.ClerkUserData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			http.Error(w, "Error parsing user data", http.StatusBadRequest)
			return
		}
		if err := h.syncUser(ctx, &data); err != nil {
			log.Printf("Error handling %s: %v", event.Type, err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}

	case "user.deleted":
		var data struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil {
			http.Error(w, "Error parsing user data", http.StatusBadRequest)
			return
		}
		err := h.userService.DeleteByClerkID(ctx, data.ID)
		if err != nil && !errors.Is(err, services.ErrNotFound) {
			log.Printf("Error handling user.deleted: %v", err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}

	default:
		log.Printf("Unhandled Clerk event type: %s", event.Type)
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) syncUser(ctx context.Context, data *clerk.ClerkUserData) error {
	email, verified := data.PrimaryEmail()

	imageURL := data.ImageURL
	if imageURL == "" {
		imageURL = data.ProfileImageURL
	}

	_, err := h.userService.SyncFromClerk(ctx, &user.UpsertUserRequest{
		ClerkID:       data.ID,
		Email:         email,
		Username:      data.Username,
		FirstName:     data.FirstName,
		LastName:      data.LastName,
		ImageURL:      imageURL,
		EmailVerified: verified,
	})
	return err
}

// verifySvixSignature checks the svix-* headers Clerk signs its webhooks with.
// secret is the "whsec_" prefixed signing secret.
func verifySvixSignature(secret string, header http.Header, body []byte, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("CLERK_WEBHOOK_SECRET is not set")
	}

	id := header.Get("svix-id")
	ts := header.Get("svix-timestamp")
	signatures := header.Get("svix-signature")
	if id == "" || ts == "" || signatures == "" {
		return fmt.Errorf("missing svix headers")
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid svix-timestamp: %w", err)
	}
	sent := time.Unix(unix, 0)
	if now.Sub(sent) > svixTolerance || sent.Sub(now) > svixTolerance {
		return fmt.Errorf("svix-timestamp outside tolerance")
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return fmt.Errorf("invalid signing secret: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + ts + "."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, sig := range strings.Fields(signatures) {
		version, value, ok := strings.Cut(sig, ",")
		if !ok || version != "v1" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err == nil && hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return fmt.Errorf("no matching signature")
}
