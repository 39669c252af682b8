package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"xHuntAPI/internal/store"
	"xHuntAPI/internal/types/booking"
	"xHuntAPI/internal/types/challenge"
	"xHuntAPI/internal/types/notification"

	"github.com/google/uuid"
)

// ProgressAdvancer is the part of ChallengeEngine the booking flow needs.
type ProgressAdvancer interface {
	AdvanceBooking(ctx context.Context, b *booking.Booking) ([]challenge.Outcome, error)
}

type BookingService struct {
	store    store.BookingStore
	engine   ProgressAdvancer
	payments PaymentGateway
	notifier NotificationEmitter
}

func NewBookingService(s store.BookingStore, engine ProgressAdvancer, payments PaymentGateway, notifier NotificationEmitter) *BookingService {
	return &BookingService{
		store:    s,
		engine:   engine,
		payments: payments,
		notifier: notifier,
	}
}

func (s *BookingService) ListExperiences(ctx context.Context, category string) ([]*booking.Experience, error) {
	experiences, err := s.store.ListExperiences(ctx, strings.ToLower(strings.TrimSpace(category)))
	if err != nil {
		return nil, storeErr(err, "list experiences")
	}
	return experiences, nil
}

// CreateBooking creates a PENDING booking priced from the experience.
func (s *BookingService) CreateBooking(ctx context.Context, userID, experienceID uuid.UUID) (*booking.Booking, error) {
	exp, err := s.store.GetExperience(ctx, experienceID)
	if err != nil {
		return nil, storeErr(err, "experience")
	}

	b := &booking.Booking{
		ID:           uuid.New(),
		UserID:       userID,
		ExperienceID: exp.ID,
		Category:     exp.Category,
		AmountCents:  exp.PriceCents,
		Currency:     exp.Currency,
		Status:       booking.StatusPending,
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return nil, storeErr(err, "create booking")
	}

	log.Printf("Created booking %s for user %s (experience %s)", b.ID, userID, exp.ID)
	return b, nil
}

// GetBooking returns a booking owned by userID.
func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID uuid.UUID) (*booking.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeErr(err, "booking")
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return b, nil
}

// StartStripePayment creates a PaymentIntent and returns its client secret.
func (s *BookingService) StartStripePayment(ctx context.Context, b *booking.Booking) (string, error) {
	if b.Status != booking.StatusPending {
		return "", invalid("booking %s is %s", b.ID, b.Status)
	}

	intentID, secret, err := s.payments.CreateStripeIntent(ctx, b)
	if err != nil {
		return "", err
	}
	if err := s.store.SetPaymentRef(ctx, b.ID, booking.ProviderStripe, intentID); err != nil {
		return "", storeErr(err, "set payment ref")
	}
	return secret, nil
}

func (s *BookingService) StartPaddleCheckout(ctx context.Context, b *booking.Booking, priceID string) (*booking.PaddleCheckoutResponse, error) {
	if b.Status != booking.StatusPending {
		return nil, invalid("booking %s is %s", b.ID, b.Status)
	}
	if strings.TrimSpace(priceID) == "" {
		return nil, invalid("price_id is required")
	}

	txID, url, err := s.payments.CreatePaddleCheckout(ctx, b, priceID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetPaymentRef(ctx, b.ID, booking.ProviderPaddle, txID); err != nil {
		return nil, storeErr(err, "set payment ref")
	}
	return &booking.PaddleCheckoutResponse{TransactionID: txID, CheckoutURL: url}, nil
}

// ConfirmPayment marks the booking paid and advances the user's challenges.
// Redelivered events for an already confirmed booking run the engine again;
// the booking-keyed writes make that a no-op for anything already applied.
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, provider booking.Provider, providerRef string) ([]challenge.Outcome, error) {
	b, confirmed, err := s.store.ConfirmBooking(ctx, bookingID, &booking.Payment{
		BookingID:   bookingID,
		Provider:    provider,
		ProviderRef: providerRef,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("booking %s: %w", bookingID, ErrBookingCancelled)
		}
		return nil, storeErr(err, "confirm booking")
	}

	if confirmed {
		bookingsConfirmed.WithLabelValues(string(provider)).Inc()
		log.Printf("Booking %s confirmed via %s (%s)", b.ID, provider, providerRef)
		s.notifyConfirmed(ctx, b)
	} else {
		log.Printf("Booking %s already confirmed, re-running challenge progress", b.ID)
	}

	outcomes, err := s.engine.AdvanceBooking(ctx, b)
	if err != nil {
		return outcomes, err
	}
	for _, o := range outcomes {
		log.Printf("Booking %s advanced challenge %s to %d%% (%s)", b.ID, o.ChallengeID, o.Progress, o.Status)
	}
	return outcomes, nil
}

// CancelPayment cancels a booking whose payment failed. Bookings that are no
// longer pending are left alone.
func (s *BookingService) CancelPayment(ctx context.Context, bookingID uuid.UUID) error {
	b, err := s.store.CancelBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			log.Printf("Booking %s is not pending, ignoring payment failure", bookingID)
			return nil
		}
		return storeErr(err, "cancel booking")
	}
	log.Printf("Booking %s cancelled after failed payment", b.ID)
	return nil
}

func (s *BookingService) notifyConfirmed(ctx context.Context, b *booking.Booking) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Emit(ctx, &notification.CreateNotificationRequest{
		UserID:   b.UserID,
		Type:     notification.TypeBookingConfirmed,
		Priority: notification.PriorityNormal,
		Title:    "Booking confirmed",
		Body:     "Your adventure is booked. See you out there!",
		Data:     map[string]any{"booking_id": b.ID.String()},
	})
	if err != nil {
		log.Printf("Failed to emit booking notification: %v", err)
	}
}
