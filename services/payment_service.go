package services

import (
	"context"
	"fmt"
	"log"

	"xHuntAPI/internal/types/booking"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// PaymentGateway creates provider-side payment objects for a pending booking.
// The provider reports the result later through its webhook.
type PaymentGateway interface {
	CreateStripeIntent(ctx context.Context, b *booking.Booking) (intentID, clientSecret string, err error)
	CreatePaddleCheckout(ctx context.Context, b *booking.Booking, priceID string) (transactionID, checkoutURL string, err error)
}

type PaymentService struct {
	stripe    *client.API
	paddle    *paddle.SDK
	paddleEnv string
}

// NewPaymentService accepts empty credentials; the matching provider is then
// reported as unavailable.
func NewPaymentService(stripeKey string, paddleClient *paddle.SDK, paddleEnv string) *PaymentService {
	s := &PaymentService{paddle: paddleClient, paddleEnv: paddleEnv}
	if stripeKey != "" {
		s.stripe = client.New(stripeKey, nil)
	}
	if s.paddleEnv == "" {
		s.paddleEnv = "sandbox-checkout"
	}
	return s
}

func (s *PaymentService) CreateStripeIntent(ctx context.Context, b *booking.Booking) (string, string, error) {
	if s.stripe == nil {
		return "", "", fmt.Errorf("stripe: %w", ErrPaymentUnavailable)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(b.AmountCents),
		Currency: stripe.String(b.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("booking_id", b.ID.String())
	params.AddMetadata("user_id", b.UserID.String())
	params.SetIdempotencyKey("booking-intent-" + b.ID.String())

	pi, err := s.stripe.PaymentIntents.New(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create payment intent: %w", err)
	}

	log.Printf("Created Stripe payment intent %s for booking %s", pi.ID, b.ID)
	return pi.ID, pi.ClientSecret, nil
}

func (s *PaymentService) CreatePaddleCheckout(ctx context.Context, b *booking.Booking, priceID string) (string, string, error) {
	if s.paddle == nil {
		return "", "", fmt.Errorf("paddle: %w", ErrPaymentUnavailable)
	}

	req := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{
			*paddle.NewCreateTransactionItemsCatalogItem(&paddle.CatalogItem{
				Quantity: 1,
				PriceID:  priceID,
			}),
		},
		CustomData: paddle.CustomData{
			"bookingId": b.ID.String(),
			"userId":    b.UserID.String(),
		},
		CollectionMode: paddle.PtrTo(paddle.CollectionModeAutomatic),
	}

	tx, err := s.paddle.CreateTransaction(ctx, req)
	if err != nil {
		return "", "", fmt.Errorf("failed to create paddle transaction: %w", err)
	}

	log.Printf("Created Paddle transaction %s for booking %s (status %s)", tx.ID, b.ID, tx.Status)

	checkoutURL := fmt.Sprintf("https://%s.paddle.com/checkout/custom?_ptxn=%s", s.paddleEnv, tx.ID)
	return tx.ID, checkoutURL, nil
}
