package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderPaddle Provider = "paddle"
)

type Experience struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	Category   string    `json:"category" db:"category"`
	PriceCents int64     `json:"price_cents" db:"price_cents"`
	Currency   string    `json:"currency" db:"currency"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type Booking struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	ExperienceID    uuid.UUID  `json:"experience_id" db:"experience_id"`
	Category        string     `json:"category" db:"category"`
	AmountCents     int64      `json:"amount_cents" db:"amount_cents"`
	Currency        string     `json:"currency" db:"currency"`
	Status          Status     `json:"status" db:"status"`
	PaymentProvider *Provider  `json:"payment_provider,omitempty" db:"payment_provider"`
	PaymentRef      *string    `json:"payment_ref,omitempty" db:"payment_ref"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

type Payment struct {
	ID          uuid.UUID `json:"id" db:"id"`
	BookingID   uuid.UUID `json:"booking_id" db:"booking_id"`
	Provider    Provider  `json:"provider" db:"provider"`
	ProviderRef string    `json:"provider_ref" db:"provider_ref"`
	AmountCents int64     `json:"amount_cents" db:"amount_cents"`
	Currency    string    `json:"currency" db:"currency"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type CreateBookingRequest struct {
	ExperienceID uuid.UUID `json:"experience_id"`
}

type CreateBookingResponse struct {
	Booking      *Booking `json:"booking"`
	ClientSecret string   `json:"client_secret,omitempty"`
}

type PaddleCheckoutRequest struct {
	PriceID string `json:"price_id"`
}

type PaddleCheckoutResponse struct {
	TransactionID string `json:"transaction_id"`
	CheckoutURL   string `json:"checkout_url"`
}
