package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"xHuntAPI/internal/types/booking"
	"xHuntAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type BookingHandler struct {
	bookingService *services.BookingService
	userService    *services.UserService
}

func NewBookingHandler(bookingService *services.BookingService, userService *services.UserService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		userService:    userService,
	}
}

// GET /api/v1/experiences?category=hiking
func (h *BookingHandler) ListExperiences(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	experiences, err := h.bookingService.ListExperiences(ctx, r.URL.Query().Get("category"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, experiences)
}

// POST /api/v1/bookings
// Creates the booking and, when Stripe is configured, its payment intent.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	u, ok := currentUser(ctx, w, h.userService)
	if !ok {
		return
	}

	var req booking.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExperienceID == uuid.Nil {
		respondWithError(w, http.StatusBadRequest, "experience_id is required")
		return
	}

	b, err := h.bookingService.CreateBooking(ctx, u.ID, req.ExperienceID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	resp := booking.CreateBookingResponse{Booking: b}
	secret, err := h.bookingService.StartStripePayment(ctx, b)
	switch {
	case err == nil:
		resp.ClientSecret = secret
	case errors.Is(err, services.ErrPaymentUnavailable):
		log.Printf("Stripe not configured, booking %s left for another provider", b.ID)
	default:
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

// GET /api/v1/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	bookingID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	u, ok := currentUser(ctx, w, h.userService)
	if !ok {
		return
	}

	b, err := h.bookingService.GetBooking(ctx, u.ID, bookingID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, b)
}

// POST /api/v1/bookings/{id}/paddle-checkout
func (h *BookingHandler) CreatePaddleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	bookingID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	u, ok := currentUser(ctx, w, h.userService)
	if !ok {
		return
	}

	var req booking.PaddleCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b, err := h.bookingService.GetBooking(ctx, u.ID, bookingID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	resp, err := h.bookingService.StartPaddleCheckout(ctx, b, req.PriceID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}
