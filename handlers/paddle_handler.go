package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"xHuntAPI/internal/types/booking"
	"xHuntAPI/services"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
)

type PaddleHandler struct {
	bookingService *services.BookingService
	verifier       *paddle.WebhookVerifier
}

func NewPaddleHandler(bookingService *services.BookingService, webhookSecret string) *PaddleHandler {
	h := &PaddleHandler{bookingService: bookingService}
	if webhookSecret != "" {
		h.verifier = paddle.NewWebhookVerifier(webhookSecret)
	}
	return h
}

type paddleWebhook struct {
	EventID   string               `json:"event_id"`
	EventType paddle.EventTypeName `json:"event_type"`
}

type paddleTransactionEvent struct {
	Data struct {
		ID         string            `json:"id"`
		CustomData paddle.CustomData `json:"custom_data"`
	} `json:"data"`
}

// POST /webhooks/paddle
func (h *PaddleHandler) PaddleWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		log.Println("PADDLE_WEBHOOK_SECRET missing")
		http.Error(w, "Configuration Error", http.StatusInternalServerError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	valid, err := h.verifier.Verify(r)
	if err != nil || !valid {
		log.Printf("Invalid Paddle signature: %v", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Unable to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var event paddleWebhook
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Unable to parse JSON", http.StatusBadRequest)
		return
	}

	log.Printf("Received Paddle event %s (%s)", event.EventID, event.EventType)

	switch event.EventType {
	case paddle.EventTypeNameTransactionPaid, paddle.EventTypeNameTransactionCompleted:
		var tx paddleTransactionEvent
		if err := json.Unmarshal(body, &tx); err != nil {
			http.Error(w, "Unable to parse transaction", http.StatusBadRequest)
			return
		}

		bookingID, _ := tx.Data.CustomData["bookingId"].(string)
		err := confirmPayment(r.Context(), h.bookingService, bookingID, booking.ProviderPaddle, tx.Data.ID)
		if err != nil {
			log.Printf("Error confirming Paddle transaction %s: %v", tx.Data.ID, err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}

	default:
		log.Printf("Unhandled Paddle event type: %s", event.EventType)
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"id": event.EventID})
}
