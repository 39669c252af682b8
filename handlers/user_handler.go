package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"xHuntAPI/internal/types/user"
	"xHuntAPI/middleware"
	"xHuntAPI/services"
)

type UserHandler struct {
	userService      *services.UserService
	challengeService *services.ChallengeService
}

func NewUserHandler(userService *services.UserService, challengeService *services.ChallengeService) *UserHandler {
	return &UserHandler{
		userService:      userService,
		challengeService: challengeService,
	}
}

// GET /api/v1/user
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	profile, err := h.userService.GetProfile(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, profile)
}

// GET /api/v1/user/challenges
func (h *UserHandler) GetMyChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, ok := currentUser(ctx, w, h.userService)
	if !ok {
		return
	}

	participations, err := h.challengeService.ListParticipations(ctx, u.ID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, participations)
}

// GET /api/v1/user/rewards
func (h *UserHandler) GetMyRewards(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, ok := currentUser(ctx, w, h.userService)
	if !ok {
		return
	}

	summary, err := h.challengeService.ListRewards(ctx, u.ID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

// currentUser resolves the authenticated Clerk user. It writes the error
// response itself and returns false when the request should stop.
func currentUser(ctx context.Context, w http.ResponseWriter, users *services.UserService) (*user.User, bool) {
	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return nil, false
	}

	u, err := users.ResolveUser(ctx, clerkID)
	if err != nil {
		respondWithServiceError(w, err)
		return nil, false
	}
	return u, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyParticipating):
		return http.StatusConflict
	case errors.Is(err, services.ErrChallengeNotActive), errors.Is(err, services.ErrBookingCancelled):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrPaymentUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError hides internal failures behind a generic message.
func respondWithServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("Internal error: %v", err)
		respondWithError(w, code, "Internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
