package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"xHuntAPI/internal/types/challenge"
	"xHuntAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	userService      *services.UserService
}

func NewChallengeHandler(challengeService *services.ChallengeService, userService *services.UserService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
		userService:      userService,
	}
}

// GET /api/v1/challenges
func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challenges, err := h.challengeService.ListActiveChallenges(ctx)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

// GET /api/v1/challenges/{id}
func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge ID")
		return
	}

	c, err := h.challengeService.GetChallenge(ctx, challengeID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

// POST /api/v1/challenges/{id}/join
func (h *ChallengeHandler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge ID")
		return
	}

	u, ok := currentUser(ctx, w, h.userService)
	if !ok {
		return
	}

	p, err := h.challengeService.Join(ctx, u.ID, challengeID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, challenge.JoinResponse{Participation: p})
}

// POST /api/v1/admin/challenges
func (h *ChallengeHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req challenge.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := h.challengeService.CreateChallenge(ctx, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, c)
}

// POST /api/v1/admin/challenges/{id}/badge (multipart field "image")
func (h *ChallengeHandler) UploadBadge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge ID")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 4<<20)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	c, err := h.challengeService.AttachBadgeImage(ctx, challengeID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}
