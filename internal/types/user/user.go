package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	ClerkID       string    `json:"clerkId"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Profile struct {
	User
	TotalPoints         int `json:"totalPoints"`
	BadgesEarned        int `json:"badgesEarned"`
	ActiveChallenges    int `json:"activeChallenges"`
	CompletedChallenges int `json:"completedChallenges"`
}
