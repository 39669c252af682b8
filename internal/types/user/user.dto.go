package user

type UpsertUserRequest struct {
	ClerkID       string `json:"clerkId"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	ImageURL      string `json:"imageUrl,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}
