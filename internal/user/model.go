package user

import (
	"strings"
	"time"
)

// User is owned by the registration collaborator; this core only mutates ChatIDs and ContactIDs.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	ChatIDs      []string  `json:"chats"`
	ContactIDs   []string  `json:"contacts"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary is the display identity embedded in chats, messages and contact lists.
type Summary struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

type ContactRequest struct {
	ContactEmail string `json:"contactEmail" validate:"required,email"`
}

func (r *ContactRequest) Normalize() {
	r.ContactEmail = NormalizeEmail(r.ContactEmail)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
