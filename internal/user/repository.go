//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=../mocks/mock_user.go -package=mocks
package user

import (
	"context"

	"chatsync/internal/apperr"
)

var (
	ErrUserNotFound     = apperr.NotFound("user not found")
	ErrDuplicateContact = apperr.Validation("contact already added")
	ErrSelfContact      = apperr.Validation("cannot add yourself as a contact")
)

// Repository persists users and their directed contact edges.
type Repository interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// GetUsers returns the users found among ids, in the order of ids. Unknown ids are skipped.
	GetUsers(ctx context.Context, ids []string) ([]User, error)
	// AddContact appends contactID to ownerID's contacts; ErrDuplicateContact if already present.
	AddContact(ctx context.Context, ownerID, contactID string) error
	ListContacts(ctx context.Context, ownerID string) ([]Summary, error)
}
