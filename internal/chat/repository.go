package chat

import (
	"context"

	"chatsync/internal/apperr"
	"chatsync/internal/user"
)

var (
	ErrChatNotFound    = apperr.NotFound("chat not found")
	ErrMessageNotFound = apperr.NotFound("message not found")
)

// Repository is the persisted side of chats and messages. Each method is a single
// transaction in the backing store.
type Repository interface {
	// CreateChat writes the chat and adds it to every participant's chats list.
	CreateChat(ctx context.Context, participantIDs []string) (Chat, error)
	GetChat(ctx context.Context, id string) (Chat, error)
	ListChatsForUser(ctx context.Context, userID string) ([]Chat, error)
	// DeleteChat removes the chat's messages, the chat, and its memberships, returning the removed chat.
	DeleteChat(ctx context.Context, id string) (Chat, error)

	// CreateMessage stamps ID, CreatedAt and a default status, then appends to the chat index.
	// ErrChatNotFound if the chat is gone.
	CreateMessage(ctx context.Context, msg Message) (Message, error)
	GetMessage(ctx context.Context, id string) (Message, error)
	// ListMessages is ordered by creation time ascending.
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
	// RecentMessages returns at most n messages, newest first.
	RecentMessages(ctx context.Context, chatID string, n int) ([]Message, error)
	DeleteMessage(ctx context.Context, id string) (Message, error)
	UpdateMessageStatus(ctx context.Context, id string, status Status) (Message, error)
}

// UserDirectory resolves participant and sender identities.
type UserDirectory interface {
	GetUsers(ctx context.Context, ids []string) ([]user.User, error)
}
