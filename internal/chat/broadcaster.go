//go:generate go run go.uber.org/mock/mockgen -source=broadcaster.go -destination=../mocks/mock_chat.go -package=mocks
package chat

import "context"

// Broadcaster pushes persisted changes to the live subscribers of a chat room.
// Calls are fire-and-forget.
type Broadcaster interface {
	BroadcastMessage(chatID string, msg Message)
	BroadcastDeletion(chatID, messageID string)
	BroadcastStatus(chatID, messageID string, status Status)
	// BroadcastChatDeleted tells the room its chat is gone and closes the room.
	BroadcastChatDeleted(chatID string)
}

// PreviewCache caches ListChatsForUser results per user. gen is the user's
// generation at lookup time; Store must be given that value so an entry read
// before an Invalidate is never served after it.
type PreviewCache interface {
	Lookup(ctx context.Context, userID string) (views []ChatView, gen int64, ok bool, err error)
	Store(ctx context.Context, userID string, gen int64, views []ChatView) error
	Invalidate(ctx context.Context, userIDs ...string) error
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastMessage(string, Message)       {}
func (noopBroadcaster) BroadcastDeletion(string, string)       {}
func (noopBroadcaster) BroadcastStatus(string, string, Status) {}
func (noopBroadcaster) BroadcastChatDeleted(string)            {}

type noopCache struct{}

func (noopCache) Lookup(context.Context, string) ([]ChatView, int64, bool, error) {
	return nil, 0, false, nil
}
func (noopCache) Store(context.Context, string, int64, []ChatView) error { return nil }
func (noopCache) Invalidate(context.Context, ...string) error            { return nil }
