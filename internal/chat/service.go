package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"chatsync/internal/apperr"
	"chatsync/internal/user"

	"github.com/samber/lo"
)

const (
	defaultPreviewSize      = 5
	defaultMaxContentLength = 4000
)

// Service is the chat lifecycle manager and the message pipeline. Persistence
// happens first; the broadcast and cache invalidation follow and never change
// the result reported to the caller.
type Service struct {
	repo        Repository
	users       UserDirectory
	broadcaster Broadcaster
	cache       PreviewCache
	log         *slog.Logger
	locks       chatLocks

	previewSize      int
	maxContentLength int
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithPreviewCache(c PreviewCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithPreviewSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.previewSize = n
		}
	}
}

func WithMaxContentLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxContentLength = n
		}
	}
}

func NewService(repo Repository, users UserDirectory, b Broadcaster, opts ...Option) *Service {
	if b == nil {
		b = noopBroadcaster{}
	}
	s := &Service{
		repo:             repo,
		users:            users,
		broadcaster:      b,
		cache:            noopCache{},
		log:              slog.Default(),
		previewSize:      defaultPreviewSize,
		maxContentLength: defaultMaxContentLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------
// Chat lifecycle
// ---------------------------------------------

func (s *Service) CreateChat(ctx context.Context, participantIDs []string) (Chat, error) {
	ids := lo.Uniq(lo.FilterMap(participantIDs, func(id string, _ int) (string, bool) {
		id = strings.TrimSpace(id)
		return id, id != ""
	}))
	if len(ids) < 2 {
		return Chat{}, apperr.Validation("a chat needs at least 2 distinct participants")
	}

	found, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return Chat{}, apperr.Internal(err)
	}
	if len(found) != len(ids) {
		known := lo.Map(found, func(u user.User, _ int) string { return u.ID })
		missing, _ := lo.Difference(ids, known)
		return Chat{}, apperr.Validation(fmt.Sprintf("unknown user: %s", strings.Join(missing, ", ")))
	}

	c, err := s.repo.CreateChat(ctx, ids)
	if err != nil {
		return Chat{}, apperr.Internal(err)
	}
	s.invalidate(ctx, c.ParticipantIDs)
	s.log.Info("chat.create", "chat_id", c.ID, "participants", len(c.ParticipantIDs))
	return c, nil
}

// DeleteChat removes the chat with all its messages and memberships, then tells
// the room the chat is gone. An empty actorID skips the participant check.
func (s *Service) DeleteChat(ctx context.Context, actorID, chatID string) error {
	c, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		return apperr.Internal(err)
	}
	if actorID != "" && !lo.Contains(c.ParticipantIDs, actorID) {
		return apperr.Forbidden("not a participant of this chat")
	}

	unlock := s.locks.lock(chatID)
	deleted, err := s.repo.DeleteChat(ctx, chatID)
	if err != nil {
		unlock()
		return apperr.Internal(err)
	}
	s.broadcaster.BroadcastChatDeleted(chatID)
	unlock()
	s.invalidate(ctx, deleted.ParticipantIDs)
	s.log.Info("chat.delete", "chat_id", chatID, "messages", len(deleted.MessageIDs))
	return nil
}

func (s *Service) ListChatsForUser(ctx context.Context, userID string) ([]ChatView, error) {
	views, gen, ok, cacheErr := s.cache.Lookup(ctx, userID)
	if cacheErr != nil {
		s.log.Warn("chat.preview.cache_lookup", "user_id", userID, "err", cacheErr)
	} else if ok {
		return views, nil
	}

	chats, err := s.repo.ListChatsForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	previews := make([][]Message, len(chats))
	senderIDs := make([]string, 0)
	for i, c := range chats {
		recent, err := s.repo.RecentMessages(ctx, c.ID, s.previewSize)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		previews[i] = recent
		senderIDs = append(senderIDs, c.ParticipantIDs...)
		senderIDs = append(senderIDs, lo.Map(recent, func(m Message, _ int) string { return m.SenderID })...)
	}

	directory, err := s.directory(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	views = make([]ChatView, 0, len(chats))
	for i, c := range chats {
		participants := lo.FilterMap(c.ParticipantIDs, func(id string, _ int) (user.Summary, bool) {
			sum, ok := directory[id]
			return sum, ok
		})
		views = append(views, ChatView{
			ID:           c.ID,
			Participants: participants,
			Messages:     withSenders(previews[i], directory),
			CreatedAt:    c.CreatedAt,
		})
	}

	if cacheErr == nil {
		if err := s.cache.Store(ctx, userID, gen, views); err != nil {
			s.log.Warn("chat.preview.cache_store", "user_id", userID, "err", err)
		}
	}
	return views, nil
}

// IsParticipant reports whether userID belongs to chatID. Unknown chats yield false.
func (s *Service) IsParticipant(ctx context.Context, userID, chatID string) (bool, error) {
	c, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, apperr.Internal(err)
	}
	return lo.Contains(c.ParticipantIDs, userID), nil
}

// ---------------------------------------------
// Message pipeline
// ---------------------------------------------

func (s *Service) CreateMessage(ctx context.Context, in CreateMessageInput) (Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return Message{}, apperr.Validation("content is required")
	}
	if utf8.RuneCountInString(in.Content) > s.maxContentLength {
		return Message{}, apperr.Validation(fmt.Sprintf("content too long: max=%d chars", s.maxContentLength))
	}
	for _, a := range in.Attachments {
		if !a.Type.Valid() {
			return Message{}, apperr.Validation(fmt.Sprintf("invalid attachment type: %q", a.Type))
		}
		if strings.TrimSpace(a.URL) == "" {
			return Message{}, apperr.Validation("attachment url is required")
		}
	}

	c, err := s.repo.GetChat(ctx, in.ChatID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Message{}, apperr.Validation("chat not found")
		}
		return Message{}, apperr.Internal(err)
	}
	if !lo.Contains(c.ParticipantIDs, in.SenderID) {
		return Message{}, apperr.Forbidden("sender is not a participant of this chat")
	}

	// Resolve the sender before the write so nothing slow sits between persist and publish.
	var sender *user.Summary
	directory, err := s.directory(ctx, []string{in.SenderID})
	if err != nil {
		s.log.Warn("message.sender.resolve", "chat_id", in.ChatID, "sender_id", in.SenderID, "err", err)
	} else if sum, ok := directory[in.SenderID]; ok {
		sender = &sum
	}

	unlock := s.locks.lock(in.ChatID)
	stored, err := s.repo.CreateMessage(ctx, Message{
		ChatID:      in.ChatID,
		SenderID:    in.SenderID,
		Content:     in.Content,
		Attachments: in.Attachments,
		Status:      StatusSent,
	})
	if err != nil {
		unlock()
		// The chat was deleted between the lookup and the write.
		if errors.Is(err, apperr.ErrNotFound) {
			return Message{}, apperr.Validation("chat not found")
		}
		return Message{}, apperr.Internal(err)
	}
	stored.Sender = sender
	s.broadcaster.BroadcastMessage(stored.ChatID, stored)
	unlock()

	s.invalidate(ctx, c.ParticipantIDs)
	s.log.Debug("message.create", "chat_id", stored.ChatID, "message_id", stored.ID)
	return stored, nil
}

// ListMessages returns the full thread oldest first. An unknown chat yields an empty slice.
func (s *Service) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	msgs, err := s.repo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if len(msgs) == 0 {
		return []Message{}, nil
	}

	directory, err := s.directory(ctx, lo.Map(msgs, func(m Message, _ int) string { return m.SenderID }))
	if err != nil {
		return nil, err
	}
	return withSenders(msgs, directory), nil
}

// ListMessagesFor is ListMessages restricted to participants of an existing chat.
func (s *Service) ListMessagesFor(ctx context.Context, viewerID, chatID string) ([]Message, error) {
	c, err := s.repo.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return []Message{}, nil
		}
		return nil, apperr.Internal(err)
	}
	if !lo.Contains(c.ParticipantIDs, viewerID) {
		return nil, apperr.Forbidden("not a participant of this chat")
	}
	return s.ListMessages(ctx, chatID)
}

// DeleteMessage removes one message and tells the room to evict it. An empty
// actorID skips the sender check.
func (s *Service) DeleteMessage(ctx context.Context, actorID, messageID string) error {
	m, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return apperr.Internal(err)
	}
	if actorID != "" && m.SenderID != actorID {
		return apperr.Forbidden("only the sender can delete a message")
	}

	unlock := s.locks.lock(m.ChatID)
	if _, err := s.repo.DeleteMessage(ctx, messageID); err != nil {
		unlock()
		return apperr.Internal(err)
	}
	s.broadcaster.BroadcastDeletion(m.ChatID, messageID)
	unlock()

	if c, err := s.repo.GetChat(ctx, m.ChatID); err == nil {
		s.invalidate(ctx, c.ParticipantIDs)
	}
	s.log.Debug("message.delete", "chat_id", m.ChatID, "message_id", messageID)
	return nil
}

// MarkRead moves a message from sent to read on behalf of a participant who is not its sender.
func (s *Service) MarkRead(ctx context.Context, readerID, messageID string) (Message, error) {
	m, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return Message{}, apperr.Internal(err)
	}
	c, err := s.repo.GetChat(ctx, m.ChatID)
	if err != nil {
		return Message{}, apperr.Internal(err)
	}
	if !lo.Contains(c.ParticipantIDs, readerID) {
		return Message{}, apperr.Forbidden("not a participant of this chat")
	}
	if m.SenderID == readerID {
		return Message{}, apperr.Validation("cannot mark your own message as read")
	}

	if m.Status != StatusRead {
		unlock := s.locks.lock(m.ChatID)
		m, err = s.repo.UpdateMessageStatus(ctx, messageID, StatusRead)
		if err != nil {
			unlock()
			return Message{}, apperr.Internal(err)
		}
		s.broadcaster.BroadcastStatus(m.ChatID, m.ID, m.Status)
		unlock()
		s.invalidate(ctx, c.ParticipantIDs)
	}

	if directory, err := s.directory(ctx, []string{m.SenderID}); err == nil {
		if sum, ok := directory[m.SenderID]; ok {
			m.Sender = &sum
		}
	}
	return m, nil
}

// ---------------------------------------------
// helpers
// ---------------------------------------------

func (s *Service) directory(ctx context.Context, ids []string) (map[string]user.Summary, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return map[string]user.Summary{}, nil
	}
	users, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return lo.SliceToMap(users, func(u user.User) (string, user.Summary) {
		return u.ID, u.Summary()
	}), nil
}

func (s *Service) invalidate(ctx context.Context, userIDs []string) {
	if err := s.cache.Invalidate(ctx, userIDs...); err != nil {
		s.log.Warn("chat.preview.cache_invalidate", "users", len(userIDs), "err", err)
	}
}

func withSenders(msgs []Message, directory map[string]user.Summary) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		if sum, ok := directory[m.SenderID]; ok {
			m.Sender = &sum
		}
		out[i] = m
	}
	return out
}
