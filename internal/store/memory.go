// Package store implements the entity store behind the user and chat repositories.
//
// Memory keeps everything under one mutex, so each cascade is atomic. Postgres
// wraps each cascade in a single transaction.
package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"chatsync/internal/apperr"
	"chatsync/internal/chat"
	"chatsync/internal/user"

	"github.com/samber/lo"
)

// Memory is an in-process entity store for development and tests.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]*user.User
	byEmail  map[string]string
	chats    map[string]*chat.Chat
	messages map[string]*chat.Message

	now    func() time.Time
	lastTS time.Time
}

var (
	_ user.Repository = (*Memory)(nil)
	_ chat.Repository = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]*user.User),
		byEmail:  make(map[string]string),
		chats:    make(map[string]*chat.Chat),
		messages: make(map[string]*chat.Message),
		now:      time.Now,
	}
}

func (s *Memory) Close() error { return nil }

// stamp returns a strictly increasing timestamp. Callers hold s.mu.
func (s *Memory) stamp() time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = now
	return now
}

// ---------------------------------------------
// users & contacts
// ---------------------------------------------

func (s *Memory) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	u.Email = user.NormalizeEmail(u.Email)
	if u.Email == "" {
		return user.User{}, apperr.Validation("email is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[u.Email]; taken {
		return user.User{}, apperr.Validation("email already registered")
	}
	now := s.stamp()
	if u.ID == "" {
		u.ID = newID(now)
	}
	if _, taken := s.users[u.ID]; taken {
		return user.User{}, apperr.Validation("user id already exists")
	}
	u.CreatedAt = now
	u.ChatIDs = []string{}
	u.ContactIDs = []string{}

	stored := u
	s.users[u.ID] = &stored
	s.byEmail[u.Email] = u.ID
	return cloneUser(&stored), nil
}

func (s *Memory) GetUser(ctx context.Context, id string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *Memory) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Memory) GetUsers(ctx context.Context, ids []string) ([]user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		if u, ok := s.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (s *Memory) AddContact(ctx context.Context, ownerID, contactID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.users[ownerID]
	if !ok {
		return user.ErrUserNotFound
	}
	if _, ok := s.users[contactID]; !ok {
		return user.ErrUserNotFound
	}
	if ownerID == contactID {
		return user.ErrSelfContact
	}
	if slices.Contains(owner.ContactIDs, contactID) {
		return user.ErrDuplicateContact
	}
	owner.ContactIDs = append(owner.ContactIDs, contactID)
	return nil
}

func (s *Memory) ListContacts(ctx context.Context, ownerID string) ([]user.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.users[ownerID]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	out := make([]user.Summary, 0, len(owner.ContactIDs))
	for _, id := range owner.ContactIDs {
		if c, ok := s.users[id]; ok {
			out = append(out, c.Summary())
		}
	}
	return out, nil
}

// ---------------------------------------------
// chats
// ---------------------------------------------

func (s *Memory) CreateChat(ctx context.Context, participantIDs []string) (chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return chat.Chat{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := lo.Uniq(participantIDs)
	for _, id := range ids {
		if _, ok := s.users[id]; !ok {
			return chat.Chat{}, user.ErrUserNotFound
		}
	}

	now := s.stamp()
	c := &chat.Chat{
		ID:             newID(now),
		ParticipantIDs: ids,
		MessageIDs:     []string{},
		CreatedAt:      now,
	}
	s.chats[c.ID] = c
	for _, id := range ids {
		u := s.users[id]
		u.ChatIDs = append(u.ChatIDs, c.ID)
	}
	return cloneChat(c), nil
}

func (s *Memory) GetChat(ctx context.Context, id string) (chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return chat.Chat{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[id]
	if !ok {
		return chat.Chat{}, chat.ErrChatNotFound
	}
	return cloneChat(c), nil
}

func (s *Memory) ListChatsForUser(ctx context.Context, userID string) ([]chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return []chat.Chat{}, nil
	}
	out := make([]chat.Chat, 0, len(u.ChatIDs))
	for _, id := range u.ChatIDs {
		if c, ok := s.chats[id]; ok {
			out = append(out, cloneChat(c))
		}
	}
	return out, nil
}

func (s *Memory) DeleteChat(ctx context.Context, id string) (chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return chat.Chat{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[id]
	if !ok {
		return chat.Chat{}, chat.ErrChatNotFound
	}

	// Messages are matched by chat id, not only through the index.
	for mid, m := range s.messages {
		if m.ChatID == id {
			delete(s.messages, mid)
		}
	}
	delete(s.chats, id)
	for _, pid := range c.ParticipantIDs {
		if u, ok := s.users[pid]; ok {
			u.ChatIDs = slices.DeleteFunc(u.ChatIDs, func(cid string) bool { return cid == id })
		}
	}
	return cloneChat(c), nil
}

// ---------------------------------------------
// messages
// ---------------------------------------------

func (s *Memory) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[msg.ChatID]
	if !ok {
		return chat.Message{}, chat.ErrChatNotFound
	}

	now := s.stamp()
	msg.ID = newID(now)
	msg.CreatedAt = now
	msg.Sender = nil
	if msg.Status == "" {
		msg.Status = chat.StatusSent
	}
	msg.Attachments = slices.Clone(msg.Attachments)
	if msg.Attachments == nil {
		msg.Attachments = []chat.Attachment{}
	}

	stored := msg
	s.messages[msg.ID] = &stored
	c.MessageIDs = append(c.MessageIDs, msg.ID)
	return cloneMessage(&stored), nil
}

func (s *Memory) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	return cloneMessage(m), nil
}

func (s *Memory) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.threadLocked(chatID), nil
}

func (s *Memory) RecentMessages(ctx context.Context, chatID string, n int) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread := s.threadLocked(chatID)
	if n > 0 && len(thread) > n {
		thread = thread[len(thread)-n:]
	}
	slices.Reverse(thread)
	return thread, nil
}

func (s *Memory) DeleteMessage(ctx context.Context, id string) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	delete(s.messages, id)
	if c, ok := s.chats[m.ChatID]; ok {
		c.MessageIDs = slices.DeleteFunc(c.MessageIDs, func(mid string) bool { return mid == id })
	}
	return cloneMessage(m), nil
}

func (s *Memory) UpdateMessageStatus(ctx context.Context, id string, status chat.Status) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	m.Status = status
	return cloneMessage(m), nil
}

// threadLocked returns the chat's live messages oldest first. Callers hold s.mu.
func (s *Memory) threadLocked(chatID string) []chat.Message {
	var out []chat.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			out = append(out, cloneMessage(m))
		}
	}
	slices.SortFunc(out, compareMessages)
	if out == nil {
		out = []chat.Message{}
	}
	return out
}

func compareMessages(a, b chat.Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

func cloneUser(u *user.User) user.User {
	out := *u
	out.ChatIDs = slices.Clone(u.ChatIDs)
	out.ContactIDs = slices.Clone(u.ContactIDs)
	return out
}

func cloneChat(c *chat.Chat) chat.Chat {
	out := *c
	out.ParticipantIDs = slices.Clone(c.ParticipantIDs)
	out.MessageIDs = slices.Clone(c.MessageIDs)
	return out
}

func cloneMessage(m *chat.Message) chat.Message {
	out := *m
	out.Attachments = slices.Clone(m.Attachments)
	return out
}
