package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"chatsync/internal/apperr"
	"chatsync/internal/chat"
	"chatsync/internal/user"

	"github.com/stretchr/testify/require"
)

func seedUsers(t *testing.T, s *Memory, n int) []user.User {
	t.Helper()
	out := make([]user.User, 0, n)
	for i := 0; i < n; i++ {
		u, err := s.CreateUser(context.Background(), user.User{
			Email:       fmt.Sprintf("user%d@example.com", i),
			DisplayName: fmt.Sprintf("User %d", i),
		})
		require.NoError(t, err)
		out = append(out, u)
	}
	return out
}

func TestMemory_CreateUser(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemory()

	u, err := s.CreateUser(ctx, user.User{Email: " Alice@Example.COM ", DisplayName: "Alice"})
	req.NoError(err)
	req.NotEmpty(u.ID)
	req.Equal("alice@example.com", u.Email)
	req.NotNil(u.ChatIDs)
	req.NotNil(u.ContactIDs)

	_, err = s.CreateUser(ctx, user.User{Email: "alice@example.com"})
	req.ErrorIs(err, apperr.ErrValidation)

	got, err := s.GetUserByEmail(ctx, "ALICE@example.com")
	req.NoError(err)
	req.Equal(u.ID, got.ID)

	_, err = s.GetUser(ctx, "missing")
	req.ErrorIs(err, user.ErrUserNotFound)
}

func TestMemory_GetUsersSkipsUnknown(t *testing.T) {
	s := NewMemory()
	us := seedUsers(t, s, 2)

	got, err := s.GetUsers(context.Background(), []string{us[1].ID, "ghost", us[0].ID, us[1].ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, us[1].ID, got[0].ID)
	require.Equal(t, us[0].ID, got[1].ID)
}

func TestMemory_Contacts(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemory()
	us := seedUsers(t, s, 3)

	req.NoError(s.AddContact(ctx, us[0].ID, us[1].ID))
	req.NoError(s.AddContact(ctx, us[0].ID, us[2].ID))
	req.ErrorIs(s.AddContact(ctx, us[0].ID, us[1].ID), user.ErrDuplicateContact)
	req.ErrorIs(s.AddContact(ctx, us[0].ID, us[0].ID), user.ErrSelfContact)
	req.ErrorIs(s.AddContact(ctx, us[0].ID, "ghost"), user.ErrUserNotFound)

	got, err := s.ListContacts(ctx, us[0].ID)
	req.NoError(err)
	req.Equal([]user.Summary{us[1].Summary(), us[2].Summary()}, got)

	back, err := s.ListContacts(ctx, us[1].ID)
	req.NoError(err)
	req.Empty(back)
}

func TestMemory_ChatMembershipIsSymmetric(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemory()
	us := seedUsers(t, s, 3)

	c, err := s.CreateChat(ctx, []string{us[0].ID, us[1].ID, us[0].ID})
	req.NoError(err)
	req.Equal([]string{us[0].ID, us[1].ID}, c.ParticipantIDs)
	req.Empty(c.MessageIDs)

	for _, u := range us[:2] {
		got, err := s.GetUser(ctx, u.ID)
		req.NoError(err)
		req.Equal([]string{c.ID}, got.ChatIDs)
	}
	outsider, err := s.GetUser(ctx, us[2].ID)
	req.NoError(err)
	req.Empty(outsider.ChatIDs)

	_, err = s.CreateChat(ctx, []string{us[0].ID, "ghost"})
	req.ErrorIs(err, user.ErrUserNotFound)
}

func TestMemory_MessagesOrderedAndIndexed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemory()
	frozen := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return frozen }
	us := seedUsers(t, s, 2)

	c, err := s.CreateChat(ctx, []string{us[0].ID, us[1].ID})
	req.NoError(err)

	var ids []string
	for i := 0; i < 5; i++ {
		m, err := s.CreateMessage(ctx, chat.Message{ChatID: c.ID, SenderID: us[i%2].ID, Content: fmt.Sprintf("m%d", i)})
		req.NoError(err)
		req.Equal(chat.StatusSent, m.Status)
		req.NotNil(m.Attachments)
		ids = append(ids, m.ID)
	}

	thread, err := s.ListMessages(ctx, c.ID)
	req.NoError(err)
	req.Len(thread, 5)
	for i := 1; i < len(thread); i++ {
		// Same wall clock, still strictly increasing.
		req.True(thread[i].CreatedAt.After(thread[i-1].CreatedAt))
	}
	for i, m := range thread {
		req.Equal(ids[i], m.ID)
	}

	recent, err := s.RecentMessages(ctx, c.ID, 3)
	req.NoError(err)
	req.Equal([]string{ids[4], ids[3], ids[2]}, []string{recent[0].ID, recent[1].ID, recent[2].ID})

	got, err := s.GetChat(ctx, c.ID)
	req.NoError(err)
	req.Equal(ids, got.MessageIDs)

	_, err = s.CreateMessage(ctx, chat.Message{ChatID: "ghost", SenderID: us[0].ID, Content: "x"})
	req.ErrorIs(err, chat.ErrChatNotFound)
}

func TestMemory_DeleteMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemory()
	us := seedUsers(t, s, 2)
	c, err := s.CreateChat(ctx, []string{us[0].ID, us[1].ID})
	req.NoError(err)

	m1, err := s.CreateMessage(ctx, chat.Message{ChatID: c.ID, SenderID: us[0].ID, Content: "one"})
	req.NoError(err)
	m2, err := s.CreateMessage(ctx, chat.Message{ChatID: c.ID, SenderID: us[1].ID, Content: "two"})
	req.NoError(err)

	deleted, err := s.DeleteMessage(ctx, m1.ID)
	req.NoError(err)
	req.Equal(m1.ID, deleted.ID)

	_, err = s.GetMessage(ctx, m1.ID)
	req.ErrorIs(err, chat.ErrMessageNotFound)
	_, err = s.DeleteMessage(ctx, m1.ID)
	req.ErrorIs(err, chat.ErrMessageNotFound)

	got, err := s.GetChat(ctx, c.ID)
	req.NoError(err)
	req.Equal([]string{m2.ID}, got.MessageIDs)
}

func TestMemory_DeleteChatCascades(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemory()
	us := seedUsers(t, s, 3)

	doomed, err := s.CreateChat(ctx, []string{us[0].ID, us[1].ID})
	req.NoError(err)
	kept, err := s.CreateChat(ctx, []string{us[0].ID, us[2].ID})
	req.NoError(err)

	var doomedMsgs []string
	for i := 0; i < 3; i++ {
		m, err := s.CreateMessage(ctx, chat.Message{ChatID: doomed.ID, SenderID: us[0].ID, Content: "bye"})
		req.NoError(err)
		doomedMsgs = append(doomedMsgs, m.ID)
	}
	keptMsg, err := s.CreateMessage(ctx, chat.Message{ChatID: kept.ID, SenderID: us[2].ID, Content: "stay"})
	req.NoError(err)

	removed, err := s.DeleteChat(ctx, doomed.ID)
	req.NoError(err)
	req.ElementsMatch([]string{us[0].ID, us[1].ID}, removed.ParticipantIDs)

	_, err = s.GetChat(ctx, doomed.ID)
	req.ErrorIs(err, chat.ErrChatNotFound)
	for _, id := range doomedMsgs {
		_, err := s.GetMessage(ctx, id)
		req.ErrorIs(err, chat.ErrMessageNotFound)
	}
	_, err = s.GetMessage(ctx, keptMsg.ID)
	req.NoError(err)

	u0, err := s.GetUser(ctx, us[0].ID)
	req.NoError(err)
	req.Equal([]string{kept.ID}, u0.ChatIDs)
	u1, err := s.GetUser(ctx, us[1].ID)
	req.NoError(err)
	req.Empty(u1.ChatIDs)

	_, err = s.DeleteChat(ctx, doomed.ID)
	req.ErrorIs(err, chat.ErrChatNotFound)
}

func TestMemory_UpdateMessageStatus(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemory()
	us := seedUsers(t, s, 2)
	c, err := s.CreateChat(ctx, []string{us[0].ID, us[1].ID})
	req.NoError(err)
	m, err := s.CreateMessage(ctx, chat.Message{ChatID: c.ID, SenderID: us[0].ID, Content: "hi"})
	req.NoError(err)

	updated, err := s.UpdateMessageStatus(ctx, m.ID, chat.StatusRead)
	req.NoError(err)
	req.Equal(chat.StatusRead, updated.Status)

	_, err = s.UpdateMessageStatus(ctx, "ghost", chat.StatusRead)
	req.ErrorIs(err, chat.ErrMessageNotFound)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemory()
	us := seedUsers(t, s, 2)
	c, err := s.CreateChat(ctx, []string{us[0].ID, us[1].ID})
	req.NoError(err)

	c.ParticipantIDs[0] = "tampered"
	got, err := s.GetChat(ctx, c.ID)
	req.NoError(err)
	req.Equal(us[0].ID, got.ParticipantIDs[0])
}

func TestMemory_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	us := seedUsers(t, s, 2)
	c, err := s.CreateChat(ctx, []string{us[0].ID, us[1].ID})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateMessage(ctx, chat.Message{ChatID: c.ID, SenderID: us[i%2].ID, Content: "x"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	thread, err := s.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, thread, 50)
	got, err := s.GetChat(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.MessageIDs, 50)
}

func TestMemory_ConcurrentSameChatCreatesKeepCommitOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemory()
	// A frozen clock forces every stamp through the monotonic bump.
	frozen := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return frozen }
	us := seedUsers(t, s, 2)
	c, err := s.CreateChat(ctx, []string{us[0].ID, us[1].ID})
	req.NoError(err)

	const n = 64
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateMessage(ctx, chat.Message{ChatID: c.ID, SenderID: us[i%2].ID, Content: fmt.Sprintf("m%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	thread, err := s.ListMessages(ctx, c.ID)
	req.NoError(err)
	req.Len(thread, n)
	got, err := s.GetChat(ctx, c.ID)
	req.NoError(err)

	// The index is appended in commit order; the listing must agree with it.
	ids := make([]string, 0, n)
	for i, m := range thread {
		ids = append(ids, m.ID)
		if i > 0 {
			req.True(m.CreatedAt.After(thread[i-1].CreatedAt), "createdAt not strictly increasing at %d", i)
			req.Greater(m.ID, thread[i-1].ID)
		}
	}
	req.Equal(got.MessageIDs, ids)
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().GetChat(ctx, "any")
	require.ErrorIs(t, err, context.Canceled)
}
