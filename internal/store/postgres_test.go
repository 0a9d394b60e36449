package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"chatsync/internal/chat"
	"chatsync/internal/db"
	"chatsync/internal/user"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database, err := db.NewDatabase(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not reachable: %v", err)
	}
	require.NoError(t, database.AutoMigrate(ctx))
	t.Cleanup(func() { _ = database.Close() })
	return NewPostgres(database.Conn)
}

func pgUser(t *testing.T, s *Postgres, name string) user.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), user.User{
		Email:       name + "-" + ulid.Make().String() + "@example.com",
		DisplayName: name,
	})
	require.NoError(t, err)
	return u
}

func TestPostgres_ChatLifecycle(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newTestPostgres(t)

	alice, bob := pgUser(t, s, "alice"), pgUser(t, s, "bob")

	c, err := s.CreateChat(ctx, []string{alice.ID, bob.ID})
	req.NoError(err)
	req.Equal([]string{alice.ID, bob.ID}, c.ParticipantIDs)

	got, err := s.GetUser(ctx, bob.ID)
	req.NoError(err)
	req.Contains(got.ChatIDs, c.ID)

	m1, err := s.CreateMessage(ctx, chat.Message{
		ChatID:      c.ID,
		SenderID:    alice.ID,
		Content:     "hi",
		Attachments: []chat.Attachment{{Type: chat.AttachmentImage, URL: "https://cdn.example/a.png"}},
	})
	req.NoError(err)
	m2, err := s.CreateMessage(ctx, chat.Message{ChatID: c.ID, SenderID: bob.ID, Content: "hello"})
	req.NoError(err)

	thread, err := s.ListMessages(ctx, c.ID)
	req.NoError(err)
	req.Len(thread, 2)
	req.Equal(m1.ID, thread[0].ID)
	req.Equal([]chat.Attachment{{Type: chat.AttachmentImage, URL: "https://cdn.example/a.png"}}, thread[0].Attachments)

	recent, err := s.RecentMessages(ctx, c.ID, 1)
	req.NoError(err)
	req.Len(recent, 1)
	req.Equal(m2.ID, recent[0].ID)

	read, err := s.UpdateMessageStatus(ctx, m1.ID, chat.StatusRead)
	req.NoError(err)
	req.Equal(chat.StatusRead, read.Status)

	_, err = s.DeleteChat(ctx, c.ID)
	req.NoError(err)
	_, err = s.GetChat(ctx, c.ID)
	req.ErrorIs(err, chat.ErrChatNotFound)
	_, err = s.GetMessage(ctx, m2.ID)
	req.ErrorIs(err, chat.ErrMessageNotFound)

	got, err = s.GetUser(ctx, alice.ID)
	req.NoError(err)
	req.NotContains(got.ChatIDs, c.ID)
}

func TestPostgres_Contacts(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newTestPostgres(t)

	alice, bob := pgUser(t, s, "alice"), pgUser(t, s, "bob")

	req.NoError(s.AddContact(ctx, alice.ID, bob.ID))
	req.ErrorIs(s.AddContact(ctx, alice.ID, bob.ID), user.ErrDuplicateContact)

	contacts, err := s.ListContacts(ctx, alice.ID)
	req.NoError(err)
	req.Equal([]user.Summary{bob.Summary()}, contacts)

	back, err := s.ListContacts(ctx, bob.ID)
	req.NoError(err)
	req.Empty(back)
}

func TestPostgres_StampsNeverGoBackwards(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newTestPostgres(t)
	alice, bob := pgUser(t, s, "alice"), pgUser(t, s, "bob")
	c, err := s.CreateChat(ctx, []string{alice.ID, bob.ID})
	req.NoError(err)

	// The clock runs backwards; stamps follow the chat's newest message instead.
	clock := time.Now().Add(time.Hour)
	s.now = func() time.Time {
		clock = clock.Add(-time.Minute)
		return clock
	}
	var sent []string
	for i := 0; i < 3; i++ {
		m, err := s.CreateMessage(ctx, chat.Message{ChatID: c.ID, SenderID: alice.ID, Content: fmt.Sprintf("m%d", i)})
		req.NoError(err)
		sent = append(sent, m.ID)
	}

	thread, err := s.ListMessages(ctx, c.ID)
	req.NoError(err)
	req.Len(thread, 3)
	for i, m := range thread {
		req.Equal(sent[i], m.ID)
		if i > 0 {
			req.True(m.CreatedAt.After(thread[i-1].CreatedAt))
		}
	}
}

func TestPostgres_ConcurrentSameChatCreates(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newTestPostgres(t)
	alice, bob := pgUser(t, s, "alice"), pgUser(t, s, "bob")
	c, err := s.CreateChat(ctx, []string{alice.ID, bob.ID})
	req.NoError(err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		sender := alice.ID
		if i%2 == 1 {
			sender = bob.ID
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateMessage(ctx, chat.Message{ChatID: c.ID, SenderID: sender, Content: fmt.Sprintf("m%d", i)})
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
	for i := 1; i < len(thread); i++ {
		req.True(thread[i].CreatedAt.After(thread[i-1].CreatedAt), "createdAt not strictly increasing at %d", i)
		req.Greater(thread[i].ID, thread[i-1].ID)
	}
}
