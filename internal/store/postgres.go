package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatsync/internal/apperr"
	"chatsync/internal/chat"
	"chatsync/internal/user"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"
)

const pgUniqueViolation = "23505"

// Postgres is the durable entity store. Chat.MessageIDs and User.ChatIDs are
// derived from the messages and chat_participants tables.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ user.Repository = (*Postgres)(nil)
	_ chat.Repository = (*Postgres)(nil)
)

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

func (s *Postgres) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Postgres) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ---------------------------------------------
// users & contacts
// ---------------------------------------------

func (s *Postgres) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	u.Email = user.NormalizeEmail(u.Email)
	if u.Email == "" {
		return user.User{}, apperr.Validation("email is required")
	}
	now := s.stamp()
	if u.ID == "" {
		u.ID = newID(now)
	}
	u.CreatedAt = now

	query := "INSERT INTO users (id, email, display_name, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)"
	if _, err := s.db.ExecContext(ctx, query, u.ID, u.Email, u.DisplayName, u.PasswordHash, u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, apperr.Validation("email already registered")
		}
		return user.User{}, err
	}
	u.ChatIDs = []string{}
	u.ContactIDs = []string{}
	return u, nil
}

func (s *Postgres) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.getUserWhere(ctx, "id = $1", id)
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.getUserWhere(ctx, "email = $1", user.NormalizeEmail(email))
}

func (s *Postgres) getUserWhere(ctx context.Context, where string, arg string) (user.User, error) {
	u := user.User{}
	query := "SELECT id, email, display_name, password_hash, created_at FROM users WHERE " + where

	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, err
	}

	if u.ChatIDs, err = s.queryIDs(ctx,
		`SELECT p.chat_id FROM chat_participants p JOIN chats c ON c.id = p.chat_id
		 WHERE p.user_id = $1 ORDER BY c.created_at, c.id`, u.ID); err != nil {
		return user.User{}, err
	}
	if u.ContactIDs, err = s.queryIDs(ctx,
		`SELECT contact_id FROM user_contacts WHERE owner_id = $1 ORDER BY created_at, contact_id`, u.ID); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Postgres) GetUsers(ctx context.Context, ids []string) ([]user.User, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, display_name, created_at FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]user.User, len(ids))
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt); err != nil {
			return nil, err
		}
		found[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lo.FilterMap(ids, func(id string, _ int) (user.User, bool) {
		u, ok := found[id]
		return u, ok
	}), nil
}

func (s *Postgres) AddContact(ctx context.Context, ownerID, contactID string) error {
	if ownerID == contactID {
		return user.ErrSelfContact
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_contacts (owner_id, contact_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id, contact_id) DO NOTHING`, ownerID, contactID, s.stamp())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrDuplicateContact
	}
	return nil
}

func (s *Postgres) ListContacts(ctx context.Context, ownerID string) ([]user.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.display_name FROM user_contacts c
		 JOIN users u ON u.id = c.contact_id
		 WHERE c.owner_id = $1 ORDER BY c.created_at, c.contact_id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []user.Summary{}
	for rows.Next() {
		var sum user.Summary
		if err := rows.Scan(&sum.ID, &sum.Email, &sum.DisplayName); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// ---------------------------------------------
// chats
// ---------------------------------------------

func (s *Postgres) CreateChat(ctx context.Context, participantIDs []string) (chat.Chat, error) {
	ids := lo.Uniq(participantIDs)
	now := s.stamp()
	c := chat.Chat{
		ID:             newID(now),
		ParticipantIDs: ids,
		MessageIDs:     []string{},
		CreatedAt:      now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO chats (id, created_at) VALUES ($1, $2)`, c.ID, c.CreatedAt); err != nil {
			return err
		}
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chat_participants (chat_id, user_id, position) VALUES ($1, $2, $3)`, c.ID, id, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return chat.Chat{}, err
	}
	return c, nil
}

func (s *Postgres) GetChat(ctx context.Context, id string) (chat.Chat, error) {
	c := chat.Chat{}
	err := s.db.QueryRowContext(ctx, `SELECT id, created_at FROM chats WHERE id = $1`, id).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Chat{}, chat.ErrChatNotFound
		}
		return chat.Chat{}, err
	}
	if err := s.fillChat(ctx, &c); err != nil {
		return chat.Chat{}, err
	}
	return c, nil
}

func (s *Postgres) fillChat(ctx context.Context, c *chat.Chat) error {
	var err error
	if c.ParticipantIDs, err = s.queryIDs(ctx,
		`SELECT user_id FROM chat_participants WHERE chat_id = $1 ORDER BY position`, c.ID); err != nil {
		return err
	}
	c.MessageIDs, err = s.queryIDs(ctx,
		`SELECT id FROM messages WHERE chat_id = $1 ORDER BY created_at, id`, c.ID)
	return err
}

func (s *Postgres) ListChatsForUser(ctx context.Context, userID string) ([]chat.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.created_at FROM chats c
		 JOIN chat_participants p ON p.chat_id = c.id
		 WHERE p.user_id = $1 ORDER BY c.created_at, c.id`, userID)
	if err != nil {
		return nil, err
	}
	out := []chat.Chat{}
	for rows.Next() {
		var c chat.Chat
		if err := rows.Scan(&c.ID, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		if err := s.fillChat(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteChat runs messages, chat, memberships as one transaction. The explicit
// deletes keep the order even where FK cascades would cover them.
func (s *Postgres) DeleteChat(ctx context.Context, id string) (chat.Chat, error) {
	c, err := s.GetChat(ctx, id)
	if err != nil {
		return chat.Chat{}, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = $1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return chat.ErrChatNotFound
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM chat_participants WHERE chat_id = $1`, id)
		return err
	})
	if err != nil {
		return chat.Chat{}, err
	}
	return c, nil
}

// ---------------------------------------------
// messages
// ---------------------------------------------

const messageColumns = "id, chat_id, sender_id, content, status, created_at"

func (s *Postgres) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	msg.Sender = nil
	if msg.Status == "" {
		msg.Status = chat.StatusSent
	}
	if msg.Attachments == nil {
		msg.Attachments = []chat.Attachment{}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// The row lock serializes writers on one chat and blocks a concurrent delete.
		var chatID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM chats WHERE id = $1 FOR NO KEY UPDATE`, msg.ChatID).Scan(&chatID)
		if errors.Is(err, sql.ErrNoRows) {
			return chat.ErrChatNotFound
		}
		if err != nil {
			return err
		}

		// Stamp under the lock, never at or before the chat's newest message.
		var last sql.NullTime
		if err := tx.QueryRowContext(ctx,
			`SELECT max(created_at) FROM messages WHERE chat_id = $1`, msg.ChatID).Scan(&last); err != nil {
			return err
		}
		now := s.stamp()
		if last.Valid && !now.After(last.Time) {
			now = last.Time.UTC().Add(time.Microsecond)
		}
		msg.ID = newID(now)
		msg.CreatedAt = now

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (`+messageColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			msg.ID, msg.ChatID, msg.SenderID, msg.Content, string(msg.Status), msg.CreatedAt); err != nil {
			return err
		}
		for i, a := range msg.Attachments {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO message_attachments (message_id, position, kind, url) VALUES ($1, $2, $3, $4)`,
				msg.ID, i, string(a.Type), a.URL); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

func (s *Postgres) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	msgs, err := s.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if err != nil {
		return chat.Message{}, err
	}
	if len(msgs) == 0 {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	return msgs[0], nil
}

func (s *Postgres) ListMessages(ctx context.Context, chatID string) ([]chat.Message, error) {
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id = $1 ORDER BY created_at, id`, chatID)
}

func (s *Postgres) RecentMessages(ctx context.Context, chatID string, n int) ([]chat.Message, error) {
	if n <= 0 {
		n = 5
	}
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		chatID, n)
}

func (s *Postgres) DeleteMessage(ctx context.Context, id string) (chat.Message, error) {
	m, err := s.GetMessage(ctx, id)
	if err != nil {
		return chat.Message{}, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return chat.Message{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return chat.Message{}, err
	} else if n == 0 {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	return m, nil
}

func (s *Postgres) UpdateMessageStatus(ctx context.Context, id string, status chat.Status) (chat.Message, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return chat.Message{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return chat.Message{}, err
	} else if n == 0 {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	return s.GetMessage(ctx, id)
}

func (s *Postgres) queryMessages(ctx context.Context, query string, args ...any) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []chat.Message{}
	for rows.Next() {
		var m chat.Message
		var status string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &status, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Status = chat.Status(status)
		m.Attachments = []chat.Attachment{}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return msgs, nil
	}
	if err := s.attachAttachments(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Postgres) attachAttachments(ctx context.Context, msgs []chat.Message) error {
	ids := lo.Map(msgs, func(m chat.Message, _ int) string { return m.ID })
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, kind, url FROM message_attachments WHERE message_id = ANY($1) ORDER BY message_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	byMessage := make(map[string][]chat.Attachment)
	for rows.Next() {
		var mid, kind, url string
		if err := rows.Scan(&mid, &kind, &url); err != nil {
			return err
		}
		byMessage[mid] = append(byMessage[mid], chat.Attachment{Type: chat.AttachmentType(kind), URL: url})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range msgs {
		if as, ok := byMessage[msgs[i].ID]; ok {
			msgs[i].Attachments = as
		}
	}
	return nil
}

func (s *Postgres) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, strings.TrimSpace(id))
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
