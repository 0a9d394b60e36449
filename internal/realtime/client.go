package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"chatsync/internal/apperr"
	"chatsync/internal/chat"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum message size allowed from peer.

	opTimeout = 10 * time.Second
)

// ChatService is what a socket session needs from the message pipeline.
type ChatService interface {
	IsParticipant(ctx context.Context, userID, chatID string) (bool, error)
	DeleteMessage(ctx context.Context, actorID, messageID string) error
	MarkRead(ctx context.Context, readerID, messageID string) (chat.Message, error)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	UserID string

	hub   *Hub
	conn  *websocket.Conn
	chats ChatService
	log   *slog.Logger

	// Buffered channel of outbound frames. Only the hub sends on or closes it.
	send chan []byte

	limiter *RateLimiter
}

func newClient(hub *Hub, conn *websocket.Conn, userID string, chats ChatService, queue int, log *slog.Logger) *Client {
	if queue <= 0 {
		queue = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		UserID:  userID,
		hub:     hub,
		conn:    conn,
		chats:   chats,
		log:     log,
		send:    make(chan []byte, queue),
		limiter: NewRateLimiter(rateLimitEvents, rateLimitWindow),
	}
}

// readPump pumps events from the websocket connection to the handlers.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Info("ws.read.fail", "user_id", c.UserID, "err", err)
			}
			return
		}
		if !c.limiter.Allow(time.Now()) {
			// WriteControl may run alongside writePump; the close frame goes out before unregister.
			c.log.Warn("ws.rate_limited", "user_id", c.UserID)
			frame := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, rateLimitReason)
			if err := c.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(writeWait)); err != nil {
				c.log.Info("ws.close.fail", "user_id", c.UserID, "err", err)
			}
			return
		}
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.replyError("invalid JSON")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch env.Event {
	case EventRegister:
		var p RegisterPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || strings.TrimSpace(p.ChatRoomID) == "" {
			c.replyError("chatRoomId is required")
			return
		}
		chatID := strings.TrimSpace(p.ChatRoomID)
		ok, err := c.chats.IsParticipant(ctx, c.UserID, chatID)
		if err != nil {
			c.log.Error("ws.register.check", "user_id", c.UserID, "chat_id", chatID, "err", err)
			c.replyError(apperr.PublicMessage(err))
			return
		}
		if !ok {
			c.log.Info("ws.register.denied", "user_id", c.UserID, "chat_id", chatID)
			c.replyError("not a participant of this chat")
			return
		}
		c.hub.Join(c, chatID)

	case EventDeleteMessage:
		id, ok := c.messageRef(env.Data)
		if !ok {
			return
		}
		// The pipeline persists the delete and relays it to the room.
		if err := c.chats.DeleteMessage(ctx, c.UserID, id); err != nil {
			c.replyError(apperr.PublicMessage(err))
		}

	case EventReadMessage:
		id, ok := c.messageRef(env.Data)
		if !ok {
			return
		}
		if _, err := c.chats.MarkRead(ctx, c.UserID, id); err != nil {
			c.replyError(apperr.PublicMessage(err))
		}

	default:
		c.replyError("unsupported event: " + env.Event)
	}
}

func (c *Client) messageRef(data json.RawMessage) (string, bool) {
	var p MessageRefPayload
	if err := json.Unmarshal(data, &p); err != nil || strings.TrimSpace(p.MessageID) == "" {
		c.replyError("messageId is required")
		return "", false
	}
	return strings.TrimSpace(p.MessageID), true
}

func (c *Client) replyError(msg string) {
	c.hub.Reply(c, EventError, ErrorPayload{Message: msg})
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.log.Debug("ws.write.fail", "user_id", c.UserID, "err", err)
				}
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
