package realtime

import (
	"context"
	"log/slog"

	"chatsync/internal/chat"
)

const broadcastQueueSize = 1024

// Hub routes events to rooms keyed by chat id.
// Run is the only goroutine that touches clients, rooms, or any Client.send;
// everything else talks to it through channels, so no locks are needed.
type Hub struct {
	log     *slog.Logger
	metrics *Metrics

	// client -> rooms it joined
	clients map[*Client]map[string]struct{}
	// chat id -> registered clients
	rooms map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	direct     chan directMessage
	broadcast  chan roomEvent
	sizes      chan sizeRequest

	stopped chan struct{}
}

type joinRequest struct {
	client *Client
	chatID string
}

type directMessage struct {
	client  *Client
	payload []byte
}

type roomEvent struct {
	chatID  string
	event   string
	payload []byte

	// closeRoom tears the room down after fan-out.
	closeRoom bool
}

type sizeRequest struct {
	chatID string
	reply  chan int
}

var _ chat.Broadcaster = (*Hub)(nil)

func NewHub(log *slog.Logger, metrics *Metrics) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Hub{
		log:        log,
		metrics:    metrics,
		clients:    make(map[*Client]map[string]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		direct:     make(chan directMessage, broadcastQueueSize),
		broadcast:  make(chan roomEvent, broadcastQueueSize),
		sizes:      make(chan sizeRequest),
		stopped:    make(chan struct{}),
	}
}

// Run owns the hub state until ctx is cancelled. On exit every client is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = make(map[string]struct{})
			h.metrics.Clients.Inc()

		case client := <-h.unregister:
			// Always check they exist: a slow client may already be gone.
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case req := <-h.join:
			h.joinRoom(req.client, req.chatID)

		case msg := <-h.direct:
			if _, ok := h.clients[msg.client]; ok {
				h.deliver(msg.client, msg.payload)
			}

		case ev := <-h.broadcast:
			h.fanOut(ev)

		case req := <-h.sizes:
			req.reply <- len(h.rooms[req.chatID])
		}
	}
}

// Register adds a connected client. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// Join adds c to the room for chatID. Joining twice is a no-op apart from the ack.
// Authorization is the caller's job.
func (h *Hub) Join(c *Client, chatID string) {
	select {
	case h.join <- joinRequest{client: c, chatID: chatID}:
	case <-h.stopped:
	}
}

// Reply sends an event to one client only.
func (h *Hub) Reply(c *Client, event string, data any) {
	payload, err := encode(event, data)
	if err != nil {
		h.log.Error("hub.encode", "event", event, "err", err)
		return
	}
	select {
	case h.direct <- directMessage{client: c, payload: payload}:
	case <-h.stopped:
	}
}

// RoomSize reports how many clients are registered to chatID.
func (h *Hub) RoomSize(chatID string) int {
	reply := make(chan int, 1)
	select {
	case h.sizes <- sizeRequest{chatID: chatID, reply: reply}:
		return <-reply
	case <-h.stopped:
		return 0
	}
}

func (h *Hub) BroadcastMessage(chatID string, msg chat.Message) {
	h.publish(chatID, EventMessage, msg)
}

func (h *Hub) BroadcastDeletion(chatID, messageID string) {
	h.publish(chatID, EventDeleteMessage, MessageRefPayload{MessageID: messageID})
}

func (h *Hub) BroadcastStatus(chatID, messageID string, status chat.Status) {
	h.publish(chatID, EventMessageStatus, StatusPayload{MessageID: messageID, Status: status})
}

// BroadcastChatDeleted sends the final event for chatID, then empties the room.
// Sockets stay connected and keep their other rooms.
func (h *Hub) BroadcastChatDeleted(chatID string) {
	h.queue(chatID, EventChatDeleted, RegisterPayload{ChatRoomID: chatID}, true)
}

func (h *Hub) publish(chatID, event string, data any) {
	h.queue(chatID, event, data, false)
}

// queue encodes once on the caller's goroutine and hands the room event to Run.
func (h *Hub) queue(chatID, event string, data any, closeRoom bool) {
	payload, err := encode(event, data)
	if err != nil {
		h.log.Error("hub.encode", "event", event, "chat_id", chatID, "err", err)
		return
	}
	select {
	case h.broadcast <- roomEvent{chatID: chatID, event: event, payload: payload, closeRoom: closeRoom}:
	case <-h.stopped:
		h.metrics.Dropped.WithLabelValues("hub_stopped").Inc()
	}
}

// ---------------------------------------------
// Run-goroutine helpers
// ---------------------------------------------

func (h *Hub) joinRoom(c *Client, chatID string) {
	joined, ok := h.clients[c]
	if !ok {
		return
	}
	room, ok := h.rooms[chatID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[chatID] = room
		h.metrics.Rooms.Inc()
	}
	room[c] = struct{}{}
	joined[chatID] = struct{}{}

	ack, err := encode(EventRegistered, RegisterPayload{ChatRoomID: chatID})
	if err == nil {
		h.deliver(c, ack)
	}
	h.log.Debug("hub.room.join", "chat_id", chatID, "user_id", c.UserID)
}

func (h *Hub) fanOut(ev roomEvent) {
	room := h.rooms[ev.chatID]
	h.metrics.Events.WithLabelValues(ev.event).Inc()
	for client := range room {
		h.deliver(client, ev.payload)
	}
	if ev.closeRoom {
		h.closeRoom(ev.chatID)
	}
}

func (h *Hub) closeRoom(chatID string) {
	room, ok := h.rooms[chatID]
	if !ok {
		return
	}
	for client := range room {
		delete(h.clients[client], chatID)
	}
	delete(h.rooms, chatID)
	h.metrics.Rooms.Dec()
	h.log.Debug("hub.room.close", "chat_id", chatID)
}

// deliver never blocks: a client whose queue is full is dropped.
func (h *Hub) deliver(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.metrics.Dropped.WithLabelValues("slow_consumer").Inc()
		h.log.Warn("hub.client.drop", "user_id", c.UserID, "reason", "send queue full")
		h.drop(c)
	}
}

// drop removes c from every room and closes its send queue, which stops its writePump.
func (h *Hub) drop(c *Client) {
	joined, ok := h.clients[c]
	if !ok {
		return
	}
	for chatID := range joined {
		room := h.rooms[chatID]
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, chatID)
			h.metrics.Rooms.Dec()
		}
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.Clients.Dec()
}
