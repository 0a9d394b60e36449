package realtime

import (
	"encoding/json"

	"chatsync/internal/chat"
)

// Wire events. Every frame is one Envelope encoded as JSON text.
const (
	// client -> server
	EventRegister    = "register"
	EventReadMessage = "readMessage"

	// both directions: a client asks for a delete, the server relays the eviction.
	EventDeleteMessage = "deleteMessage"

	// server -> client
	EventRegistered    = "registered"
	EventMessage       = "message"
	EventMessageStatus = "messageStatus"
	EventChatDeleted   = "chatDeleted"
	EventError         = "error"
)

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type RegisterPayload struct {
	ChatRoomID string `json:"chatRoomId"`
}

type MessageRefPayload struct {
	MessageID string `json:"messageId"`
}

type StatusPayload struct {
	MessageID string      `json:"messageId"`
	Status    chat.Status `json:"status"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
