package chat

import (
	"time"

	"chatsync/internal/user"
)

type Status string

const (
	StatusSent Status = "sent"
	StatusRead Status = "read"
)

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
	AttachmentVideo AttachmentType = "video"
	AttachmentAudio AttachmentType = "audio"
	AttachmentOther AttachmentType = "other"
)

func (t AttachmentType) Valid() bool {
	switch t {
	case AttachmentImage, AttachmentFile, AttachmentVideo, AttachmentAudio, AttachmentOther:
		return true
	}
	return false
}

type Attachment struct {
	Type AttachmentType `json:"type"`
	URL  string         `json:"url"`
}

// Chat has a participant set fixed at creation. MessageIDs is an index kept in step
// with the messages table; the authoritative set is "messages whose chatId matches".
type Chat struct {
	ID             string    `json:"id"`
	ParticipantIDs []string  `json:"participants"`
	MessageIDs     []string  `json:"messages"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Message struct {
	ID          string        `json:"id"`
	ChatID      string        `json:"chatId"`
	SenderID    string        `json:"senderId"`
	Sender      *user.Summary `json:"sender,omitempty"`
	Content     string        `json:"content"`
	Attachments []Attachment  `json:"attachments"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// ChatView is a chat as listed for one user: participants resolved and a
// newest-first preview of recent messages.
type ChatView struct {
	ID           string         `json:"id"`
	Participants []user.Summary `json:"participants"`
	Messages     []Message      `json:"messages"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type CreateMessageInput struct {
	ChatID      string
	SenderID    string
	Content     string
	Attachments []Attachment
}

// ---------------------------------------------
// API request bodies
// ---------------------------------------------

type CreateChatRequest struct {
	SenderID       string   `json:"senderId"`
	ReceiverID     string   `json:"receiverId"`
	ParticipantIDs []string `json:"participantIds"`
}

type CreateMessageRequest struct {
	ChatID      string       `json:"chatId" validate:"required"`
	Content     string       `json:"content"`
	SenderID    string       `json:"senderId"`
	Attachments []Attachment `json:"attachments"`
}
