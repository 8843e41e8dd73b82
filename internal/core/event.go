package core

import (
	"time"

	"github.com/chattu-app/chattu-server/internal/store"
)

// EventKind is a notification the core pushes to live connections.
type EventKind string

const (
	// EventChatRefresh tells clients to refetch a chat after a membership
	// change or rename.
	EventChatRefresh EventKind = "chat.refresh"
	// EventChatRemoved tells clients a chat no longer exists for them.
	EventChatRemoved EventKind = "chat.removed"
	// EventRequestReceived notifies the receiver of a new friend request.
	EventRequestReceived EventKind = "request.received"
	// EventRequestResolved notifies parties that a request was accepted or rejected.
	EventRequestResolved EventKind = "request.resolved"
	// EventNewMessage notifies chat members about a new message.
	EventNewMessage EventKind = "message.new"
)

// Event is pushed to clients to describe what happened in the system.
type Event struct {
	Kind EventKind
	Data any
}

// ChatPayload accompanies chat.refresh and chat.removed events.
type ChatPayload struct {
	ChatID int64 `json:"chatId"`
}

// RequestReceivedPayload accompanies request.received events.
type RequestReceivedPayload struct {
	RequestID int64 `json:"requestId"`
	SenderID  int64 `json:"senderId"`
}

// RequestResolvedPayload accompanies request.resolved events.
type RequestResolvedPayload struct {
	RequestID int64  `json:"requestId"`
	Status    string `json:"status"`
}

// MessagePayload accompanies message.new events.
type MessagePayload struct {
	ChatID  int64       `json:"chatId"`
	Message MessageData `json:"message"`
}

// MessageData is the wire shape of a message inside a message.new event.
type MessageData struct {
	ID          int64              `json:"id"`
	ChatID      int64              `json:"chatId"`
	SenderID    int64              `json:"senderId"`
	Body        string             `json:"body"`
	Attachments []store.Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}
