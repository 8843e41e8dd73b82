package http

import (
	"time"

	"github.com/chattu-app/chattu-server/internal/store"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ChatResponse represents a chat in API responses.
type ChatResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name,omitempty"`
	IsGroup   bool    `json:"is_group"`
	CreatorID *int64  `json:"creator_id,omitempty"`
	Members   []int64 `json:"members"`
	CreatedAt string  `json:"created_at"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID          int64              `json:"id"`
	ChatID      int64              `json:"chat_id"`
	SenderID    int64              `json:"sender_id"`
	Body        string             `json:"body"`
	Attachments []store.Attachment `json:"attachments,omitempty"`
	CreatedAt   string             `json:"created_at"`
}

// RequestResponse represents a friend request in API responses.
type RequestResponse struct {
	ID             int64  `json:"id"`
	SenderID       int64  `json:"sender_id"`
	ReceiverID     int64  `json:"receiver_id"`
	Status         string `json:"status"`
	SenderName     string `json:"sender_name,omitempty"`
	SenderUsername string `json:"sender_username,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func userToResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
		CreatedAt: formatTime(u.CreatedAt),
	}
}

func chatToResponse(c *store.Chat) ChatResponse {
	members := c.Members
	if members == nil {
		members = []int64{}
	}
	return ChatResponse{
		ID:        c.ID,
		Name:      c.Name,
		IsGroup:   c.IsGroup,
		CreatorID: c.CreatorID,
		Members:   members,
		CreatedAt: formatTime(c.CreatedAt),
	}
}

func requestToResponse(r *store.FriendRequest, sender *store.User) RequestResponse {
	resp := RequestResponse{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Status:     string(r.Status),
		CreatedAt:  formatTime(r.CreatedAt),
	}
	if sender != nil {
		resp.SenderName = sender.Name
		resp.SenderUsername = sender.Username
	}
	return resp
}

func messageToResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		ChatID:      m.ChatID,
		SenderID:    m.SenderID,
		Body:        m.Body,
		Attachments: m.Attachments,
		CreatedAt:   formatTime(m.CreatedAt),
	}
}
