package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared by all store implementations.
var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("duplicate record")
	// ErrVersionConflict is returned when a compare-and-set update lost
	// against a concurrent writer. Callers are expected to re-read and retry.
	ErrVersionConflict = errors.New("version conflict")
)

// User represents a user account.
type User struct {
	ID           int64
	Name         string
	Username     string
	Email        string
	PasswordHash string
	Bio          string
	AvatarID     string
	AvatarURL    string
	IsBlocked    bool
	Flagged      bool
	CreatedAt    time.Time
}

// Chat represents a group or direct chat.
//
// Version is bumped on every membership or rename mutation and is the
// compare-and-set token for per-chat serialization.
type Chat struct {
	ID        int64
	Name      string
	IsGroup   bool
	CreatorID *int64  // set for group chats only
	DirectKey *string // set for direct chats only
	Version   int64
	CreatedAt time.Time
	Members   []int64 // user IDs in stored membership order
}

// DirectKey builds the canonical dedup key for a direct chat between two users.
func DirectKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%d:%d", a, b)
}

// Attachment describes one uploaded file referenced by a message.
type Attachment struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	ResourceType string `json:"resource_type"`
}

// Message represents a persisted chat message. Immutable once created.
type Message struct {
	ID          int64
	ChatID      int64
	SenderID    int64
	Body        string
	Attachments []Attachment
	CreatedAt   time.Time
}

// RequestStatus defines friend request status.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
)

// FriendRequest represents a friend request between two users.
type FriendRequest struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Status     RequestStatus
	CreatedAt  time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user. Returns ErrDuplicate if the username is taken.
	CreateUser(ctx context.Context, u *User) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers searches for users whose name or username contains the query.
	SearchUsers(ctx context.Context, query string) ([]*User, error)

	// SetUserModeration updates the moderation flags of a user.
	SetUserModeration(ctx context.Context, id int64, blocked, flagged bool) error
}

// ChatStore handles chat and membership persistence.
//
// Implementations must apply every membership mutation atomically against the
// chat's version so that concurrent writers on the same chat cannot silently
// overwrite each other.
type ChatStore interface {
	// CreateGroupChat creates a group chat with the given ordered member set.
	// The caller is responsible for including the creator in memberIDs.
	CreateGroupChat(ctx context.Context, name string, creatorID int64, memberIDs []int64) (*Chat, error)

	// CreateDirectChat creates a two-member direct chat keyed by directKey.
	// Returns ErrDuplicate if a chat with the same key already exists.
	CreateDirectChat(ctx context.Context, directKey string, userA, userB int64) (*Chat, error)

	// GetChatByID retrieves a chat with its members in stored order.
	GetChatByID(ctx context.Context, id int64) (*Chat, error)

	// GetDirectChat retrieves a direct chat by its direct key.
	GetDirectChat(ctx context.Context, directKey string) (*Chat, error)

	// ListChatsForUser lists all chats the user is a member of.
	ListChatsForUser(ctx context.Context, userID int64) ([]*Chat, error)

	// ListGroupsForUser lists group chats the user is a member of.
	ListGroupsForUser(ctx context.Context, userID int64) ([]*Chat, error)

	// ReplaceChatMembers atomically replaces the member set and creator of a
	// chat, provided its version still equals expectVersion. Member order in
	// memberIDs becomes the new stored order. Returns ErrVersionConflict when
	// a concurrent mutation won the race.
	ReplaceChatMembers(ctx context.Context, chatID, expectVersion int64, creatorID *int64, memberIDs []int64) error

	// RenameChat atomically renames a chat guarded by its version.
	RenameChat(ctx context.Context, chatID, expectVersion int64, name string) error

	// DeleteChat deletes a chat, its membership and its messages, provided the
	// chat's version still equals expectVersion. Returns ErrVersionConflict
	// when a concurrent mutation won the race.
	DeleteChat(ctx context.Context, chatID, expectVersion int64) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its ID and timestamp.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves messages of a chat, newest first, with cursor
	// pagination. If beforeID is non-nil only messages older than it are
	// returned.
	ListMessages(ctx context.Context, chatID int64, limit int, beforeID *int64) ([]*Message, error)

	// ListAttachmentIDs returns the attachment IDs of every message in a chat.
	ListAttachmentIDs(ctx context.Context, chatID int64) ([]string, error)
}

// RequestStore handles friend request persistence.
type RequestStore interface {
	// CreateFriendRequest creates a pending request. Returns ErrDuplicate when
	// a pending request for the same unordered pair already exists, in either
	// direction.
	CreateFriendRequest(ctx context.Context, senderID, receiverID int64) (*FriendRequest, error)

	// GetFriendRequest retrieves a request by ID.
	GetFriendRequest(ctx context.Context, id int64) (*FriendRequest, error)

	// ResolveFriendRequest transitions a request from pending to the given
	// terminal status. Returns ErrVersionConflict if the request is no longer
	// pending.
	ResolveFriendRequest(ctx context.Context, id int64, status RequestStatus) error

	// ListPendingRequestsFor lists incoming pending requests for a receiver.
	ListPendingRequestsFor(ctx context.Context, receiverID int64) ([]*FriendRequest, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChatStore
	MessageStore
	RequestStore

	// Close closes the underlying database connection.
	Close() error
}
