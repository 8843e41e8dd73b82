package messages

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chattu-app/chattu-server/internal/core"
	"github.com/chattu-app/chattu-server/internal/media"
	"github.com/chattu-app/chattu-server/internal/store"
)

// Common errors for message operations.
var (
	ErrChatNotFound  = errors.New("chat not found")
	ErrUnauthorized  = errors.New("not a member of this chat")
	ErrEmptyMessage  = errors.New("message has no content")
	ErrTooManyFiles  = errors.New("too many attachments")
	ErrUploadFailure = errors.New("attachment upload failed")
)

const (
	// maxAttachments bounds the number of files per message.
	maxAttachments = 5

	defaultPageSize = 50
	maxPageSize     = 100
)

// Service creates and lists chat messages.
type Service struct {
	store    store.Store
	dispatch *core.Dispatcher
	uploader media.Uploader
	log      *zerolog.Logger
}

// New creates a message service.
func New(st store.Store, dispatch *core.Dispatcher, uploader media.Uploader, logger *zerolog.Logger) *Service {
	return &Service{
		store:    st,
		dispatch: dispatch,
		uploader: uploader,
		log:      logger,
	}
}

// Send persists a message with optional attachments and notifies the chat's
// members. Only members may send.
func (s *Service) Send(ctx context.Context, chatID, senderID int64, body string, files []media.File) (*store.Message, error) {
	if body == "" && len(files) == 0 {
		return nil, ErrEmptyMessage
	}
	if len(files) > maxAttachments {
		return nil, ErrTooManyFiles
	}

	chat, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if !isMember(chat, senderID) {
		return nil, ErrUnauthorized
	}

	var attachments []store.Attachment
	if len(files) > 0 {
		attachments, err = s.uploader.UploadBatch(ctx, files)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUploadFailure, err)
		}
	}

	msg := &store.Message{
		ChatID:      chatID,
		SenderID:    senderID,
		Body:        body,
		Attachments: attachments,
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	s.dispatch.Notify(core.EventNewMessage, chat.Members, core.MessagePayload{
		ChatID: chatID,
		Message: core.MessageData{
			ID:          msg.ID,
			ChatID:      msg.ChatID,
			SenderID:    msg.SenderID,
			Body:        msg.Body,
			Attachments: msg.Attachments,
			CreatedAt:   msg.CreatedAt,
		},
	})
	return msg, nil
}

// List returns messages of a chat, newest first. Only members may read.
func (s *Service) List(ctx context.Context, chatID, actorID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	chat, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if !isMember(chat, actorID) {
		return nil, ErrUnauthorized
	}

	msgs, err := s.store.ListMessages(ctx, chatID, limit, beforeID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func isMember(chat *store.Chat, userID int64) bool {
	for _, uid := range chat.Members {
		if uid == userID {
			return true
		}
	}
	return false
}
