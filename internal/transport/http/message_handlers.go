package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chattu-app/chattu-server/internal/media"
	"github.com/chattu-app/chattu-server/internal/service/messages"
)

// MessageHandlers provides HTTP handlers for message endpoints.
type MessageHandlers struct {
	service *messages.Service
	log     *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(svc *messages.Service, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		service: svc,
		log:     logger,
	}
}

// SendMessage sends a message to a chat, optionally with attachments.
// Accepts multipart/form-data with a "content" field and up to five
// "files" parts, or a plain JSON body with a "content" field.
// POST /api/chats/:id/messages
func (h *MessageHandlers) SendMessage(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	content, files, err := h.parseSendRequest(c)
	if err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.service.Send(c.Request.Context(), chatID, uid, content, files)
	if err != nil {
		switch {
		case errors.Is(err, messages.ErrChatNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "chat not found"})
		case errors.Is(err, messages.ErrUnauthorized):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this chat"})
		case errors.Is(err, messages.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message is empty"})
		case errors.Is(err, messages.ErrTooManyFiles):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "too many attachments"})
		case errors.Is(err, messages.ErrUploadFailure):
			h.log.Error().Err(err).Int64("chat_id", chatID).Msg("attachment upload failed")
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: "attachment upload failed"})
		default:
			h.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, messageToResponse(msg))
}

// parseSendRequest extracts message content and attachment files from
// either a multipart form or a JSON body.
func (h *MessageHandlers) parseSendRequest(c *gin.Context) (string, []media.File, error) {
	contentType := c.ContentType()
	if contentType != "multipart/form-data" {
		var req struct {
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			return "", nil, err
		}
		return req.Content, nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return "", nil, err
	}

	content := c.PostForm("content")
	headers := form.File["files"]
	files := make([]media.File, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return "", nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return "", nil, err
		}
		files = append(files, media.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return content, files, nil
}

// ListMessages returns chat history, newest first.
// Supports ?before=<message id> and ?limit=<n> for pagination.
// GET /api/chats/:id/messages
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	var beforeID *int64
	if raw := c.Query("before"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before cursor"})
			return
		}
		beforeID = &id
	}

	list, err := h.service.List(c.Request.Context(), chatID, uid, limit, beforeID)
	if err != nil {
		switch {
		case errors.Is(err, messages.ErrChatNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "chat not found"})
		case errors.Is(err, messages.ErrUnauthorized):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this chat"})
		default:
			h.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to list messages")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	response := make([]MessageResponse, 0, len(list))
	for _, msg := range list {
		response = append(response, messageToResponse(msg))
	}
	c.JSON(http.StatusOK, response)
}
