package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chattu-app/chattu-server/internal/service/chats"
	"github.com/chattu-app/chattu-server/internal/store"
)

// ChatHandlers provides HTTP handlers for chat management endpoints.
type ChatHandlers struct {
	service *chats.Service
	store   store.Store
	log     *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(svc *chats.Service, st store.Store, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		service: svc,
		store:   st,
		log:     logger,
	}
}

// CreateGroupRequest represents the create group request body.
type CreateGroupRequest struct {
	Name      string  `json:"name" binding:"required,min=1,max=64"`
	MemberIDs []int64 `json:"member_ids" binding:"required"`
}

// RenameGroupRequest represents the rename request body.
type RenameGroupRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// AddMembersRequest represents the add members request body.
type AddMembersRequest struct {
	MemberIDs []int64 `json:"member_ids" binding:"required"`
}

// chatError maps chat service errors to HTTP responses.
func (h *ChatHandlers) chatError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, chats.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "chat not found"})
	case errors.Is(err, chats.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
	case errors.Is(err, chats.ErrUnauthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not allowed"})
	case errors.Is(err, chats.ErrInvalidMembership):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid membership"})
	case errors.Is(err, chats.ErrStorageConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "concurrent modification, retry"})
	default:
		h.log.Error().Err(err).Msg(msg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// chatIDParam parses the :id path parameter.
func chatIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid chat id"})
		return 0, false
	}
	return id, true
}

// CreateGroup handles group chat creation.
// POST /api/chats/group
func (h *ChatHandlers) CreateGroup(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create group request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	chat, err := h.service.CreateGroupChat(c.Request.Context(), uid, req.MemberIDs, req.Name)
	if err != nil {
		h.chatError(c, err, "failed to create group chat")
		return
	}

	h.log.Info().Int64("chat_id", chat.ID).Int64("creator_id", uid).Msg("group chat created")
	c.JSON(http.StatusCreated, chatToResponse(chat))
}

// ListChats lists the caller's chats.
// GET /api/chats
func (h *ChatHandlers) ListChats(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	list, err := h.service.ListChats(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list chats")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ChatResponse, 0, len(list))
	for _, chat := range list {
		response = append(response, chatToResponse(chat))
	}
	c.JSON(http.StatusOK, response)
}

// ListGroups lists the caller's group chats.
// GET /api/chats/groups
func (h *ChatHandlers) ListGroups(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	list, err := h.service.ListGroups(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list groups")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ChatResponse, 0, len(list))
	for _, chat := range list {
		response = append(response, chatToResponse(chat))
	}
	c.JSON(http.StatusOK, response)
}

// GetChat returns a chat's details including members.
// GET /api/chats/:id
func (h *ChatHandlers) GetChat(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	chat, err := h.service.GetChat(c.Request.Context(), chatID, uid)
	if err != nil {
		h.chatError(c, err, "failed to get chat")
		return
	}
	c.JSON(http.StatusOK, chatToResponse(chat))
}

// AddMembers adds members to a group chat.
// PUT /api/chats/:id/members
func (h *ChatHandlers) AddMembers(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	var req AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add members request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	chat, err := h.service.AddMembers(c.Request.Context(), chatID, uid, req.MemberIDs)
	if err != nil {
		h.chatError(c, err, "failed to add members")
		return
	}

	h.log.Info().Int64("chat_id", chatID).Int64("actor_id", uid).Msg("members added")
	c.JSON(http.StatusOK, chatToResponse(chat))
}

// RemoveMember removes a member from a group chat.
// DELETE /api/chats/:id/members/:userId
func (h *ChatHandlers) RemoveMember(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	targetID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	if err := h.service.RemoveMember(c.Request.Context(), chatID, uid, targetID); err != nil {
		h.chatError(c, err, "failed to remove member")
		return
	}

	h.log.Info().Int64("chat_id", chatID).Int64("target_id", targetID).Msg("member removed")
	c.JSON(http.StatusOK, gin.H{"message": "member removed"})
}

// LeaveGroup removes the caller from a group chat.
// DELETE /api/chats/:id/leave
func (h *ChatHandlers) LeaveGroup(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	if err := h.service.LeaveGroup(c.Request.Context(), chatID, uid); err != nil {
		h.chatError(c, err, "failed to leave group")
		return
	}

	h.log.Info().Int64("chat_id", chatID).Int64("user_id", uid).Msg("left group")
	c.JSON(http.StatusOK, gin.H{"message": "left group"})
}

// RenameGroup renames a group chat.
// PUT /api/chats/:id
func (h *ChatHandlers) RenameGroup(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	var req RenameGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid rename request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.service.RenameGroup(c.Request.Context(), chatID, uid, req.Name); err != nil {
		h.chatError(c, err, "failed to rename group")
		return
	}

	h.log.Info().Int64("chat_id", chatID).Str("name", req.Name).Msg("group renamed")
	c.JSON(http.StatusOK, gin.H{"message": "group renamed"})
}

// DeleteChat deletes a chat and its messages.
// DELETE /api/chats/:id
func (h *ChatHandlers) DeleteChat(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	if err := h.service.DeleteChat(c.Request.Context(), chatID, uid); err != nil {
		h.chatError(c, err, "failed to delete chat")
		return
	}

	h.log.Info().Int64("chat_id", chatID).Int64("actor_id", uid).Msg("chat deleted")
	c.JSON(http.StatusOK, gin.H{"message": "chat deleted"})
}
