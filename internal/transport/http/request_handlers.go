package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/chattu-app/chattu-server/internal/service/requests"
	"github.com/chattu-app/chattu-server/internal/store"
)

// RequestHandlers provides HTTP handlers for friend request endpoints.
type RequestHandlers struct {
	service *requests.Service
	store   store.Store
	log     *zerolog.Logger
}

// NewRequestHandlers creates a new request handlers instance.
func NewRequestHandlers(svc *requests.Service, st store.Store, logger *zerolog.Logger) *RequestHandlers {
	return &RequestHandlers{
		service: svc,
		store:   st,
		log:     logger,
	}
}

// SendFriendRequest represents the send request body.
type SendFriendRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// requestError maps request service errors to HTTP responses.
func (h *RequestHandlers) requestError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, requests.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "request not found"})
	case errors.Is(err, requests.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
	case errors.Is(err, requests.ErrUnauthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not allowed"})
	case errors.Is(err, requests.ErrInvalidMembership):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request pair"})
	case errors.Is(err, requests.ErrDuplicateRequest):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "request already pending"})
	case errors.Is(err, requests.ErrInvalidState):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "request already resolved"})
	default:
		h.log.Error().Err(err).Msg(msg)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// SendRequest sends a friend request to another user.
// POST /api/requests
func (h *RequestHandlers) SendRequest(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	var req SendFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send request body")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	request, err := h.service.SendRequest(c.Request.Context(), uid, req.UserID)
	if err != nil {
		h.requestError(c, err, "failed to send friend request")
		return
	}

	h.log.Info().Int64("request_id", request.ID).Int64("receiver_id", req.UserID).Msg("friend request sent")
	c.JSON(http.StatusCreated, requestToResponse(request, nil))
}

// ListPending lists pending friend requests addressed to the caller.
// GET /api/requests
func (h *RequestHandlers) ListPending(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	list, err := h.service.ListPending(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list pending requests")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RequestResponse, 0, len(list))
	for _, request := range list {
		sender, err := h.store.GetUserByID(c.Request.Context(), request.SenderID)
		if err != nil {
			sender = nil
		}
		response = append(response, requestToResponse(request, sender))
	}
	c.JSON(http.StatusOK, response)
}

// Accept accepts a pending friend request and opens a direct chat.
// POST /api/requests/:id/accept
func (h *RequestHandlers) Accept(c *gin.Context) {
	h.respond(c, true)
}

// Reject rejects a pending friend request.
// POST /api/requests/:id/reject
func (h *RequestHandlers) Reject(c *gin.Context) {
	h.respond(c, false)
}

func (h *RequestHandlers) respond(c *gin.Context, accept bool) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request id"})
		return
	}

	chat, err := h.service.Respond(c.Request.Context(), requestID, uid, accept)
	if err != nil {
		h.requestError(c, err, "failed to resolve friend request")
		return
	}

	if accept {
		h.log.Info().Int64("request_id", requestID).Int64("chat_id", chat.ID).Msg("friend request accepted")
		c.JSON(http.StatusOK, chatToResponse(chat))
		return
	}
	h.log.Info().Int64("request_id", requestID).Msg("friend request rejected")
	c.JSON(http.StatusOK, gin.H{"message": "request rejected"})
}

// ListFriends lists users the caller shares a direct chat with.
// GET /api/friends
func (h *RequestHandlers) ListFriends(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	friends, err := h.service.ListFriends(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list friends")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserResponse, 0, len(friends))
	for _, friend := range friends {
		response = append(response, userToResponse(friend))
	}
	c.JSON(http.StatusOK, response)
}
