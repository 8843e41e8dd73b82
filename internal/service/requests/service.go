package requests

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chattu-app/chattu-server/internal/core"
	"github.com/chattu-app/chattu-server/internal/service/chats"
	"github.com/chattu-app/chattu-server/internal/store"
)

// Common errors for friend request operations.
var (
	ErrNotFound          = errors.New("friend request not found")
	ErrUnauthorized      = errors.New("not the receiver of this request")
	ErrInvalidMembership = errors.New("invalid request pair")
	ErrDuplicateRequest  = errors.New("pending request already exists")
	ErrInvalidState      = errors.New("request already resolved")
	ErrUserNotFound      = errors.New("user not found")
)

// Service drives the friend request state machine: pending requests resolve
// to accepted (creating the pair's direct chat) or rejected, both terminal.
//
// A rejected request does not block the pair: a fresh request may be sent
// afterwards. Only a pending request excludes duplicates.
type Service struct {
	store    store.Store
	chats    *chats.Service
	dispatch *core.Dispatcher
	log      *zerolog.Logger
}

// New creates a friend request service.
func New(st store.Store, chatService *chats.Service, dispatch *core.Dispatcher, logger *zerolog.Logger) *Service {
	return &Service{
		store:    st,
		chats:    chatService,
		dispatch: dispatch,
		log:      logger,
	}
}

// SendRequest creates a pending request and notifies the receiver. Under
// concurrent sends for the same pair exactly one succeeds; the loser gets
// ErrDuplicateRequest.
func (s *Service) SendRequest(ctx context.Context, senderID, receiverID int64) (*store.FriendRequest, error) {
	if senderID == receiverID {
		return nil, ErrInvalidMembership
	}
	if _, err := s.store.GetUserByID(ctx, receiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	// Users already sharing a direct chat have nothing to request.
	if _, err := s.store.GetDirectChat(ctx, store.DirectKey(senderID, receiverID)); err == nil {
		return nil, ErrInvalidMembership
	}

	request, err := s.store.CreateFriendRequest(ctx, senderID, receiverID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("create friend request: %w", err)
	}

	s.log.Info().Int64("request_id", request.ID).
		Int64("sender_id", senderID).Int64("receiver_id", receiverID).
		Msg("friend request sent")
	s.dispatch.Notify(core.EventRequestReceived, []int64{receiverID}, core.RequestReceivedPayload{
		RequestID: request.ID,
		SenderID:  senderID,
	})
	return request, nil
}

// Respond resolves a pending request. Only the receiver may respond. On
// accept the pair's direct chat is created, or reused if one slipped into
// existence concurrently, and both parties are notified; on reject only the
// sender is.
func (s *Service) Respond(ctx context.Context, requestID, actorID int64, accept bool) (*store.Chat, error) {
	request, err := s.store.GetFriendRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get friend request: %w", err)
	}
	if request.ReceiverID != actorID {
		return nil, ErrUnauthorized
	}
	if request.Status != store.RequestStatusPending {
		return nil, ErrInvalidState
	}

	status := store.RequestStatusRejected
	if accept {
		status = store.RequestStatusAccepted
	}
	if err := s.store.ResolveFriendRequest(ctx, requestID, status); err != nil {
		// Lost a race against a concurrent resolution.
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, ErrInvalidState
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve friend request: %w", err)
	}

	payload := core.RequestResolvedPayload{RequestID: requestID, Status: string(status)}

	if !accept {
		s.log.Info().Int64("request_id", requestID).Msg("friend request rejected")
		s.dispatch.Notify(core.EventRequestResolved, []int64{request.SenderID}, payload)
		return nil, nil
	}

	chat, err := s.chats.EnsureDirectChat(ctx, request.SenderID, request.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("ensure direct chat: %w", err)
	}

	s.log.Info().Int64("request_id", requestID).Int64("chat_id", chat.ID).
		Msg("friend request accepted")
	s.dispatch.Notify(core.EventRequestResolved,
		[]int64{request.SenderID, request.ReceiverID}, payload)
	return chat, nil
}

// ListPending returns incoming pending requests for a receiver.
func (s *Service) ListPending(ctx context.Context, receiverID int64) ([]*store.FriendRequest, error) {
	requests, err := s.store.ListPendingRequestsFor(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}

// ListFriends returns the users the given user shares a direct chat with,
// which is what "friends" means once a request was accepted.
func (s *Service) ListFriends(ctx context.Context, userID int64) ([]*store.User, error) {
	chatList, err := s.store.ListChatsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	var friends []*store.User
	for _, chat := range chatList {
		if chat.IsGroup {
			continue
		}
		for _, uid := range chat.Members {
			if uid == userID {
				continue
			}
			user, err := s.store.GetUserByID(ctx, uid)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("get user: %w", err)
			}
			friends = append(friends, user)
		}
	}
	return friends, nil
}
