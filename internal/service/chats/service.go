package chats

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chattu-app/chattu-server/internal/core"
	"github.com/chattu-app/chattu-server/internal/media"
	"github.com/chattu-app/chattu-server/internal/store"
)

// Common errors for chat membership operations.
var (
	ErrNotFound          = errors.New("chat not found")
	ErrUnauthorized      = errors.New("not allowed to modify this chat")
	ErrInvalidMembership = errors.New("invalid chat membership")
	ErrStorageConflict   = errors.New("chat mutation retries exhausted")
	ErrUserNotFound      = errors.New("user not found")
)

// minGroupSize is the smallest membership a group chat may have, creator
// included. A mutation that would shrink a group below it deletes the chat
// outright instead of leaving a too-small group behind.
const minGroupSize = 3

// mutationRetries bounds the optimistic-concurrency retry loop per operation.
const mutationRetries = 3

// Service enforces chat membership invariants. Every mutation is applied as a
// compare-and-set against the chat's version, so concurrent operations on the
// same chat serialize while different chats never contend.
type Service struct {
	store     store.Store
	dispatch  *core.Dispatcher
	uploader  media.Uploader
	memberCap int
	log       *zerolog.Logger
}

// New creates a chat service.
func New(st store.Store, dispatch *core.Dispatcher, uploader media.Uploader, memberCap int, logger *zerolog.Logger) *Service {
	return &Service{
		store:     st,
		dispatch:  dispatch,
		uploader:  uploader,
		memberCap: memberCap,
		log:       logger,
	}
}

// CreateDirectChat creates the two-member chat for a user pair. At most one
// direct chat exists per pair; an existing one is an ErrInvalidMembership,
// not a duplicate creation.
func (s *Service) CreateDirectChat(ctx context.Context, userA, userB int64) (*store.Chat, error) {
	if userA == userB {
		return nil, ErrInvalidMembership
	}
	if _, err := s.store.GetUserByID(ctx, userB); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	key := store.DirectKey(userA, userB)
	if _, err := s.store.GetDirectChat(ctx, key); err == nil {
		return nil, ErrInvalidMembership
	}

	chat, err := s.store.CreateDirectChat(ctx, key, userA, userB)
	if err != nil {
		// Lost a race against a concurrent creation for the same pair.
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrInvalidMembership
		}
		return nil, fmt.Errorf("create direct chat: %w", err)
	}
	return chat, nil
}

// EnsureDirectChat returns the direct chat for a pair, creating it if absent.
// Used by the friend-request accept path, where a chat that slipped into
// existence concurrently is reused rather than rejected.
func (s *Service) EnsureDirectChat(ctx context.Context, userA, userB int64) (*store.Chat, error) {
	chat, err := s.CreateDirectChat(ctx, userA, userB)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, ErrInvalidMembership) {
		return nil, err
	}
	chat, err = s.store.GetDirectChat(ctx, store.DirectKey(userA, userB))
	if err != nil {
		return nil, fmt.Errorf("get direct chat: %w", err)
	}
	return chat, nil
}

// CreateGroupChat creates a group chat. memberIDs must contain at least two
// distinct users besides the creator; the creator is added implicitly.
func (s *Service) CreateGroupChat(ctx context.Context, creatorID int64, memberIDs []int64, name string) (*store.Chat, error) {
	others := dedupe(memberIDs, creatorID)
	if len(others) < minGroupSize-1 {
		return nil, ErrInvalidMembership
	}
	if len(others)+1 > s.memberCap {
		return nil, ErrInvalidMembership
	}
	for _, uid := range others {
		if _, err := s.store.GetUserByID(ctx, uid); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("get user: %w", err)
		}
	}

	members := append([]int64{creatorID}, others...)
	chat, err := s.store.CreateGroupChat(ctx, name, creatorID, members)
	if err != nil {
		return nil, fmt.Errorf("create group chat: %w", err)
	}

	s.log.Info().Int64("chat_id", chat.ID).Int64("creator_id", creatorID).
		Int("members", len(members)).Msg("group chat created")
	s.dispatch.Notify(core.EventChatRefresh, members, core.ChatPayload{ChatID: chat.ID})
	return chat, nil
}

// AddMembers adds users to a group chat. Any current member may add; IDs
// already present are silently ignored. Notifies the new membership set.
func (s *Service) AddMembers(ctx context.Context, chatID, actorID int64, newMemberIDs []int64) (*store.Chat, error) {
	var notifyTo []int64

	err := s.withRetry(ctx, chatID, func(chat *store.Chat) error {
		if !chat.IsGroup || !contains(chat.Members, actorID) {
			return ErrUnauthorized
		}

		var added []int64
		for _, uid := range dedupe(newMemberIDs) {
			if !contains(chat.Members, uid) {
				added = append(added, uid)
			}
		}
		if len(added) == 0 {
			notifyTo = nil
			return nil
		}
		if len(chat.Members)+len(added) > s.memberCap {
			return ErrInvalidMembership
		}
		for _, uid := range added {
			if _, err := s.store.GetUserByID(ctx, uid); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrUserNotFound
				}
				return fmt.Errorf("get user: %w", err)
			}
		}

		members := append(append([]int64{}, chat.Members...), added...)
		if err := s.store.ReplaceChatMembers(ctx, chat.ID, chat.Version, chat.CreatorID, members); err != nil {
			return err
		}
		notifyTo = members
		return nil
	})
	if err != nil {
		return nil, err
	}

	if notifyTo != nil {
		s.dispatch.Notify(core.EventChatRefresh, notifyTo, core.ChatPayload{ChatID: chatID})
	}
	return s.getChat(ctx, chatID)
}

// RemoveMember removes a member from a group chat. Only the creator may
// remove, and never themselves. If the removal would shrink the group below
// the minimum size the whole chat is deleted instead.
func (s *Service) RemoveMember(ctx context.Context, chatID, actorID, targetID int64) error {
	var (
		remaining []int64
		deleted   bool
		former    []int64
	)

	err := s.withRetry(ctx, chatID, func(chat *store.Chat) error {
		if !chat.IsGroup || chat.CreatorID == nil || *chat.CreatorID != actorID {
			return ErrUnauthorized
		}
		if targetID == actorID {
			return ErrInvalidMembership
		}
		if !contains(chat.Members, targetID) {
			return ErrInvalidMembership
		}

		if len(chat.Members)-1 < minGroupSize {
			former = chat.Members
			deleted = true
			return s.deleteCascade(ctx, chat)
		}

		remaining = remove(chat.Members, targetID)
		deleted = false
		return s.store.ReplaceChatMembers(ctx, chat.ID, chat.Version, chat.CreatorID, remaining)
	})
	if err != nil {
		return err
	}

	if deleted {
		s.dispatch.Notify(core.EventChatRemoved, former, core.ChatPayload{ChatID: chatID})
		return nil
	}
	s.dispatch.Notify(core.EventChatRefresh, remaining, core.ChatPayload{ChatID: chatID})
	s.dispatch.Notify(core.EventChatRemoved, []int64{targetID}, core.ChatPayload{ChatID: chatID})
	return nil
}

// LeaveGroup removes the caller from a group chat. A departing creator hands
// the role to the first remaining member in stored order; if fewer than the
// minimum would remain the chat is deleted entirely.
func (s *Service) LeaveGroup(ctx context.Context, chatID, userID int64) error {
	var (
		remaining []int64
		deleted   bool
		former    []int64
	)

	err := s.withRetry(ctx, chatID, func(chat *store.Chat) error {
		if !chat.IsGroup || !contains(chat.Members, userID) {
			return ErrUnauthorized
		}

		if len(chat.Members)-1 < minGroupSize {
			former = chat.Members
			deleted = true
			return s.deleteCascade(ctx, chat)
		}

		remaining = remove(chat.Members, userID)
		deleted = false
		creatorID := chat.CreatorID
		if creatorID != nil && *creatorID == userID {
			next := remaining[0]
			creatorID = &next
			s.log.Info().Int64("chat_id", chat.ID).Int64("new_creator", next).
				Msg("creator role transferred")
		}
		return s.store.ReplaceChatMembers(ctx, chat.ID, chat.Version, creatorID, remaining)
	})
	if err != nil {
		return err
	}

	if deleted {
		s.dispatch.Notify(core.EventChatRemoved, former, core.ChatPayload{ChatID: chatID})
		return nil
	}
	s.dispatch.Notify(core.EventChatRefresh, remaining, core.ChatPayload{ChatID: chatID})
	s.dispatch.Notify(core.EventChatRemoved, []int64{userID}, core.ChatPayload{ChatID: chatID})
	return nil
}

// RenameGroup renames a group chat. Any current member may rename.
func (s *Service) RenameGroup(ctx context.Context, chatID, actorID int64, newName string) error {
	var members []int64

	err := s.withRetry(ctx, chatID, func(chat *store.Chat) error {
		if !chat.IsGroup || !contains(chat.Members, actorID) {
			return ErrUnauthorized
		}
		members = chat.Members
		return s.store.RenameChat(ctx, chat.ID, chat.Version, newName)
	})
	if err != nil {
		return err
	}

	s.dispatch.Notify(core.EventChatRefresh, members, core.ChatPayload{ChatID: chatID})
	return nil
}

// DeleteChat deletes a chat and its messages. Groups may be deleted by their
// creator, direct chats by either member.
func (s *Service) DeleteChat(ctx context.Context, chatID, actorID int64) error {
	var former []int64

	err := s.withRetry(ctx, chatID, func(chat *store.Chat) error {
		if chat.IsGroup {
			if chat.CreatorID == nil || *chat.CreatorID != actorID {
				return ErrUnauthorized
			}
		} else if !contains(chat.Members, actorID) {
			return ErrUnauthorized
		}
		former = chat.Members
		return s.deleteCascade(ctx, chat)
	})
	if err != nil {
		return err
	}

	s.dispatch.Notify(core.EventChatRemoved, former, core.ChatPayload{ChatID: chatID})
	return nil
}

// GetChat returns a chat with its members. Only members may view it.
func (s *Service) GetChat(ctx context.Context, chatID, actorID int64) (*store.Chat, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !contains(chat.Members, actorID) {
		return nil, ErrUnauthorized
	}
	return chat, nil
}

// ListChats lists all chats the user belongs to.
func (s *Service) ListChats(ctx context.Context, userID int64) ([]*store.Chat, error) {
	return s.store.ListChatsForUser(ctx, userID)
}

// ListGroups lists group chats the user belongs to.
func (s *Service) ListGroups(ctx context.Context, userID int64) ([]*store.Chat, error) {
	return s.store.ListGroupsForUser(ctx, userID)
}

// withRetry runs apply against a fresh snapshot of the chat, retrying a
// bounded number of times when a concurrent mutation wins the version race.
func (s *Service) withRetry(ctx context.Context, chatID int64, apply func(chat *store.Chat) error) error {
	for attempt := 0; attempt < mutationRetries; attempt++ {
		chat, err := s.getChat(ctx, chatID)
		if err != nil {
			return err
		}
		err = apply(chat)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.log.Warn().Int64("chat_id", chatID).Msg("chat mutation retries exhausted")
	return ErrStorageConflict
}

func (s *Service) getChat(ctx context.Context, chatID int64) (*store.Chat, error) {
	chat, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return chat, nil
}

// deleteCascade removes the chat guarded by its version and schedules
// best-effort cleanup of its remote attachments. Cleanup failures are logged
// and dropped; they never fail the deletion.
func (s *Service) deleteCascade(ctx context.Context, chat *store.Chat) error {
	attachmentIDs, err := s.store.ListAttachmentIDs(ctx, chat.ID)
	if err != nil {
		s.log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("failed to collect attachment ids")
		attachmentIDs = nil
	}

	if err := s.store.DeleteChat(ctx, chat.ID, chat.Version); err != nil {
		return err
	}

	if len(attachmentIDs) > 0 {
		go func(ids []string) {
			if err := s.uploader.DeleteBatch(context.Background(), ids); err != nil {
				s.log.Warn().Err(err).Int64("chat_id", chat.ID).
					Int("count", len(ids)).Msg("attachment cleanup failed")
			}
		}(attachmentIDs)
	}
	return nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// dedupe returns ids with duplicates and any excluded IDs removed, preserving
// first-seen order.
func dedupe(ids []int64, exclude ...int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	for _, ex := range exclude {
		seen[ex] = struct{}{}
	}
	var out []int64
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
