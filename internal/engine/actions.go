package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
	"conversation-service/internal/stream"
)

// Actions implements the conversation list operations: open, pin, leave,
// delete and group creation. Every successful write signals the matching
// stream topic so live lists re-read.
type Actions struct {
	chats    repositories.ChatRepository
	groups   repositories.GroupRepository
	users    repositories.UserRepository
	notifier stream.Notifier
}

// NewActions wires an Actions.
func NewActions(chats repositories.ChatRepository, groups repositories.GroupRepository, users repositories.UserRepository, notifier stream.Notifier) *Actions {
	return &Actions{chats: chats, groups: groups, users: users, notifier: notifier}
}

// MarkRead zeroes the user's unread counter for the conversation and returns
// the resulting per-participant unread mapping. Opening a direct conversation
// that was never written to is a no-op: summaries are only ever created by
// the first send.
func (a *Actions) MarkRead(ctx context.Context, ref models.ConversationID, userID string) (map[string]int, error) {
	switch ref.Kind {
	case models.KindDirect:
		p1, p2, err := ref.DirectParticipants()
		if err != nil {
			return nil, err
		}
		if userID != p1 && userID != p2 {
			return nil, ErrNotParticipant
		}
		if _, err := a.chats.GetChat(ctx, ref.Key); err != nil {
			if errors.Is(err, repositories.ErrChatNotFound) {
				return nil, nil
			}
			return nil, err
		}
		counts, err := a.chats.UnreadCounts(ctx, ref.Key)
		if err != nil {
			return nil, err
		}
		if err := a.chats.ResetUnread(ctx, ref.Key, userID); err != nil {
			return nil, err
		}
		a.notifier.Notify(ctx, stream.TopicChats)
		return ApplyOpen(counts, userID), nil
	case models.KindGroup:
		group, err := a.groups.GetGroup(ctx, ref.Key)
		if err != nil {
			return nil, err
		}
		if !group.IsMember(userID) {
			return nil, ErrNotParticipant
		}
		counts, err := a.groups.UnreadCounts(ctx, ref.Key)
		if err != nil {
			return nil, err
		}
		if err := a.groups.ResetUnread(ctx, ref.Key, userID); err != nil {
			return nil, err
		}
		a.notifier.Notify(ctx, stream.TopicGroups)
		return ApplyOpen(counts, userID), nil
	default:
		return nil, fmt.Errorf("%w: kind %q", models.ErrDecode, ref.Kind)
	}
}

// TogglePin flips the pinned flag and returns the new value.
func (a *Actions) TogglePin(ctx context.Context, ref models.ConversationID, userID string) (bool, error) {
	switch ref.Kind {
	case models.KindDirect:
		chat, err := a.chats.GetChat(ctx, ref.Key)
		if err != nil {
			return false, err
		}
		if !chat.HasParticipant(userID) {
			return false, ErrNotParticipant
		}
		pinned, err := a.chats.TogglePin(ctx, ref.Key)
		if err != nil {
			return false, err
		}
		a.notifier.Notify(ctx, stream.TopicChats)
		return pinned, nil
	case models.KindGroup:
		group, err := a.groups.GetGroup(ctx, ref.Key)
		if err != nil {
			return false, err
		}
		if !group.IsMember(userID) {
			return false, ErrNotParticipant
		}
		pinned, err := a.groups.TogglePin(ctx, ref.Key)
		if err != nil {
			return false, err
		}
		a.notifier.Notify(ctx, stream.TopicGroups)
		return pinned, nil
	default:
		return false, fmt.Errorf("%w: kind %q", models.ErrDecode, ref.Kind)
	}
}

// DeleteOrLeave removes the conversation from the user's list. Direct
// conversations are deleted for both participants. For groups, destroy
// deletes the whole group and is reserved for the creator; otherwise the
// user leaves and the group stays for the remaining members. The message
// logs are left in place either way.
func (a *Actions) DeleteOrLeave(ctx context.Context, ref models.ConversationID, userID string, destroy bool) error {
	switch ref.Kind {
	case models.KindDirect:
		chat, err := a.chats.GetChat(ctx, ref.Key)
		if err != nil {
			return err
		}
		if !chat.HasParticipant(userID) {
			return ErrNotParticipant
		}
		if err := a.chats.Delete(ctx, ref.Key); err != nil {
			return err
		}
		a.notifier.Notify(ctx, stream.TopicChats)
		return nil
	case models.KindGroup:
		group, err := a.groups.GetGroup(ctx, ref.Key)
		if err != nil {
			return err
		}
		if destroy {
			if group.CreatedBy != userID {
				return ErrNotOwner
			}
			if err := a.groups.Delete(ctx, ref.Key); err != nil {
				return err
			}
		} else {
			if err := a.groups.Leave(ctx, ref.Key, userID); err != nil {
				return err
			}
		}
		a.notifier.Notify(ctx, stream.TopicGroups)
		return nil
	default:
		return fmt.Errorf("%w: kind %q", models.ErrDecode, ref.Kind)
	}
}

// CreateGroup validates and creates a group. The creator is always a member;
// at least one other member is required and every requested member must
// resolve in the user directory.
func (a *Actions) CreateGroup(ctx context.Context, creatorID, name, avatar string, memberIDs []string) (models.GroupConversation, error) {
	if strings.TrimSpace(name) == "" {
		return models.GroupConversation{}, fmt.Errorf("%w: group name required", ErrValidation)
	}
	others := make([]string, 0, len(memberIDs))
	seen := map[string]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		others = append(others, id)
	}
	if len(others) == 0 {
		return models.GroupConversation{}, fmt.Errorf("%w: select at least one member", ErrValidation)
	}

	resolved, err := a.users.ListByIDs(ctx, others)
	if err != nil {
		return models.GroupConversation{}, err
	}
	if len(resolved) != len(others) {
		return models.GroupConversation{}, fmt.Errorf("%w: unknown member", ErrValidation)
	}

	group, err := a.groups.CreateGroup(ctx, creatorID, strings.TrimSpace(name), avatar, others)
	if err != nil {
		return models.GroupConversation{}, err
	}
	a.notifier.Notify(ctx, stream.TopicGroups)
	return group, nil
}
