package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrDecode reports an identifier or document that does not match the
// expected shape for its collection.
var ErrDecode = errors.New("malformed identifier")

// Kind distinguishes the two conversation collections.
type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
)

// ConversationID is the stable identifier of an item in the merged list.
// Direct conversations use the canonical sorted-pair key, groups their
// assigned id.
type ConversationID struct {
	Kind Kind   `json:"kind"`
	Key  string `json:"key"`
}

func (id ConversationID) String() string {
	return string(id.Kind) + ":" + id.Key
}

// DirectID builds the canonical direct-conversation key for two participants.
// The key is identical regardless of which participant initiates.
func DirectID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "_" + pair[1]
}

// ParseConversationID decodes "direct:<a>_<b>" or "group:<id>". Anything
// else yields ErrDecode.
func ParseConversationID(s string) (ConversationID, error) {
	kind, key, ok := strings.Cut(s, ":")
	if !ok || key == "" {
		return ConversationID{}, fmt.Errorf("%w: %q", ErrDecode, s)
	}
	switch Kind(kind) {
	case KindDirect:
		a, b, ok := strings.Cut(key, "_")
		if !ok || a == "" || b == "" {
			return ConversationID{}, fmt.Errorf("%w: direct key %q", ErrDecode, key)
		}
		// Clients may address the pair in either order; store the canonical key.
		return ConversationID{Kind: KindDirect, Key: DirectID(a, b)}, nil
	case KindGroup:
		return ConversationID{Kind: KindGroup, Key: key}, nil
	default:
		return ConversationID{}, fmt.Errorf("%w: kind %q", ErrDecode, kind)
	}
}

// DirectParticipants splits a direct key into its two participant ids.
func (id ConversationID) DirectParticipants() (string, string, error) {
	if id.Kind != KindDirect {
		return "", "", fmt.Errorf("%w: not a direct id", ErrDecode)
	}
	a, b, ok := strings.Cut(id.Key, "_")
	if !ok || a == "" || b == "" {
		return "", "", fmt.Errorf("%w: direct key %q", ErrDecode, id.Key)
	}
	return a, b, nil
}

// MemberProfile is the resolved display data for one group member, kept in
// membership order.
type MemberProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Avatar   string `json:"avatar,omitempty"`
}

// ConversationListItem is the display projection of one conversation for the
// current user. LastTime is the zero value for conversations with no
// recorded activity.
type ConversationListItem struct {
	ID          ConversationID  `json:"id"`
	Name        string          `json:"name"`
	Avatar      string          `json:"avatar,omitempty"`
	LastMessage string          `json:"last_message,omitempty"`
	LastSender  string          `json:"last_sender,omitempty"`
	LastTime    time.Time       `json:"last_time,omitempty"`
	Unread      int             `json:"unread"`
	Pinned      bool            `json:"pinned"`
	Members     []MemberProfile `json:"members,omitempty"`
}

// HasActivity reports whether the conversation has a recorded last message.
func (i ConversationListItem) HasActivity() bool {
	return !i.LastTime.IsZero()
}

// ListFilter narrows the merged list by conversation kind.
type ListFilter string

const (
	FilterAll    ListFilter = "all"
	FilterDirect ListFilter = "direct"
	FilterGroup  ListFilter = "group"
)
