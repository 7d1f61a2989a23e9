package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
	"conversation-service/internal/stream"
)

// Merger combines the direct and group streams of one viewer into a single
// ordered conversation list. Each partition keeps the generation of its
// latest received emission; a resolution that finishes after a newer emission
// arrived is discarded rather than committed.
type Merger struct {
	users    repositories.UserRepository
	viewerID string

	mu          sync.Mutex
	directSeen  uint64
	groupSeen   uint64
	directItems []models.ConversationListItem
	groupItems  []models.ConversationListItem
	onChange    func()
}

// NewMerger builds a Merger for one viewer.
func NewMerger(users repositories.UserRepository, viewerID string) *Merger {
	return &Merger{users: users, viewerID: viewerID}
}

// SetOnChange registers a callback fired after every committed partition
// update. The callback runs outside the merger lock.
func (m *Merger) SetOnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// ApplyDirect resolves a direct-stream emission and commits it unless a newer
// emission arrived while display data was being looked up.
func (m *Merger) ApplyDirect(ctx context.Context, e stream.Emission[models.DirectSnapshot]) {
	m.mu.Lock()
	if e.Generation > m.directSeen {
		m.directSeen = e.Generation
	}
	m.mu.Unlock()

	items, err := resolveDirect(ctx, m.users, m.viewerID, e.Docs)
	if err != nil {
		log.Error().Err(err).Str("viewer", m.viewerID).Msg("direct profile resolution failed")
		return
	}

	m.commit(&m.directItems, items, &m.directSeen, e.Generation, "direct")
}

// ApplyGroup resolves a group-stream emission and commits it unless a newer
// emission arrived in the meantime.
func (m *Merger) ApplyGroup(ctx context.Context, e stream.Emission[models.GroupSnapshot]) {
	m.mu.Lock()
	if e.Generation > m.groupSeen {
		m.groupSeen = e.Generation
	}
	m.mu.Unlock()

	items, err := resolveGroup(ctx, m.users, e.Docs)
	if err != nil {
		log.Error().Err(err).Str("viewer", m.viewerID).Msg("group member resolution failed")
		return
	}

	m.commit(&m.groupItems, items, &m.groupSeen, e.Generation, "group")
}

func (m *Merger) commit(dst *[]models.ConversationListItem, items []models.ConversationListItem, seen *uint64, generation uint64, partition string) {
	m.mu.Lock()
	if generation != *seen {
		m.mu.Unlock()
		observability.IncStaleGeneration(partition)
		return
	}
	*dst = items
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// List projects the current merged state: filtered by kind, narrowed by a
// case-insensitive name search, sorted pinned first, then most recent
// activity first, with never-active conversations at the end.
func (m *Merger) List(filter models.ListFilter, query string) []models.ConversationListItem {
	m.mu.Lock()
	merged := make([]models.ConversationListItem, 0, len(m.directItems)+len(m.groupItems))
	merged = append(merged, m.directItems...)
	merged = append(merged, m.groupItems...)
	m.mu.Unlock()

	return Project(merged, filter, query)
}

// MarkReadLocal zeroes the viewer's unread counter for one conversation in
// the in-memory state, ahead of the authoritative write landing and the next
// emission confirming it.
func (m *Merger) MarkReadLocal(id models.ConversationID) {
	m.mu.Lock()
	changed := false
	for _, part := range [][]models.ConversationListItem{m.directItems, m.groupItems} {
		for i := range part {
			if part[i].ID == id && part[i].Unread != 0 {
				part[i].Unread = 0
				changed = true
			}
		}
	}
	fn := m.onChange
	m.mu.Unlock()

	if changed && fn != nil {
		fn()
	}
}

// Project applies the list ordering and narrowing rules to a merged set.
func Project(items []models.ConversationListItem, filter models.ListFilter, query string) []models.ConversationListItem {
	out := make([]models.ConversationListItem, 0, len(items))
	needle := strings.ToLower(strings.TrimSpace(query))
	for _, item := range items {
		switch filter {
		case models.FilterDirect:
			if item.ID.Kind != models.KindDirect {
				continue
			}
		case models.FilterGroup:
			if item.ID.Kind != models.KindGroup {
				continue
			}
		}
		if needle != "" && !strings.Contains(strings.ToLower(item.Name), needle) {
			continue
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		if a.HasActivity() != b.HasActivity() {
			return a.HasActivity()
		}
		return a.LastTime.After(b.LastTime)
	})
	return out
}

// MergeOnce builds the merged list for a single request, outside of any live
// subscription.
func MergeOnce(ctx context.Context, users repositories.UserRepository, viewerID string, direct []models.DirectSnapshot, groups []models.GroupSnapshot, filter models.ListFilter, query string) ([]models.ConversationListItem, error) {
	directItems, err := resolveDirect(ctx, users, viewerID, direct)
	if err != nil {
		return nil, err
	}
	groupItems, err := resolveGroup(ctx, users, groups)
	if err != nil {
		return nil, err
	}
	return Project(append(directItems, groupItems...), filter, query), nil
}

// resolveDirect turns direct snapshots into list items named after the other
// participant. Snapshots whose counterpart profile does not resolve are
// omitted.
func resolveDirect(ctx context.Context, users repositories.UserRepository, viewerID string, docs []models.DirectSnapshot) ([]models.ConversationListItem, error) {
	others := make([]string, 0, len(docs))
	for _, doc := range docs {
		others = append(others, doc.Chat.OtherParticipant(viewerID))
	}
	profiles, err := users.ListByIDs(ctx, others)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.User, len(profiles))
	for _, u := range profiles {
		byID[u.ID] = u
	}

	items := make([]models.ConversationListItem, 0, len(docs))
	for _, doc := range docs {
		other, ok := byID[doc.Chat.OtherParticipant(viewerID)]
		if !ok {
			log.Warn().Str("chat", doc.Chat.ID).Msg("skipping chat with unresolved participant")
			continue
		}
		item := models.ConversationListItem{
			ID:          models.ConversationID{Kind: models.KindDirect, Key: doc.Chat.ID},
			Name:        other.Username,
			Avatar:      other.Avatar,
			LastMessage: doc.Chat.LastMsg,
			LastSender:  doc.Chat.LastSender,
			Unread:      doc.Unread,
			Pinned:      doc.Chat.Pinned,
		}
		if doc.Chat.LastTime.Valid {
			item.LastTime = doc.Chat.LastTime.Time
		}
		items = append(items, item)
	}
	return items, nil
}

// resolveGroup turns group snapshots into list items carrying member
// profiles in membership order. Members whose profile does not resolve are
// left out of the member list; the group itself stays.
func resolveGroup(ctx context.Context, users repositories.UserRepository, docs []models.GroupSnapshot) ([]models.ConversationListItem, error) {
	ids := make([]string, 0, len(docs)*4)
	seen := make(map[string]struct{})
	for _, doc := range docs {
		for _, id := range doc.Group.Members {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	profiles, err := users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.User, len(profiles))
	for _, u := range profiles {
		byID[u.ID] = u
	}

	items := make([]models.ConversationListItem, 0, len(docs))
	for _, doc := range docs {
		members := make([]models.MemberProfile, 0, len(doc.Group.Members))
		for _, id := range doc.Group.Members {
			u, ok := byID[id]
			if !ok {
				continue
			}
			members = append(members, models.MemberProfile{
				ID:       u.ID,
				Username: u.Username,
				FullName: u.FullName,
				Avatar:   u.Avatar,
			})
		}
		item := models.ConversationListItem{
			ID:          models.ConversationID{Kind: models.KindGroup, Key: doc.Group.ID},
			Name:        doc.Group.Name,
			Avatar:      doc.Group.Avatar,
			LastMessage: doc.Group.LastMsg,
			LastSender:  doc.Group.LastSenderName,
			Unread:      doc.Unread,
			Pinned:      doc.Group.Pinned,
			Members:     members,
		}
		if doc.Group.LastTime.Valid {
			item.LastTime = doc.Group.LastTime.Time
		}
		items = append(items, item)
	}
	return items, nil
}
