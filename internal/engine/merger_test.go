package engine

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/mocks"
	"conversation-service/internal/models"
	"conversation-service/internal/stream"
)

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func directSnap(id, u1, u2, lastMsg string, lastTime sql.NullTime, unread int, pinned bool) models.DirectSnapshot {
	return models.DirectSnapshot{
		Chat: models.DirectConversation{
			ID: id, User1ID: u1, User2ID: u2,
			LastMsg: lastMsg, LastTime: lastTime, Pinned: pinned,
		},
		Unread: unread,
	}
}

func TestMergeOnceOrdersByPinThenRecency(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("ListByIDs", mock.Anything, mock.Anything).Return([]models.User{
		{ID: "b1", Username: "bob"},
		{ID: "c1", Username: "carol"},
		{ID: "d1", Username: "dave"},
	}, nil)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	direct := []models.DirectSnapshot{
		directSnap("a1_b1", "a1", "b1", "old", nullTime(base), 0, false),
		directSnap("a1_c1", "a1", "c1", "new", nullTime(base.Add(time.Hour)), 0, false),
		directSnap("a1_d1", "a1", "d1", "", sql.NullTime{}, 0, false),
	}
	groups := []models.GroupSnapshot{
		{Group: models.GroupConversation{ID: "g1", Name: "team", LastMsg: "pinned", LastTime: nullTime(base.Add(-time.Hour)), Pinned: true}, Unread: 2},
	}

	items, err := MergeOnce(context.Background(), users, "a1", direct, groups, models.FilterAll, "")
	require.NoError(t, err)
	require.Len(t, items, 4)

	assert.Equal(t, "team", items[0].Name, "pinned sorts first regardless of recency")
	assert.Equal(t, "carol", items[1].Name)
	assert.Equal(t, "bob", items[2].Name)
	assert.Equal(t, "dave", items[3].Name, "no activity sorts last")
}

func TestMergeOnceFilterAndSearch(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("ListByIDs", mock.Anything, mock.Anything).Return([]models.User{
		{ID: "b1", Username: "Bob"},
	}, nil)

	direct := []models.DirectSnapshot{directSnap("a1_b1", "a1", "b1", "hi", nullTime(time.Now()), 0, false)}
	groups := []models.GroupSnapshot{{Group: models.GroupConversation{ID: "g1", Name: "bobcats"}}}

	items, err := MergeOnce(context.Background(), users, "a1", direct, groups, models.FilterGroup, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.KindGroup, items[0].ID.Kind)

	items, err = MergeOnce(context.Background(), users, "a1", direct, groups, models.FilterAll, "BOB")
	require.NoError(t, err)
	assert.Len(t, items, 2, "search is case-insensitive substring")

	items, err = MergeOnce(context.Background(), users, "a1", direct, groups, models.FilterAll, "cats")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "bobcats", items[0].Name)
}

func TestMergeOnceSkipsUnresolvedParticipants(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("ListByIDs", mock.Anything, mock.Anything).Return([]models.User{
		{ID: "b1", Username: "bob"},
	}, nil)

	direct := []models.DirectSnapshot{
		directSnap("a1_b1", "a1", "b1", "hi", nullTime(time.Now()), 0, false),
		directSnap("a1_x1", "a1", "x1", "ghost", nullTime(time.Now()), 0, false),
	}

	items, err := MergeOnce(context.Background(), users, "a1", direct, nil, models.FilterAll, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "bob", items[0].Name)
}

func TestMergerDiscardsStaleGeneration(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("ListByIDs", mock.Anything, mock.Anything).Return([]models.User{
		{ID: "b1", Username: "bob"},
		{ID: "c1", Username: "carol"},
	}, nil)

	merger := NewMerger(users, "a1")

	newer := stream.Emission[models.DirectSnapshot]{Generation: 2, Docs: []models.DirectSnapshot{
		directSnap("a1_c1", "a1", "c1", "newer", nullTime(time.Now()), 0, false),
	}}
	stale := stream.Emission[models.DirectSnapshot]{Generation: 1, Docs: []models.DirectSnapshot{
		directSnap("a1_b1", "a1", "b1", "stale", nullTime(time.Now()), 0, false),
	}}

	merger.ApplyDirect(context.Background(), newer)
	merger.ApplyDirect(context.Background(), stale)

	items := merger.List(models.FilterAll, "")
	require.Len(t, items, 1)
	assert.Equal(t, "carol", items[0].Name, "stale resolution must not overwrite newer state")
}

func TestMergerMarkReadLocal(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("ListByIDs", mock.Anything, mock.Anything).Return([]models.User{
		{ID: "b1", Username: "bob"},
	}, nil)

	merger := NewMerger(users, "a1")
	changes := 0
	merger.SetOnChange(func() { changes++ })

	merger.ApplyDirect(context.Background(), stream.Emission[models.DirectSnapshot]{
		Generation: 1,
		Docs:       []models.DirectSnapshot{directSnap("a1_b1", "a1", "b1", "hi", nullTime(time.Now()), 4, false)},
	})
	require.Equal(t, 1, changes)

	id := models.ConversationID{Kind: models.KindDirect, Key: "a1_b1"}
	merger.MarkReadLocal(id)

	items := merger.List(models.FilterAll, "")
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].Unread)
	assert.Equal(t, 2, changes)

	merger.MarkReadLocal(id)
	assert.Equal(t, 2, changes, "already-read conversations do not fire a change")
}
