package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/mocks"
	"conversation-service/internal/models"
	"conversation-service/internal/stream"
)

func newTestSender(chats *mocks.ChatRepositoryMock, groups *mocks.GroupRepositoryMock, users *mocks.UserRepositoryMock) (*Sender, *stream.LocalNotifier, *Outbox) {
	notifier := stream.NewLocalNotifier()
	outbox := NewOutbox()
	return NewSender(chats, groups, users, notifier, outbox), notifier, outbox
}

func TestSendDirectMessage(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	sender, notifier, outbox := newTestSender(chats, new(mocks.GroupRepositoryMock), users)

	signals, release := notifier.Subscribe(stream.TopicChats)
	defer release()

	chat := models.DirectConversation{ID: "a1_b1", User1ID: "a1", User2ID: "b1"}
	chats.On("EnsureChat", mock.Anything, "a1", "b1").Return(chat, nil).Once()
	chats.On("UnreadCounts", mock.Anything, "a1_b1").Return(map[string]int{"b1": 1}, nil).Once()
	users.On("GetUser", mock.Anything, "a1").Return(models.User{ID: "a1", Email: "a@x.io"}, nil).Once()
	chats.On("RecordMessage", mock.Anything, chat, "a1", "a@x.io", "hi").
		Return(models.ChatMessage{ID: "m1", ChatID: "a1_b1", SenderID: "a1", Text: "hi"}, nil).Once()

	ref := models.ConversationID{Kind: models.KindDirect, Key: "a1_b1"}
	receipt, err := sender.Send(context.Background(), ref, "a1", "hi")
	require.NoError(t, err)

	assert.Equal(t, StatusDelivered, receipt.Status)
	require.NotNil(t, receipt.Direct)
	assert.Equal(t, "m1", receipt.Direct.ID)
	assert.Equal(t, map[string]int{"a1": 0, "b1": 2}, receipt.Unread, "sender resets, recipient grows")

	status, ok := outbox.Status(receipt.LocalID)
	require.True(t, ok)
	assert.Equal(t, StatusDelivered, status)

	select {
	case <-signals:
	default:
		t.Fatal("expected a chats invalidation after send")
	}
	chats.AssertExpectations(t)
}

func TestSendRejectsBlankText(t *testing.T) {
	sender, _, _ := newTestSender(new(mocks.ChatRepositoryMock), new(mocks.GroupRepositoryMock), new(mocks.UserRepositoryMock))

	ref := models.ConversationID{Kind: models.KindDirect, Key: "a1_b1"}
	_, err := sender.Send(context.Background(), ref, "a1", "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSendDirectRejectsOutsider(t *testing.T) {
	sender, _, _ := newTestSender(new(mocks.ChatRepositoryMock), new(mocks.GroupRepositoryMock), new(mocks.UserRepositoryMock))

	ref := models.ConversationID{Kind: models.KindDirect, Key: "a1_b1"}
	_, err := sender.Send(context.Background(), ref, "c1", "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestSendDirectMarksFailureOnStorageError(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	sender, _, outbox := newTestSender(chats, new(mocks.GroupRepositoryMock), users)

	chat := models.DirectConversation{ID: "a1_b1", User1ID: "a1", User2ID: "b1"}
	chats.On("EnsureChat", mock.Anything, "a1", "b1").Return(chat, nil).Once()
	chats.On("UnreadCounts", mock.Anything, "a1_b1").Return(map[string]int{}, nil).Once()
	users.On("GetUser", mock.Anything, "a1").Return(models.User{ID: "a1"}, nil).Once()
	chats.On("RecordMessage", mock.Anything, chat, "a1", "", "hi").
		Return(models.ChatMessage{}, assert.AnError).Once()

	ref := models.ConversationID{Kind: models.KindDirect, Key: "a1_b1"}
	receipt, err := sender.Send(context.Background(), ref, "a1", "hi")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, receipt.Status)

	status, ok := outbox.Status(receipt.LocalID)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, status)
}

func TestSendGroupMessageUsesDisplayName(t *testing.T) {
	groups := new(mocks.GroupRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	sender, notifier, _ := newTestSender(new(mocks.ChatRepositoryMock), groups, users)

	signals, release := notifier.Subscribe(stream.TopicGroups)
	defer release()

	group := models.GroupConversation{ID: "g1", Name: "team", CreatedBy: "a1", Members: []string{"a1", "b1", "c1"}}
	groups.On("GetGroup", mock.Anything, "g1").Return(group, nil).Once()
	groups.On("UnreadCounts", mock.Anything, "g1").Return(map[string]int{"b1": 2}, nil).Once()
	users.On("GetUser", mock.Anything, "a1").Return(models.User{ID: "a1", Username: "alice", FullName: "Alice Smith"}, nil).Once()
	groups.On("RecordMessage", mock.Anything, group, "a1", "Alice Smith", "hello all").
		Return(models.GroupMessage{ID: "gm1", GroupID: "g1", SenderID: "a1", Text: "hello all"}, nil).Once()

	ref := models.ConversationID{Kind: models.KindGroup, Key: "g1"}
	receipt, err := sender.Send(context.Background(), ref, "a1", "hello all")
	require.NoError(t, err)
	require.NotNil(t, receipt.Group)
	assert.Equal(t, "gm1", receipt.Group.ID)
	assert.Equal(t, map[string]int{"a1": 0, "b1": 3, "c1": 1}, receipt.Unread)

	select {
	case <-signals:
	default:
		t.Fatal("expected a groups invalidation after send")
	}
	groups.AssertExpectations(t)
}

func TestSendGroupRejectsNonMember(t *testing.T) {
	groups := new(mocks.GroupRepositoryMock)
	sender, _, _ := newTestSender(new(mocks.ChatRepositoryMock), groups, new(mocks.UserRepositoryMock))

	group := models.GroupConversation{ID: "g1", Members: []string{"a1", "b1"}}
	groups.On("GetGroup", mock.Anything, "g1").Return(group, nil).Once()

	ref := models.ConversationID{Kind: models.KindGroup, Key: "g1"}
	_, err := sender.Send(context.Background(), ref, "z9", "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)
}
