package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) EnsureChat(ctx context.Context, userID, otherID string) (models.DirectConversation, error) {
	args := m.Called(ctx, userID, otherID)
	var chat models.DirectConversation
	if val := args.Get(0); val != nil {
		chat = val.(models.DirectConversation)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID string) (models.DirectConversation, error) {
	args := m.Called(ctx, chatID)
	var chat models.DirectConversation
	if val := args.Get(0); val != nil {
		chat = val.(models.DirectConversation)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.DirectSnapshot, error) {
	args := m.Called(ctx, userID)
	var list []models.DirectSnapshot
	if val := args.Get(0); val != nil {
		list = val.([]models.DirectSnapshot)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) RecordMessage(ctx context.Context, chat models.DirectConversation, senderID, senderEmail, text string) (models.ChatMessage, error) {
	args := m.Called(ctx, chat, senderID, senderEmail, text)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *ChatRepositoryMock) ResetUnread(ctx context.Context, chatID, userID string) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) UnreadCounts(ctx context.Context, chatID string) (map[string]int, error) {
	args := m.Called(ctx, chatID)
	var counts map[string]int
	if val := args.Get(0); val != nil {
		counts = val.(map[string]int)
	}
	return counts, args.Error(1)
}

func (m *ChatRepositoryMock) TogglePin(ctx context.Context, chatID string) (bool, error) {
	args := m.Called(ctx, chatID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) Delete(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ReconcileSummary(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, creatorID, name, avatar string, memberIDs []string) (models.GroupConversation, error) {
	args := m.Called(ctx, creatorID, name, avatar, memberIDs)
	var group models.GroupConversation
	if val := args.Get(0); val != nil {
		group = val.(models.GroupConversation)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID string) (models.GroupConversation, error) {
	args := m.Called(ctx, groupID)
	var group models.GroupConversation
	if val := args.Get(0); val != nil {
		group = val.(models.GroupConversation)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.GroupSnapshot, error) {
	args := m.Called(ctx, userID)
	var list []models.GroupSnapshot
	if val := args.Get(0); val != nil {
		list = val.([]models.GroupSnapshot)
	}
	return list, args.Error(1)
}

func (m *GroupRepositoryMock) RecordMessage(ctx context.Context, group models.GroupConversation, senderID, senderName, text string) (models.GroupMessage, error) {
	args := m.Called(ctx, group, senderID, senderName, text)
	var msg models.GroupMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.GroupMessage)
	}
	return msg, args.Error(1)
}

func (m *GroupRepositoryMock) ResetUnread(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) UnreadCounts(ctx context.Context, groupID string) (map[string]int, error) {
	args := m.Called(ctx, groupID)
	var counts map[string]int
	if val := args.Get(0); val != nil {
		counts = val.(map[string]int)
	}
	return counts, args.Error(1)
}

func (m *GroupRepositoryMock) TogglePin(ctx context.Context, groupID string) (bool, error) {
	args := m.Called(ctx, groupID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) Leave(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) Delete(ctx context.Context, groupID string) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) ReconcileSummary(ctx context.Context, groupID string) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) ListChatMessages(ctx context.Context, chatID string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, chatID)
	var list []models.ChatMessage
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatMessage)
	}
	return list, args.Error(1)
}

type GroupMessageRepositoryMock struct {
	mock.Mock
}

func (m *GroupMessageRepositoryMock) ListGroupMessages(ctx context.Context, groupID string) ([]models.GroupMessage, error) {
	args := m.Called(ctx, groupID)
	var list []models.GroupMessage
	if val := args.Get(0); val != nil {
		list = val.([]models.GroupMessage)
	}
	return list, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, id string) (models.User, error) {
	args := m.Called(ctx, id)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ListByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var list []models.User
	if val := args.Get(0); val != nil {
		list = val.([]models.User)
	}
	return list, args.Error(1)
}

var (
	_ repositories.ChatRepository         = (*ChatRepositoryMock)(nil)
	_ repositories.GroupRepository        = (*GroupRepositoryMock)(nil)
	_ repositories.MessageRepository      = (*MessageRepositoryMock)(nil)
	_ repositories.GroupMessageRepository = (*GroupMessageRepositoryMock)(nil)
	_ repositories.UserRepository         = (*UserRepositoryMock)(nil)
)
