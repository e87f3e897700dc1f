package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-core/internal/models"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, creatorID int, name, description string, isPrivate bool, password string) (models.Room, error) {
	args := m.Called(ctx, creatorID, name, description, isPrivate, password)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) JoinRoom(ctx context.Context, userID, roomID int, password string) error {
	args := m.Called(ctx, userID, roomID, password)
	return args.Error(0)
}

func (m *RoomRepositoryMock) LeaveRoom(ctx context.Context, userID, roomID int) error {
	args := m.Called(ctx, userID, roomID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) ListRoomsFor(ctx context.Context, userID int) (models.RoomList, error) {
	args := m.Called(ctx, userID)
	var list models.RoomList
	if val := args.Get(0); val != nil {
		list = val.(models.RoomList)
	}
	return list, args.Error(1)
}

func (m *RoomRepositoryMock) IsMember(ctx context.Context, roomID, userID int) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) MemberCount(ctx context.Context, roomID int) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *RoomRepositoryMock) MemberIDs(ctx context.Context, roomID int) ([]int, error) {
	args := m.Called(ctx, roomID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *RoomRepositoryMock) Members(ctx context.Context, roomID int) ([]models.User, error) {
	args := m.Called(ctx, roomID)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *RoomRepositoryMock) RoomIDsFor(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, roomID, userID int, content, messageType string) (models.Message, error) {
	args := m.Called(ctx, roomID, userID, content, messageType)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, roomID, page, perPage int) (models.MessagePage, error) {
	args := m.Called(ctx, roomID, page, perPage)
	var pageResult models.MessagePage
	if val := args.Get(0); val != nil {
		pageResult = val.(models.MessagePage)
	}
	return pageResult, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeleteMessage(ctx context.Context, messageID int64, userID int) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) UpsertUser(ctx context.Context, id int, username, avatarURL string) error {
	args := m.Called(ctx, id, username, avatarURL)
	return args.Error(0)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, id int) (models.User, error) {
	args := m.Called(ctx, id)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}
