package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-core/internal/mocks"
	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

func messageRouter(rooms *mocks.RoomRepositoryMock, messages *mocks.MessageRepositoryMock) *gin.Engine {
	handler := NewMessageHandler(rooms, messages, nil)
	return setupRouter(func(r *gin.Engine) {
		r.GET("/messages/:room_id", handler.GetRoomMessages)
		r.DELETE("/messages/:message_id", handler.DeleteMessage)
	})
}

func TestGetRoomMessages(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	rooms.On("GetRoom", mock.Anything, 7).Return(models.Room{ID: 7, Name: "general"}, nil)
	messages.On("ListRoomMessages", mock.Anything, 7, 2, 25).Return(models.MessagePage{
		Messages: []models.Message{{ID: 40, RoomID: 7, Content: "hi"}},
		Total:    60,
		Page:     2,
		PerPage:  25,
		HasNext:  true,
		HasPrev:  true,
	}, nil)

	router := messageRouter(rooms, messages)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/messages/7?page=2&per_page=25", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var page models.MessagePage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Messages, 1)
	require.Equal(t, 60, page.Total)
	require.True(t, page.HasNext)
}

func TestGetRoomMessagesClampsPaging(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	rooms.On("GetRoom", mock.Anything, 7).Return(models.Room{ID: 7}, nil)

	// Out-of-range values fall back to page 1 and the default page size.
	messages.On("ListRoomMessages", mock.Anything, 7, 1, defaultPageSize).Return(models.MessagePage{}, nil)

	router := messageRouter(rooms, messages)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/messages/7?page=-3&per_page=1000", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	messages.AssertExpectations(t)
}

func TestGetRoomMessagesPrivateNonMember(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	rooms.On("GetRoom", mock.Anything, 7).Return(models.Room{ID: 7, IsPrivate: true}, nil)
	rooms.On("IsMember", mock.Anything, 7, 1).Return(false, nil)

	router := messageRouter(rooms, messages)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/messages/7", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
	messages.AssertNotCalled(t, "ListRoomMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMessage(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	messages.On("GetMessage", mock.Anything, int64(42)).
		Return(models.Message{ID: 42, RoomID: 7, UserID: 1, Content: "hi"}, nil)
	messages.On("SoftDeleteMessage", mock.Anything, int64(42), 1).Return(nil)

	router := messageRouter(rooms, messages)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/messages/42", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	messages.AssertExpectations(t)
}

func TestDeleteMessageNotSender(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	messages.On("GetMessage", mock.Anything, int64(42)).
		Return(models.Message{ID: 42, RoomID: 7, UserID: 99, Content: "hi"}, nil)

	router := messageRouter(rooms, messages)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/messages/42", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
	messages.AssertNotCalled(t, "SoftDeleteMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMessageNotFound(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	messages.On("GetMessage", mock.Anything, int64(42)).
		Return(nil, repositories.ErrMessageNotFound)

	router := messageRouter(rooms, messages)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/messages/42", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRoomMessagesRoomNotFound(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	rooms.On("GetRoom", mock.Anything, 99).Return(nil, repositories.ErrRoomNotFound)

	router := messageRouter(rooms, messages)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/messages/99", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}
