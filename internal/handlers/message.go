package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-core/internal/repositories"
	"chat-core/internal/ws"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// MessageHandler serves room history. Live delivery happens on the socket;
// this endpoint is how reconnecting clients catch up.
type MessageHandler struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	gateway  *ws.Gateway
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(rooms repositories.RoomRepository, messages repositories.MessageRepository, gateway *ws.Gateway) *MessageHandler {
	return &MessageHandler{rooms: rooms, messages: messages, gateway: gateway}
}

// GetRoomMessages returns a page of message history for the room.
func (h *MessageHandler) GetRoomMessages(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	room, err := h.rooms.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		respondRoomError(c, err)
		return
	}

	if room.IsPrivate {
		member, err := h.rooms.IsMember(c.Request.Context(), roomID, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
			return
		}
		if !member {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this room"})
			return
		}
	}

	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", defaultPageSize)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > maxPageSize {
		perPage = defaultPageSize
	}

	history, err := h.messages.ListRoomMessages(c.Request.Context(), roomID, page, perPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, history)
}

// DeleteMessage soft-deletes a message. Only the sender may delete; the row
// stays in place and drops out of history.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	userID := c.GetInt("userID")

	msg, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load message"})
		return
	}
	if msg.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can delete a message"})
		return
	}

	if err := h.messages.SoftDeleteMessage(c.Request.Context(), messageID, userID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete message"})
		return
	}

	if h.gateway != nil {
		h.gateway.MessageDeleted(msg.RoomID, messageID)
	}

	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
