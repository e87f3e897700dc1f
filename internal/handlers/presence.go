package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/ws"
)

// PresenceHandler exposes the gateway's live presence over REST, so clients
// can render online lists without waiting for a socket round trip.
type PresenceHandler struct {
	gateway *ws.Gateway
}

// NewPresenceHandler constructs a PresenceHandler.
func NewPresenceHandler(gateway *ws.Gateway) *PresenceHandler {
	return &PresenceHandler{gateway: gateway}
}

// RoomOnlineUsers returns the users currently viewing a room.
func (h *PresenceHandler) RoomOnlineUsers(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id":      roomID,
		"online_users": h.gateway.Presence().UsersIn(roomID),
	})
}
