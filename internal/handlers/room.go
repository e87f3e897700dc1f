package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-core/internal/models"
	"chat-core/internal/repositories"
	"chat-core/internal/telemetry"
	"chat-core/internal/ws"
)

// RoomHandler manages room CRUD and the membership join/leave flow. The
// socket gateway only refreshes presence; membership changes happen here.
type RoomHandler struct {
	rooms   repositories.RoomRepository
	gateway *ws.Gateway
	audit   *telemetry.AuditEmitter
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(rooms repositories.RoomRepository, gateway *ws.Gateway, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{rooms: rooms, gateway: gateway, audit: audit}
}

// ListRooms returns the caller's rooms and the remaining discoverable rooms.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	userID := c.GetInt("userID")

	list, err := h.rooms.ListRoomsFor(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateRoom handles POST /rooms. The creator becomes a member atomically.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		IsPrivate   bool   `json:"is_private"`
		Password    string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), userID, req.Name, req.Description, req.IsPrivate, req.Password)
	if err != nil {
		if errors.Is(err, repositories.ErrPasswordRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "private rooms require a password"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	h.emitAudit(c, "INFO", "Room created")
	c.JSON(http.StatusCreated, room)
}

// GetRoom returns room details plus member and online-member lists.
func (h *RoomHandler) GetRoom(c *gin.Context) {
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

	member, err := h.rooms.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if room.IsPrivate && !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this room"})
		return
	}

	members, err := h.rooms.Members(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}

	online := []models.UserRef{}
	if h.gateway != nil {
		online = h.gateway.Presence().UsersIn(roomID)
	}

	c.JSON(http.StatusOK, gin.H{
		"room":           room,
		"members":        members,
		"member_count":   len(members),
		"online_members": online,
	})
}

// JoinRoom establishes membership. Presence is only established later, when
// the client issues join_room on its socket.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")

	var req struct {
		Password string `json:"password"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	member, err := h.rooms.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if member {
		c.JSON(http.StatusBadRequest, gin.H{"error": "already a member of this room"})
		return
	}

	if err := h.rooms.JoinRoom(c.Request.Context(), userID, roomID, req.Password); err != nil {
		switch {
		case errors.Is(err, repositories.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case errors.Is(err, repositories.ErrPasswordRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "room password required"})
		case errors.Is(err, repositories.ErrWrongPassword):
			h.emitAudit(c, "ERROR", "wrong room password")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong room password"})
		default:
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join room"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Room joined")
	c.JSON(http.StatusOK, gin.H{"message": "joined room"})
}

// LeaveRoom removes membership and clears any live presence in the room.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	userID := c.GetInt("userID")
	username := c.GetString("username")

	if _, err := h.rooms.GetRoom(c.Request.Context(), roomID); err != nil {
		respondRoomError(c, err)
		return
	}

	if err := h.rooms.LeaveRoom(c.Request.Context(), userID, roomID); err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not leave room"})
		return
	}

	if h.gateway != nil {
		h.gateway.MembershipRevoked(roomID, userID, username)
	}

	h.emitAudit(c, "INFO", "Room left")
	c.JSON(http.StatusOK, gin.H{"message": "left room"})
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func parseRoomID(c *gin.Context) (int, bool) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return roomID, true
}

func respondRoomError(c *gin.Context, err error) {
	if errors.Is(err, repositories.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
}
