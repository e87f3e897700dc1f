package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"chat-core/internal/models"
)

// Inbound event kinds. The set is closed: anything else is rejected with an
// error event instead of being silently dropped.
const (
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventSendMessage    = "send_message"
	EventTypingStart    = "typing_start"
	EventTypingStop     = "typing_stop"
	EventGetOnlineUsers = "get_online_users"
	EventAvatarUpdated  = "avatar_updated"
	EventPing           = "ping"
)

// Outbound event kinds.
const (
	EventNewMessage        = "new_message"
	EventUserJoined        = "user_joined"
	EventUserLeft          = "user_left"
	EventTypingUpdate      = "typing_update"
	EventUserStatusUpdate  = "user_status_update"
	EventRoomJoined        = "room_joined"
	EventOnlineUsersUpdate = "online_users_update"
	EventUserAvatarUpdated = "user_avatar_updated"
	EventMessageDeleted    = "message_deleted"
	EventError             = "error"
	EventPong              = "pong"
)

var ErrUnknownEvent = errors.New("unknown event kind")

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomPayload is shared by join_room, leave_room, typing_* and
// get_online_users.
type RoomPayload struct {
	RoomID int `json:"room_id"`
}

// SendMessagePayload carries an outgoing message plus optional attachment
// metadata.
type SendMessagePayload struct {
	RoomID      int    `json:"room_id"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	FileURL     string `json:"file_url"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
}

// AvatarPayload carries an avatar change passthrough.
type AvatarPayload struct {
	AvatarURL string `json:"avatar_url"`
}

// InboundEvent is the decoded form of a client frame. Exactly one payload
// field matching Kind is set.
type InboundEvent struct {
	Kind    string
	Room    *RoomPayload
	Message *SendMessagePayload
	Avatar  *AvatarPayload
}

// DecodeInbound parses a client frame into the closed event union.
func DecodeInbound(raw []byte) (InboundEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return InboundEvent{}, fmt.Errorf("malformed frame: %w", err)
	}

	evt := InboundEvent{Kind: env.Event}
	switch env.Event {
	case EventJoinRoom, EventLeaveRoom, EventTypingStart, EventTypingStop, EventGetOnlineUsers:
		var p RoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return InboundEvent{}, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		evt.Room = &p
	case EventSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return InboundEvent{}, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		evt.Message = &p
	case EventAvatarUpdated:
		var p AvatarPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return InboundEvent{}, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		evt.Avatar = &p
	case EventPing:
	default:
		return InboundEvent{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return evt, nil
}

// Outbound payloads.

type UserRoomPayload struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	RoomID   int    `json:"room_id"`
}

type TypingUpdatePayload struct {
	RoomID      int      `json:"room_id"`
	TypingUsers []string `json:"typing_users"`
}

type UserStatusPayload struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	IsOnline bool   `json:"is_online"`
}

type RoomJoinedPayload struct {
	RoomID        int              `json:"room_id"`
	RoomName      string           `json:"room_name"`
	MemberCount   int              `json:"member_count"`
	OnlineMembers []models.UserRef `json:"online_members"`
}

type OnlineUsersPayload struct {
	RoomID      int              `json:"room_id"`
	OnlineUsers []models.UserRef `json:"online_users"`
}

type AvatarUpdatedPayload struct {
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

type MessageDeletedPayload struct {
	MessageID int64 `json:"message_id"`
	RoomID    int   `json:"room_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// encodeEvent marshals an outbound frame.
func encodeEvent(event string, data any) []byte {
	payload, _ := json.Marshal(envelope{Event: event, Data: mustRaw(data)})
	return payload
}

func mustRaw(data any) json.RawMessage {
	if data == nil {
		return nil
	}
	raw, _ := json.Marshal(data)
	return raw
}

func errorEvent(message string) []byte {
	return encodeEvent(EventError, ErrorPayload{Message: message})
}
