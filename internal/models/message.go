package models

import (
	"encoding/json"
	"time"
)

// Message types accepted over the wire.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Message is a persisted chat message. The id is assigned by the store and
// is the ordering authority within a room.
type Message struct {
	ID          int64      `db:"id" json:"message_id"`
	RoomID      int        `db:"room_id" json:"room_id"`
	UserID      int        `db:"user_id" json:"user_id"`
	Username    string     `db:"username" json:"username"`
	Content     string     `db:"content" json:"content"`
	MessageType string     `db:"message_type" json:"message_type"`
	Timestamp   time.Time  `db:"created_at" json:"timestamp"`
	EditedAt    *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	IsDeleted   bool       `db:"is_deleted" json:"is_deleted"`
}

// FileMeta describes an uploaded attachment. For file and image messages it
// is stored as JSON in the message content, with the typed text kept as the
// description.
type FileMeta struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	Description string `json:"description"`
}

// EncodeFileContent packs file metadata into the content column.
func EncodeFileContent(meta FileMeta) (string, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// MessagePage is a paginated slice of room history.
type MessagePage struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	HasNext  bool      `json:"has_next"`
	HasPrev  bool      `json:"has_prev"`
}
