package models

import "time"

// Room is a chat room. PasswordHash is only set for private rooms and is
// never serialized.
type Room struct {
	ID           int       `db:"id" json:"room_id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	IsPrivate    bool      `db:"is_private" json:"is_private"`
	PasswordHash *string   `db:"password_hash" json:"-"`
	CreatedBy    int       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// RoomSummary is the API view of a room, with a member count attached.
type RoomSummary struct {
	ID          int       `db:"id" json:"room_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	IsPrivate   bool      `db:"is_private" json:"is_private"`
	CreatedBy   int       `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	MemberCount int       `db:"member_count" json:"member_count"`
}

// Membership links a user to a room. It survives disconnects; only an
// explicit leave removes it.
type Membership struct {
	RoomID   int       `db:"room_id" json:"room_id"`
	UserID   int       `db:"user_id" json:"user_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// RoomList partitions rooms for the two-tier room picker.
type RoomList struct {
	UserRooms      []RoomSummary `json:"user_rooms"`
	AvailableRooms []RoomSummary `json:"available_rooms"`
}
