package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"chat-core/internal/models"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrWrongPassword    = errors.New("wrong room password")
	ErrPasswordRequired = errors.New("room password required")
)

// RoomRepository owns rooms and the durable room-membership relation.
type RoomRepository interface {
	CreateRoom(ctx context.Context, creatorID int, name, description string, isPrivate bool, password string) (models.Room, error)
	GetRoom(ctx context.Context, roomID int) (models.Room, error)
	JoinRoom(ctx context.Context, userID, roomID int, password string) error
	LeaveRoom(ctx context.Context, userID, roomID int) error
	ListRoomsFor(ctx context.Context, userID int) (models.RoomList, error)
	IsMember(ctx context.Context, roomID, userID int) (bool, error)
	MemberCount(ctx context.Context, roomID int) (int, error)
	MemberIDs(ctx context.Context, roomID int) ([]int, error)
	Members(ctx context.Context, roomID int) ([]models.User, error)
	RoomIDsFor(ctx context.Context, userID int) ([]int, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom creates a room and the creator's membership atomically.
// Room names are not unique; the serial id is the identity.
func (r *RoomRepo) CreateRoom(ctx context.Context, creatorID int, name, description string, isPrivate bool, password string) (models.Room, error) {
	var passwordHash *string
	if isPrivate {
		if password == "" {
			return models.Room{}, ErrPasswordRequired
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return models.Room{}, err
		}
		hashed := string(hash)
		passwordHash = &hashed
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var room models.Room
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO rooms (name, description, is_private, password_hash, created_by)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id, name, description, is_private, password_hash, created_by, created_at`,
		name, description, isPrivate, passwordHash, creatorID).StructScan(&room); err != nil {
		return models.Room{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)`,
		room.ID, creatorID); err != nil {
		return models.Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// GetRoom fetches a single room.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room,
		`SELECT id, name, description, is_private, password_hash, created_by, created_at FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// JoinRoom adds the user to the room. Private rooms require the password to
// match; the bcrypt compare is constant-time. Joining a room the user already
// belongs to is a no-op, so client retries stay safe.
func (r *RoomRepo) JoinRoom(ctx context.Context, userID, roomID int, password string) error {
	room, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	if room.IsPrivate {
		if password == "" {
			return ErrPasswordRequired
		}
		if room.PasswordHash == nil {
			return ErrWrongPassword
		}
		if bcrypt.CompareHashAndPassword([]byte(*room.PasswordHash), []byte(password)) != nil {
			return ErrWrongPassword
		}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roomID, userID)
	return err
}

// LeaveRoom removes the membership. Leaving a room the user is not a member
// of is a no-op rather than an error.
func (r *RoomRepo) LeaveRoom(ctx context.Context, userID, roomID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM room_members WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	return err
}

// ListRoomsFor partitions all rooms into ones the user belongs to and the rest.
func (r *RoomRepo) ListRoomsFor(ctx context.Context, userID int) (models.RoomList, error) {
	list := models.RoomList{
		UserRooms:      []models.RoomSummary{},
		AvailableRooms: []models.RoomSummary{},
	}

	err := r.db.SelectContext(ctx, &list.UserRooms,
		`SELECT r.id, r.name, r.description, r.is_private, r.created_by, r.created_at,
                (SELECT COUNT(*) FROM room_members m WHERE m.room_id = r.id) AS member_count
         FROM rooms r
         INNER JOIN room_members rm ON rm.room_id = r.id
         WHERE rm.user_id = $1
         ORDER BY r.created_at DESC`, userID)
	if err != nil {
		return models.RoomList{}, err
	}

	err = r.db.SelectContext(ctx, &list.AvailableRooms,
		`SELECT r.id, r.name, r.description, r.is_private, r.created_by, r.created_at,
                (SELECT COUNT(*) FROM room_members m WHERE m.room_id = r.id) AS member_count
         FROM rooms r
         WHERE NOT EXISTS (SELECT 1 FROM room_members rm WHERE rm.room_id = r.id AND rm.user_id = $1)
         ORDER BY r.created_at DESC`, userID)
	if err != nil {
		return models.RoomList{}, err
	}

	return list, nil
}

// IsMember checks membership.
func (r *RoomRepo) IsMember(ctx context.Context, roomID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM room_members WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}

// MemberCount counts members of a room.
func (r *RoomRepo) MemberCount(ctx context.Context, roomID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM room_members WHERE room_id=$1`, roomID)
	return count, err
}

// MemberIDs lists member user ids for fanout.
func (r *RoomRepo) MemberIDs(ctx context.Context, roomID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM room_members WHERE room_id=$1 ORDER BY user_id`, roomID)
	return ids, err
}

// Members lists member users with resolved usernames.
func (r *RoomRepo) Members(ctx context.Context, roomID int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT u.id, u.username, u.avatar_url, u.last_seen
         FROM users u
         INNER JOIN room_members rm ON rm.user_id = u.id
         WHERE rm.room_id = $1
         ORDER BY u.username`, roomID)
	return users, err
}

// RoomIDsFor lists ids of the rooms the user belongs to.
func (r *RoomRepo) RoomIDsFor(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT room_id FROM room_members WHERE user_id=$1 ORDER BY room_id`, userID)
	return ids, err
}
