package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-core/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository persists room messages. Ids are assigned by the store's
// sequence, which makes persisted order the delivery order.
type MessageRepository interface {
	CreateMessage(ctx context.Context, roomID, userID int, content, messageType string) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID, page, perPage int) (models.MessagePage, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID int64, userID int) error
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage persists a message and returns it with the assigned id.
// The username is resolved from the users table so events and history agree
// on the display name.
func (r *MessageRepo) CreateMessage(ctx context.Context, roomID, userID int, content, messageType string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (room_id, user_id, content, message_type)
         VALUES ($1, $2, $3, $4)
         RETURNING id, room_id, user_id,
                   COALESCE((SELECT username FROM users WHERE id = $2), '') AS username,
                   content, message_type, edited_at, is_deleted, created_at`,
		roomID, userID, content, messageType).StructScan(&msg)
	return msg, err
}

// ListRoomMessages returns a page of history, oldest first within the page.
// Pages count from the newest message backwards, matching the client's
// scroll-up pagination.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID, page, perPage int) (models.MessagePage, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM messages WHERE room_id=$1 AND is_deleted = FALSE`, roomID); err != nil {
		return models.MessagePage{}, err
	}

	offset := (page - 1) * perPage
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT m.id, m.room_id, m.user_id,
                COALESCE(u.username, '') AS username,
                m.content, m.message_type, m.edited_at, m.is_deleted, m.created_at
         FROM messages m
         LEFT JOIN users u ON u.id = m.user_id
         WHERE m.room_id=$1 AND m.is_deleted = FALSE
         ORDER BY m.id DESC
         LIMIT $2 OFFSET $3`, roomID, perPage, offset)
	if err != nil {
		return models.MessagePage{}, err
	}

	// newest page is fetched first; each page is presented oldest-first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	return models.MessagePage{
		Messages: msgs,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		HasNext:  offset+perPage < total,
		HasPrev:  page > 1,
	}, nil
}

// GetMessage fetches a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT m.id, m.room_id, m.user_id,
                COALESCE(u.username, '') AS username,
                m.content, m.message_type, m.edited_at, m.is_deleted, m.created_at
         FROM messages m
         LEFT JOIN users u ON u.id = m.user_id
         WHERE m.id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDeleteMessage marks a message deleted when invoked by its sender.
func (r *MessageRepo) SoftDeleteMessage(ctx context.Context, messageID int64, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_deleted = TRUE WHERE id=$1 AND user_id=$2`, messageID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
