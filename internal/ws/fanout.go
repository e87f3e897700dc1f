package ws

import (
	"context"
	"errors"
	"log"
	"sync"

	"chat-core/internal/models"
	"chat-core/internal/observability"
	"chat-core/internal/repositories"
)

// Server-side authority for message validation; the client mirrors these.
const maxContentLength = 10000

var (
	ErrEmptyContent   = errors.New("message content is empty")
	ErrTooLarge       = errors.New("message content too large")
	ErrBadMessageType = errors.New("unsupported message type")
)

// FanoutEngine persists messages and delivers them to the live sessions of
// room members. Persist and deliver run under a per-room lock, so delivered
// order always matches persisted order; there is no per-room lock contention
// across rooms.
type FanoutEngine struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	registry *Registry

	mu        sync.Mutex
	roomLocks map[int]*sync.Mutex
}

// NewFanoutEngine constructs a FanoutEngine.
func NewFanoutEngine(rooms repositories.RoomRepository, messages repositories.MessageRepository, registry *Registry) *FanoutEngine {
	return &FanoutEngine{
		rooms:     rooms,
		messages:  messages,
		registry:  registry,
		roomLocks: make(map[int]*sync.Mutex),
	}
}

func (e *FanoutEngine) lockFor(roomID int) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		e.roomLocks[roomID] = lock
	}
	return lock
}

// Publish validates, persists and fans out one message. Delivery happens
// strictly after persistence succeeds; a persistence failure reaches only
// the sender and nothing is broadcast. Delivery per live session is
// at-most-once: dead connections are dropped, never retried. Disconnected
// members catch up through the history endpoint on reconnect.
func (e *FanoutEngine) Publish(ctx context.Context, roomID int, sender *Session, content, messageType string, file *models.FileMeta) (models.Message, error) {
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	switch messageType {
	case models.MessageTypeText:
		if content == "" {
			return models.Message{}, ErrEmptyContent
		}
	case models.MessageTypeImage, models.MessageTypeFile:
		// attachments may carry an empty description
	default:
		return models.Message{}, ErrBadMessageType
	}
	if len(content) > maxContentLength {
		return models.Message{}, ErrTooLarge
	}

	if file != nil && messageType != models.MessageTypeText {
		file.Description = content
		encoded, err := models.EncodeFileContent(*file)
		if err != nil {
			return models.Message{}, err
		}
		content = encoded
	}

	memberIDs, err := e.rooms.MemberIDs(ctx, roomID)
	if err != nil {
		return models.Message{}, err
	}

	lock := e.lockFor(roomID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := e.messages.CreateMessage(ctx, roomID, sender.UserID, content, messageType)
	if err != nil {
		return models.Message{}, err
	}
	if msg.Username == "" {
		msg.Username = sender.Username
	}

	payload := encodeEvent(EventNewMessage, msg)
	delivered := 0
	for _, userID := range memberIDs {
		for _, session := range e.registry.SessionsFor(userID) {
			if err := session.Enqueue(payload); err != nil {
				log.Printf("fanout drop: room=%d session=%s user=%d: %v", roomID, session.ID, session.UserID, err)
				continue
			}
			delivered++
		}
	}
	observability.ObserveFanout(delivered)

	return msg, nil
}
