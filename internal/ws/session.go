package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer. Covers the 10k content cap plus
	// envelope and attachment metadata.
	maxFrameSize = 16 * 1024

	sendBufferSize = 256
)

var errSessionClosed = errors.New("session closed")

// Session is one authenticated live connection. A user may hold several
// concurrent sessions, one per device.
type Session struct {
	ID          string
	UserID      int
	Username    string
	AvatarURL   string
	ConnectedAt time.Time

	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

// NewSession wraps an upgraded connection. conn may be nil in tests; frames
// then accumulate in the send buffer.
func NewSession(userID int, username, avatarURL string, conn *websocket.Conn) *Session {
	return &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		Username:    username,
		AvatarURL:   avatarURL,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
	}
}

// Enqueue hands a frame to the write pump. A slow client whose buffer fills
// up is closed rather than allowed to stall broadcasts.
func (s *Session) Enqueue(payload []byte) error {
	select {
	case <-s.done:
		return errSessionClosed
	default:
	}
	select {
	case s.send <- payload:
		return nil
	default:
		s.Close()
		return errors.New("send buffer full")
	}
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// writePump drains the send buffer to the connection and keeps the peer
// alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
