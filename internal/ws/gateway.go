package ws

import (
	"context"
	"errors"
	"log"

	"chat-core/internal/models"
	"chat-core/internal/observability"
	"chat-core/internal/repositories"
)

var ErrNotMember = errors.New("not a member of this room")

// Gateway is the protocol façade. It validates inbound events against room
// membership, delegates to the presence, typing and fanout components, and
// pushes resulting events back through the registry.
//
// REST join establishes Membership; join_room over the socket only
// establishes Presence on an existing membership. A join_room from a
// non-member therefore fails with a not-a-member error instead of
// auto-joining.
type Gateway struct {
	registry *Registry
	presence *PresenceTracker
	typing   *TypingCoordinator
	fanout   *FanoutEngine
	rooms    repositories.RoomRepository
	users    repositories.UserRepository
}

// NewGateway wires the session core together.
func NewGateway(registry *Registry, presence *PresenceTracker, typing *TypingCoordinator, fanout *FanoutEngine, rooms repositories.RoomRepository, users repositories.UserRepository) *Gateway {
	return &Gateway{
		registry: registry,
		presence: presence,
		typing:   typing,
		fanout:   fanout,
		rooms:    rooms,
		users:    users,
	}
}

// Registry exposes the connection registry to collaborators outside the
// socket path, like the REST presence endpoint.
func (g *Gateway) Registry() *Registry { return g.registry }

// Presence exposes the presence tracker for read-only queries.
func (g *Gateway) Presence() *PresenceTracker { return g.presence }

// Connect registers an authenticated session. The user's first session
// flips them online and notifies every room they belong to.
func (g *Gateway) Connect(ctx context.Context, s *Session) {
	if err := g.users.UpsertUser(ctx, s.UserID, s.Username, s.AvatarURL); err != nil {
		log.Printf("user upsert failed: user=%d: %v", s.UserID, err)
	}

	first := g.registry.Add(s)
	if first {
		g.broadcastStatus(ctx, s, true)
	}
	log.Printf("session connected: session=%s user=%d username=%s", s.ID, s.UserID, s.Username)
}

// Disconnect tears down all per-session state: typing marks, presence
// entries and, when this was the user's last session, the online flag.
func (g *Gateway) Disconnect(ctx context.Context, s *Session) {
	for _, roomID := range g.typing.ClearUser(s.UserID) {
		g.pushTypingUpdate(roomID)
	}

	last := g.registry.Remove(s)
	if last {
		for _, roomID := range g.presence.ClearUser(s.UserID) {
			g.deliverToPresent(roomID, encodeEvent(EventUserLeft, UserRoomPayload{
				UserID:   s.UserID,
				Username: s.Username,
				RoomID:   roomID,
			}), s.UserID)
		}
		g.broadcastStatus(ctx, s, false)
	}

	s.Close()
	log.Printf("session disconnected: session=%s user=%d last=%t", s.ID, s.UserID, last)
}

// HandleEvent dispatches one decoded client frame. Validation failures are
// answered on the offending session only and never interrupt anyone else.
func (g *Gateway) HandleEvent(ctx context.Context, s *Session, raw []byte) {
	evt, err := DecodeInbound(raw)
	if err != nil {
		s.Enqueue(errorEvent(err.Error()))
		return
	}
	observability.IncWSEvent(evt.Kind)

	switch evt.Kind {
	case EventJoinRoom:
		g.onJoinRoom(ctx, s, evt.Room.RoomID)
	case EventLeaveRoom:
		g.onLeaveRoom(s, evt.Room.RoomID)
	case EventSendMessage:
		g.onSendMessage(ctx, s, evt.Message)
	case EventTypingStart:
		g.onTyping(s, evt.Room.RoomID, true)
	case EventTypingStop:
		g.onTyping(s, evt.Room.RoomID, false)
	case EventGetOnlineUsers:
		g.onGetOnlineUsers(s, evt.Room.RoomID)
	case EventAvatarUpdated:
		g.onAvatarUpdated(ctx, s, evt.Avatar.AvatarURL)
	case EventPing:
		s.Enqueue(encodeEvent(EventPong, nil))
	}
}

func (g *Gateway) onJoinRoom(ctx context.Context, s *Session, roomID int) {
	room, err := g.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			s.Enqueue(errorEvent("room not found"))
			return
		}
		s.Enqueue(errorEvent("failed to load room"))
		return
	}

	member, err := g.rooms.IsMember(ctx, roomID, s.UserID)
	if err != nil {
		s.Enqueue(errorEvent("membership check failed"))
		return
	}
	if !member {
		s.Enqueue(errorEvent(ErrNotMember.Error()))
		return
	}

	memberCount, err := g.rooms.MemberCount(ctx, roomID)
	if err != nil {
		s.Enqueue(errorEvent("failed to load room"))
		return
	}

	g.presence.MarkPresent(roomID, models.UserRef{ID: s.UserID, Username: s.Username, AvatarURL: s.AvatarURL})

	s.Enqueue(encodeEvent(EventRoomJoined, RoomJoinedPayload{
		RoomID:        room.ID,
		RoomName:      room.Name,
		MemberCount:   memberCount,
		OnlineMembers: g.presence.UsersIn(roomID),
	}))

	g.deliverToPresent(roomID, encodeEvent(EventUserJoined, UserRoomPayload{
		UserID:   s.UserID,
		Username: s.Username,
		RoomID:   roomID,
	}), s.UserID)

	log.Printf("presence enter: user=%d room=%d", s.UserID, roomID)
}

func (g *Gateway) onLeaveRoom(s *Session, roomID int) {
	if !g.presence.IsPresent(roomID, s.UserID) {
		return
	}
	g.presence.MarkAbsent(roomID, s.UserID)

	g.typing.SetTyping(roomID, s.UserID, s.Username, false)
	g.pushTypingUpdate(roomID)

	g.deliverToPresent(roomID, encodeEvent(EventUserLeft, UserRoomPayload{
		UserID:   s.UserID,
		Username: s.Username,
		RoomID:   roomID,
	}), s.UserID)

	log.Printf("presence leave: user=%d room=%d", s.UserID, roomID)
}

func (g *Gateway) onSendMessage(ctx context.Context, s *Session, p *SendMessagePayload) {
	member, err := g.rooms.IsMember(ctx, p.RoomID, s.UserID)
	if err != nil {
		s.Enqueue(errorEvent("membership check failed"))
		return
	}
	if !member {
		s.Enqueue(errorEvent(ErrNotMember.Error()))
		return
	}

	var file *models.FileMeta
	if p.FileURL != "" {
		file = &models.FileMeta{URL: p.FileURL, Name: p.FileName, Size: p.FileSize}
	}

	if _, err := g.fanout.Publish(ctx, p.RoomID, s, p.Content, p.MessageType, file); err != nil {
		switch {
		case errors.Is(err, ErrEmptyContent):
			s.Enqueue(errorEvent("message content is empty"))
		case errors.Is(err, ErrTooLarge):
			s.Enqueue(errorEvent("message content too large"))
		case errors.Is(err, ErrBadMessageType):
			s.Enqueue(errorEvent("unsupported message type"))
		default:
			log.Printf("message publish failed: room=%d user=%d: %v", p.RoomID, s.UserID, err)
			s.Enqueue(errorEvent("failed to send message"))
		}
	}
}

func (g *Gateway) onTyping(s *Session, roomID int, typing bool) {
	// Only users viewing the room can mark themselves typing. Presence in
	// turn requires membership, checked at join_room.
	if !g.presence.IsPresent(roomID, s.UserID) {
		return
	}
	g.typing.SetTyping(roomID, s.UserID, s.Username, typing)
	g.pushTypingUpdate(roomID)
}

func (g *Gateway) onGetOnlineUsers(s *Session, roomID int) {
	s.Enqueue(encodeEvent(EventOnlineUsersUpdate, OnlineUsersPayload{
		RoomID:      roomID,
		OnlineUsers: g.presence.UsersIn(roomID),
	}))
}

func (g *Gateway) onAvatarUpdated(ctx context.Context, s *Session, avatarURL string) {
	if avatarURL == "" {
		return
	}
	if err := g.users.UpsertUser(ctx, s.UserID, s.Username, avatarURL); err != nil {
		log.Printf("avatar upsert failed: user=%d: %v", s.UserID, err)
	}

	payload := encodeEvent(EventUserAvatarUpdated, AvatarUpdatedPayload{
		UserID:    s.UserID,
		Username:  s.Username,
		AvatarURL: avatarURL,
	})

	roomIDs, err := g.rooms.RoomIDsFor(ctx, s.UserID)
	if err != nil {
		log.Printf("avatar broadcast skipped: user=%d: %v", s.UserID, err)
		return
	}
	for _, roomID := range roomIDs {
		g.deliverToMembers(ctx, roomID, payload, s.UserID)
	}
}

// MembershipRevoked clears the user's presence after a REST leave and tells
// the room. Leaving is a full membership removal, not a hide.
func (g *Gateway) MembershipRevoked(roomID, userID int, username string) {
	g.typing.SetTyping(roomID, userID, username, false)
	if !g.presence.IsPresent(roomID, userID) {
		return
	}
	g.presence.MarkAbsent(roomID, userID)
	g.pushTypingUpdate(roomID)
	g.deliverToPresent(roomID, encodeEvent(EventUserLeft, UserRoomPayload{
		UserID:   userID,
		Username: username,
		RoomID:   roomID,
	}), userID)
}

// MessageDeleted tells the room's viewers a message was removed, so open
// clients can drop it without a refetch.
func (g *Gateway) MessageDeleted(roomID int, messageID int64) {
	g.deliverToPresent(roomID, encodeEvent(EventMessageDeleted, MessageDeletedPayload{
		MessageID: messageID,
		RoomID:    roomID,
	}), 0)
}

// TypingExpired is the sweep callback: rooms whose marks lapsed get a fresh
// typing_update pushed.
func (g *Gateway) TypingExpired(roomID int) {
	g.pushTypingUpdate(roomID)
}

// pushTypingUpdate sends each viewer the room's typing set with their own
// name filtered out.
func (g *Gateway) pushTypingUpdate(roomID int) {
	for _, user := range g.presence.UsersIn(roomID) {
		payload := encodeEvent(EventTypingUpdate, TypingUpdatePayload{
			RoomID:      roomID,
			TypingUsers: g.typing.TypingUsersIn(roomID, user.ID),
		})
		for _, session := range g.registry.SessionsFor(user.ID) {
			session.Enqueue(payload)
		}
	}
}

// broadcastStatus tells every room the user belongs to that the user's
// overall online state flipped.
func (g *Gateway) broadcastStatus(ctx context.Context, s *Session, online bool) {
	payload := encodeEvent(EventUserStatusUpdate, UserStatusPayload{
		UserID:   s.UserID,
		Username: s.Username,
		IsOnline: online,
	})

	roomIDs, err := g.rooms.RoomIDsFor(ctx, s.UserID)
	if err != nil {
		log.Printf("status broadcast skipped: user=%d: %v", s.UserID, err)
		return
	}
	for _, roomID := range roomIDs {
		g.deliverToMembers(ctx, roomID, payload, s.UserID)
	}
}

// deliverToPresent pushes to the sessions of users viewing the room.
func (g *Gateway) deliverToPresent(roomID int, payload []byte, excludeUserID int) {
	for _, user := range g.presence.UsersIn(roomID) {
		if user.ID == excludeUserID {
			continue
		}
		for _, session := range g.registry.SessionsFor(user.ID) {
			session.Enqueue(payload)
		}
	}
}

// deliverToMembers pushes to the live sessions of all room members,
// regardless of whether they are viewing the room.
func (g *Gateway) deliverToMembers(ctx context.Context, roomID int, payload []byte, excludeUserID int) {
	memberIDs, err := g.rooms.MemberIDs(ctx, roomID)
	if err != nil {
		log.Printf("member delivery skipped: room=%d: %v", roomID, err)
		return
	}
	for _, userID := range memberIDs {
		if userID == excludeUserID {
			continue
		}
		for _, session := range g.registry.SessionsFor(userID) {
			session.Enqueue(payload)
		}
	}
}
