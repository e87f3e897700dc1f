package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-core/internal/mocks"
	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

type gatewayFixture struct {
	gateway  *Gateway
	registry *Registry
	rooms    *mocks.RoomRepositoryMock
	messages *mocks.MessageRepositoryMock
	users    *mocks.UserRepositoryMock
}

func newGatewayFixture() *gatewayFixture {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	registry := NewRegistry()
	presence := NewPresenceTracker()
	typing := NewTypingCoordinator(time.Minute)
	fanout := NewFanoutEngine(rooms, messages, registry)

	return &gatewayFixture{
		gateway:  NewGateway(registry, presence, typing, fanout, rooms, users),
		registry: registry,
		rooms:    rooms,
		messages: messages,
		users:    users,
	}
}

func frame(event string, data any) []byte {
	raw, _ := json.Marshal(data)
	payload, _ := json.Marshal(envelope{Event: event, Data: raw})
	return payload
}

func TestGatewayJoinRoom(t *testing.T) {
	f := newGatewayFixture()
	ctx := context.Background()

	alice := NewSession(1, "alice", "", nil)
	bob := NewSession(2, "bob", "", nil)
	f.registry.Add(alice)
	f.registry.Add(bob)
	f.gateway.Presence().MarkPresent(7, models.UserRef{ID: 2, Username: "bob"})

	f.rooms.On("GetRoom", mock.Anything, 7).Return(models.Room{ID: 7, Name: "general"}, nil)
	f.rooms.On("IsMember", mock.Anything, 7, 1).Return(true, nil)
	f.rooms.On("MemberCount", mock.Anything, 7).Return(3, nil)

	f.gateway.HandleEvent(ctx, alice, frame(EventJoinRoom, RoomPayload{RoomID: 7}))

	frames := drainFrames(t, alice)
	require.Len(t, frames, 1)
	require.Equal(t, EventRoomJoined, frames[0].Event)

	var joined RoomJoinedPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &joined))
	require.Equal(t, 7, joined.RoomID)
	require.Equal(t, "general", joined.RoomName)
	require.Equal(t, 3, joined.MemberCount)
	require.Len(t, joined.OnlineMembers, 2)

	// bob, already viewing the room, is told alice arrived.
	bobFrames := drainFrames(t, bob)
	require.Len(t, bobFrames, 1)
	require.Equal(t, EventUserJoined, bobFrames[0].Event)

	require.True(t, f.gateway.Presence().IsPresent(7, 1))
}

func TestGatewayJoinRoomNotFound(t *testing.T) {
	f := newGatewayFixture()
	alice := NewSession(1, "alice", "", nil)
	f.registry.Add(alice)

	f.rooms.On("GetRoom", mock.Anything, 99).Return(nil, repositories.ErrRoomNotFound)

	f.gateway.HandleEvent(context.Background(), alice, frame(EventJoinRoom, RoomPayload{RoomID: 99}))

	frames := drainFrames(t, alice)
	require.Len(t, frames, 1)
	require.Equal(t, EventError, frames[0].Event)
	require.False(t, f.gateway.Presence().IsPresent(99, 1))
}

func TestGatewayJoinRoomNonMember(t *testing.T) {
	f := newGatewayFixture()
	alice := NewSession(1, "alice", "", nil)
	f.registry.Add(alice)

	f.rooms.On("GetRoom", mock.Anything, 7).Return(models.Room{ID: 7, Name: "general"}, nil)
	f.rooms.On("IsMember", mock.Anything, 7, 1).Return(false, nil)

	f.gateway.HandleEvent(context.Background(), alice, frame(EventJoinRoom, RoomPayload{RoomID: 7}))

	frames := drainFrames(t, alice)
	require.Len(t, frames, 1)
	require.Equal(t, EventError, frames[0].Event)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &p))
	require.Equal(t, ErrNotMember.Error(), p.Message)
	require.False(t, f.gateway.Presence().IsPresent(7, 1))
}

func TestGatewayTypingUpdateExcludesActor(t *testing.T) {
	f := newGatewayFixture()
	alice := NewSession(1, "alice", "", nil)
	bob := NewSession(2, "bob", "", nil)
	f.registry.Add(alice)
	f.registry.Add(bob)
	f.gateway.Presence().MarkPresent(7, models.UserRef{ID: 1, Username: "alice"})
	f.gateway.Presence().MarkPresent(7, models.UserRef{ID: 2, Username: "bob"})

	f.gateway.HandleEvent(context.Background(), alice, frame(EventTypingStart, RoomPayload{RoomID: 7}))

	bobFrames := drainFrames(t, bob)
	require.Len(t, bobFrames, 1)
	require.Equal(t, EventTypingUpdate, bobFrames[0].Event)

	var update TypingUpdatePayload
	require.NoError(t, json.Unmarshal(bobFrames[0].Data, &update))
	require.Equal(t, []string{"alice"}, update.TypingUsers)

	// The actor's own update never lists themself.
	aliceFrames := drainFrames(t, alice)
	require.Len(t, aliceFrames, 1)
	var own TypingUpdatePayload
	require.NoError(t, json.Unmarshal(aliceFrames[0].Data, &own))
	require.Empty(t, own.TypingUsers)
}

func TestGatewayTypingRequiresPresence(t *testing.T) {
	f := newGatewayFixture()
	alice := NewSession(1, "alice", "", nil)
	bob := NewSession(2, "bob", "", nil)
	f.registry.Add(alice)
	f.registry.Add(bob)
	f.gateway.Presence().MarkPresent(7, models.UserRef{ID: 2, Username: "bob"})

	// alice never joined room 7; her typing event must leave no trace.
	f.gateway.HandleEvent(context.Background(), alice, frame(EventTypingStart, RoomPayload{RoomID: 7}))

	require.Empty(t, drainFrames(t, bob))
	require.Empty(t, drainFrames(t, alice))
}

func TestGatewayDisconnectLastSession(t *testing.T) {
	f := newGatewayFixture()
	ctx := context.Background()

	alice := NewSession(1, "alice", "", nil)
	bob := NewSession(2, "bob", "", nil)
	f.registry.Add(alice)
	f.registry.Add(bob)
	f.gateway.Presence().MarkPresent(7, models.UserRef{ID: 1, Username: "alice"})
	f.gateway.Presence().MarkPresent(7, models.UserRef{ID: 2, Username: "bob"})

	f.rooms.On("RoomIDsFor", mock.Anything, 1).Return([]int{7}, nil)
	f.rooms.On("MemberIDs", mock.Anything, 7).Return([]int{1, 2}, nil)

	f.gateway.Disconnect(ctx, alice)

	require.False(t, f.registry.IsOnline(1))
	require.False(t, f.gateway.Presence().IsPresent(7, 1))

	events := make(map[string]int)
	for _, env := range drainFrames(t, bob) {
		events[env.Event]++
	}
	require.Equal(t, 1, events[EventUserLeft])
	require.Equal(t, 1, events[EventUserStatusUpdate])
}

func TestGatewayDisconnectKeepsPresenceWhileSessionsRemain(t *testing.T) {
	f := newGatewayFixture()
	ctx := context.Background()

	phone := NewSession(1, "alice", "", nil)
	laptop := NewSession(1, "alice", "", nil)
	f.registry.Add(phone)
	f.registry.Add(laptop)
	f.gateway.Presence().MarkPresent(7, models.UserRef{ID: 1, Username: "alice"})

	f.gateway.Disconnect(ctx, phone)

	require.True(t, f.registry.IsOnline(1))
	require.True(t, f.gateway.Presence().IsPresent(7, 1))
	f.rooms.AssertNotCalled(t, "RoomIDsFor", mock.Anything, 1)
}

func TestGatewaySendMessageRequiresMembership(t *testing.T) {
	f := newGatewayFixture()
	alice := NewSession(1, "alice", "", nil)
	f.registry.Add(alice)

	f.rooms.On("IsMember", mock.Anything, 7, 1).Return(false, nil)

	f.gateway.HandleEvent(context.Background(), alice, frame(EventSendMessage, SendMessagePayload{RoomID: 7, Content: "hi"}))

	frames := drainFrames(t, alice)
	require.Len(t, frames, 1)
	require.Equal(t, EventError, frames[0].Event)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGatewayUnknownEvent(t *testing.T) {
	f := newGatewayFixture()
	alice := NewSession(1, "alice", "", nil)
	f.registry.Add(alice)

	f.gateway.HandleEvent(context.Background(), alice, []byte(`{"event":"self_destruct","data":{}}`))

	frames := drainFrames(t, alice)
	require.Len(t, frames, 1)
	require.Equal(t, EventError, frames[0].Event)
}

func TestGatewayPing(t *testing.T) {
	f := newGatewayFixture()
	alice := NewSession(1, "alice", "", nil)
	f.registry.Add(alice)

	f.gateway.HandleEvent(context.Background(), alice, []byte(`{"event":"ping"}`))

	frames := drainFrames(t, alice)
	require.Len(t, frames, 1)
	require.Equal(t, EventPong, frames[0].Event)
}

func TestGatewayMembershipRevoked(t *testing.T) {
	f := newGatewayFixture()
	alice := NewSession(1, "alice", "", nil)
	bob := NewSession(2, "bob", "", nil)
	f.registry.Add(alice)
	f.registry.Add(bob)
	f.gateway.Presence().MarkPresent(7, models.UserRef{ID: 1, Username: "alice"})
	f.gateway.Presence().MarkPresent(7, models.UserRef{ID: 2, Username: "bob"})

	f.gateway.MembershipRevoked(7, 1, "alice")

	require.False(t, f.gateway.Presence().IsPresent(7, 1))

	bobFrames := drainFrames(t, bob)
	require.Len(t, bobFrames, 2)
	require.Equal(t, EventTypingUpdate, bobFrames[0].Event)
	require.Equal(t, EventUserLeft, bobFrames[1].Event)
}

func TestGatewayMessageDeleted(t *testing.T) {
	f := newGatewayFixture()
	bob := NewSession(2, "bob", "", nil)
	f.registry.Add(bob)
	f.gateway.Presence().MarkPresent(7, models.UserRef{ID: 2, Username: "bob"})

	f.gateway.MessageDeleted(7, 42)

	frames := drainFrames(t, bob)
	require.Len(t, frames, 1)
	require.Equal(t, EventMessageDeleted, frames[0].Event)

	var p MessageDeletedPayload
	require.NoError(t, json.Unmarshal(frames[0].Data, &p))
	require.Equal(t, int64(42), p.MessageID)
	require.Equal(t, 7, p.RoomID)
}

func TestGatewayConnectBroadcastsOnlineOnce(t *testing.T) {
	f := newGatewayFixture()
	ctx := context.Background()

	bob := NewSession(2, "bob", "", nil)
	f.registry.Add(bob)

	f.users.On("UpsertUser", mock.Anything, 1, "alice", "").Return(nil)
	f.rooms.On("RoomIDsFor", mock.Anything, 1).Return([]int{7}, nil)
	f.rooms.On("MemberIDs", mock.Anything, 7).Return([]int{1, 2}, nil)

	first := NewSession(1, "alice", "", nil)
	second := NewSession(1, "alice", "", nil)
	f.gateway.Connect(ctx, first)
	f.gateway.Connect(ctx, second)

	var statusFrames int
	for _, env := range drainFrames(t, bob) {
		if env.Event == EventUserStatusUpdate {
			statusFrames++
		}
	}
	require.Equal(t, 1, statusFrames, "only the first session flips the online flag")
}

func TestDecodeInboundMalformedFrame(t *testing.T) {
	for i, raw := range []string{
		`not json`,
		`{"event":"join_room","data":"nope"}`,
	} {
		if _, err := DecodeInbound([]byte(raw)); err == nil {
			t.Fatalf("case %d: expected decode error", i)
		}
	}
}
