package ws

import (
	"sort"
	"sync"

	"chat-core/internal/models"
)

// PresenceTracker records which room each online user is actively viewing.
// Entries are ephemeral: they exist only while the user is connected and
// are rebuilt from join_room events after a restart.
type PresenceTracker struct {
	mu    sync.RWMutex
	rooms map[int]map[int]models.UserRef
	users map[int]map[int]struct{}
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		rooms: make(map[int]map[int]models.UserRef),
		users: make(map[int]map[int]struct{}),
	}
}

// MarkPresent records the user as viewing the room. Refreshing an existing
// entry updates the stored user ref.
func (p *PresenceTracker) MarkPresent(roomID int, user models.UserRef) {
	p.mu.Lock()
	defer p.mu.Unlock()

	room, ok := p.rooms[roomID]
	if !ok {
		room = make(map[int]models.UserRef)
		p.rooms[roomID] = room
	}
	room[user.ID] = user

	set, ok := p.users[user.ID]
	if !ok {
		set = make(map[int]struct{})
		p.users[user.ID] = set
	}
	set[roomID] = struct{}{}
}

// MarkAbsent removes the user's presence in one room.
func (p *PresenceTracker) MarkAbsent(roomID, userID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(roomID, userID)
}

// ClearUser removes the user's presence everywhere and returns the rooms
// that were vacated. Called when the user's last session closes.
func (p *PresenceTracker) ClearUser(userID int) []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	roomIDs := make([]int, 0, len(p.users[userID]))
	for roomID := range p.users[userID] {
		roomIDs = append(roomIDs, roomID)
	}
	sort.Ints(roomIDs)
	for _, roomID := range roomIDs {
		p.removeLocked(roomID, userID)
	}
	return roomIDs
}

func (p *PresenceTracker) removeLocked(roomID, userID int) {
	if room, ok := p.rooms[roomID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(p.rooms, roomID)
		}
	}
	if set, ok := p.users[userID]; ok {
		delete(set, roomID)
		if len(set) == 0 {
			delete(p.users, userID)
		}
	}
}

// UsersIn returns the users viewing a room, ordered by username.
func (p *PresenceTracker) UsersIn(roomID int) []models.UserRef {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := make([]models.UserRef, 0, len(p.rooms[roomID]))
	for _, user := range p.rooms[roomID] {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// IsPresent reports whether the user is viewing the room.
func (p *PresenceTracker) IsPresent(roomID, userID int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.rooms[roomID][userID]
	return ok
}

// RoomsOf returns the rooms the user is currently viewing.
func (p *PresenceTracker) RoomsOf(userID int) []int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	roomIDs := make([]int, 0, len(p.users[userID]))
	for roomID := range p.users[userID] {
		roomIDs = append(roomIDs, roomID)
	}
	sort.Ints(roomIDs)
	return roomIDs
}
