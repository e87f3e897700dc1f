package ws

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultTypingTTL matches the client's composing debounce.
const DefaultTypingTTL = 2 * time.Second

type typingMark struct {
	username string
	expiry   time.Time
}

// TypingCoordinator keeps short-lived composing marks per room. Marks expire
// on their own, so a client that vanishes mid-keystroke cannot leave a stale
// indicator behind.
type TypingCoordinator struct {
	mu    sync.Mutex
	ttl   time.Duration
	marks map[int]map[int]typingMark
}

// NewTypingCoordinator creates a coordinator with the given mark lifetime.
func NewTypingCoordinator(ttl time.Duration) *TypingCoordinator {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingCoordinator{
		ttl:   ttl,
		marks: make(map[int]map[int]typingMark),
	}
}

// SetTyping inserts or refreshes the user's mark on start, removes it on
// stop.
func (t *TypingCoordinator) SetTyping(roomID, userID int, username string, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if typing {
		room, ok := t.marks[roomID]
		if !ok {
			room = make(map[int]typingMark)
			t.marks[roomID] = room
		}
		room[userID] = typingMark{username: username, expiry: time.Now().Add(t.ttl)}
		return
	}

	t.removeLocked(roomID, userID)
}

// ClearUser drops the user's marks everywhere and returns the affected
// rooms, so the caller can push fresh typing updates.
func (t *TypingCoordinator) ClearUser(userID int) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var roomIDs []int
	for roomID, room := range t.marks {
		if _, ok := room[userID]; ok {
			roomIDs = append(roomIDs, roomID)
		}
	}
	sort.Ints(roomIDs)
	for _, roomID := range roomIDs {
		t.removeLocked(roomID, userID)
	}
	return roomIDs
}

// TypingUsersIn returns usernames currently composing in the room, sorted,
// with the excluded user filtered out. Expired marks are dropped on read.
func (t *TypingCoordinator) TypingUsersIn(roomID, excludeUserID int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireLocked(roomID, time.Now())

	usernames := make([]string, 0, len(t.marks[roomID]))
	for userID, mark := range t.marks[roomID] {
		if userID == excludeUserID {
			continue
		}
		usernames = append(usernames, mark.username)
	}
	sort.Strings(usernames)
	return usernames
}

// Run sweeps expired marks periodically until the context is cancelled,
// invoking onExpire for every room whose typing set changed. Lazy expiry on
// read already keeps answers correct; the sweep exists so watchers of a
// quiet room still see the indicator clear.
func (t *TypingCoordinator) Run(ctx context.Context, interval time.Duration, onExpire func(roomID int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, roomID := range t.sweep(now) {
				if onExpire != nil {
					onExpire(roomID)
				}
			}
		}
	}
}

func (t *TypingCoordinator) sweep(now time.Time) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changed []int
	for roomID := range t.marks {
		if t.expireLocked(roomID, now) {
			changed = append(changed, roomID)
		}
	}
	sort.Ints(changed)
	return changed
}

func (t *TypingCoordinator) expireLocked(roomID int, now time.Time) bool {
	room, ok := t.marks[roomID]
	if !ok {
		return false
	}
	changed := false
	for userID, mark := range room {
		if now.After(mark.expiry) {
			delete(room, userID)
			changed = true
		}
	}
	if len(room) == 0 {
		delete(t.marks, roomID)
	}
	return changed
}

func (t *TypingCoordinator) removeLocked(roomID, userID int) {
	if room, ok := t.marks[roomID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(t.marks, roomID)
		}
	}
}
