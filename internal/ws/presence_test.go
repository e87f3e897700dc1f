package ws

import (
	"testing"

	"chat-core/internal/models"
)

func TestPresenceMarkAndClear(t *testing.T) {
	presence := NewPresenceTracker()

	presence.MarkPresent(1, models.UserRef{ID: 10, Username: "alice"})
	presence.MarkPresent(2, models.UserRef{ID: 10, Username: "alice"})
	presence.MarkPresent(1, models.UserRef{ID: 11, Username: "bob"})

	if !presence.IsPresent(1, 10) {
		t.Fatalf("expected alice present in room 1")
	}
	if got := len(presence.UsersIn(1)); got != 2 {
		t.Fatalf("expected 2 users in room 1, got %d", got)
	}

	rooms := presence.ClearUser(10)
	if len(rooms) != 2 || rooms[0] != 1 || rooms[1] != 2 {
		t.Fatalf("expected vacated rooms [1 2], got %v", rooms)
	}
	if presence.IsPresent(1, 10) || presence.IsPresent(2, 10) {
		t.Fatalf("expected alice absent everywhere after clear")
	}
	if !presence.IsPresent(1, 11) {
		t.Fatalf("bob must be unaffected")
	}
}

func TestPresenceUsersInSortedByUsername(t *testing.T) {
	presence := NewPresenceTracker()

	presence.MarkPresent(5, models.UserRef{ID: 3, Username: "carol"})
	presence.MarkPresent(5, models.UserRef{ID: 1, Username: "alice"})
	presence.MarkPresent(5, models.UserRef{ID: 2, Username: "bob"})

	users := presence.UsersIn(5)
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	for i, want := range []string{"alice", "bob", "carol"} {
		if users[i].Username != want {
			t.Fatalf("expected %s at position %d, got %s", want, i, users[i].Username)
		}
	}
}

func TestPresenceMarkAbsentIdempotent(t *testing.T) {
	presence := NewPresenceTracker()

	presence.MarkAbsent(1, 99)

	presence.MarkPresent(1, models.UserRef{ID: 99, Username: "dave"})
	presence.MarkAbsent(1, 99)
	presence.MarkAbsent(1, 99)

	if presence.IsPresent(1, 99) {
		t.Fatalf("expected absent after MarkAbsent")
	}
	if got := presence.RoomsOf(99); len(got) != 0 {
		t.Fatalf("expected no rooms, got %v", got)
	}
}
