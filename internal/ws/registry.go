package ws

import "sync"

// Registry maps session ids to live sessions and users to their session
// sets. It is the single owner of session lifetime bookkeeping.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[int]map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byUser:   make(map[int]map[string]*Session),
	}
}

// Add registers a session. The second return reports whether this is the
// user's first live session, i.e. the user just came online.
func (r *Registry) Add(s *Session) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID] = s
	set, ok := r.byUser[s.UserID]
	if !ok {
		set = make(map[string]*Session)
		r.byUser[s.UserID] = set
	}
	first = len(set) == 0
	set[s.ID] = s
	return first
}

// Remove drops a session. The return reports whether this was the user's
// last live session, i.e. the user just went offline.
func (r *Registry) Remove(s *Session) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return false
	}
	delete(r.sessions, s.ID)

	set := r.byUser[s.UserID]
	delete(set, s.ID)
	if len(set) == 0 {
		delete(r.byUser, s.UserID)
		return true
	}
	return false
}

// SessionsFor returns the user's live sessions.
func (r *Registry) SessionsFor(userID int) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	sessions := make([]*Session, 0, len(set))
	for _, s := range set {
		sessions = append(sessions, s)
	}
	return sessions
}

// IsOnline reports whether the user has at least one live session.
func (r *Registry) IsOnline(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// SessionCount returns the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
