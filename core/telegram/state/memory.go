package state

import "sync"

type userSession struct {
	// eventMu serializes whole events for one user; sessions for different
	// users never contend on it.
	eventMu sync.Mutex
	sess    Session
}

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*userSession
}

// NewMemoryManager constructs an in-memory Manager implementation.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]*userSession),
	}
}

func (m *memoryManager) entry(userID int64) *userSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok {
		e = &userSession{sess: Session{State: StateIdle}}
		m.sessions[userID] = e
	}
	return e
}

// Get returns a copy of the session, or a default idle session if none exists.
func (m *memoryManager) Get(userID int64) Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.sessions[userID]; ok {
		return e.sess
	}
	return Session{State: StateIdle}
}

// SetState updates only the dialogue state, creating the session if necessary.
func (m *memoryManager) SetState(userID int64, st State) {
	m.Update(userID, func(s *Session) { s.State = st })
}

// Update applies fn to the user's session under the manager lock.
func (m *memoryManager) Update(userID int64, fn func(*Session)) {
	e := m.entry(userID)
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&e.sess)
}

// Clear resets the session to idle. The entry stays in the map so the
// per-user event lock keeps its identity: an event queued behind Do when the
// clear happens still contends on the same mutex afterwards.
func (m *memoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[userID]; ok {
		e.sess = Session{State: StateIdle}
	}
}

// InProgress reports whether the user currently has an active FSM state.
func (m *memoryManager) InProgress(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[userID]
	return ok && e.sess.State != StateIdle
}

// Do runs fn while holding the per-user event lock. A second event arriving
// for the same user while fn runs blocks here until fn returns.
func (m *memoryManager) Do(userID int64, fn func() error) error {
	e := m.entry(userID)
	e.eventMu.Lock()
	defer e.eventMu.Unlock()
	return fn()
}
