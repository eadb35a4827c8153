package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores the dialogue position of a single user together with the
// transient fields collected so far. Fields are cleared on flow completion,
// restart, or cancel; a zero value means the field was never set.
type Session struct {
	State State

	// PendingSymbol is the currency chosen earlier in a multi-step flow.
	PendingSymbol string
	// PendingCondition is the chosen alert condition ("gte" or "lte").
	PendingCondition string
	// EditChatID and EditMessageID reference the prompt message that the
	// final step of a flow edits in place.
	EditChatID    int64
	EditMessageID int
}

// HasEditRef reports whether the session tracks a message to edit.
func (s Session) HasEditRef() bool {
	return s.EditChatID != 0 && s.EditMessageID != 0
}

// Manager orchestrates user sessions and FSM state transitions.
// There is at most one session per user; all mutation happens through
// Update so readers never see partially applied fields.
type Manager interface {
	// Get returns a copy of the user's session, or an idle one if none exists.
	Get(userID int64) Session
	// SetState changes only the dialogue state, keeping transient fields.
	SetState(userID int64, st State)
	// Update applies fn to the user's session under the session lock,
	// creating the session first if necessary.
	Update(userID int64, fn func(*Session))
	// Clear resets the session to idle, dropping all transient fields.
	Clear(userID int64)

	// InProgress reports whether the user has an active (non-idle) state.
	InProgress(userID int64) bool

	// Do runs fn while holding the user's event lock. Concurrent events for
	// the same user queue here instead of interleaving mid-transition.
	Do(userID int64, fn func() error) error
}
