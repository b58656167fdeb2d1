package player

// SessionState represents the current state of a playback session.
type SessionState int

const (
	// StateIdle indicates no playback has started for the loaded book.
	StateIdle SessionState = iota
	// StateLoading indicates audio for the current paragraph is being
	// fetched. Transient; not user-visible as a pause.
	StateLoading
	// StatePlaying indicates audio is audibly playing.
	StatePlaying
	// StatePaused indicates playback is halted at the current paragraph.
	StatePaused
	// StateFinished indicates the last paragraph completed.
	StateFinished
)

// String returns the string representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// StateMachine validates transitions between session states.
type StateMachine struct {
	current     SessionState
	transitions map[SessionState][]SessionState
	onEnter     map[SessionState]func()
}

// NewStateMachine creates a state machine starting at StateIdle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[SessionState][]SessionState{
			StateIdle:     {StateLoading, StatePlaying},
			StateLoading:  {StatePlaying, StatePaused, StateLoading, StateFinished, StateIdle},
			StatePlaying:  {StatePaused, StateLoading, StateFinished, StateIdle},
			StatePaused:   {StatePlaying, StateLoading, StateIdle},
			StateFinished: {StateLoading, StateIdle},
		},
		onEnter: make(map[SessionState]func()),
	}
}

// Transition attempts to move to the given state. It returns false and
// leaves the machine unchanged when the transition is invalid.
func (sm *StateMachine) Transition(to SessionState) bool {
	if sm.current == to {
		return true
	}
	valid := false
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	sm.current = to
	if fn, ok := sm.onEnter[to]; ok && fn != nil {
		fn()
	}
	return true
}

// Reset forces the machine back to StateIdle, used when a new book replaces
// the current one wholesale.
func (sm *StateMachine) Reset() {
	sm.current = StateIdle
}

// Current returns the current state.
func (sm *StateMachine) Current() SessionState {
	return sm.current
}

// OnEnter registers a callback invoked after entering a state.
func (sm *StateMachine) OnEnter(state SessionState, fn func()) {
	sm.onEnter[state] = fn
}
