package player

// UtteranceEventType enumerates the lifecycle of a local utterance.
type UtteranceEventType int

const (
	// UtteranceStarted indicates the utterance became audible.
	UtteranceStarted UtteranceEventType = iota
	// UtterancePaused indicates the utterance was halted mid-way.
	UtterancePaused
	// UtteranceResumed indicates a paused utterance continued.
	UtteranceResumed
	// UtteranceFinished indicates the utterance played to its end.
	UtteranceFinished
	// UtteranceCancelled indicates the utterance was discarded before its
	// end. Terminal, and never followed by UtteranceFinished.
	UtteranceCancelled
)

// String returns the string representation of the event type.
func (t UtteranceEventType) String() string {
	switch t {
	case UtteranceStarted:
		return "started"
	case UtterancePaused:
		return "paused"
	case UtteranceResumed:
		return "resumed"
	case UtteranceFinished:
		return "finished"
	case UtteranceCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// UtteranceEvent reports a lifecycle change for one utterance. The book and
// index identify which paragraph the event belongs to, so stale events from
// a superseded utterance can be discarded.
type UtteranceEvent struct {
	Type   UtteranceEventType
	BookID string
	Index  int
	Err    error // Set on cancelled events caused by a failure
}

// eventKind enumerates internal session events delivered to the owner loop.
type eventKind int

const (
	evFinished eventKind = iota // remote resource drained to its end
	evRenderErr                 // render-and-play task failed
)

// sessionEvent is the internal message reconciling asynchronous completions
// with the single owner loop. The generation tag identifies which playback
// task produced it; events from superseded generations are dropped.
type sessionEvent struct {
	kind   eventKind
	bookID string
	index  int
	gen    uint64
	err    error
}
