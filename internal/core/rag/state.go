package rag

// State is the lifecycle position of one question-answering turn.
type State int

const (
	StateIdle State = iota
	StateKBLoading
	StateTranslating
	StateRetrieving
	StateGenerating
	StateStreaming
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateKBLoading:   "kb_loading",
	StateTranslating: "translating",
	StateRetrieving:  "retrieving",
	StateGenerating:  "generating",
	StateStreaming:   "streaming",
	StateCompleted:   "completed",
	StateFailed:      "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// next lists the forward transition of every non-terminal state. Failed is
// reachable from all of them.
var next = map[State]State{
	StateIdle:        StateKBLoading,
	StateKBLoading:   StateTranslating,
	StateTranslating: StateRetrieving,
	StateRetrieving:  StateGenerating,
	StateGenerating:  StateStreaming,
	StateStreaming:   StateCompleted,
}

func validTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[from] == to
}
