package tiergate

// State is a dispatch state machine node. One query moves
// CheckCache → Classify → SelectModel → CallBackend → StoreCache → Done,
// with failures terminating in Failed and backend errors looping back to
// SelectModel until the retry budget is spent.
type State int

const (
	StateCheckCache State = iota
	StateClassify
	StateSelectModel
	StateCallBackend
	StateStoreCache
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCheckCache:
		return "check_cache"
	case StateClassify:
		return "classify"
	case StateSelectModel:
		return "select_model"
	case StateCallBackend:
		return "call_backend"
	case StateStoreCache:
		return "store_cache"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// terminal reports whether a state ends the query.
func (s State) terminal() bool {
	return s == StateDone || s == StateFailed
}

// transition is the pure transition function. ok is the outcome of the
// step just executed in state s: a cache hit, a successful classification,
// a selected candidate, or a successful backend call.
func transition(s State, ok bool) State {
	switch s {
	case StateCheckCache:
		if ok {
			return StateDone
		}
		return StateClassify
	case StateClassify:
		if ok {
			return StateSelectModel
		}
		return StateFailed
	case StateSelectModel:
		if ok {
			return StateCallBackend
		}
		return StateFailed
	case StateCallBackend:
		if ok {
			return StateStoreCache
		}
		return StateSelectModel
	case StateStoreCache:
		// A failed store never aborts the request.
		return StateDone
	default:
		return StateFailed
	}
}

// dispatchState is the per-query state record. It exists only for the
// lifetime of one query and is never shared between queries.
type dispatchState struct {
	id    string
	query Query
	state State

	classified bool
	tier       Tier

	candidates []Candidate
	retryCount int
	selected   Candidate

	cacheHit   bool
	response   string
	invocation Invocation
	err        error
}
