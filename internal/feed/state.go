package feed

// State is the coarse lifecycle signal the shell renders from
type State int

const (
	StateInitialized State = iota
	StateLoading           // show placeholder rows
	StateEmpty             // show the empty overlay
	StatePosts
	StateRefreshing // show the refresh indicator
	StateLoadingNextPage
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateLoading:
		return "loading"
	case StateEmpty:
		return "empty"
	case StatePosts:
		return "posts"
	case StateRefreshing:
		return "refreshing"
	case StateLoadingNextPage:
		return "loadingNextPage"
	default:
		return "unknown"
	}
}

// Settled reports whether the state is a resting one (empty or posts)
func (s State) Settled() bool {
	return s == StateEmpty || s == StatePosts
}

// Busy reports whether a fetch is in flight
func (s State) Busy() bool {
	return s == StateLoading || s == StateRefreshing || s == StateLoadingNextPage
}

var transitions = map[State][]State{
	StateInitialized:     {StateLoading},
	StateLoading:         {StateEmpty, StatePosts},
	StateEmpty:           {StatePosts, StateRefreshing, StateLoadingNextPage},
	StatePosts:           {StateEmpty, StateRefreshing, StateLoadingNextPage},
	StateRefreshing:      {StateEmpty, StatePosts},
	StateLoadingNextPage: {StateEmpty, StatePosts, StateRefreshing},
}

// CanTransition reports whether from -> to is a legal move. Staying in the
// same state is always allowed.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// settledFor returns the resting state for a row count
func settledFor(rows int) State {
	if rows == 0 {
		return StateEmpty
	}
	return StatePosts
}
