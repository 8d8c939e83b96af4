package player

// adapter lifecycle state
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateEnded
	StateError
	StateRecovering
	// terminal until Retry is called
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	case StateRecovering:
		return "recovering"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// true once media is loaded and controls work
func (s State) Ready() bool {
	switch s {
	case StateReady, StatePlaying, StatePaused, StateEnded:
		return true
	}
	return false
}

// true while an embed exists that is not failing
func (s State) healthy() bool {
	return s == StateLoading || s.Ready()
}

// true when the player must not be polled
func (s State) Failing() bool {
	return s == StateError || s == StateRecovering || s == StateUnavailable
}

// live playback state, owned by the adapter
type PlaybackSession struct {
	IsReady     bool
	IsPlaying   bool
	CurrentTime float64
	Duration    float64
	Volume      int
}
