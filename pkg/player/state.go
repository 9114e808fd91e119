package player

import "time"

// State represents the externally visible state of the playback coordinator
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateReady
	StatePlaying
	StateClosed
)

// String returns the string representation of the coordinator state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Action is a discrete command delivered to the coordinator
type Action int

const (
	ActionNone Action = iota
	ActionPlay
	ActionPause
	ActionStop
	ActionClose
	ActionPrefetch
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionPlay:
		return "play"
	case ActionPause:
		return "pause"
	case ActionStop:
		return "stop"
	case ActionClose:
		return "close"
	case ActionPrefetch:
		return "prefetch"
	default:
		return "none"
	}
}

// ParseAction maps an action tag to an Action. An empty or unrecognized
// tag is treated as a prefetch request.
func ParseAction(tag string) Action {
	switch tag {
	case "play":
		return ActionPlay
	case "pause":
		return ActionPause
	case "stop":
		return ActionStop
	case "close":
		return ActionClose
	case "prefetch":
		return ActionPrefetch
	default:
		return ActionPrefetch
	}
}

// Status is a point-in-time snapshot of the coordinator, as exposed
// over the control surface.
type Status struct {
	State       string    `json:"state"`
	IsPlaying   bool      `json:"is_playing"`
	IsPreparing bool      `json:"is_preparing"`
	IsPrepared  bool      `json:"is_prepared"`
	Artist      string    `json:"artist"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"start_time,omitempty"`
	ErrorCount  int       `json:"error_count"`
	LastError   string    `json:"last_error,omitempty"`
}

// MetricsStats contains aggregated metrics data
type MetricsStats struct {
	TotalPlaybackTime  time.Duration `json:"total_playback_time"`
	AveragePrepareTime time.Duration `json:"average_prepare_time"`
	ErrorCount         int           `json:"error_count"`
	SuccessfulPlays    int           `json:"successful_plays"`
}
