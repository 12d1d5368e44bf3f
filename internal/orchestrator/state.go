package orchestrator

import "fmt"

type State int32

const (
	StateIdle State = iota
	StateResuming
	StatePlanning
	StateFetching
	StateDecoding
	StateCommitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResuming:
		return "resuming"
	case StatePlanning:
		return "planning"
	case StateFetching:
		return "fetching"
	case StateDecoding:
		return "decoding"
	case StateCommitting:
		return "committing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
