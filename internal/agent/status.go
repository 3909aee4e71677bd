package agent

import "fmt"

// Status is the lifecycle state of a train agent.
type Status int

const (
	// StatusIdle is the initial state, also reached after a completed run.
	StatusIdle Status = iota
	// StatusMoving means the agent advances along its path each tick.
	StatusMoving
	// StatusStopped is terminal until reset: a hazard resolved by an operator alert.
	StatusStopped
	// StatusCrashed is terminal until reset: a hazard that was not resolved in time.
	StatusCrashed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusMoving:
		return "moving"
	case StatusStopped:
		return "stopped"
	case StatusCrashed:
		return "crashed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the status can only be left via reset.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusCrashed
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
