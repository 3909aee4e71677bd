package sim

import "railsim/internal/agent"

// DefaultWarningWindow is the progress interval before a hazard threshold
// during which an operator alert still averts the crash.
const DefaultWarningWindow = 0.02

// Params are the per-tick simulation constants. They never change mid-run.
type Params struct {
	Step   float64 // progress advanced per tick, > 0
	Window float64 // warning window before the hazard threshold
}

// CommandKind identifies an external control command.
type CommandKind int

const (
	// CmdStart puts every agent at the start of its path in the moving state.
	CmdStart CommandKind = iota
	// CmdReset returns every agent to idle at the start of its path.
	CmdReset
	// CmdRaiseAlert flags one moving agent's hazard as acknowledged.
	CmdRaiseAlert
)

// Command is one queued intervention or control action. Commands are applied
// atomically between ticks, never during one.
type Command struct {
	Kind    CommandKind
	AgentID string
}

// TickAgent advances one agent by one step and returns its next state.
// Non-moving agents are returned unchanged. The stopped check runs strictly
// before the crashed check, so an alert raised in the tick that would cross
// the threshold still saves the agent.
func TickAgent(a agent.Agent, p Params) agent.Agent {
	if a.Status != agent.StatusMoving {
		return a
	}
	next := a.Progress + p.Step

	if a.HasHazard {
		if next >= a.HazardThreshold-p.Window && next < a.HazardThreshold && a.AlertActive {
			a.Status = agent.StatusStopped
			a.Progress = next
			a.Position, a.Bearing = a.Path.At(next)
			return a
		}
		if next >= a.HazardThreshold && !a.AlertActive {
			a.Status = agent.StatusCrashed
			// pin to the threshold, not the overshoot
			a.Progress = a.HazardThreshold
			a.Position, a.Bearing = a.Path.At(a.HazardThreshold)
			return a
		}
	}

	if next >= 1 {
		a.Status = agent.StatusIdle
		a.Progress = 1
		a.Position, a.Bearing = a.Path.At(1)
		return a
	}

	a.Progress = next
	a.Position, a.Bearing = a.Path.At(next)
	return a
}

// Apply applies one command to a snapshot and returns the next snapshot.
// Alerts for unknown agents or agents that are not moving are silent no-ops:
// a late or redundant alert is a legitimate race, not an error.
func Apply(agents []agent.Agent, cmd Command) []agent.Agent {
	out := make([]agent.Agent, len(agents))
	for i, a := range agents {
		switch cmd.Kind {
		case CmdStart:
			a = a.Reset(agent.StatusMoving)
		case CmdReset:
			a = a.Reset(agent.StatusIdle)
		case CmdRaiseAlert:
			if a.ID == cmd.AgentID && a.Status == agent.StatusMoving {
				a.AlertActive = true
			}
		}
		out[i] = a
	}
	return out
}

// Advance applies queued commands in order, then ticks every agent once
// against the same post-command snapshot.
func Advance(agents []agent.Agent, cmds []Command, p Params) []agent.Agent {
	for _, cmd := range cmds {
		agents = Apply(agents, cmd)
	}
	out := make([]agent.Agent, len(agents))
	for i, a := range agents {
		out[i] = TickAgent(a, p)
	}
	return out
}

// MovingCount returns how many agents are currently moving.
func MovingCount(agents []agent.Agent) int {
	n := 0
	for _, a := range agents {
		if a.Status == agent.StatusMoving {
			n++
		}
	}
	return n
}

// AnyMoving reports whether at least one agent still advances.
func AnyMoving(agents []agent.Agent) bool {
	return MovingCount(agents) > 0
}
