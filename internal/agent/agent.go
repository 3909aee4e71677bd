package agent

import (
	"fmt"

	"railsim/internal/geo"
)

// Definition is the static scenario configuration for one train.
type Definition struct {
	ID              string
	Path            Path
	HasHazard       bool
	HazardThreshold float64 // progress in (0,1) at which an unresolved hazard crashes
}

// Agent is one simulated train. It is a value: the simulation replaces whole
// records instead of mutating shared state. Position and bearing are always
// recomputable from Progress and Path and have no independent source of truth.
type Agent struct {
	ID              string
	Path            Path
	Progress        float64
	Position        geo.Point
	Bearing         float64
	Status          Status
	HasHazard       bool
	HazardThreshold float64
	AlertActive     bool
}

// New validates a definition and constructs an idle agent positioned at the
// start of its path. Validation failures are fatal to this agent only; the
// rest of the scenario keeps loading.
func New(def Definition) (Agent, error) {
	if def.ID == "" {
		return Agent{}, fmt.Errorf("agent id is required")
	}
	if err := def.Path.Validate(); err != nil {
		return Agent{}, fmt.Errorf("agent %s: %w", def.ID, err)
	}
	if def.HasHazard && (def.HazardThreshold <= 0 || def.HazardThreshold >= 1) {
		return Agent{}, fmt.Errorf("agent %s: hazard threshold must be in (0,1), got %v", def.ID, def.HazardThreshold)
	}
	a := Agent{
		ID:              def.ID,
		Path:            def.Path,
		Status:          StatusIdle,
		HasHazard:       def.HasHazard,
		HazardThreshold: def.HazardThreshold,
	}
	a.Position, a.Bearing = a.Path.At(0)
	return a, nil
}

// Reset returns the agent at the start of its path in the given status with
// the alert cleared. Used for both the start command (StatusMoving) and the
// reset command (StatusIdle).
func (a Agent) Reset(status Status) Agent {
	a.Progress = 0
	a.Status = status
	a.AlertActive = false
	a.Position, a.Bearing = a.Path.At(0)
	return a
}

// HazardPoint returns the location of the agent's hazard along its path.
// Only meaningful when HasHazard is true.
func (a Agent) HazardPoint() geo.Point {
	p, _ := a.Path.At(a.HazardThreshold)
	return p
}
