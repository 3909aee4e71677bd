package sim

import (
	"context"
	"log"
	"sync"
	"time"

	"railsim/internal/agent"
	"railsim/internal/geo"
	"railsim/internal/metrics"
	"railsim/internal/publisher"
)

// StateSink receives the full agent snapshot after every tick and after every
// applied command batch. Sinks must not block the tick loop.
type StateSink interface {
	PublishStates(states []publisher.AgentState)
}

// ReloadFunc re-reads the scenario from its source. Used on reset so an
// updated scenario is picked up without a restart.
type ReloadFunc func(ctx context.Context) ([]agent.Agent, error)

// Engine owns the only mutable copy of the agent collection and runs the tick
// loop. External commands are buffered and applied between ticks; no caller
// ever mutates an agent directly.
type Engine struct {
	scenario string
	params   Params
	interval time.Duration
	sinks    []StateSink
	metrics  *metrics.Collector
	reload   ReloadFunc

	mu      sync.Mutex
	pending []Command
	agents  []agent.Agent
	tick    uint64

	wake chan struct{}

	// speed estimation state, touched only by the run loop
	lastPub map[string]pubSample
}

type pubSample struct {
	at  time.Time
	pos geo.Point
}

func NewEngine(scenario string, agents []agent.Agent, params Params, interval time.Duration, sinks []StateSink, m *metrics.Collector, reload ReloadFunc) *Engine {
	if params.Window <= 0 {
		params.Window = DefaultWarningWindow
	}
	e := &Engine{
		scenario: scenario,
		params:   params,
		interval: interval,
		sinks:    sinks,
		metrics:  m,
		reload:   reload,
		agents:   agents,
		wake:     make(chan struct{}, 1),
		lastPub:  make(map[string]pubSample),
	}
	if m != nil {
		m.TotalTrains.Set(float64(len(agents)))
	}
	return e
}

// Start queues a start command: every agent back to the path start, moving.
func (e *Engine) Start() { e.enqueue(Command{Kind: CmdStart}) }

// Reset queues a reset command: every agent back to idle. The tick loop pauses
// once the command is applied.
func (e *Engine) Reset() { e.enqueue(Command{Kind: CmdReset}) }

// RaiseAlert queues an alert for the named agent. Unknown agents and agents
// that are no longer moving make this a no-op, never an error.
func (e *Engine) RaiseAlert(agentID string) {
	e.enqueue(Command{Kind: CmdRaiseAlert, AgentID: agentID})
}

func (e *Engine) enqueue(cmd Command) {
	e.mu.Lock()
	e.pending = append(e.pending, cmd)
	e.mu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of all agents as of the last completed tick.
func (e *Engine) Snapshot() []agent.Agent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]agent.Agent, len(e.agents))
	copy(out, e.agents)
	return out
}

// Run drives the tick loop until ctx is cancelled. The ticker only exists
// while at least one agent is moving; otherwise the loop sleeps until a
// command arrives. One tick always executes fully before the next is
// scheduled.
func (e *Engine) Run(ctx context.Context) {
	e.publish(time.Now())

	var ticker *time.Ticker
	var tickC <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
			e.applyPending(ctx)
			e.publish(time.Now())
		case now := <-tickC:
			start := time.Now()
			e.applyPending(ctx)
			e.step()
			e.publish(now)
			if e.metrics != nil {
				e.metrics.TickDuration.Observe(time.Since(start).Seconds())
			}
		}

		snap := e.Snapshot()
		if e.metrics != nil {
			e.metrics.MovingTrains.Set(float64(MovingCount(snap)))
		}
		if AnyMoving(snap) {
			if ticker == nil {
				ticker = time.NewTicker(e.interval)
				tickC = ticker.C
			}
		} else if ticker != nil {
			log.Printf("scenario %s: no moving trains, pausing tick loop", e.scenario)
			stopTicker()
		}
	}
}

func (e *Engine) applyPending(ctx context.Context) {
	e.mu.Lock()
	cmds := e.pending
	e.pending = nil
	e.mu.Unlock()
	for _, cmd := range cmds {
		e.applyCommand(ctx, cmd)
	}
}

func (e *Engine) applyCommand(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CmdStart:
		e.mu.Lock()
		e.agents = Apply(e.agents, cmd)
		e.tick = 0
		e.mu.Unlock()
		e.lastPub = make(map[string]pubSample)
		if e.metrics != nil {
			e.metrics.RunsStarted.Inc()
		}
		log.Printf("scenario %s: run started with %d trains", e.scenario, len(e.agents))

	case CmdReset:
		if e.reload != nil {
			fresh, err := e.reload(ctx)
			if err != nil {
				log.Printf("scenario %s: reload failed, keeping current trains: %v", e.scenario, err)
			} else {
				e.mu.Lock()
				e.agents = fresh
				e.mu.Unlock()
				if e.metrics != nil {
					e.metrics.TotalTrains.Set(float64(len(fresh)))
				}
			}
		}
		e.mu.Lock()
		e.agents = Apply(e.agents, cmd)
		e.tick = 0
		e.mu.Unlock()
		e.lastPub = make(map[string]pubSample)
		log.Printf("scenario %s: reset", e.scenario)

	case CmdRaiseAlert:
		e.mu.Lock()
		accepted := false
		for _, a := range e.agents {
			if a.ID == cmd.AgentID && a.Status == agent.StatusMoving && !a.AlertActive {
				accepted = true
				break
			}
		}
		e.agents = Apply(e.agents, cmd)
		e.mu.Unlock()
		if accepted {
			log.Printf("scenario %s: alert raised for %s", e.scenario, cmd.AgentID)
			if e.metrics != nil {
				e.metrics.AlertsAccepted.Inc()
			}
		} else {
			// late, redundant, or unknown target: intentional no-op
			if e.metrics != nil {
				e.metrics.AlertsIgnored.Inc()
			}
		}
	}
}

func (e *Engine) step() {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := make([]agent.Agent, len(e.agents))
	for i, a := range e.agents {
		b := TickAgent(a, e.params)
		if a.Status == agent.StatusMoving && b.Status != agent.StatusMoving {
			switch b.Status {
			case agent.StatusCrashed:
				log.Printf("scenario %s: train %s crashed at progress %.3f", e.scenario, b.ID, b.Progress)
				if e.metrics != nil {
					e.metrics.TrainsCrashed.Inc()
				}
			case agent.StatusStopped:
				log.Printf("scenario %s: train %s stopped by intervention at progress %.3f", e.scenario, b.ID, b.Progress)
				if e.metrics != nil {
					e.metrics.TrainsSaved.Inc()
				}
			case agent.StatusIdle:
				log.Printf("scenario %s: train %s completed its route", e.scenario, b.ID)
				if e.metrics != nil {
					e.metrics.TrainsCompleted.Inc()
				}
			}
		}
		next[i] = b
	}
	e.agents = next
	e.tick++
	if e.metrics != nil {
		e.metrics.TicksTotal.Inc()
	}
}

func (e *Engine) publish(now time.Time) {
	e.mu.Lock()
	agents := make([]agent.Agent, len(e.agents))
	copy(agents, e.agents)
	tick := e.tick
	e.mu.Unlock()

	states := make([]publisher.AgentState, len(agents))
	for i, a := range agents {
		st := publisher.AgentState{
			ID:          a.ID,
			Scenario:    e.scenario,
			Timestamp:   now,
			Tick:        tick,
			Lat:         a.Position.Lat,
			Lon:         a.Position.Lon,
			Bearing:     a.Bearing,
			Progress:    a.Progress,
			Status:      a.Status,
			HasHazard:   a.HasHazard,
			AlertActive: a.AlertActive,
		}
		if a.HasHazard && a.Status == agent.StatusMoving {
			hp := a.HazardPoint()
			st.Hazard = &publisher.HazardMarker{Lat: hp.Lat, Lon: hp.Lon, Threshold: a.HazardThreshold}
		}
		if prev, ok := e.lastPub[a.ID]; ok && a.Status == agent.StatusMoving {
			dt := now.Sub(prev.at).Seconds()
			if dt > 0 {
				st.SpeedMps = geo.DistanceMeters(prev.pos, a.Position) / dt
			}
		}
		e.lastPub[a.ID] = pubSample{at: now, pos: a.Position}
		states[i] = st
	}

	for _, sink := range e.sinks {
		sink.PublishStates(states)
	}
}
