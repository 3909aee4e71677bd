package sim

import (
	"math"
	"reflect"
	"testing"

	"railsim/internal/agent"
)

func mustAgent(t *testing.T, def agent.Definition) agent.Agent {
	t.Helper()
	a, err := agent.New(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

func hazardTrain(t *testing.T) agent.Agent {
	t.Helper()
	return mustAgent(t, agent.Definition{
		ID:              "t1",
		Path:            agent.Path{{Lat: 40.0, Lon: -3.0}, {Lat: 41.0, Lon: -3.0}},
		HasHazard:       true,
		HazardThreshold: 0.5,
	})
}

func TestTickAgentNoOpWhenNotMoving(t *testing.T) {
	p := Params{Step: 0.1, Window: DefaultWarningWindow}
	for _, status := range []agent.Status{agent.StatusIdle, agent.StatusStopped, agent.StatusCrashed} {
		a := hazardTrain(t)
		a.Status = status
		a.Progress = 0.3
		if got := TickAgent(a, p); !reflect.DeepEqual(got, a) {
			t.Errorf("expected %v agent unchanged, got %+v", status, got)
		}
	}
}

func TestTickAgentProgressMonotonicAndBounded(t *testing.T) {
	a := mustAgent(t, agent.Definition{
		ID:   "t1",
		Path: agent.Path{{Lat: 40.0, Lon: -3.0}, {Lat: 41.0, Lon: -3.0}},
	}).Reset(agent.StatusMoving)
	p := Params{Step: 0.07, Window: DefaultWarningWindow}

	prev := a.Progress
	for i := 0; i < 30; i++ {
		a = TickAgent(a, p)
		if a.Progress < prev {
			t.Fatalf("progress decreased: %v -> %v", prev, a.Progress)
		}
		if a.Progress < 0 || a.Progress > 1 {
			t.Fatalf("progress out of bounds: %v", a.Progress)
		}
		prev = a.Progress
	}
	if a.Status != agent.StatusIdle {
		t.Fatalf("expected completed run to end idle, got %v", a.Status)
	}
	if a.Progress != 1 {
		t.Fatalf("expected progress pinned at 1, got %v", a.Progress)
	}
	if a.Position != a.Path[len(a.Path)-1] {
		t.Fatalf("expected position at final path point, got %+v", a.Position)
	}
}

func TestMissedInterventionCrashesAtThreshold(t *testing.T) {
	// 2-point path, threshold 0.5, step 0.1, no alert: crashed exactly when
	// progress would reach 0.5, pinned at 0.5.
	a := hazardTrain(t).Reset(agent.StatusMoving)
	p := Params{Step: 0.1, Window: DefaultWarningWindow}

	ticks := 0
	for a.Status == agent.StatusMoving {
		a = TickAgent(a, p)
		ticks++
		if ticks > 20 {
			t.Fatal("agent never resolved its hazard")
		}
	}
	if a.Status != agent.StatusCrashed {
		t.Fatalf("expected crashed, got %v", a.Status)
	}
	if a.Progress != 0.5 {
		t.Fatalf("expected progress pinned at exactly 0.5, got %v", a.Progress)
	}
	if ticks != 5 {
		t.Fatalf("expected crash on tick 5, got tick %d", ticks)
	}
}

func TestAlertInWindowStopsInsteadOfCrashing(t *testing.T) {
	a := hazardTrain(t).Reset(agent.StatusMoving)
	p := Params{Step: 0.01, Window: 0.03}

	for a.Status == agent.StatusMoving {
		if a.Progress >= 0.47 && !a.AlertActive {
			a.AlertActive = true // alert raised inside the warning window
		}
		a = TickAgent(a, p)
	}
	if a.Status != agent.StatusStopped {
		t.Fatalf("expected stopped, got %v", a.Status)
	}
	if a.Progress >= 0.5 {
		t.Fatalf("expected progress frozen below threshold, got %v", a.Progress)
	}
	if a.Progress < 0.47 {
		t.Fatalf("expected stop at or after the alert tick, got %v", a.Progress)
	}
}

func TestAlertInCrossingTickStillSaves(t *testing.T) {
	// The stopped check runs before the crashed check: an alert active on the
	// tick that enters the window saves the agent even though the next tick
	// would cross the threshold.
	a := hazardTrain(t).Reset(agent.StatusMoving)
	a.Progress = 0.48
	a.AlertActive = true
	a = TickAgent(a, Params{Step: 0.01, Window: 0.03})
	if a.Status != agent.StatusStopped {
		t.Fatalf("expected stopped, got %v", a.Status)
	}
	if math.Abs(a.Progress-0.49) > 1e-9 {
		t.Fatalf("expected progress 0.49, got %v", a.Progress)
	}
}

func TestFrozenProgressAfterTerminalState(t *testing.T) {
	a := hazardTrain(t).Reset(agent.StatusMoving)
	p := Params{Step: 0.1, Window: DefaultWarningWindow}
	for a.Status == agent.StatusMoving {
		a = TickAgent(a, p)
	}
	frozen := a.Progress
	for i := 0; i < 5; i++ {
		a = TickAgent(a, p)
	}
	if a.Progress != frozen {
		t.Fatalf("terminal progress changed: %v -> %v", frozen, a.Progress)
	}
}

func TestApplyStartAndReset(t *testing.T) {
	a := hazardTrain(t)
	initial := []agent.Agent{a}

	started := Apply(initial, Command{Kind: CmdStart})
	if started[0].Status != agent.StatusMoving || started[0].Progress != 0 {
		t.Fatalf("unexpected state after start: %+v", started[0])
	}

	// advance a few ticks, then reset must restore the pre-start snapshot
	ticked := Advance(started, nil, Params{Step: 0.1, Window: DefaultWarningWindow})
	reset := Apply(ticked, Command{Kind: CmdReset})
	if !reflect.DeepEqual(reset[0], initial[0]) {
		t.Fatalf("reset state differs from pre-start snapshot:\n got %+v\nwant %+v", reset[0], initial[0])
	}
}

func TestApplyAlertOnlyWhileMoving(t *testing.T) {
	a := hazardTrain(t)
	cmd := Command{Kind: CmdRaiseAlert, AgentID: "t1"}

	if got := Apply([]agent.Agent{a}, cmd); got[0].AlertActive {
		t.Fatal("alert must not apply to an idle agent")
	}

	crashed := a
	crashed.Status = agent.StatusCrashed
	if got := Apply([]agent.Agent{crashed}, cmd); got[0].AlertActive {
		t.Fatal("alert must not apply to a crashed agent")
	}

	moving := a.Reset(agent.StatusMoving)
	if got := Apply([]agent.Agent{moving}, cmd); !got[0].AlertActive {
		t.Fatal("alert must apply to a moving agent")
	}

	// unknown target leaves everyone untouched
	if got := Apply([]agent.Agent{moving}, Command{Kind: CmdRaiseAlert, AgentID: "nope"}); got[0].AlertActive {
		t.Fatal("alert for unknown agent must be a no-op")
	}
}

func TestAdvanceAppliesCommandsBeforeTicking(t *testing.T) {
	a := hazardTrain(t).Reset(agent.StatusMoving)
	a.Progress = 0.48

	// the alert arrives in the same batch as the tick that would cross the
	// threshold; it must be applied first
	out := Advance([]agent.Agent{a}, []Command{{Kind: CmdRaiseAlert, AgentID: "t1"}}, Params{Step: 0.01, Window: 0.03})
	if out[0].Status != agent.StatusStopped {
		t.Fatalf("expected stopped, got %v", out[0].Status)
	}
}

func TestAnyMoving(t *testing.T) {
	a := hazardTrain(t)
	if AnyMoving([]agent.Agent{a}) {
		t.Fatal("idle agent reported as moving")
	}
	if !AnyMoving([]agent.Agent{a, a.Reset(agent.StatusMoving)}) {
		t.Fatal("moving agent not reported")
	}
}

func TestMovingCount(t *testing.T) {
	a := hazardTrain(t)
	if got := MovingCount(nil); got != 0 {
		t.Fatalf("expected 0 for empty fleet, got %d", got)
	}
	agents := []agent.Agent{a, a.Reset(agent.StatusMoving), a.Reset(agent.StatusMoving)}
	if got := MovingCount(agents); got != 2 {
		t.Fatalf("expected 2 moving agents, got %d", got)
	}
}
