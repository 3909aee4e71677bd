package server

import (
	"testing"
	"time"

	"railsim/internal/agent"
	"railsim/internal/publisher"
)

func register(h *Hub, buffer int) *subscriber {
	s := &subscriber{send: make(chan []byte, buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func TestHubDropsSlowSubscriberWithoutBlocking(t *testing.T) {
	hub := NewHub()

	// slow: nothing ever reads its buffer
	slow := register(hub, subscriberBuffer)
	// fast: buffer large enough to absorb the whole burst
	fast := register(hub, subscriberBuffer*4)

	states := []publisher.AgentState{{ID: "t1", Scenario: "test", Status: agent.StatusMoving}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+1; i++ {
			hub.PublishStates(states)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	if got := hub.SubscriberCount(); got != 1 {
		t.Fatalf("expected only the fast subscriber to remain, got %d", got)
	}

	// the dropped subscriber's channel is closed once its buffer is drained
	for i := 0; i < subscriberBuffer; i++ {
		if _, ok := <-slow.send; !ok {
			t.Fatalf("expected %d buffered frames before close, got %d", subscriberBuffer, i)
		}
	}
	if _, ok := <-slow.send; ok {
		t.Fatal("expected the dropped subscriber's channel to be closed")
	}

	// the fast subscriber saw every frame
	if got := len(fast.send); got != subscriberBuffer+1 {
		t.Fatalf("expected %d frames for the fast subscriber, got %d", subscriberBuffer+1, got)
	}
}
