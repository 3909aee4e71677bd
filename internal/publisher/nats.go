package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"railsim/internal/agent"
)

type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// HazardMarker locates an agent's hazard site for the render layer. It is
// only attached while the agent is moving.
type HazardMarker struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Threshold float64 `json:"threshold"`
}

// AgentState is one agent's snapshot for a single tick, shared by the NATS
// subjects and the websocket feed.
type AgentState struct {
	ID          string        `json:"id"`
	Scenario    string        `json:"scenario"`
	Timestamp   time.Time     `json:"timestamp"`
	Tick        uint64        `json:"tick"`
	Lat         float64       `json:"lat"`
	Lon         float64       `json:"lon"`
	Bearing     float64       `json:"bearing"`
	Progress    float64       `json:"progress"`
	SpeedMps    float64       `json:"speedMps"`
	Status      agent.Status  `json:"status"`
	HasHazard   bool          `json:"hasHazard"`
	AlertActive bool          `json:"alertActive"`
	Hazard      *HazardMarker `json:"hazard,omitempty"`
}

func NewNATSPublisher(url, subjectPrefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("railsim"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: subjectToken(subjectPrefix), logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// PublishStates publishes one message per agent on
// <prefix>.<scenario>.<agentID>. Publish failures are counted and logged but
// never interrupt the tick loop.
func (p *NATSPublisher) PublishStates(states []AgentState) {
	for _, st := range states {
		subject := fmt.Sprintf("%s.%s.%s", p.prefix, subjectToken(st.Scenario), subjectToken(st.ID))
		b, err := json.Marshal(st)
		if err != nil {
			log.Printf("marshal state for %s: %v", st.ID, err)
			continue
		}
		if p.logSubjects {
			log.Printf("nats publish subject=%s", subject)
		}
		start := time.Now()
		err = p.nc.Publish(subject, b)
		if p.metrics != nil {
			p.metrics.PublishObserve(time.Since(start))
			if err != nil {
				p.metrics.NATSPublishErrInc()
			} else {
				p.metrics.NATSPublishedInc()
			}
		}
		if err != nil {
			log.Printf("publish error for %s: %v", st.ID, err)
		}
	}
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
