package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	MovingTrains prometheus.Gauge
	TotalTrains  prometheus.Gauge

	RunsStarted     prometheus.Counter
	TrainsCompleted prometheus.Counter
	TrainsCrashed   prometheus.Counter
	TrainsSaved     prometheus.Counter

	AlertsAccepted prometheus.Counter
	AlertsIgnored  prometheus.Counter

	TicksTotal prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	TickDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	StepSize      prometheus.Gauge
	WarningWindow prometheus.Gauge
	TickInterval  prometheus.Gauge // seconds
}

func NewCollector(stepSize, warningWindow float64, tickInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		MovingTrains: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "railsim_moving_trains",
			Help: "Number of trains currently in the moving state.",
		}),
		TotalTrains: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "railsim_total_trains",
			Help: "Number of trains loaded from the scenario.",
		}),
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railsim_runs_started_total",
			Help: "Total simulation runs started.",
		}),
		TrainsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railsim_trains_completed_total",
			Help: "Total trains that reached the end of their path.",
		}),
		TrainsCrashed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railsim_trains_crashed_total",
			Help: "Total trains crashed at an unresolved hazard.",
		}),
		TrainsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railsim_trains_saved_total",
			Help: "Total trains stopped by a timely operator alert.",
		}),
		AlertsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railsim_alerts_accepted_total",
			Help: "Total alerts applied to a moving train.",
		}),
		AlertsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railsim_alerts_ignored_total",
			Help: "Total alerts ignored because the train was unknown or not moving.",
		}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railsim_ticks_total",
			Help: "Total simulation ticks executed.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railsim_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "railsim_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "railsim_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "railsim_tick_duration_seconds",
			Help:    "Duration of simulation tick computations.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "railsim_publish_duration_seconds",
			Help:    "Duration to marshal and publish a snapshot message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		StepSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "railsim_step_size",
			Help: "Progress fraction advanced per tick.",
		}),
		WarningWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "railsim_warning_window",
			Help: "Progress interval before a hazard threshold in which an alert still stops the train.",
		}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "railsim_tick_interval_seconds",
			Help: "Wall-clock interval between ticks in seconds.",
		}),
	}

	// Register
	reg.MustRegister(
		c.MovingTrains, c.TotalTrains,
		c.RunsStarted, c.TrainsCompleted, c.TrainsCrashed, c.TrainsSaved,
		c.AlertsAccepted, c.AlertsIgnored, c.TicksTotal,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.TickDuration, c.PublishDuration,
		c.StepSize, c.WarningWindow, c.TickInterval,
	)

	c.StepSize.Set(stepSize)
	c.WarningWindow.Set(warningWindow)
	c.TickInterval.Set(tickInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
