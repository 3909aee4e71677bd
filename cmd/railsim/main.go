package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"railsim/internal/agent"
	"railsim/internal/config"
	"railsim/internal/metrics"
	"railsim/internal/publisher"
	"railsim/internal/server"
	"railsim/internal/sim"
	"railsim/internal/store"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics setup
	var mcol *metrics.Collector
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.StepSize, cfg.WarningWindow, cfg.TickInterval)
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	// Scenario: Postgres store when a DSN is configured, built-in otherwise
	var agents []agent.Agent
	var reload sim.ReloadFunc
	if cfg.DatabaseURL != "" {
		db, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := store.Ping(ctx, db); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		agents, err = store.LoadScenario(ctx, db, cfg.Scenario)
		if err != nil {
			log.Fatalf("load scenario %q: %v", cfg.Scenario, err)
		}
		reload = func(ctx context.Context) ([]agent.Agent, error) {
			return store.LoadScenario(ctx, db, cfg.Scenario)
		}
		log.Printf("loaded scenario %q from store: %d trains", cfg.Scenario, len(agents))
	} else {
		scenario := agent.DefaultScenario()
		cfg.Scenario = scenario.Name
		agents, err = scenario.Build()
		if err != nil {
			log.Fatalf("build default scenario: %v", err)
		}
		log.Printf("using built-in scenario: %d trains", len(agents))
	}

	// NATS publisher for the snapshot feed
	pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.SubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	defer pub.Close()

	// Websocket hub for dashboard subscribers
	hub := server.NewHub()

	params := sim.Params{Step: cfg.StepSize, Window: cfg.WarningWindow}
	eng := sim.NewEngine(cfg.Scenario, agents, params, cfg.TickInterval, []sim.StateSink{pub, hub}, mcol, reload)
	go eng.Run(ctx)
	if cfg.AutoStart {
		eng.Start()
	}

	// Control API
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: server.NewRouter(eng, hub)}
	go func() {
		log.Printf("control api listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// Block until context cancelled
	<-ctx.Done()

	// Allow graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Println("shutdown complete")
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
