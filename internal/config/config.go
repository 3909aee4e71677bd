package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL     string // empty means the built-in scenario is used
	Scenario        string
	NATSURL         string
	SubjectPrefix   string
	TickInterval    time.Duration
	StepSize        float64
	WarningWindow   float64
	AutoStart       bool
	LogNATSSubjects bool
	MetricsAddr     string
	HTTPAddr        string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL for the scenario store: prefer DATABASE_URL / PG_DSN, else
	// build from PG* vars. All optional; without a DSN the built-in scenario
	// is used.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" && os.Getenv("PGDATABASE") != "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	}
	cfg.DatabaseURL = dsn

	cfg.Scenario = getenvDefault("SCENARIO", "default")

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.SubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "trains")

	// Tick interval
	if v := os.Getenv("TICK_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid TICK_INTERVAL_MS: %q", v)
		}
		cfg.TickInterval = time.Duration(ms) * time.Millisecond
	} else {
		cfg.TickInterval = 500 * time.Millisecond
	}

	// Progress advanced per tick
	if v := os.Getenv("STEP_SIZE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f >= 1 {
			return nil, fmt.Errorf("invalid STEP_SIZE: %q", v)
		}
		cfg.StepSize = f
	} else {
		cfg.StepSize = 0.01
	}

	// Warning window before a hazard threshold
	if v := os.Getenv("WARNING_WINDOW"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f >= 1 {
			return nil, fmt.Errorf("invalid WARNING_WINDOW: %q", v)
		}
		cfg.WarningWindow = f
	} else {
		cfg.WarningWindow = 0.02
	}

	cfg.AutoStart = boolEnv("AUTO_START")
	cfg.LogNATSSubjects = boolEnv("LOG_NATS_SUBJECTS")

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8090")

	return cfg, nil
}

func boolEnv(k string) bool {
	v := os.Getenv(k)
	if v == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
