package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"railsim/internal/agent"
	"railsim/internal/geo"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// LoadScenario reads a named scenario and builds its agents. Trains whose
// configuration fails validation (short path, bad threshold) are skipped with
// a log line; only an empty result is an error.
func LoadScenario(ctx context.Context, db *sql.DB, name string) ([]agent.Agent, error) {
	q := `
SELECT t.train_id, t.track_id, t.has_hazard, COALESCE(t.hazard_threshold, 0)
FROM trains t
JOIN scenarios s ON s.scenario_id = t.scenario_id
WHERE s.name = $1
ORDER BY t.train_id`
	rows, err := db.QueryContext(ctx, q, name)
	if err != nil {
		return nil, fmt.Errorf("query trains: %w", err)
	}
	defer rows.Close()

	type trainRow struct {
		id        string
		trackID   string
		hasHazard bool
		threshold float64
	}
	var trains []trainRow
	for rows.Next() {
		var tr trainRow
		if err := rows.Scan(&tr.id, &tr.trackID, &tr.hasHazard, &tr.threshold); err != nil {
			return nil, err
		}
		trains = append(trains, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(trains) == 0 {
		return nil, fmt.Errorf("scenario %q has no trains", name)
	}

	agents := make([]agent.Agent, 0, len(trains))
	for _, tr := range trains {
		path, err := fetchTrackPoints(ctx, db, tr.trackID)
		if err != nil {
			return nil, err
		}
		a, err := agent.New(agent.Definition{
			ID:              tr.id,
			Path:            path,
			HasHazard:       tr.hasHazard,
			HazardThreshold: tr.threshold,
		})
		if err != nil {
			log.Printf("scenario %s: skipping train: %v", name, err)
			continue
		}
		agents = append(agents, a)
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("scenario %q has no valid trains", name)
	}
	return agents, nil
}

func fetchTrackPoints(ctx context.Context, db *sql.DB, trackID string) (agent.Path, error) {
	q := `SELECT lat, lon FROM track_points WHERE track_id = $1 ORDER BY seq`
	rows, err := db.QueryContext(ctx, q, trackID)
	if err != nil {
		return nil, fmt.Errorf("query track_points: %w", err)
	}
	defer rows.Close()

	var path agent.Path
	for rows.Next() {
		var p geo.Point
		if err := rows.Scan(&p.Lat, &p.Lon); err != nil {
			return nil, err
		}
		path = append(path, p)
	}
	return path, rows.Err()
}
