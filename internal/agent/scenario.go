package agent

import (
	"fmt"
	"log"
)

// Scenario is a named set of train definitions.
type Scenario struct {
	Name   string
	Trains []Definition
}

// Build constructs agents from the scenario, skipping definitions that fail
// validation. It errors only when nothing valid remains.
func (s Scenario) Build() ([]Agent, error) {
	agents := make([]Agent, 0, len(s.Trains))
	for _, def := range s.Trains {
		a, err := New(def)
		if err != nil {
			log.Printf("scenario %s: skipping train: %v", s.Name, err)
			continue
		}
		agents = append(agents, a)
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("scenario %s has no valid trains", s.Name)
	}
	return agents, nil
}

// DefaultScenario is the built-in demo used when no scenario store is
// configured: three trains on short parallel corridors, one carrying a
// hazard halfway along its route.
func DefaultScenario() Scenario {
	return Scenario{
		Name: "default",
		Trains: []Definition{
			{
				ID: "train-1",
				Path: Path{
					{Lat: 41.3851, Lon: 2.1734},
					{Lat: 41.3905, Lon: 2.1800},
					{Lat: 41.3960, Lon: 2.1861},
					{Lat: 41.4020, Lon: 2.1920},
				},
				HasHazard:       true,
				HazardThreshold: 0.5,
			},
			{
				ID: "train-2",
				Path: Path{
					{Lat: 41.3820, Lon: 2.1690},
					{Lat: 41.3770, Lon: 2.1755},
					{Lat: 41.3725, Lon: 2.1828},
				},
			},
			{
				ID: "train-3",
				Path: Path{
					{Lat: 41.3900, Lon: 2.1600},
					{Lat: 41.3952, Lon: 2.1648},
					{Lat: 41.4003, Lon: 2.1702},
					{Lat: 41.4051, Lon: 2.1760},
				},
				HasHazard:       true,
				HazardThreshold: 0.75,
			},
		},
	}
}
