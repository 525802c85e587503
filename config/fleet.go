package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fleet.yaml
var defaultFleet []byte

// Fleet is the externally provisioned set of locations and cabs.
type Fleet struct {
	Locations []FleetLocation `yaml:"locations"`
	Cabs      []FleetCab      `yaml:"cabs"`
}

// FleetLocation is a pickup bucket. Neighbors are tried in order when the
// location itself has no cab.
type FleetLocation struct {
	Name      string   `yaml:"name"`
	Neighbors []string `yaml:"neighbors"`
}

type FleetCab struct {
	ID       string `yaml:"id"`
	Location string `yaml:"location"`
	Capacity int    `yaml:"capacity"`
	Type     string `yaml:"type"`
	Status   string `yaml:"status"`
}

// LoadFleet reads the fleet file at path, or the embedded default fleet when
// path is empty.
func LoadFleet(path string) (*Fleet, error) {
	if path == "" {
		return ParseFleet(defaultFleet)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet file: %w", err)
	}
	return ParseFleet(data)
}

// ParseFleet decodes and checks a fleet document: location names and cab ids
// are unique, and every cab and neighbour refers to a declared location.
func ParseFleet(data []byte) (*Fleet, error) {
	var fleet Fleet
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("decode fleet: %w", err)
	}

	known := make(map[string]bool, len(fleet.Locations))
	for _, loc := range fleet.Locations {
		key := strings.ToLower(strings.TrimSpace(loc.Name))
		if key == "" {
			return nil, fmt.Errorf("fleet: location with empty name")
		}
		if known[key] {
			return nil, fmt.Errorf("fleet: duplicate location %q", loc.Name)
		}
		known[key] = true
	}
	for _, loc := range fleet.Locations {
		for _, n := range loc.Neighbors {
			if !known[strings.ToLower(strings.TrimSpace(n))] {
				return nil, fmt.Errorf("fleet: location %q has unknown neighbor %q", loc.Name, n)
			}
		}
	}

	ids := make(map[string]bool, len(fleet.Cabs))
	for _, cab := range fleet.Cabs {
		if cab.ID == "" {
			return nil, fmt.Errorf("fleet: cab with empty id")
		}
		if ids[cab.ID] {
			return nil, fmt.Errorf("fleet: duplicate cab %q", cab.ID)
		}
		ids[cab.ID] = true
		if !known[strings.ToLower(strings.TrimSpace(cab.Location))] {
			return nil, fmt.Errorf("fleet: cab %q at unknown location %q", cab.ID, cab.Location)
		}
		if cab.Capacity < 0 {
			return nil, fmt.Errorf("fleet: cab %q has negative capacity", cab.ID)
		}
	}
	return &fleet, nil
}
