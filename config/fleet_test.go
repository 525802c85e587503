package config

import (
	"strings"
	"testing"
)

func TestLoadDefaultFleet(t *testing.T) {
	fleet, err := LoadFleet("")
	if err != nil {
		t.Fatalf("LoadFleet: %v", err)
	}
	if len(fleet.Locations) == 0 || len(fleet.Cabs) == 0 {
		t.Fatalf("default fleet is empty: %+v", fleet)
	}
}

func TestParseFleetRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "duplicate location",
			doc:  "locations: [{name: A}, {name: a}]",
			want: "duplicate location",
		},
		{
			name: "unknown neighbor",
			doc:  "locations: [{name: A, neighbors: [B]}]",
			want: "unknown neighbor",
		},
		{
			name: "duplicate cab",
			doc:  "locations: [{name: A}]\ncabs: [{id: c1, location: A}, {id: c1, location: A}]",
			want: "duplicate cab",
		},
		{
			name: "cab at unknown location",
			doc:  "locations: [{name: A}]\ncabs: [{id: c1, location: Z}]",
			want: "unknown location",
		},
		{
			name: "negative capacity",
			doc:  "locations: [{name: A}]\ncabs: [{id: c1, location: A, capacity: -1}]",
			want: "negative capacity",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFleet([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.RetryBudget != 3 || d.MaxCallsPerMin != 120 {
		t.Fatalf("Defaults = %+v", d)
	}
}
