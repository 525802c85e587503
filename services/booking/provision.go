package booking

import (
	"fmt"

	"cabbooking/config"
	"cabbooking/models"
	"cabbooking/services/availability"
)

// Provision loads fleet into store and index and returns the neighbour
// table keyed by normalized location name. Only Available cabs are listed
// in the index.
func Provision(fleet *config.Fleet, store *Store, index *availability.Index) (map[string][]string, error) {
	neighbors := make(map[string][]string, len(fleet.Locations))
	for _, loc := range fleet.Locations {
		index.AddLocation(loc.Name)
		neighbors[models.NormalizeLocation(loc.Name)] = append([]string(nil), loc.Neighbors...)
	}

	for _, fc := range fleet.Cabs {
		location, ok := index.Canonical(fc.Location)
		if !ok {
			return nil, fmt.Errorf("cab %s: unknown location %q", fc.ID, fc.Location)
		}
		cabType := models.CabStandard
		if fc.Type != "" {
			t, ok := models.ParseCabType(fc.Type)
			if !ok {
				return nil, fmt.Errorf("cab %s: unknown type %q", fc.ID, fc.Type)
			}
			cabType = t
		}
		status := models.CabAvailable
		switch models.CabStatus(fc.Status) {
		case "", models.CabAvailable:
		case models.CabOutOfService:
			status = models.CabOutOfService
		default:
			return nil, fmt.Errorf("cab %s: unsupported initial status %q", fc.ID, fc.Status)
		}
		capacity := fc.Capacity
		if capacity == 0 {
			capacity = 4
		}

		cab := models.Cab{ID: fc.ID, Location: location, Capacity: capacity, Type: cabType, Status: status}
		if err := store.AddCab(cab); err != nil {
			return nil, err
		}
		if status == models.CabAvailable {
			index.Release(location, cab.ID)
		}
	}
	return neighbors, nil
}
