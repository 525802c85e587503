// Package availability indexes available cabs by pickup location.
//
// Each location bucket carries its own lock and a version counter that is
// bumped on every membership change. Reservations are compare-and-swap on
// that version, the same optimistic scheme the timeslot aggregates use, so
// two callers can never take the same cab and unrelated buckets never
// contend.
package availability

import (
	"sort"
	"sync"

	"cabbooking/models"
	"cabbooking/utils"
)

// Snapshot is a consistent read of one bucket.
type Snapshot struct {
	Location string   `json:"location"`
	CabIDs   []string `json:"cab_ids"`
	Version  uint64   `json:"version"`
}

type bucket struct {
	mu      sync.Mutex
	name    string
	cabs    map[string]struct{}
	version uint64
}

// Index maps location → available cab ids.
type Index struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

func NewIndex() *Index {
	return &Index{buckets: make(map[string]*bucket)}
}

// AddLocation declares a bucket so reads of an empty location return a
// versioned snapshot rather than nothing.
func (ix *Index) AddLocation(location string) {
	ix.bucketFor(location, true)
}

func (ix *Index) bucketFor(location string, create bool) *bucket {
	key := models.NormalizeLocation(location)
	ix.mu.RLock()
	b := ix.buckets[key]
	ix.mu.RUnlock()
	if b != nil || !create {
		return b
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if b = ix.buckets[key]; b == nil {
		b = &bucket{name: location, cabs: make(map[string]struct{})}
		ix.buckets[key] = b
	}
	return b
}

// Available returns the committed cab set of location, sorted by id.
// Unknown locations yield an empty snapshot with version 0.
func (ix *Index) Available(location string) Snapshot {
	b := ix.bucketFor(location, false)
	if b == nil {
		return Snapshot{Location: location, CabIDs: []string{}}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.cabs))
	for id := range b.cabs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return Snapshot{Location: b.name, CabIDs: ids, Version: b.version}
}

// Reserve removes cabID from location if the bucket is still at
// expectedVersion and still lists the cab. Any other state is a
// ConflictError; the caller re-reads and selects again.
func (ix *Index) Reserve(location, cabID string, expectedVersion uint64) error {
	b := ix.bucketFor(location, false)
	if b == nil {
		return utils.NewNotFoundError("unknown location %q", location)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.version != expectedVersion {
		return utils.NewConflictError("location %q at version %d, expected %d", location, b.version, expectedVersion)
	}
	if _, ok := b.cabs[cabID]; !ok {
		return utils.NewConflictError("cab %q no longer available at %q", cabID, location)
	}
	delete(b.cabs, cabID)
	b.version++
	return nil
}

// Release lists cabID as available at location. Releasing a cab that is
// already listed is a no-op and does not bump the version.
func (ix *Index) Release(location, cabID string) {
	b := ix.bucketFor(location, true)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.cabs[cabID]; ok {
		return
	}
	b.cabs[cabID] = struct{}{}
	b.version++
}

// Remove unlists cabID regardless of version, for cabs leaving service.
// It reports whether the cab was listed.
func (ix *Index) Remove(location, cabID string) bool {
	b := ix.bucketFor(location, false)
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.cabs[cabID]; !ok {
		return false
	}
	delete(b.cabs, cabID)
	b.version++
	return true
}

// Known reports whether location has a bucket.
func (ix *Index) Known(location string) bool {
	return ix.bucketFor(location, false) != nil
}

// Canonical returns the declared spelling of location.
func (ix *Index) Canonical(location string) (string, bool) {
	b := ix.bucketFor(location, false)
	if b == nil {
		return "", false
	}
	return b.name, true
}

// Locations returns the declared location names, sorted.
func (ix *Index) Locations() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	names := make([]string, 0, len(ix.buckets))
	for _, b := range ix.buckets {
		names = append(names, b.name)
	}
	sort.Strings(names)
	return names
}
