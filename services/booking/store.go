package booking

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"cabbooking/models"
	"cabbooking/utils"
)

// firstBookingNumber makes ids look like CAB1000, CAB1001, ...
const firstBookingNumber = 1000

type bookingEntry struct {
	mu      sync.Mutex
	seq     int
	booking models.Booking
	// settled is closed once the booking leaves Requested/Confirmed.
	settled chan struct{}
}

type cabEntry struct {
	mu  sync.Mutex
	cab models.Cab
}

// Store is the single source of truth for bookings and cabs. Every
// mutation goes through one of its methods; transitions on one booking are
// serialized by that booking's lock. Lock order is mu → booking → cabsMu →
// cab.
type Store struct {
	mu       sync.RWMutex
	bookings map[string]*bookingEntry
	byKey    map[string]string
	seq      int

	cabsMu sync.RWMutex
	cabs   map[string]*cabEntry

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		bookings: make(map[string]*bookingEntry),
		byKey:    make(map[string]string),
		cabs:     make(map[string]*cabEntry),
		now:      time.Now,
	}
}

// AddCab provisions a cab. Ids are unique.
func (s *Store) AddCab(cab models.Cab) error {
	s.cabsMu.Lock()
	defer s.cabsMu.Unlock()
	if _, ok := s.cabs[cab.ID]; ok {
		return fmt.Errorf("cab %q already provisioned", cab.ID)
	}
	cab.BookingID = ""
	s.cabs[cab.ID] = &cabEntry{cab: cab}
	return nil
}

// Create stores draft as a new Requested booking. When draft carries an
// idempotency key that already belongs to a booking that has not failed,
// nothing is created and that booking is returned with created=false.
func (s *Store) Create(draft models.Booking) (b models.Booking, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key := draft.IdempotencyKey; key != "" {
		if id, ok := s.byKey[key]; ok {
			e := s.bookings[id]
			e.mu.Lock()
			existing := e.booking.Clone()
			e.mu.Unlock()
			if existing.Status != models.StatusFailed {
				return existing, false
			}
		}
	}

	now := s.now()
	seq := s.seq
	s.seq++
	draft.ID = fmt.Sprintf("CAB%d", firstBookingNumber+seq)
	draft.Status = models.StatusRequested
	draft.CabID = nil
	draft.FailureReason = ""
	draft.CreatedAt = now
	draft.UpdatedAt = now

	s.bookings[draft.ID] = &bookingEntry{seq: seq, booking: draft, settled: make(chan struct{})}
	if draft.IdempotencyKey != "" {
		s.byKey[draft.IdempotencyKey] = draft.ID
	}
	return draft.Clone(), true
}

func (s *Store) entry(id string) (*bookingEntry, error) {
	s.mu.RLock()
	e, ok := s.bookings[id]
	s.mu.RUnlock()
	if !ok {
		return nil, utils.NewNotFoundError("booking %q not found", id)
	}
	return e, nil
}

// Get returns a copy of booking id.
func (s *Store) Get(id string) (models.Booking, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Booking{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.booking.Clone(), nil
}

// Settled returns a channel closed once booking id has left its
// provisional statuses.
func (s *Store) Settled(id string) (<-chan struct{}, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	return e.settled, nil
}

// List returns every booking in creation order.
func (s *Store) List() []models.Booking {
	s.mu.RLock()
	entries := make([]*bookingEntry, 0, len(s.bookings))
	for _, e := range s.bookings {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]models.Booking, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.booking.Clone())
		e.mu.Unlock()
	}
	return out
}

// Transition moves booking id to status to, applying mutate (may be nil)
// under the booking's lock. Illegal transitions are ConflictErrors.
// Transitions that release a cab must use Close.
func (s *Store) Transition(id string, to models.BookingStatus, mutate func(*models.Booking)) (models.Booking, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Booking{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.booking.Status
	if !models.CanTransition(from, to) {
		return e.booking.Clone(), utils.NewConflictError("booking %s cannot move from %s to %s", id, from, to)
	}
	if e.booking.CabID != nil && to.IsTerminal() {
		return e.booking.Clone(), utils.NewConflictError("booking %s holds cab %s; close it instead", id, *e.booking.CabID)
	}
	if mutate != nil {
		mutate(&e.booking)
	}
	s.apply(e, to)
	return e.booking.Clone(), nil
}

func (s *Store) apply(e *bookingEntry, to models.BookingStatus) {
	from := e.booking.Status
	e.booking.Status = to
	e.booking.UpdatedAt = s.now()
	provisional := func(st models.BookingStatus) bool {
		return st == models.StatusRequested || st == models.StatusConfirmed
	}
	if provisional(from) && !provisional(to) {
		close(e.settled)
	}
}

// Assign binds cabID to a Confirmed booking and marks the cab Assigned in
// one step. The caller must already hold the cab's index reservation.
func (s *Store) Assign(id, cabID string) (models.Booking, error) {
	e, err := s.entry(id)
	if err != nil {
		return models.Booking{}, err
	}
	s.cabsMu.RLock()
	c, ok := s.cabs[cabID]
	s.cabsMu.RUnlock()
	if !ok {
		return models.Booking{}, utils.NewNotFoundError("cab %q not found", cabID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !models.CanTransition(e.booking.Status, models.StatusAssigned) {
		return e.booking.Clone(), utils.NewConflictError("booking %s is %s, cannot assign", id, e.booking.Status)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cab.Status != models.CabAvailable {
		return e.booking.Clone(), utils.NewConflictError("cab %s is %s", cabID, c.cab.Status)
	}
	c.cab.Status = models.CabAssigned
	c.cab.BookingID = id

	cab := cabID
	e.booking.CabID = &cab
	s.apply(e, models.StatusAssigned)
	return e.booking.Clone(), nil
}

// Release describes a cab freed by Close. The caller lists it in the
// availability index at Location.
type Release struct {
	CabID    string
	Location string
}

// Close moves booking id into a terminal status. A held cab becomes
// Available, at moveTo when that is non-empty, and is returned so the
// caller can list it again.
func (s *Store) Close(id string, to models.BookingStatus, reason, moveTo string) (models.Booking, *Release, error) {
	if !to.IsTerminal() {
		return models.Booking{}, nil, fmt.Errorf("close with non-terminal status %s", to)
	}
	e, err := s.entry(id)
	if err != nil {
		return models.Booking{}, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !models.CanTransition(e.booking.Status, to) {
		return e.booking.Clone(), nil, utils.NewConflictError("booking %s cannot move from %s to %s", id, e.booking.Status, to)
	}

	var rel *Release
	if e.booking.CabID != nil {
		s.cabsMu.RLock()
		c := s.cabs[*e.booking.CabID]
		s.cabsMu.RUnlock()
		if c != nil {
			c.mu.Lock()
			if c.cab.BookingID == id {
				if moveTo != "" {
					c.cab.Location = moveTo
				}
				c.cab.Status = models.CabAvailable
				c.cab.BookingID = ""
				rel = &Release{CabID: c.cab.ID, Location: c.cab.Location}
			}
			c.mu.Unlock()
		}
	}
	if reason != "" {
		e.booking.FailureReason = reason
	}
	s.apply(e, to)
	return e.booking.Clone(), rel, nil
}

// Cab returns a copy of cab id.
func (s *Store) Cab(id string) (models.Cab, error) {
	s.cabsMu.RLock()
	c, ok := s.cabs[id]
	s.cabsMu.RUnlock()
	if !ok {
		return models.Cab{}, utils.NewNotFoundError("cab %q not found", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cab, nil
}

// Cabs returns every cab sorted by id.
func (s *Store) Cabs() []models.Cab {
	s.cabsMu.RLock()
	entries := make([]*cabEntry, 0, len(s.cabs))
	for _, c := range s.cabs {
		entries = append(entries, c)
	}
	s.cabsMu.RUnlock()

	out := make([]models.Cab, 0, len(entries))
	for _, c := range entries {
		c.mu.Lock()
		out = append(out, c.cab)
		c.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
