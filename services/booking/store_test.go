package booking

import (
	"errors"
	"testing"
	"time"

	"cabbooking/models"
	"cabbooking/utils"
)

func newTestStore(t *testing.T, cabs ...models.Cab) *Store {
	t.Helper()
	s := NewStore()
	for _, c := range cabs {
		if err := s.AddCab(c); err != nil {
			t.Fatalf("AddCab(%s): %v", c.ID, err)
		}
	}
	return s
}

func TestStoreCreateAssignsSequentialIDs(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.Create(models.Booking{Passenger: "ana"})
	b, _ := s.Create(models.Booking{Passenger: "ben"})
	if a.ID != "CAB1000" || b.ID != "CAB1001" {
		t.Fatalf("ids = %s, %s", a.ID, b.ID)
	}
	if a.Status != models.StatusRequested {
		t.Fatalf("status = %s, want requested", a.Status)
	}
	list := s.List()
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("List = %+v", list)
	}
}

func TestStoreIdempotencyKey(t *testing.T) {
	s := newTestStore(t)
	first, created := s.Create(models.Booking{IdempotencyKey: "k1"})
	if !created {
		t.Fatal("first Create not created")
	}
	again, created := s.Create(models.Booking{IdempotencyKey: "k1"})
	if created || again.ID != first.ID {
		t.Fatalf("duplicate Create = %s created=%v, want %s", again.ID, created, first.ID)
	}

	if _, _, err := s.Close(first.ID, models.StatusFailed, models.ReasonNoCabsAvailable, ""); err != nil {
		t.Fatalf("Close: %v", err)
	}
	retry, created := s.Create(models.Booking{IdempotencyKey: "k1"})
	if !created || retry.ID == first.ID {
		t.Fatalf("Create after failure = %s created=%v, want a new booking", retry.ID, created)
	}
}

func TestStoreTransitions(t *testing.T) {
	s := newTestStore(t)
	b, _ := s.Create(models.Booking{})

	if _, err := s.Transition(b.ID, models.StatusAssigned, nil); !errors.Is(err, utils.ErrConflict) {
		t.Fatalf("Requested→Assigned err = %v, want conflict", err)
	}
	if _, err := s.Transition(b.ID, models.StatusConfirmed, nil); err != nil {
		t.Fatalf("Requested→Confirmed: %v", err)
	}
	if _, _, err := s.Close(b.ID, models.StatusCancelled, "changed plans", ""); err != nil {
		t.Fatalf("Confirmed→Cancelled: %v", err)
	}
	if _, err := s.Transition(b.ID, models.StatusConfirmed, nil); !errors.Is(err, utils.ErrConflict) {
		t.Fatalf("transition out of terminal err = %v, want conflict", err)
	}
	if _, err := s.Get("CAB9999"); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("Get unknown err = %v, want not found", err)
	}
}

func TestStoreAssignAndClose(t *testing.T) {
	s := newTestStore(t, models.Cab{ID: "cab-1", Location: "Airport", Capacity: 4, Type: models.CabStandard, Status: models.CabAvailable})
	b, _ := s.Create(models.Booking{})
	if _, err := s.Transition(b.ID, models.StatusConfirmed, nil); err != nil {
		t.Fatal(err)
	}

	b, err := s.Assign(b.ID, "cab-1")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if b.Status != models.StatusAssigned || b.AssignedCab() != "cab-1" {
		t.Fatalf("assigned booking = %+v", b)
	}
	cab, _ := s.Cab("cab-1")
	if cab.Status != models.CabAssigned || cab.BookingID != b.ID {
		t.Fatalf("cab after assign = %+v", cab)
	}

	other, _ := s.Create(models.Booking{})
	s.Transition(other.ID, models.StatusConfirmed, nil)
	if _, err := s.Assign(other.ID, "cab-1"); !errors.Is(err, utils.ErrConflict) {
		t.Fatalf("second Assign err = %v, want conflict", err)
	}

	if _, err := s.Transition(b.ID, models.StatusCancelled, nil); !errors.Is(err, utils.ErrConflict) {
		t.Fatalf("Transition to terminal with held cab err = %v, want conflict", err)
	}

	closed, rel, err := s.Close(b.ID, models.StatusCancelled, "", "Downtown")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != models.StatusCancelled {
		t.Fatalf("status = %s", closed.Status)
	}
	if rel == nil || rel.CabID != "cab-1" || rel.Location != "Downtown" {
		t.Fatalf("release = %+v", rel)
	}
	cab, _ = s.Cab("cab-1")
	if cab.Status != models.CabAvailable || cab.BookingID != "" || cab.Location != "Downtown" {
		t.Fatalf("cab after close = %+v", cab)
	}
}

func TestStoreSettled(t *testing.T) {
	s := newTestStore(t)
	b, _ := s.Create(models.Booking{})
	settled, err := s.Settled(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	s.Transition(b.ID, models.StatusConfirmed, nil)
	select {
	case <-settled:
		t.Fatal("settled closed while still confirmed")
	default:
	}
	s.Close(b.ID, models.StatusFailed, models.ReasonNoCabsAvailable, "")
	select {
	case <-settled:
	case <-time.After(time.Second):
		t.Fatal("settled not closed after failure")
	}
}
