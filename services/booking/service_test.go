package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cabbooking/config"
	recordsRepo "cabbooking/database/repository/records"
	"cabbooking/models"
	"cabbooking/services/availability"
	"cabbooking/services/locationcache"
	"cabbooking/services/schema"
	"cabbooking/utils"
)

const testFleet = `
locations:
  - {name: Airport, neighbors: [Downtown]}
  - {name: Downtown, neighbors: []}
  - {name: Suburb, neighbors: []}
cabs:
  - {id: a1, location: Airport, capacity: 4, type: Standard}
  - {id: a2, location: Airport, capacity: 4, type: Premium}
  - {id: a3, location: Airport, capacity: 6, type: Luxury}
  - {id: d1, location: Downtown, capacity: 4, type: Standard}
  - {id: s1, location: Suburb, capacity: 4, type: Standard}
`

func newTestService(t *testing.T) *DefaultBookingService {
	t.Helper()
	fleet, err := config.ParseFleet([]byte(testFleet))
	if err != nil {
		t.Fatalf("ParseFleet: %v", err)
	}
	store := NewStore()
	index := availability.NewIndex()
	neighbors, err := Provision(fleet, store, index)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	svc := NewBookingService(store, index, neighbors, Options{
		RetryBudget:     3,
		RecheckInterval: time.Millisecond,
		SamplingTimeout: 50 * time.Millisecond,
	}, nil)
	svc.Records = recordsRepo.NewMemoryRecordRepo()
	return svc
}

func request(pickup, key string) BookRequest {
	return BookRequest{
		Pickup:         pickup,
		Dropoff:        "Downtown",
		PickupTime:     time.Now().Add(2 * time.Hour),
		Passenger:      "passenger-1",
		IdempotencyKey: key,
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// samplerFunc adapts a function to Sampler.
type samplerFunc func(ctx context.Context, prompt models.SamplingPrompt, expected schema.Schema, deadline time.Time) (schema.Values, error)

func (f samplerFunc) Sample(ctx context.Context, prompt models.SamplingPrompt, expected schema.Schema, deadline time.Time) (schema.Values, error) {
	return f(ctx, prompt, expected, deadline)
}

func silentSampler() Sampler {
	return samplerFunc(func(ctx context.Context, _ models.SamplingPrompt, _ schema.Schema, deadline time.Time) (schema.Values, error) {
		select {
		case <-time.After(time.Until(deadline)):
			return nil, utils.NewTimeoutError("no answer before deadline")
		case <-ctx.Done():
			return nil, utils.NewCancelledError("session closed")
		}
	})
}

func TestBookCabAssignsAvailableCab(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	b, err := svc.BookCab(ctx, request("Airport", "k1"), nil)
	if err != nil {
		t.Fatalf("BookCab: %v", err)
	}
	if b.Status != models.StatusAssigned || b.CabID == nil {
		t.Fatalf("booking = %+v, want assigned", b)
	}
	if b.Fare <= 0 {
		t.Fatalf("fare = %v", b.Fare)
	}
	cab, _ := svc.Store.Cab(*b.CabID)
	if cab.Status != models.CabAssigned {
		t.Fatalf("cab status = %s, want assigned", cab.Status)
	}

	avail, _ := svc.ListAvailable(ctx, "airport")
	if len(avail.CabIDs) != 2 || contains(avail.CabIDs, *b.CabID) {
		t.Fatalf("available after booking = %v, assigned %s", avail.CabIDs, *b.CabID)
	}
}

func TestBookCabContendedSingleCab(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]models.Booking, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.BookCab(ctx, request("Suburb", ""), nil)
		}(i)
	}
	wg.Wait()

	assigned, failed := 0, 0
	for i, b := range results {
		if errs[i] != nil {
			t.Fatalf("BookCab %d: %v", i, errs[i])
		}
		switch b.Status {
		case models.StatusAssigned:
			assigned++
		case models.StatusFailed:
			failed++
			if b.FailureReason != models.ReasonNoCabsAvailable {
				t.Fatalf("failure reason = %q", b.FailureReason)
			}
			if b.CabID != nil {
				t.Fatalf("failed booking holds cab %s", *b.CabID)
			}
		}
	}
	if assigned != 1 || failed != 1 {
		t.Fatalf("assigned=%d failed=%d, want 1 and 1", assigned, failed)
	}
}

func TestCheckStatusUnknown(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CheckStatus(context.Background(), "unknown-id")
	if !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestBookCabIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]models.Booking, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := svc.BookCab(ctx, request("Airport", "k1"), nil)
			if err != nil {
				t.Errorf("BookCab: %v", err)
			}
			results[i] = b
		}(i)
	}
	wg.Wait()

	for _, b := range results[1:] {
		if b.ID != results[0].ID || b.Status != results[0].Status {
			t.Fatalf("results differ: %+v vs %+v", b, results[0])
		}
	}
	assignedCabs := 0
	for _, c := range svc.Cabs() {
		if c.Status == models.CabAssigned {
			assignedCabs++
		}
	}
	if assignedCabs != 1 || len(svc.Bookings()) != 1 {
		t.Fatalf("assigned cabs=%d bookings=%d, want 1 and 1", assignedCabs, len(svc.Bookings()))
	}
}

func TestBookCabSamplingTimeout(t *testing.T) {
	svc := newTestService(t)
	b, err := svc.BookCab(context.Background(), request("near the old clock tower", "k2"), silentSampler())
	if err != nil {
		t.Fatalf("BookCab: %v", err)
	}
	if b.Status != models.StatusFailed || b.FailureReason != models.ReasonAmbiguousInputUnresolved {
		t.Fatalf("booking = %s/%s, want failed/%s", b.Status, b.FailureReason, models.ReasonAmbiguousInputUnresolved)
	}

	rec, err := svc.Records.GetByBookingID(context.Background(), b.ID)
	if err != nil || rec.Status != models.StatusFailed {
		t.Fatalf("archived record = %+v, %v", rec, err)
	}
}

func TestBookCabSamplingResolvesAndCaches(t *testing.T) {
	svc := newTestService(t)
	svc.Cache = locationcache.NewMemoryCache(time.Minute)
	calls := 0
	sampler := samplerFunc(func(_ context.Context, _ models.SamplingPrompt, _ schema.Schema, _ time.Time) (schema.Values, error) {
		calls++
		return schema.Values{"location": "Airport"}, nil
	})

	for _, key := range []string{"a", "b"} {
		b, err := svc.BookCab(context.Background(), request("terminal 2 arrivals", key), sampler)
		if err != nil {
			t.Fatalf("BookCab: %v", err)
		}
		if b.Status != models.StatusAssigned || b.ResolvedPickup != "Airport" {
			t.Fatalf("booking = %+v", b)
		}
	}
	if calls != 1 {
		t.Fatalf("sampler called %d times, want 1", calls)
	}
}

func TestBookCabSamplingUnknownAnswer(t *testing.T) {
	svc := newTestService(t)
	sampler := samplerFunc(func(context.Context, models.SamplingPrompt, schema.Schema, time.Time) (schema.Values, error) {
		return schema.Values{"location": "Moon Base"}, nil
	})
	b, err := svc.BookCab(context.Background(), request("somewhere", ""), sampler)
	if err != nil {
		t.Fatalf("BookCab: %v", err)
	}
	if b.Status != models.StatusFailed || b.FailureReason != models.ReasonAmbiguousInputUnresolved {
		t.Fatalf("booking = %+v", b)
	}
}

func TestBookCabCancelledDuringSampling(t *testing.T) {
	svc := newTestService(t)
	svc.Options.SamplingTimeout = time.Minute
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	b, err := svc.BookCab(ctx, request("somewhere vague", ""), silentSampler())
	if !errors.Is(err, utils.ErrCancelled) {
		t.Fatalf("err = %v, want cancelled", err)
	}
	if b.Status != models.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", b.Status)
	}
}

func TestBookCabFallsBackToNeighbour(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.BookCab(ctx, request("Airport", ""), nil); err != nil {
			t.Fatal(err)
		}
	}
	b, err := svc.BookCab(ctx, request("Airport", ""), nil)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != models.StatusAssigned || b.AssignedCab() != "d1" {
		t.Fatalf("booking = %s cab %s, want assigned d1", b.Status, b.AssignedCab())
	}
}

func TestBookCabMatchesTypeAndCapacity(t *testing.T) {
	svc := newTestService(t)
	req := request("Airport", "")
	req.PartySize = 5
	b, err := svc.BookCab(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if b.AssignedCab() != "a3" {
		t.Fatalf("cab = %s, want a3", b.AssignedCab())
	}

	req = request("Suburb", "")
	req.CabType = models.CabLuxury
	b, _ = svc.BookCab(context.Background(), req, nil)
	if b.Status != models.StatusFailed || b.FailureReason != models.ReasonNoCabsAvailable {
		t.Fatalf("booking = %+v, want failed", b)
	}
}

func TestBookCabValidation(t *testing.T) {
	svc := newTestService(t)
	req := request("Airport", "")
	req.Passenger = " "
	_, err := svc.BookCab(context.Background(), req, nil)
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Kind != utils.KindValidation || appErr.Field != "passenger" {
		t.Fatalf("err = %v, want validation on passenger", err)
	}
	if len(svc.Bookings()) != 0 {
		t.Fatal("invalid request created a booking")
	}
}

func TestCancelReleasesCab(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	b, _ := svc.BookCab(ctx, request("Suburb", ""), nil)

	cancelled, err := svc.Cancel(ctx, b.ID, "")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != models.StatusCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
	avail, _ := svc.ListAvailable(ctx, "Suburb")
	if !contains(avail.CabIDs, "s1") {
		t.Fatalf("s1 not listed after cancel: %v", avail.CabIDs)
	}
	if _, err := svc.Cancel(ctx, b.ID, ""); !errors.Is(err, utils.ErrConflict) {
		t.Fatalf("second cancel err = %v, want conflict", err)
	}
}

func TestTripProgression(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	b, _ := svc.BookCab(ctx, request("Suburb", ""), nil)

	if _, err := svc.CompleteTrip(ctx, b.ID); !errors.Is(err, utils.ErrConflict) {
		t.Fatalf("complete before start err = %v, want conflict", err)
	}
	if b, err := svc.StartTrip(ctx, b.ID); err != nil || b.Status != models.StatusEnRoute {
		t.Fatalf("StartTrip = %s, %v", b.Status, err)
	}
	done, err := svc.CompleteTrip(ctx, b.ID)
	if err != nil || done.Status != models.StatusCompleted {
		t.Fatalf("CompleteTrip = %s, %v", done.Status, err)
	}

	cab, _ := svc.Store.Cab("s1")
	if cab.Status != models.CabAvailable || cab.Location != "Downtown" {
		t.Fatalf("cab after trip = %+v", cab)
	}
	avail, _ := svc.ListAvailable(ctx, "Downtown")
	if !contains(avail.CabIDs, "s1") {
		t.Fatalf("s1 not listed at drop-off: %v", avail.CabIDs)
	}
}

type recordingScheduler struct {
	mu       sync.Mutex
	payloads []models.ReminderPayload
	fireAt   []time.Time
}

func (r *recordingScheduler) ScheduleReminder(_ context.Context, p models.ReminderPayload, fireAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	r.fireAt = append(r.fireAt, fireAt)
	return nil
}

func TestBookCabSchedulesReminder(t *testing.T) {
	svc := newTestService(t)
	rec := &recordingScheduler{}
	svc.Reminders = rec

	req := request("Airport", "")
	b, err := svc.BookCab(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("BookCab: %v", err)
	}
	if len(rec.payloads) != 1 {
		t.Fatalf("reminders = %d, want 1", len(rec.payloads))
	}
	if rec.payloads[0].BookingID != b.ID || rec.payloads[0].CabID != *b.CabID {
		t.Fatalf("payload = %+v", rec.payloads[0])
	}
	want := req.PickupTime.Add(-svc.Options.ReminderLead)
	if !rec.fireAt[0].Equal(want) {
		t.Fatalf("fireAt = %v, want %v", rec.fireAt[0], want)
	}
}
