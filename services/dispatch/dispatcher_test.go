package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cabbooking/config"
	recordsRepo "cabbooking/database/repository/records"
	"cabbooking/models"
	"cabbooking/services/availability"
	"cabbooking/services/booking"
	"cabbooking/services/prompts"
	"cabbooking/services/schema"
	"cabbooking/utils"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	fleet, err := config.LoadFleet("")
	if err != nil {
		t.Fatalf("LoadFleet: %v", err)
	}
	store := booking.NewStore()
	index := availability.NewIndex()
	neighbors, err := booking.Provision(fleet, store, index)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	records := recordsRepo.NewMemoryRecordRepo()
	svc := booking.NewBookingService(store, index, neighbors, booking.Options{RecheckInterval: time.Millisecond}, nil)
	svc.Records = records
	catalog, err := prompts.Load()
	if err != nil {
		t.Fatalf("prompts.Load: %v", err)
	}
	d, err := New(svc, catalog, records, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func invoke(tool string, params map[string]any) models.ToolInvocation {
	return models.ToolInvocation{Tool: tool, Params: params, InvocationID: "1", SessionID: "test"}
}

func bookParams(key string) map[string]any {
	return map[string]any{
		"pickup":          "Airport",
		"dropoff":         "Downtown",
		"time":            time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		"passenger":       "Ana",
		"idempotency_key": key,
	}
}

func kindOf(t *testing.T, err error) utils.ErrorKind {
	t.Helper()
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("err %v (%T) is not an AppError", err, err)
	}
	return appErr.Kind
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(t)
	_, err := d.Dispatch(context.Background(), invoke("fly_plane", nil), nil)
	if kindOf(t, err) != utils.KindNotFound {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestDispatchValidation(t *testing.T) {
	d := newTestDispatcher(t)
	tests := []struct {
		name   string
		tool   string
		params map[string]any
		field  string
	}{
		{"empty book_cab reports first declared field", ToolBookCab, map[string]any{}, "pickup"},
		{"unknown field", ToolCheckBookingStatus, map[string]any{"booking_id": "CAB1000", "verbose": true}, "verbose"},
		{"wrong type", ToolListAvailableCabs, map[string]any{"location": 42.0}, "location"},
		{"bad time", ToolBookCab, map[string]any{"pickup": "Airport", "dropoff": "Harbor", "time": "tomorrow", "passenger": "Ana"}, "time"},
		{"bad cab type", ToolBookCab, map[string]any{"pickup": "Airport", "dropoff": "Harbor", "time": "2026-05-01T10:00:00Z", "passenger": "Ana", "cab_type": "Rickshaw"}, "cab_type"},
		{"bad trip status", ToolUpdateTripStatus, map[string]any{"booking_id": "CAB1000", "status": "assigned"}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Dispatch(context.Background(), invoke(tt.tool, tt.params), nil)
			var appErr *utils.AppError
			if !errors.As(err, &appErr) || appErr.Kind != utils.KindValidation {
				t.Fatalf("err = %v, want validation", err)
			}
			if appErr.Field != tt.field {
				t.Fatalf("field = %q, want %q", appErr.Field, tt.field)
			}
		})
	}
	if n := len(d.bookings.Bookings()); n != 0 {
		t.Fatalf("validation failures created %d bookings", n)
	}
}

func TestDispatchBookAndCheck(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	res, err := d.Dispatch(ctx, invoke(ToolBookCab, bookParams("k1")), nil)
	if err != nil {
		t.Fatalf("book_cab: %v", err)
	}
	b := res.(models.Booking)
	if b.Status != models.StatusAssigned {
		t.Fatalf("status = %s, want assigned", b.Status)
	}

	again, err := d.Dispatch(ctx, invoke(ToolBookCab, bookParams("k1")), nil)
	if err != nil || again.(models.Booking).ID != b.ID {
		t.Fatalf("duplicate book_cab = %+v, %v", again, err)
	}

	status, err := d.Dispatch(ctx, invoke(ToolCheckBookingStatus, map[string]any{"booking_id": b.ID}), nil)
	if err != nil || status.(models.Booking).Status != models.StatusAssigned {
		t.Fatalf("check_booking_status = %+v, %v", status, err)
	}

	_, err = d.Dispatch(ctx, invoke(ToolCheckBookingStatus, map[string]any{"booking_id": "unknown-id"}), nil)
	if kindOf(t, err) != utils.KindNotFound {
		t.Fatalf("unknown booking err = %v", err)
	}

	avail, err := d.Dispatch(ctx, invoke(ToolListAvailableCabs, map[string]any{"location": "Airport"}), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range avail.(booking.Availability).CabIDs {
		if id == b.AssignedCab() {
			t.Fatalf("assigned cab %s still listed", id)
		}
	}
}

func TestDispatchTripAndCancel(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	res, _ := d.Dispatch(ctx, invoke(ToolBookCab, bookParams("")), nil)
	id := res.(models.Booking).ID

	for _, status := range []string{"en_route", "completed"} {
		res, err := d.Dispatch(ctx, invoke(ToolUpdateTripStatus, map[string]any{"booking_id": id, "status": status}), nil)
		if err != nil || string(res.(models.Booking).Status) != status {
			t.Fatalf("update_trip_status(%s) = %+v, %v", status, res, err)
		}
	}
	_, err := d.Dispatch(ctx, invoke(ToolCancelBooking, map[string]any{"booking_id": id}), nil)
	if kindOf(t, err) != utils.KindConflict {
		t.Fatalf("cancel completed booking err = %v, want conflict", err)
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	d := newTestDispatcher(t)
	if err := d.addTool(schema.Contract{Name: "explode"}, func(context.Context, schema.Values, Call) (any, error) {
		panic("boom")
	}); err != nil {
		t.Fatal(err)
	}
	_, err := d.Dispatch(context.Background(), invoke("explode", nil), nil)
	if kindOf(t, err) != utils.KindInternal {
		t.Fatalf("err = %v, want internal", err)
	}
}

func TestReadResource(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	res, _ := d.Dispatch(ctx, invoke(ToolBookCab, bookParams("")), nil)
	b := res.(models.Booking)

	content, err := d.ReadResource(ctx, "booking://"+b.ID)
	if err != nil || content.Data.(models.Booking).ID != b.ID {
		t.Fatalf("read booking = %+v, %v", content, err)
	}
	all, err := d.ReadResource(ctx, ResourceAllBookings)
	if err != nil || len(all.Data.([]models.Booking)) != 1 {
		t.Fatalf("read all = %+v, %v", all, err)
	}
	if _, err := d.ReadResource(ctx, "booking://CAB9999"); kindOf(t, err) != utils.KindNotFound {
		t.Fatalf("unknown booking err = %v", err)
	}
	if _, err := d.ReadResource(ctx, "weather://today"); kindOf(t, err) != utils.KindNotFound {
		t.Fatalf("unknown uri err = %v", err)
	}

	d.Dispatch(ctx, invoke(ToolCancelBooking, map[string]any{"booking_id": b.ID}), nil)
	history, err := d.ReadResource(ctx, ResourceHistory)
	if err != nil {
		t.Fatal(err)
	}
	records := history.Data.([]models.HistoricalRecord)
	if len(records) != 1 || records[0].BookingID != b.ID || records[0].Status != models.StatusCancelled {
		t.Fatalf("history = %+v", records)
	}
}

func TestGetPrompt(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()
	res, _ := d.Dispatch(ctx, invoke(ToolBookCab, bookParams("")), nil)
	b := res.(models.Booking)

	out, err := d.GetPrompt(ctx, "booking_confirmation", map[string]any{"booking_id": b.ID})
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if !strings.Contains(out.Text, "Booking ID: "+b.ID) {
		t.Fatalf("text = %s", out.Text)
	}

	if _, err := d.GetPrompt(ctx, "booking_confirmation", nil); kindOf(t, err) != utils.KindValidation {
		t.Fatalf("missing arg err = %v", err)
	}
	if _, err := d.GetPrompt(ctx, "haiku", nil); kindOf(t, err) != utils.KindNotFound {
		t.Fatalf("unknown prompt err = %v", err)
	}
	assistant, err := d.GetPrompt(ctx, "booking_assistant", nil)
	if err != nil || !strings.Contains(assistant.Text, "Airport") {
		t.Fatalf("booking_assistant = %+v, %v", assistant, err)
	}
}
