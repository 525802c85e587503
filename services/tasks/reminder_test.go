package tasks

import (
	"testing"
	"time"

	"cabbooking/models"
)

func TestNewReminderTaskRoundTrip(t *testing.T) {
	payload := models.ReminderPayload{
		BookingID: "BK-7",
		Passenger: "Ana",
		CabID:     "a1",
		Pickup:    "Airport",
		Title:     "Your driver details",
	}
	task, opts, err := NewReminderTask(payload, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("NewReminderTask: %v", err)
	}
	if task.Type() != TypeSendReminder {
		t.Fatalf("type = %q", task.Type())
	}
	if len(opts) != 3 {
		t.Fatalf("opts = %d, want 3", len(opts))
	}

	got, err := ParseReminder(task)
	if err != nil {
		t.Fatalf("ParseReminder: %v", err)
	}
	if got != payload {
		t.Fatalf("payload = %+v, want %+v", got, payload)
	}
}
