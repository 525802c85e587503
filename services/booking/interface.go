package booking

import (
	"context"
	"time"

	"cabbooking/models"
	"cabbooking/services/schema"
)

// BookingService is the booking engine behind the tools.
type BookingService interface {
	BookCab(ctx context.Context, req BookRequest, sampler Sampler) (models.Booking, error)
	CheckStatus(ctx context.Context, bookingID string) (models.Booking, error)
	ListAvailable(ctx context.Context, location string) (Availability, error)
	Cancel(ctx context.Context, bookingID, reason string) (models.Booking, error)
	StartTrip(ctx context.Context, bookingID string) (models.Booking, error)
	CompleteTrip(ctx context.Context, bookingID string) (models.Booking, error)
	Bookings() []models.Booking
	Cabs() []models.Cab
	Locations() []string
}

// Sampler asks the calling agent for a structured answer. It is bound to
// the session the invocation arrived on; a nil Sampler means the agent
// cannot be asked.
type Sampler interface {
	Sample(ctx context.Context, prompt models.SamplingPrompt, expected schema.Schema, deadline time.Time) (schema.Values, error)
}

// ReminderScheduler queues the pre-pickup reminder for an assigned booking.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, payload models.ReminderPayload, fireAt time.Time) error
}

// BookRequest is the validated book_cab parameter record.
type BookRequest struct {
	Pickup         string
	Dropoff        string
	PickupTime     time.Time
	Passenger      string
	CabType        models.CabType
	PartySize      int
	IdempotencyKey string
}

// Availability is the list_available_cabs result.
type Availability struct {
	Location string         `json:"location"`
	CabIDs   []string       `json:"cab_ids"`
	ByType   map[string]int `json:"by_type"`
	Version  uint64         `json:"version"`
}

// Options tunes the engine. Zero values fall back to DefaultOptions.
type Options struct {
	RetryBudget     int
	RecheckInterval time.Duration
	SamplingTimeout time.Duration
	ReminderLead    time.Duration
}

func DefaultOptions() Options {
	return Options{
		RetryBudget:     3,
		RecheckInterval: 200 * time.Millisecond,
		SamplingTimeout: 30 * time.Second,
		ReminderLead:    30 * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RetryBudget <= 0 {
		o.RetryBudget = d.RetryBudget
	}
	if o.RecheckInterval < 0 {
		o.RecheckInterval = 0
	}
	if o.SamplingTimeout <= 0 {
		o.SamplingTimeout = d.SamplingTimeout
	}
	if o.ReminderLead <= 0 {
		o.ReminderLead = d.ReminderLead
	}
	return o
}
