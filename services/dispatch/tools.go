package dispatch

import (
	"context"
	"strings"
	"time"

	"cabbooking/models"
	"cabbooking/services/booking"
	"cabbooking/services/schema"
	"cabbooking/utils"
)

const (
	ToolBookCab            = "book_cab"
	ToolCheckBookingStatus = "check_booking_status"
	ToolListAvailableCabs  = "list_available_cabs"
	ToolCancelBooking      = "cancel_booking"
	ToolUpdateTripStatus   = "update_trip_status"
)

var cabTypeNames = []string{string(models.CabStandard), string(models.CabPremium), string(models.CabLuxury)}

var bookingIDField = schema.Field{Name: "booking_id", Type: schema.TypeString, Required: true, Description: "The booking reference ID (e.g., CAB1001)"}

// bookingResult documents the Booking record returned by the booking tools.
var bookingResult = schema.Schema{Open: true, Fields: []schema.Field{
	{Name: "booking_id", Type: schema.TypeString, Required: true},
	{Name: "status", Type: schema.TypeString, Required: true, Enum: []string{
		string(models.StatusRequested), string(models.StatusConfirmed), string(models.StatusAssigned),
		string(models.StatusEnRoute), string(models.StatusCompleted), string(models.StatusCancelled), string(models.StatusFailed),
	}},
	{Name: "pickup_location", Type: schema.TypeString, Required: true},
	{Name: "dropoff_location", Type: schema.TypeString, Required: true},
	{Name: "pickup_datetime", Type: schema.TypeString, Required: true},
	{Name: "fare", Type: schema.TypeNumber},
	{Name: "failure_reason", Type: schema.TypeString},
}}

var availabilityResult = schema.Object(
	schema.Field{Name: "location", Type: schema.TypeString, Required: true},
	schema.Field{Name: "cab_ids", Type: schema.TypeArray, Items: schema.TypeString, Required: true},
	schema.Field{Name: "by_type", Type: schema.TypeObject, Required: true},
	schema.Field{Name: "version", Type: schema.TypeInteger, Required: true},
)

func (d *Dispatcher) registerTools() error {
	entries := []struct {
		contract schema.Contract
		fn       toolFunc
	}{
		{
			contract: schema.Contract{
				Name:        ToolBookCab,
				Title:       "Book a cab",
				Description: "Books a cab with specified details. Returns the booking; a booking that could not be served comes back with status failed and a failure_reason.",
				Params: schema.Object(
					schema.Field{Name: "pickup", Type: schema.TypeString, Required: true, Description: "Pickup location; free text is resolved to a known location"},
					schema.Field{Name: "dropoff", Type: schema.TypeString, Required: true, Description: "Drop-off location"},
					schema.Field{Name: "time", Type: schema.TypeString, Required: true, Description: "Pickup date and time (RFC 3339)"},
					schema.Field{Name: "passenger", Type: schema.TypeString, Required: true, Description: "Passenger name or reference"},
					schema.Field{Name: "idempotency_key", Type: schema.TypeString, Description: "Repeating a call with the same key returns the same booking"},
					schema.Field{Name: "cab_type", Type: schema.TypeString, Enum: cabTypeNames, Description: "Type of cab (Standard/Premium/Luxury); any type when omitted"},
					schema.Field{Name: "party_size", Type: schema.TypeInteger, Description: "Number of passengers, default 1"},
				),
				Result: &bookingResult,
			},
			fn: bind(decodeBookCab, d.bookCab),
		},
		{
			contract: schema.Contract{
				Name:        ToolCheckBookingStatus,
				Title:       "Check booking status",
				Description: "Checks the status of a booking by booking ID",
				Params:      schema.Object(bookingIDField),
				Result:      &bookingResult,
				ReadOnly:    true,
				Idempotent:  true,
			},
			fn: bind(decodeBookingID, d.checkStatus),
		},
		{
			contract: schema.Contract{
				Name:        ToolListAvailableCabs,
				Title:       "List available cabs",
				Description: "Lists the cabs currently available at a pickup location",
				Params: schema.Object(
					schema.Field{Name: "location", Type: schema.TypeString, Required: true, Description: "Location to search for cabs"},
				),
				Result:     &availabilityResult,
				ReadOnly:   true,
				Idempotent: true,
			},
			fn: bind(decodeLocation, d.listAvailable),
		},
		{
			contract: schema.Contract{
				Name:        ToolCancelBooking,
				Title:       "Cancel a booking",
				Description: "Cancels a booking that has not finished and frees its cab",
				Params: schema.Object(
					bookingIDField,
					schema.Field{Name: "reason", Type: schema.TypeString, Description: "Why the booking is cancelled"},
				),
				Result: &bookingResult,
			},
			fn: bind(decodeCancel, d.cancel),
		},
		{
			contract: schema.Contract{
				Name:        ToolUpdateTripStatus,
				Title:       "Update trip status",
				Description: "Marks an assigned booking's trip as en route, or an en-route trip as completed",
				Params: schema.Object(
					bookingIDField,
					schema.Field{Name: "status", Type: schema.TypeString, Required: true, Enum: []string{string(models.StatusEnRoute), string(models.StatusCompleted)}},
				),
				Result: &bookingResult,
			},
			fn: bind(decodeTripUpdate, d.updateTrip),
		},
	}
	for _, e := range entries {
		if err := d.addTool(e.contract, e.fn); err != nil {
			return err
		}
	}
	return nil
}

func decodeBookCab(v schema.Values) (booking.BookRequest, error) {
	req := booking.BookRequest{
		Pickup:         v.String("pickup"),
		Dropoff:        v.String("dropoff"),
		Passenger:      v.String("passenger"),
		IdempotencyKey: v.String("idempotency_key"),
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(v.String("time")))
	if err != nil {
		return req, utils.NewValidationError("time", "field %q must be an RFC 3339 date-time", "time")
	}
	req.PickupTime = t
	if name := v.String("cab_type"); name != "" {
		ct, _ := models.ParseCabType(name)
		req.CabType = ct
	}
	if v.Has("party_size") {
		n, _ := v.Int("party_size")
		if n < 1 {
			return req, utils.NewValidationError("party_size", "field %q must be at least 1", "party_size")
		}
		req.PartySize = n
	}
	return req, nil
}

func decodeBookingID(v schema.Values) (string, error) {
	id := strings.TrimSpace(v.String("booking_id"))
	if id == "" {
		return "", utils.NewValidationError("booking_id", "field %q must not be empty", "booking_id")
	}
	return id, nil
}

func decodeLocation(v schema.Values) (string, error) {
	loc := strings.TrimSpace(v.String("location"))
	if loc == "" {
		return "", utils.NewValidationError("location", "field %q must not be empty", "location")
	}
	return loc, nil
}

type cancelParams struct {
	BookingID string
	Reason    string
}

func decodeCancel(v schema.Values) (cancelParams, error) {
	id, err := decodeBookingID(v)
	return cancelParams{BookingID: id, Reason: v.String("reason")}, err
}

type tripUpdate struct {
	BookingID string
	Status    models.BookingStatus
}

func decodeTripUpdate(v schema.Values) (tripUpdate, error) {
	id, err := decodeBookingID(v)
	return tripUpdate{BookingID: id, Status: models.BookingStatus(v.String("status"))}, err
}

func (d *Dispatcher) bookCab(ctx context.Context, req booking.BookRequest, call Call) (any, error) {
	return d.bookings.BookCab(ctx, req, call.Sampler)
}

func (d *Dispatcher) checkStatus(ctx context.Context, id string, _ Call) (any, error) {
	return d.bookings.CheckStatus(ctx, id)
}

func (d *Dispatcher) listAvailable(ctx context.Context, location string, _ Call) (any, error) {
	return d.bookings.ListAvailable(ctx, location)
}

func (d *Dispatcher) cancel(ctx context.Context, p cancelParams, _ Call) (any, error) {
	return d.bookings.Cancel(ctx, p.BookingID, p.Reason)
}

func (d *Dispatcher) updateTrip(ctx context.Context, p tripUpdate, _ Call) (any, error) {
	if p.Status == models.StatusCompleted {
		return d.bookings.CompleteTrip(ctx, p.BookingID)
	}
	return d.bookings.StartTrip(ctx, p.BookingID)
}
