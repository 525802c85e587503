package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cabbooking/models"
	"cabbooking/utils"

	"go.uber.org/zap"
)

func (r BookRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Pickup) == "":
		return utils.NewValidationError("pickup", "pickup must not be empty")
	case strings.TrimSpace(r.Dropoff) == "":
		return utils.NewValidationError("dropoff", "dropoff must not be empty")
	case r.PickupTime.IsZero():
		return utils.NewValidationError("time", "time must be set")
	case strings.TrimSpace(r.Passenger) == "":
		return utils.NewValidationError("passenger", "passenger must not be empty")
	case r.PartySize < 0:
		return utils.NewValidationError("party_size", "party_size must be positive")
	}
	if r.CabType != "" {
		if _, ok := models.ParseCabType(string(r.CabType)); !ok {
			return utils.NewValidationError("cab_type", "unknown cab type %q", r.CabType)
		}
	}
	return nil
}

// BookCab runs the booking flow: create in Requested, resolve the pickup,
// confirm with a fare, reserve a cab and assign it. Running out of cabs or
// failing to resolve the pickup yields a Failed booking and a nil error; a
// cancelled ctx yields a Cancelled booking and a CancelledError.
//
// A request whose idempotency key belongs to a booking that has not failed
// returns that booking, waiting for it to settle if it is still in flight.
func (s *DefaultBookingService) BookCab(ctx context.Context, req BookRequest, sampler Sampler) (models.Booking, error) {
	if err := req.validate(); err != nil {
		return models.Booking{}, err
	}
	if req.PartySize == 0 {
		req.PartySize = 1
	}

	b, created := s.Store.Create(models.Booking{
		Passenger:      strings.TrimSpace(req.Passenger),
		Pickup:         strings.TrimSpace(req.Pickup),
		Dropoff:        strings.TrimSpace(req.Dropoff),
		PickupTime:     req.PickupTime,
		CabType:        req.CabType,
		PartySize:      req.PartySize,
		IdempotencyKey: req.IdempotencyKey,
	})
	if !created {
		s.logger().Info("Duplicate booking request", zap.String("booking_id", b.ID), zap.String("idempotency_key", req.IdempotencyKey))
		return s.awaitSettled(ctx, b.ID)
	}
	log := s.logger().With(zap.String("booking_id", b.ID))
	log.Info("Booking requested", zap.String("pickup", b.Pickup), zap.String("dropoff", b.Dropoff))

	resolved, err := s.resolvePickup(ctx, b.ID, b.Pickup, sampler)
	if err != nil {
		return s.abandon(ctx, b.ID, err)
	}

	b, err = s.Store.Transition(b.ID, models.StatusConfirmed, func(bk *models.Booking) {
		bk.ResolvedPickup = resolved
		bk.Fare = EstimateFare(bk.CabType, bk.PartySize)
	})
	if err != nil {
		// Cancelled while resolving.
		return s.Store.Get(b.ID)
	}

	res, err := s.reserve(ctx, b)
	if err != nil {
		return s.abandon(ctx, b.ID, err)
	}
	if ctx.Err() != nil {
		s.Index.Release(res.Location, res.CabID)
		return s.abandon(ctx, b.ID, utils.NewCancelledError("booking %s cancelled during reservation", b.ID))
	}

	assigned, err := s.Store.Assign(b.ID, res.CabID)
	if err != nil {
		s.Index.Release(res.Location, res.CabID)
		if errors.Is(err, utils.ErrConflict) {
			current, getErr := s.Store.Get(b.ID)
			if getErr == nil && current.Status.IsTerminal() {
				return current, nil
			}
		}
		log.Error("Failed to assign reserved cab", zap.String("cab_id", res.CabID), zap.Error(err))
		failed, _, closeErr := s.Store.Close(b.ID, models.StatusFailed, models.ReasonInternal, "")
		if closeErr == nil {
			s.archive(ctx, failed)
		}
		return failed, utils.NewInternalError(err, "assign cab %s to booking %s", res.CabID, b.ID)
	}

	log.Info("Cab assigned", zap.String("cab_id", res.CabID), zap.String("location", res.Location), zap.Float64("fare", assigned.Fare))
	s.scheduleReminder(ctx, assigned)
	return assigned, nil
}

// abandon ends an in-flight booking after err. Cancellation closes it as
// Cancelled and returns a CancelledError; every other cause closes it as
// Failed and returns the Failed booking as the result.
func (s *DefaultBookingService) abandon(ctx context.Context, bookingID string, cause error) (models.Booking, error) {
	log := s.logger().With(zap.String("booking_id", bookingID))

	if errors.Is(cause, utils.ErrCancelled) || ctx.Err() != nil {
		b, err := s.close(ctx, bookingID, models.StatusCancelled, "invocation_cancelled", "")
		if err != nil {
			return s.Store.Get(bookingID)
		}
		log.Info("Booking cancelled with its invocation", zap.Error(cause))
		return b, utils.NewCancelledError("booking %s cancelled", bookingID)
	}

	reason := models.ReasonInternal
	var resErr *ReservationError
	var resolveErr *ResolutionError
	switch {
	case errors.As(cause, &resErr):
		reason = resErr.Reason
	case errors.As(cause, &resolveErr):
		reason = models.ReasonAmbiguousInputUnresolved
	}

	b, err := s.close(ctx, bookingID, models.StatusFailed, reason, "")
	if err != nil {
		return s.Store.Get(bookingID)
	}
	log.Warn("Booking failed", zap.String("reason", reason), zap.Error(cause))
	if reason == models.ReasonInternal {
		return b, utils.NewInternalError(cause, "booking %s failed", bookingID)
	}
	return b, nil
}

// awaitSettled returns booking id once it has left Requested/Confirmed.
func (s *DefaultBookingService) awaitSettled(ctx context.Context, id string) (models.Booking, error) {
	settled, err := s.Store.Settled(id)
	if err != nil {
		return models.Booking{}, err
	}
	select {
	case <-settled:
	case <-ctx.Done():
		return models.Booking{}, utils.NewCancelledError("cancelled while waiting for booking %s", id)
	}
	return s.Store.Get(id)
}

// scheduleReminder queues the driver-details reminder ReminderLead before
// pickup. Pickups already inside the lead window are reminded at once.
func (s *DefaultBookingService) scheduleReminder(ctx context.Context, b models.Booking) {
	if s.Reminders == nil {
		return
	}
	now := time.Now()
	if !b.PickupTime.After(now) {
		return
	}
	fireAt := b.PickupTime.Add(-s.Options.ReminderLead)
	if fireAt.Before(now) {
		fireAt = now
	}
	payload := models.ReminderPayload{
		BookingID: b.ID,
		Passenger: b.Passenger,
		CabID:     b.AssignedCab(),
		Pickup:    b.ResolvedPickup,
		Title:     "Your driver details",
		Body: fmt.Sprintf("Cab %s will pick you up at %s at %s.",
			b.AssignedCab(), b.ResolvedPickup, b.PickupTime.Format(time.Kitchen)),
		FireDate: fireAt.Format(time.RFC3339),
	}
	if err := s.Reminders.ScheduleReminder(ctx, payload, fireAt); err != nil {
		s.logger().Warn("Failed to schedule reminder", zap.String("booking_id", b.ID), zap.Error(err))
	}
}
