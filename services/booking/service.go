package booking

import (
	"context"
	"time"

	recordsRepo "cabbooking/database/repository/records"
	"cabbooking/models"
	"cabbooking/services/availability"
	"cabbooking/services/locationcache"
	"cabbooking/utils"

	"go.uber.org/zap"
)

// DefaultBookingService runs the booking lifecycle on top of the store and
// the availability index. Cache, Records and Reminders are optional.
type DefaultBookingService struct {
	Store     *Store
	Index     *availability.Index
	Neighbors map[string][]string
	Cache     locationcache.Cache
	Records   recordsRepo.HistoricalRecordRepository
	Reminders ReminderScheduler
	Options   Options
	Logger    *zap.Logger
}

// NewBookingService wires a service with default options and a no-op logger
// where none is given.
func NewBookingService(store *Store, index *availability.Index, neighbors map[string][]string, opts Options, logger *zap.Logger) *DefaultBookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultBookingService{
		Store:     store,
		Index:     index,
		Neighbors: neighbors,
		Options:   opts.withDefaults(),
		Logger:    logger,
	}
}

func (s *DefaultBookingService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// CheckStatus returns the current state of a booking.
func (s *DefaultBookingService) CheckStatus(_ context.Context, bookingID string) (models.Booking, error) {
	if bookingID == "" {
		return models.Booking{}, utils.NewValidationError("booking_id", "booking_id must not be empty")
	}
	return s.Store.Get(bookingID)
}

// ListAvailable reads the committed snapshot of a location. Unknown
// locations have no cabs.
func (s *DefaultBookingService) ListAvailable(_ context.Context, location string) (Availability, error) {
	snap := s.Index.Available(location)
	byType := make(map[string]int)
	for _, id := range snap.CabIDs {
		cab, err := s.Store.Cab(id)
		if err != nil {
			continue
		}
		byType[string(cab.Type)]++
	}
	return Availability{Location: snap.Location, CabIDs: snap.CabIDs, ByType: byType, Version: snap.Version}, nil
}

// Cancel moves a non-terminal booking to Cancelled and frees its cab.
func (s *DefaultBookingService) Cancel(ctx context.Context, bookingID, reason string) (models.Booking, error) {
	if reason == "" {
		reason = "cancelled_by_agent"
	}
	b, err := s.close(ctx, bookingID, models.StatusCancelled, reason, "")
	if err != nil {
		return b, err
	}
	s.logger().Info("Booking cancelled", zap.String("booking_id", b.ID), zap.String("reason", reason))
	return b, nil
}

// StartTrip moves an Assigned booking to EnRoute.
func (s *DefaultBookingService) StartTrip(_ context.Context, bookingID string) (models.Booking, error) {
	b, err := s.Store.Transition(bookingID, models.StatusEnRoute, nil)
	if err != nil {
		return b, err
	}
	s.logger().Info("Trip started", zap.String("booking_id", b.ID), zap.String("cab_id", b.AssignedCab()))
	return b, nil
}

// CompleteTrip finishes an EnRoute booking. The cab becomes available at
// the drop-off when that is a known location, otherwise where it was.
func (s *DefaultBookingService) CompleteTrip(ctx context.Context, bookingID string) (models.Booking, error) {
	current, err := s.Store.Get(bookingID)
	if err != nil {
		return current, err
	}
	moveTo, _ := s.Index.Canonical(current.Dropoff)
	b, err := s.close(ctx, bookingID, models.StatusCompleted, "", moveTo)
	if err != nil {
		return b, err
	}
	s.logger().Info("Trip completed", zap.String("booking_id", b.ID), zap.String("cab_id", b.AssignedCab()))
	return b, nil
}

// Bookings returns every booking in creation order.
func (s *DefaultBookingService) Bookings() []models.Booking {
	return s.Store.List()
}

// Cabs returns every provisioned cab sorted by id.
func (s *DefaultBookingService) Cabs() []models.Cab {
	return s.Store.Cabs()
}

// Locations returns the known pickup locations, sorted.
func (s *DefaultBookingService) Locations() []string {
	return s.Index.Locations()
}

// close applies a terminal transition, lists the freed cab again and
// archives the booking.
func (s *DefaultBookingService) close(ctx context.Context, bookingID string, to models.BookingStatus, reason, moveTo string) (models.Booking, error) {
	b, rel, err := s.Store.Close(bookingID, to, reason, moveTo)
	if err != nil {
		return b, err
	}
	if rel != nil {
		s.Index.Release(rel.Location, rel.CabID)
	}
	s.archive(ctx, b)
	return b, nil
}

// archive stores a terminal booking in the history repository. Failures are
// logged only; the in-memory store stays authoritative.
func (s *DefaultBookingService) archive(ctx context.Context, b models.Booking) {
	if s.Records == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.Records.Create(ctx, models.RecordFromBooking(b)); err != nil {
		s.logger().Warn("Failed to archive booking", zap.String("booking_id", b.ID), zap.Error(err))
	}
}
