package booking

import (
	"context"
	"errors"
	"time"

	"cabbooking/models"
	"cabbooking/services/availability"
	"cabbooking/utils"
)

type reservation struct {
	Location string
	CabID    string
}

// candidates returns the buckets tried for a pickup: the pickup itself,
// then its neighbours in declared order.
func (s *DefaultBookingService) candidates(pickup string) []string {
	out := []string{pickup}
	seen := map[string]bool{models.NormalizeLocation(pickup): true}
	for _, n := range s.Neighbors[models.NormalizeLocation(pickup)] {
		key := models.NormalizeLocation(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

// pick returns the first cab in snap, in id order, that fits b.
func (s *DefaultBookingService) pick(snap availability.Snapshot, b models.Booking) string {
	for _, id := range snap.CabIDs {
		cab, err := s.Store.Cab(id)
		if err != nil || cab.Status != models.CabAvailable {
			continue
		}
		if b.CabType != "" && cab.Type != b.CabType {
			continue
		}
		if cab.Capacity < b.PartySize {
			continue
		}
		return id
	}
	return ""
}

// reserve takes a cab out of the index for b. Each pass over the candidate
// buckets costs one attempt. A lost race ends the pass early and the next
// pass starts at once; an empty pass waits RecheckInterval first.
func (s *DefaultBookingService) reserve(ctx context.Context, b models.Booking) (reservation, error) {
	budget := s.Options.RetryBudget
	if budget <= 0 {
		budget = DefaultOptions().RetryBudget
	}
	buckets := s.candidates(b.ResolvedPickup)

	for attempts := 1; ; attempts++ {
		if err := ctx.Err(); err != nil {
			return reservation{}, utils.NewCancelledError("booking %s cancelled during reservation", b.ID)
		}

		conflicted := false
		for _, loc := range buckets {
			snap := s.Index.Available(loc)
			cabID := s.pick(snap, b)
			if cabID == "" {
				continue
			}
			err := s.Index.Reserve(loc, cabID, snap.Version)
			if err == nil {
				return reservation{Location: snap.Location, CabID: cabID}, nil
			}
			if !errors.Is(err, utils.ErrConflict) {
				return reservation{}, err
			}
			conflicted = true
			break
		}

		if attempts >= budget {
			return reservation{}, &ReservationError{Reason: models.ReasonNoCabsAvailable, Attempts: attempts}
		}
		if conflicted || s.Options.RecheckInterval == 0 {
			continue
		}
		timer := time.NewTimer(s.Options.RecheckInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return reservation{}, utils.NewCancelledError("booking %s cancelled during reservation", b.ID)
		case <-timer.C:
		}
	}
}
