package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cabbooking/models"
	"cabbooking/services/schema"

	"go.uber.org/zap"
)

// pickupResolutionSchema is what the agent must answer with when asked to
// map a free-text pickup to a known location.
var pickupResolutionSchema = schema.Object(
	schema.Field{Name: "location", Type: schema.TypeString, Required: true, Description: "One of the known pickup locations, spelled exactly as listed"},
	schema.Field{Name: "confidence", Type: schema.TypeNumber, Description: "Confidence between 0 and 1"},
	schema.Field{Name: "rationale", Type: schema.TypeString, Description: "Short explanation"},
)

// resolvePickup maps pickup to a known location: directly, from the
// location cache, or by asking the agent through sampler.
func (s *DefaultBookingService) resolvePickup(ctx context.Context, bookingID, pickup string, sampler Sampler) (string, error) {
	if loc, ok := s.Index.Canonical(pickup); ok {
		return loc, nil
	}
	log := s.logger().With(zap.String("booking_id", bookingID), zap.String("pickup", pickup))

	if s.Cache != nil {
		cached, ok, err := s.Cache.Get(ctx, pickup)
		switch {
		case err != nil:
			log.Warn("Location cache lookup failed", zap.Error(err))
		case ok:
			if loc, known := s.Index.Canonical(cached); known {
				log.Debug("Pickup resolved from cache", zap.String("location", loc))
				return loc, nil
			}
		}
	}

	if sampler == nil {
		return "", &ResolutionError{Pickup: pickup, Reason: "agent cannot be asked"}
	}

	deadline := time.Now().Add(s.Options.SamplingTimeout)
	log.Info("Asking agent to resolve pickup", zap.Time("deadline", deadline))
	values, err := sampler.Sample(ctx, s.pickupPrompt(pickup), pickupResolutionSchema, deadline)
	if err != nil {
		return "", &ResolutionError{Pickup: pickup, Reason: "sampling failed", Err: err}
	}
	answer := values.String("location")
	loc, ok := s.Index.Canonical(answer)
	if !ok {
		return "", &ResolutionError{Pickup: pickup, Reason: fmt.Sprintf("agent answered unknown location %q", answer)}
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, pickup, loc); err != nil {
			log.Warn("Location cache write failed", zap.Error(err))
		}
	}
	log.Info("Pickup resolved by agent", zap.String("location", loc))
	return loc, nil
}

func (s *DefaultBookingService) pickupPrompt(pickup string) models.SamplingPrompt {
	return models.SamplingPrompt{
		System: "You map free-text pickup descriptions to the cab service's known pickup locations. " +
			"Answer with a JSON object only.",
		Text: fmt.Sprintf("A passenger asked to be picked up at %q.\nKnown pickup locations: %s.\n"+
			"Reply with {\"location\": \"<one known location>\", \"confidence\": <0..1>}.",
			pickup, strings.Join(s.Index.Locations(), ", ")),
		MaxTokens: 200,
	}
}
