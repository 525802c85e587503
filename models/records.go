package models

import "time"

// HistoricalRecord carries a booking that reached a terminal status.
type HistoricalRecord struct {
	ID        string        `bson:"id" json:"id"`                  // Unique ID for the historical record
	BookingID string        `bson:"bookingId" json:"bookingId"`    // Archived booking
	Pickup    string        `bson:"pickup" json:"pickup"`          // Resolved pickup location
	Dropoff   string        `bson:"dropoff" json:"dropoff"`        // Drop-off location
	CabID     string        `bson:"cabId,omitempty" json:"cabId"`  // Cab that served the trip, if any
	CabType   CabType       `bson:"cabType" json:"cabType"`        // Tier requested
	Status    BookingStatus `bson:"status" json:"status"`          // Terminal status
	Reason    string        `bson:"reason,omitempty" json:"reason,omitempty"`
	Fare      float64       `bson:"fare" json:"fare"`
	PickupAt  time.Time     `bson:"pickupAt" json:"pickupAt"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
	ClosedAt  time.Time     `bson:"closedAt" json:"closedAt"`
}

// RecordFromBooking snapshots a terminal booking.
func RecordFromBooking(b Booking) HistoricalRecord {
	pickup := b.ResolvedPickup
	if pickup == "" {
		pickup = b.Pickup
	}
	return HistoricalRecord{
		BookingID: b.ID,
		Pickup:    pickup,
		Dropoff:   b.Dropoff,
		CabID:     b.AssignedCab(),
		CabType:   b.CabType,
		Status:    b.Status,
		Reason:    b.FailureReason,
		Fare:      b.Fare,
		PickupAt:  b.PickupTime,
		CreatedAt: b.CreatedAt,
		ClosedAt:  b.UpdatedAt,
	}
}
