package models

import "time"

// BookingStatus is a state of the booking lifecycle.
type BookingStatus string

const (
	StatusRequested BookingStatus = "requested"
	StatusConfirmed BookingStatus = "confirmed"
	StatusAssigned  BookingStatus = "assigned"
	StatusEnRoute   BookingStatus = "en_route"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusFailed    BookingStatus = "failed"
)

// Failure reasons recorded on Failed bookings.
const (
	ReasonNoCabsAvailable          = "no_cabs_available"
	ReasonAmbiguousInputUnresolved = "ambiguous_input_unresolved"
	ReasonInternal                 = "internal_error"
)

// forward lists the single forward step out of each non-terminal status.
var forward = map[BookingStatus]BookingStatus{
	StatusRequested: StatusConfirmed,
	StatusConfirmed: StatusAssigned,
	StatusAssigned:  StatusEnRoute,
	StatusEnRoute:   StatusCompleted,
}

// IsTerminal reports whether no further transition is allowed.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// CanTransition reports whether from → to is a legal lifecycle step.
// Forward steps never skip a state; Cancelled and Failed are reachable from
// every non-terminal state.
func CanTransition(from, to BookingStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled || to == StatusFailed {
		return true
	}
	return forward[from] == to
}

// Booking represents a cab booking record.
type Booking struct {
	ID             string        `bson:"id" json:"booking_id"`                                     // e.g. CAB1000
	Passenger      string        `bson:"passenger" json:"passenger"`                               // Passenger reference
	Pickup         string        `bson:"pickup" json:"pickup_location"`                            // Pickup as supplied by the caller
	ResolvedPickup string        `bson:"resolved_pickup,omitempty" json:"resolved_pickup,omitempty"` // Known location the pickup resolved to
	Dropoff        string        `bson:"dropoff" json:"dropoff_location"`                          // Drop-off location
	PickupTime     time.Time     `bson:"pickup_time" json:"pickup_datetime"`                       // Requested pickup time
	CabType        CabType       `bson:"cab_type,omitempty" json:"cab_type,omitempty"`             // Requested cab type, empty for any
	PartySize      int           `bson:"party_size" json:"party_size"`                             // Seats needed
	Status         BookingStatus `bson:"status" json:"status"`                                     // Lifecycle status
	CabID          *string       `bson:"cab_id,omitempty" json:"cab_id"`                           // Assigned cab, nil until Assigned
	IdempotencyKey string        `bson:"idempotency_key,omitempty" json:"idempotency_key,omitempty"`
	Fare           float64       `bson:"fare" json:"fare"`                                         // Estimated fare
	FailureReason  string        `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"` // Set on Failed/Cancelled
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

// Clone returns a copy that shares no pointers with b.
func (b Booking) Clone() Booking {
	if b.CabID != nil {
		id := *b.CabID
		b.CabID = &id
	}
	return b
}

// AssignedCab returns the assigned cab id or "".
func (b Booking) AssignedCab() string {
	if b.CabID == nil {
		return ""
	}
	return *b.CabID
}
