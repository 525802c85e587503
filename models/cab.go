package models

import "strings"

// CabStatus is the operational state of a cab.
type CabStatus string

const (
	CabAvailable    CabStatus = "available"
	CabAssigned     CabStatus = "assigned"
	CabOutOfService CabStatus = "out_of_service"
)

// CabType is the service tier of a cab.
type CabType string

const (
	CabStandard CabType = "Standard"
	CabPremium  CabType = "Premium"
	CabLuxury   CabType = "Luxury"
)

// CabTypes lists the tiers in display order.
var CabTypes = []CabType{CabStandard, CabPremium, CabLuxury}

// ParseCabType matches a tier name case-insensitively.
func ParseCabType(s string) (CabType, bool) {
	for _, t := range CabTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}

// Cab is a vehicle provisioned by the fleet.
type Cab struct {
	ID        string    `bson:"id" json:"cab_id"`
	Location  string    `bson:"location" json:"location"`
	Capacity  int       `bson:"capacity" json:"capacity"`
	Type      CabType   `bson:"type" json:"type"`
	Status    CabStatus `bson:"status" json:"status"`
	BookingID string    `bson:"booking_id,omitempty" json:"booking_id,omitempty"` // Active booking while Assigned
}

// NormalizeLocation is the canonical key form of a location identifier.
func NormalizeLocation(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
