package models

// ReminderPayload is the body of a pickup reminder task.
type ReminderPayload struct {
	BookingID string `json:"bookingId"`
	Passenger string `json:"passenger"`
	CabID     string `json:"cabId"`
	Pickup    string `json:"pickup"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	FireDate  string `json:"fireDate"` // RFC 3339
}
