package booking

import "fmt"

// ReservationError records why the reservation loop gave up. It never
// reaches the caller; the booking is marked Failed with Reason instead.
type ReservationError struct {
	Reason   string
	Attempts int
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("%s after %d attempts", e.Reason, e.Attempts)
}

// ResolutionError records why a free-text pickup could not be resolved.
type ResolutionError struct {
	Pickup string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve pickup %q: %s: %v", e.Pickup, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve pickup %q: %s", e.Pickup, e.Reason)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
