package notification

import (
	"context"

	"cabbooking/models"

	"go.uber.org/zap"
)

// NotificationService delivers a due pickup reminder to the passenger.
type NotificationService interface {
	SendPickupReminder(ctx context.Context, reminder models.ReminderPayload) error
}

// LogNotificationService writes reminders to the structured log. There is
// no passenger channel in this deployment, so the log line is the delivery.
type LogNotificationService struct {
	logger *zap.Logger
}

func NewLogNotificationService(logger *zap.Logger) *LogNotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotificationService{logger: logger}
}

func (s *LogNotificationService) SendPickupReminder(_ context.Context, r models.ReminderPayload) error {
	s.logger.Info(r.Title,
		zap.String("booking_id", r.BookingID),
		zap.String("passenger", r.Passenger),
		zap.String("cab_id", r.CabID),
		zap.String("pickup", r.Pickup),
		zap.String("body", r.Body),
	)
	return nil
}
