package tasks

import (
	"context"
	"encoding/json"
	"time"

	"cabbooking/models"

	"github.com/hibiken/asynq"
)

const TypeSendReminder = "reminder:send"

// NewReminderTask builds the pickup reminder task for payload. The task id
// is derived from the booking so a booking is never reminded twice.
func NewReminderTask(payload models.ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendReminder, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID("reminder:" + payload.BookingID),
		asynq.MaxRetry(3),
	}

	return task, opts, nil
}

// ParseReminder decodes the payload of a reminder task.
func ParseReminder(task *asynq.Task) (models.ReminderPayload, error) {
	var p models.ReminderPayload
	err := json.Unmarshal(task.Payload(), &p)
	return p, err
}

// ReminderQueue enqueues reminders on the Redis-backed asynq queue.
type ReminderQueue struct {
	client *asynq.Client
}

func NewReminderQueue(client *asynq.Client) *ReminderQueue {
	return &ReminderQueue{client: client}
}

func (q *ReminderQueue) ScheduleReminder(ctx context.Context, payload models.ReminderPayload, fireAt time.Time) error {
	task, opts, err := NewReminderTask(payload, fireAt)
	if err != nil {
		return err
	}
	_, err = q.client.EnqueueContext(ctx, task, opts...)
	if err == asynq.ErrTaskIDConflict {
		return nil
	}
	return err
}

func (q *ReminderQueue) Close() error {
	return q.client.Close()
}
