package cron

import (
	"context"
	"fmt"
	"time"

	"cabbooking/config"
	"cabbooking/services/notification"
	"cabbooking/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ReminderWorker consumes pickup reminders from the asynq queue.
type ReminderWorker struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// RedisOpt returns the asynq connection for the reminder queue DB.
func RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	}
}

func NewReminderWorker(notifSvc notification.NotificationService, logger *zap.Logger) *ReminderWorker {
	srv := asynq.NewServer(
		RedisOpt(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: logger.Sugar(),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendReminder, handleReminderTask(notifSvc, logger))

	return &ReminderWorker{srv: srv, mux: mux, logger: logger}
}

// Start runs the worker in the background, retrying startup with a growing
// delay.
func (w *ReminderWorker) Start() {
	go func() {
		w.logger.Info("Starting reminder worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := w.srv.Start(w.mux)
			if err == nil {
				return
			}
			w.logger.Warn("Reminder worker failed to start",
				zap.Int("attempt", attempts), zap.Int("max_attempts", maxAttempts), zap.Error(err))
			if attempts == maxAttempts {
				w.logger.Error("Reminder worker disabled after max retry attempts")
				return
			}
			time.Sleep(time.Duration(attempts*2) * time.Second)
		}
	}()
}

func (w *ReminderWorker) Shutdown() {
	w.srv.Shutdown()
}

func handleReminderTask(notifSvc notification.NotificationService, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		p, err := tasks.ParseReminder(task)
		if err != nil {
			logger.Error("Invalid reminder payload", zap.Error(err))
			return fmt.Errorf("decode reminder: %v: %w", err, asynq.SkipRetry)
		}
		if p.BookingID == "" {
			logger.Warn("Reminder without booking id dropped")
			return nil
		}

		if err := notifSvc.SendPickupReminder(ctx, p); err != nil {
			logger.Error("Failed to send reminder", zap.String("booking_id", p.BookingID), zap.Error(err))
			return err
		}
		return nil
	}
}
