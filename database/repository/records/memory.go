package recordsRepo

import (
	"context"
	"sync"

	"cabbooking/models"
	"cabbooking/utils"

	"github.com/google/uuid"
)

type memoryRecordRepo struct {
	mu      sync.RWMutex
	records []models.HistoricalRecord
}

// NewMemoryRecordRepo returns an in-process repository, used when no
// database is configured.
func NewMemoryRecordRepo() HistoricalRecordRepository {
	return &memoryRecordRepo{}
}

func (r *memoryRecordRepo) Create(_ context.Context, record models.HistoricalRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()
	return record.ID, nil
}

func (r *memoryRecordRepo) GetByID(_ context.Context, id string) (*models.HistoricalRecord, error) {
	return r.find(func(rec models.HistoricalRecord) bool { return rec.ID == id })
}

func (r *memoryRecordRepo) GetByBookingID(_ context.Context, bookingID string) (*models.HistoricalRecord, error) {
	return r.find(func(rec models.HistoricalRecord) bool { return rec.BookingID == bookingID })
}

func (r *memoryRecordRepo) find(match func(models.HistoricalRecord) bool) (*models.HistoricalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if match(r.records[i]) {
			rec := r.records[i]
			return &rec, nil
		}
	}
	return nil, utils.NewNotFoundError("historical record not found")
}

// List returns the newest records first.
func (r *memoryRecordRepo) List(_ context.Context, limit int) ([]models.HistoricalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.HistoricalRecord, 0, len(r.records))
	for i := len(r.records) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, r.records[i])
	}
	return out, nil
}
