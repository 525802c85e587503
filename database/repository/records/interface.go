package recordsRepo

import (
	"context"

	"cabbooking/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// HistoricalRecordRepository archives bookings that reached a terminal
// status.
type HistoricalRecordRepository interface {
	Create(ctx context.Context, record models.HistoricalRecord) (string, error)
	GetByID(ctx context.Context, id string) (*models.HistoricalRecord, error)
	GetByBookingID(ctx context.Context, bookingID string) (*models.HistoricalRecord, error)
	List(ctx context.Context, limit int) ([]models.HistoricalRecord, error)
}

type mongoRecordRepo struct {
	coll *mongo.Collection
}

// NewMongoRecordRepo returns a HistoricalRecordRepository backed by the
// historical_records collection of db.
func NewMongoRecordRepo(db *mongo.Database) HistoricalRecordRepository {
	return &mongoRecordRepo{
		coll: db.Collection("historical_records"),
	}
}
