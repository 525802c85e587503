package recordsRepo

import (
	"context"
	"errors"
	"time"

	"cabbooking/models"
	"cabbooking/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Create inserts a new historical record and returns its ID.
func (r *mongoRecordRepo) Create(ctx context.Context, record models.HistoricalRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.ClosedAt.IsZero() {
		record.ClosedAt = time.Now()
	}

	_, err := r.coll.InsertOne(ctx, record)
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

// GetByID returns a historical record by its ID.
func (r *mongoRecordRepo) GetByID(ctx context.Context, id string) (*models.HistoricalRecord, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

// GetByBookingID returns the archived copy of a booking.
func (r *mongoRecordRepo) GetByBookingID(ctx context.Context, bookingID string) (*models.HistoricalRecord, error) {
	return r.findOne(ctx, bson.M{"bookingId": bookingID})
}

func (r *mongoRecordRepo) findOne(ctx context.Context, filter bson.M) (*models.HistoricalRecord, error) {
	var record models.HistoricalRecord
	err := r.coll.FindOne(ctx, filter).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewNotFoundError("historical record not found")
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns the most recently closed records first. limit <= 0 means no
// limit.
func (r *mongoRecordRepo) List(ctx context.Context, limit int) ([]models.HistoricalRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "closedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.HistoricalRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
