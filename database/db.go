package database

import (
	"context"
	"fmt"
	"time"

	"cabbooking/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Connect opens the MongoDB connection named by DATABASE_URL. It returns
// (nil, nil) when no URL is configured.
func Connect(ctx context.Context, logger *zap.Logger) (*mongo.Client, error) {
	if config.AppConfig.DatabaseURL == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(config.AppConfig.DatabaseURL)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	logger.Info("Connected to MongoDB", zap.String("database", config.AppConfig.DatabaseName))
	return client, nil
}

// Database returns the configured database of client.
func Database(client *mongo.Client) *mongo.Database {
	return client.Database(config.AppConfig.DatabaseName)
}
