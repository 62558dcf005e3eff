package database

import (
	"context"
	"fmt"
	"time"

	"github.com/peoplebook/peoplebook/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Retry controls ConnectWithRetry. The delay doubles after every failed attempt.
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

var DefaultRetry = Retry{Attempts: 5, Backoff: time.Second}

// Connector is the single-attempt dial used by ConnectWithRetry.
type Connector func(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error)

// ConnectWithRetry tolerates the database starting after the service.
func ConnectWithRetry(ctx context.Context, connect Connector, uri string, timeout time.Duration, r Retry) (*mongo.Client, error) {
	if r.Attempts <= 0 {
		r.Attempts = 1
	}
	backoff := r.Backoff
	var lastErr error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		client, err := connect(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		lastErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, r.Attempts, err)
		if attempt == r.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("mongo unavailable after %d attempts: %w", r.Attempts, lastErr)
}
