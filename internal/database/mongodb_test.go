package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestConnectWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	want := &mongo.Client{}
	connect := func(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return want, nil
	}

	got, err := ConnectWithRetry(context.Background(), connect, "mongodb://x", time.Second, Retry{Attempts: 5, Backoff: time.Millisecond})
	require.NoError(t, err)
	require.Same(t, want, got)
	require.Equal(t, 3, calls)
}

func TestConnectWithRetry_GivesUp(t *testing.T) {
	refused := errors.New("connection refused")
	calls := 0
	connect := func(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
		calls++
		return nil, refused
	}

	_, err := ConnectWithRetry(context.Background(), connect, "mongodb://x", time.Second, Retry{Attempts: 2, Backoff: time.Millisecond})
	require.ErrorIs(t, err, refused)
	require.Equal(t, 2, calls)
}

func TestConnectWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	connect := func(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
		cancel()
		return nil, errors.New("connection refused")
	}

	_, err := ConnectWithRetry(ctx, connect, "mongodb://x", time.Second, Retry{Attempts: 5, Backoff: time.Hour})
	require.ErrorIs(t, err, context.Canceled)
}

func TestConnectMongo_BadURI(t *testing.T) {
	_, err := ConnectMongo(context.Background(), "not-a-uri", time.Second)
	require.Error(t, err)
}
