package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_EmptyURLMeansInMemory(t *testing.T) {
	pool, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	assert.Nil(t, pool)

	assert.Error(t, pool.Health(context.Background()))
	assert.NoError(t, pool.Close())
	assert.Zero(t, pool.Stats().OpenConnections)
}

func TestOpen_RejectsMalformedURL(t *testing.T) {
	_, err := Open(context.Background(), Config{URL: "postgres://u@db:notaport/kyc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database url")
}

func TestOpen_GivesUpAfterAttempts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Port 1 on loopback refuses immediately.
	_, err := Open(ctx, Config{
		URL:             "postgres://u:p@127.0.0.1:1/kyc?sslmode=disable&connect_timeout=1",
		MaxOpenConns:    1,
		ConnectAttempts: 2,
		RetryDelay:      10 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestOpen_StopsRetryingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, Config{
		URL:             "postgres://u:p@127.0.0.1:1/kyc?sslmode=disable",
		ConnectAttempts: 5,
		RetryDelay:      time.Hour,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
