package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestServerHealth(t *testing.T) {
	svc := NewHealthService(pingFunc(func(context.Context) error { return nil }), logging.NewDiscardLogger())
	svc.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	health := svc.Server()
	assert.Equal(t, "ok", health.Service)
	assert.Equal(t, "2024-01-02T03:04:05Z", health.Timestamp)
}

func TestDatabaseHealth(t *testing.T) {
	ok := NewHealthService(pingFunc(func(context.Context) error { return nil }), logging.NewDiscardLogger())
	health, err := ok.Database(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Database)

	down := NewHealthService(pingFunc(func(context.Context) error { return errors.New("disk I/O error") }), logging.NewDiscardLogger())
	_, err = down.Database(context.Background(), time.Second)
	assert.EqualError(t, err, "disk I/O error")
}

func TestDatabaseHealthHonoursTimeout(t *testing.T) {
	slow := NewHealthService(pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}), logging.NewDiscardLogger())

	_, err := slow.Database(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
