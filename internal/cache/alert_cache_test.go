package cache

import (
	"context"
	"testing"
	"time"

	"famguard-alert/internal/config"
	"famguard-alert/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupLatestAlertCache(t *testing.T) (*miniredis.Miniredis, *LatestAlertCache) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{}
	cfg.Cache.AlertKeyPrefix = "famguard:alerts:latest:"
	cfg.Cache.AlertTTL = 86400

	return mr, NewLatestAlertCache(cfg, client, zap.NewNop())
}

func TestLatestAlertCache_PublishAndLatest(t *testing.T) {
	mr, c := setupLatestAlertCache(t)

	ctx := context.Background()
	alert := &models.Alert{
		AlertID:     uuid.New().String(),
		ChildUserID: "child-1",
		Type:        models.AlertTypeGeofence,
		Priority:    models.PriorityHigh,
		Title:       "Left Safe Zone",
		Message:     "Child has left Home",
		Data:        `{"geofence_id":"gf-1"}`,
		TriggeredAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, c.Publish(ctx, alert))

	got, err := c.Latest(ctx, "child-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alert.AlertID, got.AlertID)
	assert.Equal(t, models.PriorityHigh, got.Priority)

	ttl := mr.TTL("famguard:alerts:latest:child-1")
	assert.Equal(t, 86400*time.Second, ttl)
}

func TestLatestAlertCache_OverwritesPrevious(t *testing.T) {
	_, c := setupLatestAlertCache(t)

	ctx := context.Background()
	first := &models.Alert{AlertID: uuid.New().String(), ChildUserID: "child-1", Type: models.AlertTypeBattery}
	second := &models.Alert{AlertID: uuid.New().String(), ChildUserID: "child-1", Type: models.AlertTypeGeofence}

	require.NoError(t, c.Publish(ctx, first))
	require.NoError(t, c.Publish(ctx, second))

	got, err := c.Latest(ctx, "child-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.AlertID, got.AlertID)
}

func TestLatestAlertCache_Missing(t *testing.T) {
	_, c := setupLatestAlertCache(t)

	got, err := c.Latest(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}
