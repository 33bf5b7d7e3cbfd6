package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"famguard-alert/internal/config"
	"famguard-alert/internal/evaluator"
	"famguard-alert/internal/models"
	"famguard-alert/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubFamilies struct {
	familyID string
	err      error
}

func (s *stubFamilies) FamilyOf(ctx context.Context, userID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.familyID, nil
}

type stubGeofences struct {
	geofences []models.Geofence
}

func (s *stubGeofences) ActiveGeofences(ctx context.Context, familyID string) ([]models.Geofence, error) {
	return s.geofences, nil
}

func newLocationTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Geofence.Mode = config.GeofenceModeThreshold
	cfg.Geofence.CooldownMinutes = 30
	cfg.Battery.AlertThreshold = 20
	cfg.Battery.CriticalLevel = 5
	cfg.Battery.HighLevel = 10
	cfg.Battery.CooldownMinutes = 120
	return cfg
}

// setupLocationService 组装带 sqlmock 定位存储和 stub 围栏源的定位服务
func setupLocationService(t *testing.T, geofences []models.Geofence, sink *recordingSink) (*LocationService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	cfg := newLocationTestConfig()
	locationRepo := repository.NewLocationRepository(db, logger)

	geofenceEval := evaluator.NewGeofenceEvaluator(
		cfg,
		&stubFamilies{familyID: "fam-1"},
		&stubGeofences{geofences: geofences},
		nil,
		nil,
		sink,
		logger,
	)
	batteryEval := evaluator.NewBatteryEvaluator(cfg, sink, logger)

	return NewLocationService(cfg, locationRepo, geofenceEval, batteryEval, logger), mock
}

func validLocationEvent() models.LocationEvent {
	return models.LocationEvent{
		ChildUserID:  "child-1",
		Latitude:     40.7128,
		Longitude:    -74.0060,
		Accuracy:     12.5,
		BatteryLevel: 80,
		CapturedAt:   time.Now(),
	}
}

func TestHandleLocationUpdate_StoresSample(t *testing.T) {
	sink := &recordingSink{}
	svc, mock := setupLocationService(t, nil, sink)

	ev := validLocationEvent()
	mock.ExpectQuery(`INSERT INTO locations`).
		WithArgs(ev.ChildUserID, ev.Latitude, ev.Longitude, ev.Accuracy, ev.BatteryLevel, ev.CapturedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	err := svc.HandleLocationUpdate(context.Background(), ev)

	require.NoError(t, err)
	assert.Empty(t, sink.intents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleLocationUpdate_LowBatteryTriggersAlert(t *testing.T) {
	sink := &recordingSink{}
	svc, mock := setupLocationService(t, nil, sink)

	ev := validLocationEvent()
	ev.BatteryLevel = 8

	mock.ExpectQuery(`INSERT INTO locations`).
		WithArgs(ev.ChildUserID, ev.Latitude, ev.Longitude, ev.Accuracy, ev.BatteryLevel, ev.CapturedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	err := svc.HandleLocationUpdate(context.Background(), ev)

	require.NoError(t, err)
	require.Len(t, sink.intents, 1)
	assert.Equal(t, models.AlertTypeBattery, sink.intents[0].Type)
	assert.Equal(t, models.PriorityHigh, sink.intents[0].Priority)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleLocationUpdate_GeofenceViolation(t *testing.T) {
	sink := &recordingSink{}
	// 安全区在远处，当前位置在区外
	home := models.Geofence{
		ID:              "gf-home",
		Name:            "Home",
		CenterLatitude:  40.80,
		CenterLongitude: -74.0060,
		Radius:          100,
		Kind:            models.GeofenceSafe,
		IsActive:        true,
	}
	svc, mock := setupLocationService(t, []models.Geofence{home}, sink)

	ev := validLocationEvent()
	mock.ExpectQuery(`INSERT INTO locations`).
		WithArgs(ev.ChildUserID, ev.Latitude, ev.Longitude, ev.Accuracy, ev.BatteryLevel, ev.CapturedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	err := svc.HandleLocationUpdate(context.Background(), ev)

	require.NoError(t, err)
	require.Len(t, sink.intents, 1)
	assert.Equal(t, models.AlertTypeGeofence, sink.intents[0].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleLocationUpdate_StoreFailurePropagates(t *testing.T) {
	sink := &recordingSink{}
	svc, mock := setupLocationService(t, nil, sink)

	ev := validLocationEvent()
	mock.ExpectQuery(`INSERT INTO locations`).
		WillReturnError(assert.AnError)

	err := svc.HandleLocationUpdate(context.Background(), ev)

	assert.Error(t, err)
	var validationErr *models.ValidationError
	assert.False(t, errors.As(err, &validationErr))
}

func TestHandleLocationUpdate_ValidationErrors(t *testing.T) {
	svc, _ := setupLocationService(t, nil, &recordingSink{})

	tests := []struct {
		name   string
		mutate func(*models.LocationEvent)
		field  string
	}{
		{"missing child", func(ev *models.LocationEvent) { ev.ChildUserID = "" }, "child_user_id"},
		{"latitude out of range", func(ev *models.LocationEvent) { ev.Latitude = 91 }, "latitude"},
		{"longitude out of range", func(ev *models.LocationEvent) { ev.Longitude = 181 }, "longitude"},
		{"negative accuracy", func(ev *models.LocationEvent) { ev.Accuracy = -1 }, "accuracy"},
		{"battery below range", func(ev *models.LocationEvent) { ev.BatteryLevel = -1 }, "battery_level"},
		{"battery above range", func(ev *models.LocationEvent) { ev.BatteryLevel = 101 }, "battery_level"},
		{"zero captured_at", func(ev *models.LocationEvent) { ev.CapturedAt = time.Time{} }, "captured_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validLocationEvent()
			tt.mutate(&ev)

			err := svc.HandleLocationUpdate(context.Background(), ev)

			var validationErr *models.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestHandleLocationUpdate_UnknownSubjectSkipsGeofences(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	cfg := newLocationTestConfig()
	sink := &recordingSink{}

	geofenceEval := evaluator.NewGeofenceEvaluator(
		cfg,
		&stubFamilies{err: repository.ErrNotFound},
		&stubGeofences{},
		nil,
		nil,
		sink,
		logger,
	)
	batteryEval := evaluator.NewBatteryEvaluator(cfg, sink, logger)
	svc := NewLocationService(cfg, repository.NewLocationRepository(db, logger), geofenceEval, batteryEval, logger)

	ev := validLocationEvent()
	mock.ExpectQuery(`INSERT INTO locations`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	err = svc.HandleLocationUpdate(context.Background(), ev)

	require.NoError(t, err)
	assert.Empty(t, sink.intents)
}
