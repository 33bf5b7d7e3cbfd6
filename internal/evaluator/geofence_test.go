package evaluator

import (
	"context"
	"sync"
	"testing"
	"time"

	"famguard-alert/internal/cache"
	"famguard-alert/internal/config"
	"famguard-alert/internal/dispatcher"
	"famguard-alert/internal/models"
	"famguard-alert/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 赤道上 1 米对应的经度偏移
const degPerMeter = 1.0 / 111194.93

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
	err       error
}

func (s *stubGeofences) ActiveGeofences(ctx context.Context, familyID string) ([]models.Geofence, error) {
	return s.geofences, s.err
}

// memoryStateStore 内存包含状态存储
type memoryStateStore struct {
	mu     sync.Mutex
	states map[string]cache.ContainmentState
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{states: make(map[string]cache.ContainmentState)}
}

func (m *memoryStateStore) Get(ctx context.Context, childUserID, geofenceID string) (*cache.ContainmentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[childUserID+":"+geofenceID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (m *memoryStateStore) Set(ctx context.Context, childUserID, geofenceID string, state cache.ContainmentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[childUserID+":"+geofenceID] = state
	return nil
}

type stubSamples struct {
	sample *models.LocationSample
}

func (s *stubSamples) PreviousSample(ctx context.Context, userID string, before time.Time) (*models.LocationSample, error) {
	return s.sample, nil
}

// recordingSink 记录派发的报警意图
type recordingSink struct {
	mu      sync.Mutex
	intents []dispatcher.Intent
	err     error
}

func (s *recordingSink) Dispatch(ctx context.Context, intent dispatcher.Intent) (dispatcher.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return dispatcher.Outcome{}, s.err
	}
	s.intents = append(s.intents, intent)
	return dispatcher.Outcome{Alert: &models.Alert{AlertID: "a-1"}}, nil
}

func newGeofenceConfig(mode string) *config.Config {
	cfg := &config.Config{}
	cfg.Geofence.Mode = mode
	cfg.Geofence.CooldownMinutes = 30
	return cfg
}

func safeZone(radius int) models.Geofence {
	return models.Geofence{
		ID:              "gf-home",
		Name:            "Home",
		CenterLatitude:  0,
		CenterLongitude: 0,
		Radius:          radius,
		Kind:            models.GeofenceSafe,
		IsActive:        true,
	}
}

func dangerZone(radius int) models.Geofence {
	return models.Geofence{
		ID:              "gf-river",
		Name:            "River",
		CenterLatitude:  0,
		CenterLongitude: 0,
		Radius:          radius,
		Kind:            models.GeofenceDanger,
		IsActive:        true,
	}
}

// ============================================
// threshold 模式测试
// ============================================

func TestCheckViolations_OutsideSafeZone(t *testing.T) {
	sink := &recordingSink{}
	eval := NewGeofenceEvaluator(
		newGeofenceConfig(config.GeofenceModeThreshold),
		&stubFamilies{familyID: "fam-1"},
		&stubGeofences{geofences: []models.Geofence{safeZone(100)}},
		newMemoryStateStore(),
		nil,
		sink,
		zap.NewNop(),
	)

	// 距中心约 150 米，半径 100 的安全区之外
	err := eval.CheckViolations(context.Background(), "child-1", 0, 150*degPerMeter, time.Now())

	require.NoError(t, err)
	require.Len(t, sink.intents, 1)
	intent := sink.intents[0]
	assert.Equal(t, models.AlertTypeGeofence, intent.Type)
	assert.Equal(t, models.PriorityHigh, intent.Priority)
	assert.Equal(t, "Left Safe Zone", intent.Title)
	assert.Equal(t, "Child has left the safe zone: Home", intent.Message)

	payload, ok := intent.Payload.(models.GeofencePayload)
	require.True(t, ok)
	assert.Equal(t, models.ViolationLeftSafeZone, payload.ViolationType)
	assert.InDelta(t, 150, payload.Distance, 1)
	assert.Equal(t, map[string]interface{}{"geofence_id": "gf-home"}, intent.DedupKey)
	assert.Equal(t, 30*time.Minute, intent.Cooldown)
}

func TestCheckViolations_InsideSafeZoneNoAlert(t *testing.T) {
	sink := &recordingSink{}
	eval := NewGeofenceEvaluator(
		newGeofenceConfig(config.GeofenceModeThreshold),
		&stubFamilies{familyID: "fam-1"},
		&stubGeofences{geofences: []models.Geofence{safeZone(100)}},
		newMemoryStateStore(),
		nil,
		sink,
		zap.NewNop(),
	)

	err := eval.CheckViolations(context.Background(), "child-1", 0, 50*degPerMeter, time.Now())

	require.NoError(t, err)
	assert.Empty(t, sink.intents)
}

func TestCheckViolations_OnBoundaryIsInside(t *testing.T) {
	sink := &recordingSink{}
	eval := NewGeofenceEvaluator(
		newGeofenceConfig(config.GeofenceModeThreshold),
		&stubFamilies{familyID: "fam-1"},
		&stubGeofences{geofences: []models.Geofence{safeZone(100)}},
		newMemoryStateStore(),
		nil,
		sink,
		zap.NewNop(),
	)

	// 边界含：距离正好在半径上不算离开
	err := eval.CheckViolations(context.Background(), "child-1", 0, 99.99*degPerMeter, time.Now())

	require.NoError(t, err)
	assert.Empty(t, sink.intents)
}

func TestCheckViolations_InsideDangerZone(t *testing.T) {
	sink := &recordingSink{}
	eval := NewGeofenceEvaluator(
		newGeofenceConfig(config.GeofenceModeThreshold),
		&stubFamilies{familyID: "fam-1"},
		&stubGeofences{geofences: []models.Geofence{dangerZone(300)}},
		newMemoryStateStore(),
		nil,
		sink,
		zap.NewNop(),
	)

	// 距中心约 250 米，在半径 300 的危险区内
	err := eval.CheckViolations(context.Background(), "child-1", 0, 250*degPerMeter, time.Now())

	require.NoError(t, err)
	require.Len(t, sink.intents, 1)
	intent := sink.intents[0]
	assert.Equal(t, models.PriorityCritical, intent.Priority)
	assert.Equal(t, "Entered Danger Zone", intent.Title)
	assert.Equal(t, "Child has entered the danger zone: River", intent.Message)
}

func TestCheckViolations_OutsideDangerZoneNoAlert(t *testing.T) {
	sink := &recordingSink{}
	eval := NewGeofenceEvaluator(
		newGeofenceConfig(config.GeofenceModeThreshold),
		&stubFamilies{familyID: "fam-1"},
		&stubGeofences{geofences: []models.Geofence{dangerZone(300)}},
		newMemoryStateStore(),
		nil,
		sink,
		zap.NewNop(),
	)

	err := eval.CheckViolations(context.Background(), "child-1", 0, 400*degPerMeter, time.Now())

	require.NoError(t, err)
	assert.Empty(t, sink.intents)
}

func TestCheckViolations_UnknownSubjectIsNoop(t *testing.T) {
	sink := &recordingSink{}
	eval := NewGeofenceEvaluator(
		newGeofenceConfig(config.GeofenceModeThreshold),
		&stubFamilies{err: repository.ErrNotFound},
		&stubGeofences{},
		newMemoryStateStore(),
		nil,
		sink,
		zap.NewNop(),
	)

	err := eval.CheckViolations(context.Background(), "stranger", 0, 0, time.Now())

	require.NoError(t, err)
	assert.Empty(t, sink.intents)
}

func TestCheckViolations_SkipsNonPositiveRadius(t *testing.T) {
	sink := &recordingSink{}
	broken := safeZone(0)
	eval := NewGeofenceEvaluator(
		newGeofenceConfig(config.GeofenceModeThreshold),
		&stubFamilies{familyID: "fam-1"},
		&stubGeofences{geofences: []models.Geofence{broken}},
		newMemoryStateStore(),
		nil,
		sink,
		zap.NewNop(),
	)

	err := eval.CheckViolations(context.Background(), "child-1", 0, 150*degPerMeter, time.Now())

	require.NoError(t, err)
	assert.Empty(t, sink.intents)
}

func TestCheckViolations_DispatchErrorContinues(t *testing.T) {
	sink := &recordingSink{err: assert.AnError}
	eval := NewGeofenceEvaluator(
		newGeofenceConfig(config.GeofenceModeThreshold),
		&stubFamilies{familyID: "fam-1"},
		&stubGeofences{geofences: []models.Geofence{safeZone(100), dangerZone(300)}},
		newMemoryStateStore(),
		nil,
		sink,
		zap.NewNop(),
	)

	// 派发失败不终止评估
	err := eval.CheckViolations(context.Background(), "child-1", 0, 250*degPerMeter, time.Now())

	require.NoError(t, err)
}

// ============================================
// transition 模式测试
// ============================================

func TestCheckViolations_TransitionExitFires(t *testing.T) {
	sink := &recordingSink{}
	state := newMemoryStateStore()
	eval := NewGeofenceEvaluator(
		newGeofenceConfig(config.GeofenceModeTransition),
		&stubFamilies{familyID: "fam-1"},
		&stubGeofences{geofences: []models.Geofence{safeZone(100)}},
		state,
		&stubSamples{},
		sink,
		zap.NewNop(),
	)

	ctx := context.Background()
	t0 := time.Now().Add(-2 * time.Minute)

	// 第一次采样在区内：无前状态，不触发，但状态被记录
	require.NoError(t, eval.CheckViolations(ctx, "child-1", 0, 50*degPerMeter, t0))
	assert.Empty(t, sink.intents)

	// 第二次采样离开安全区：inside -> outside 触发
	require.NoError(t, eval.CheckViolations(ctx, "child-1", 0, 150*degPerMeter, t0.Add(time.Minute)))
	require.Len(t, sink.intents, 1)
	assert.Equal(t, models.PriorityHigh, sink.intents[0].Priority)

	// 第三次仍在区外：状态未变化，不再触发
	require.NoError(t, eval.CheckViolations(ctx, "child-1", 0, 160*degPerMeter, t0.Add(2*time.Minute)))
	assert.Len(t, sink.intents, 1)
}

func TestCheckViolations_TransitionReentrySafeZone(t *testing.T) {
	sink := &recordingSink{}
	eval := NewGeofenceEvaluator(
		newGeofenceConfig(config.GeofenceModeTransition),
		&stubFamilies{familyID: "fam-1"},
		&stubGeofences{geofences: []models.Geofence{safeZone(100)}},
		newMemoryStateStore(),
		&stubSamples{},
		sink,
		zap.NewNop(),
	)

	ctx := context.Background()
	t0 := time.Now().Add(-3 * time.Minute)

	require.NoError(t, eval.CheckViolations(ctx, "child-1", 0, 150*degPerMeter, t0))
	require.NoError(t, eval.CheckViolations(ctx, "child-1", 0, 50*degPerMeter, t0.Add(time.Minute)))

	// outside -> inside 的安全区回归是 medium
	require.Len(t, sink.intents, 1)
	assert.Equal(t, models.PriorityMedium, sink.intents[0].Priority)
	payload := sink.intents[0].Payload.(models.GeofencePayload)
	assert.Equal(t, models.ViolationEnteredSafeZone, payload.ViolationType)
}

func TestCheckViolations_TransitionColdStartUsesPreviousSample(t *testing.T) {
	sink := &recordingSink{}
	eval := NewGeofenceEvaluator(
		newGeofenceConfig(config.GeofenceModeTransition),
		&stubFamilies{familyID: "fam-1"},
		&stubGeofences{geofences: []models.Geofence{safeZone(100)}},
		newMemoryStateStore(),
		&stubSamples{sample: &models.LocationSample{
			UserID:     "child-1",
			Latitude:   0,
			Longitude:  50 * degPerMeter, // 历史上在区内
			CapturedAt: time.Now().Add(-time.Hour),
		}},
		sink,
		zap.NewNop(),
	)

	// 状态缓存为空，但定位历史显示此前在区内：本次在区外算一次离开
	err := eval.CheckViolations(context.Background(), "child-1", 0, 150*degPerMeter, time.Now())

	require.NoError(t, err)
	require.Len(t, sink.intents, 1)
	payload := sink.intents[0].Payload.(models.GeofencePayload)
	assert.Equal(t, models.ViolationLeftSafeZone, payload.ViolationType)
}

func TestCheckViolations_TransitionRejectsOutOfOrderSample(t *testing.T) {
	sink := &recordingSink{}
	state := newMemoryStateStore()
	eval := NewGeofenceEvaluator(
		newGeofenceConfig(config.GeofenceModeTransition),
		&stubFamilies{familyID: "fam-1"},
		&stubGeofences{geofences: []models.Geofence{safeZone(100)}},
		state,
		&stubSamples{},
		sink,
		zap.NewNop(),
	)

	ctx := context.Background()
	now := time.Now()

	require.NoError(t, eval.CheckViolations(ctx, "child-1", 0, 50*degPerMeter, now))

	// 更早的采样被拒绝：不触发，状态保持最新
	require.NoError(t, eval.CheckViolations(ctx, "child-1", 0, 150*degPerMeter, now.Add(-time.Hour)))
	assert.Empty(t, sink.intents)

	kept, err := state.Get(ctx, "child-1", "gf-home")
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.True(t, kept.Inside)
	assert.Equal(t, now.Unix(), kept.CapturedAt)
}
