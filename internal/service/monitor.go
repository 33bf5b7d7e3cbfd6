package service

import (
	"context"
	"database/sql"
	"fmt"

	"famguard-alert/internal/cache"
	"famguard-alert/internal/config"
	"famguard-alert/internal/consumer"
	"famguard-alert/internal/dedup"
	"famguard-alert/internal/dispatcher"
	"famguard-alert/internal/evaluator"
	"famguard-alert/internal/filter"
	"famguard-alert/internal/notifier"
	"famguard-alert/internal/repository"
	"famguard-alert/pkg/database"
	pkgmqtt "famguard-alert/pkg/mqtt"
	pkgredis "famguard-alert/pkg/redis"

	"go.uber.org/zap"
)

// MonitorService 家庭守护服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *pkgredis.Client
	mqttClient  *pkgmqtt.Client
	logger      *zap.Logger

	// 各层组件
	familyRepo    *repository.FamilyRepository
	geofenceRepo  *repository.GeofenceRepository
	locationRepo  *repository.LocationRepository
	alertRepo     *repository.AlertRepository
	settingsRepo  *repository.SettingsRepository
	settingsCache *cache.SettingsCache
	stateStore    *cache.GeofenceStateStore
	dispatcher    *dispatcher.Dispatcher
	consumer      *consumer.EventConsumer

	// 对外服务
	Alerts    *AlertService
	Settings  *SettingsService
	Locations *LocationService
}

// NewMonitorService 创建家庭守护服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := pkgredis.NewRedisClient(&cfg.Redis)
	if err := pkgredis.Ping(context.Background(), redisClient); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 创建 Repository 层
	familyRepo := repository.NewFamilyRepository(db, logger)
	geofenceRepo := repository.NewGeofenceRepository(db, logger)
	locationRepo := repository.NewLocationRepository(db, logger)
	alertRepo := repository.NewAlertRepository(db, logger)
	settingsRepo := repository.NewSettingsRepository(db, logger)

	// 4. 创建缓存层
	settingsCache := cache.NewSettingsCache(cfg, redisClient, settingsRepo, logger)
	stateStore := cache.NewGeofenceStateStore(cfg, redisClient, logger)

	// 5. 创建推送通道
	var mqttClient *pkgmqtt.Client
	targets := make([]notifier.Notifier, 0, 2)
	if cfg.MQTT.Broker != "" {
		mqttClient, err = pkgmqtt.NewClient(&cfg.MQTT)
		if err != nil {
			db.Close()
			redisClient.Close()
			return nil, fmt.Errorf("failed to connect mqtt broker: %w", err)
		}
		targets = append(targets, notifier.NewMQTTNotifier(mqttClient, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, logger))
	}
	if cfg.Push.Enabled {
		targets = append(targets, notifier.NewPushNotifier(cfg.Push.Endpoint, cfg.Push.Token, logger))
	}
	if len(targets) == 0 {
		logger.Warn("No notification channel configured, alerts will only be persisted")
	}
	// 最新报警缓存也挂在扇出上，监护端上线时直接读 Redis
	targets = append(targets, cache.NewLatestAlertCache(cfg, redisClient, logger))
	fanout := notifier.NewFanout(logger, targets...)

	// 6. 创建报警分发器（去重 + 入库 + 推送）
	deduplicator := dedup.NewDeduplicator(alertRepo, logger)
	alertDispatcher := dispatcher.NewDispatcher(deduplicator, alertRepo, fanout, logger)

	// 7. 创建评估器
	geofenceEval := evaluator.NewGeofenceEvaluator(cfg, familyRepo, geofenceRepo, stateStore, locationRepo, alertDispatcher, logger)
	batteryEval := evaluator.NewBatteryEvaluator(cfg, alertDispatcher, logger)
	emergencyEval := evaluator.NewEmergencyEvaluator(alertDispatcher, logger)

	// 8. 创建服务层
	filterEngine := filter.NewEngine(settingsCache, cfg.Content.PreviewMaxLen, logger)
	locationSvc := NewLocationService(cfg, locationRepo, geofenceEval, batteryEval, logger)
	notificationSvc := NewNotificationService(cfg, filterEngine, alertDispatcher, logger)
	alertSvc := NewAlertService(alertRepo, logger)
	settingsSvc := NewSettingsService(familyRepo, settingsRepo, settingsCache, logger)

	// 9. 创建事件消费者
	eventConsumer := consumer.NewEventConsumer(cfg, redisClient, locationSvc, notificationSvc, emergencyEval, logger)

	return &MonitorService{
		config:        cfg,
		db:            db,
		redisClient:   redisClient,
		mqttClient:    mqttClient,
		logger:        logger,
		familyRepo:    familyRepo,
		geofenceRepo:  geofenceRepo,
		locationRepo:  locationRepo,
		alertRepo:     alertRepo,
		settingsRepo:  settingsRepo,
		settingsCache: settingsCache,
		stateStore:    stateStore,
		dispatcher:    alertDispatcher,
		consumer:      eventConsumer,
		Alerts:        alertSvc,
		Settings:      settingsSvc,
		Locations:     locationSvc,
	}, nil
}

// Start 启动服务（阻塞直到 ctx 取消）
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service",
		zap.String("geofence_mode", s.config.Geofence.Mode),
	)

	if err := s.consumer.EnsureGroups(ctx); err != nil {
		return err
	}

	return s.consumer.Start(ctx)
}

// Stop 停止服务
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping monitor service")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := pkgredis.Close(s.redisClient); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}
