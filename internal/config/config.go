package config

import (
	"fmt"
	"os"
	"strconv"

	"famguard-alert/pkg/config"

	"github.com/joho/godotenv"
)

// 地理围栏评估模式
const (
	GeofenceModeThreshold  = "threshold"  // 仅评估当前点（重复触发依赖去重冷却）
	GeofenceModeTransition = "transition" // 仅在 inside/outside 状态变化时触发
)

// Config 家庭守护报警服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 推送网关配置（HTTP 转发）
	Push struct {
		Enabled  bool
		Endpoint string
		Token    string
	}

	// 事件流配置
	Streams struct {
		LocationStream     string // 定位事件流，如 "famguard:events:location"
		NotificationStream string // 通知镜像事件流
		SOSStream          string // 紧急求助事件流
		Group              string // 消费者组名称
		Consumer           string // 消费者名称
		BatchSize          int64  // 单次读取消息数量
	}

	// Redis 缓存配置
	Cache struct {
		SettingsKeyPrefix string // 过滤设置缓存键前缀，如 "famguard:settings:"
		SettingsTTL       int    // 过滤设置 TTL（秒），默认 300
		StateKeyPrefix    string // 围栏状态缓存键前缀，如 "famguard:geofence:state:"
		StateTTL          int    // 围栏状态 TTL（秒），默认 86400
		AlertKeyPrefix    string // 最新报警缓存键前缀，如 "famguard:alerts:latest:"
		AlertTTL          int    // 最新报警 TTL（秒），默认 86400
	}

	// 地理围栏配置
	Geofence struct {
		Mode            string // threshold 或 transition
		CooldownMinutes int    // 同一围栏报警冷却时间（分钟），默认 30
	}

	// 低电量配置
	Battery struct {
		AlertThreshold  int // 触发阈值（%），默认 20
		CriticalLevel   int // critical 优先级阈值，默认 5
		HighLevel       int // high 优先级阈值，默认 10
		CooldownMinutes int // 冷却时间（分钟），默认 120
	}

	// 内容过滤配置
	Content struct {
		CooldownMinutes int // 同一 (app, keyword) 报警冷却时间（分钟），默认 10
		PreviewMaxLen   int // 内容预览最大长度，默认 150
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
// 优先读取 .env 文件（不存在则忽略），再从环境变量加载，缺省使用默认值
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "famguard")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "famguard-alert")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "famguard")

	cfg.Push.Endpoint = getEnv("PUSH_ENDPOINT", "")
	cfg.Push.Token = getEnv("PUSH_TOKEN", "")
	cfg.Push.Enabled = cfg.Push.Endpoint != ""

	cfg.Streams.LocationStream = getEnv("STREAM_LOCATION", "famguard:events:location")
	cfg.Streams.NotificationStream = getEnv("STREAM_NOTIFICATION", "famguard:events:notification")
	cfg.Streams.SOSStream = getEnv("STREAM_SOS", "famguard:events:sos")
	cfg.Streams.Group = getEnv("STREAM_GROUP", "famguard-alert")
	cfg.Streams.Consumer = getEnv("STREAM_CONSUMER", "famguard-alert-1")
	cfg.Streams.BatchSize = int64(getEnvInt("STREAM_BATCH_SIZE", 10))

	cfg.Cache.SettingsKeyPrefix = getEnv("CACHE_SETTINGS_PREFIX", "famguard:settings:")
	cfg.Cache.SettingsTTL = getEnvInt("CACHE_SETTINGS_TTL", 300) // 5分钟
	cfg.Cache.StateKeyPrefix = getEnv("CACHE_STATE_PREFIX", "famguard:geofence:state:")
	cfg.Cache.StateTTL = getEnvInt("CACHE_STATE_TTL", 86400) // 24小时
	cfg.Cache.AlertKeyPrefix = getEnv("CACHE_ALERT_PREFIX", "famguard:alerts:latest:")
	cfg.Cache.AlertTTL = getEnvInt("CACHE_ALERT_TTL", 86400)

	cfg.Geofence.Mode = getEnv("GEOFENCE_MODE", GeofenceModeThreshold)
	cfg.Geofence.CooldownMinutes = getEnvInt("GEOFENCE_COOLDOWN_MINUTES", 30)

	cfg.Battery.AlertThreshold = getEnvInt("BATTERY_ALERT_THRESHOLD", 20)
	cfg.Battery.CriticalLevel = getEnvInt("BATTERY_CRITICAL_LEVEL", 5)
	cfg.Battery.HighLevel = getEnvInt("BATTERY_HIGH_LEVEL", 10)
	cfg.Battery.CooldownMinutes = getEnvInt("BATTERY_COOLDOWN_MINUTES", 120)

	cfg.Content.CooldownMinutes = getEnvInt("CONTENT_COOLDOWN_MINUTES", 10)
	cfg.Content.PreviewMaxLen = getEnvInt("CONTENT_PREVIEW_MAX_LEN", 150)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Geofence.Mode != GeofenceModeThreshold && cfg.Geofence.Mode != GeofenceModeTransition {
		return nil, fmt.Errorf("invalid GEOFENCE_MODE: %s", cfg.Geofence.Mode)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
