package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"famguard-alert/internal/config"
	"famguard-alert/internal/models"
	pkgredis "famguard-alert/pkg/redis"

	"go.uber.org/zap"
)

// LocationHandler 定位事件处理接口
type LocationHandler interface {
	HandleLocationUpdate(ctx context.Context, ev models.LocationEvent) error
}

// NotificationHandler 通知事件处理接口
type NotificationHandler interface {
	HandleNotification(ctx context.Context, ev models.NotificationEvent) (*models.NotificationVerdict, error)
}

// SOSHandler 紧急求助事件处理接口
type SOSHandler interface {
	HandleSOS(ctx context.Context, ev models.SOSEvent) error
}

// EventConsumer 事件消费者（消费 Redis Streams 中的设备事件）
type EventConsumer struct {
	config        *config.Config
	redis         *pkgredis.Client
	locations     LocationHandler
	notifications NotificationHandler
	sos           SOSHandler
	logger        *zap.Logger
}

// NewEventConsumer 创建事件消费者
func NewEventConsumer(
	cfg *config.Config,
	redisClient *pkgredis.Client,
	locations LocationHandler,
	notifications NotificationHandler,
	sos SOSHandler,
	logger *zap.Logger,
) *EventConsumer {
	return &EventConsumer{
		config:        cfg,
		redis:         redisClient,
		locations:     locations,
		notifications: notifications,
		sos:           sos,
		logger:        logger,
	}
}

// EnsureGroups 创建三条事件流的消费者组（已存在则忽略）
func (c *EventConsumer) EnsureGroups(ctx context.Context) error {
	streams := []string{
		c.config.Streams.LocationStream,
		c.config.Streams.NotificationStream,
		c.config.Streams.SOSStream,
	}
	for _, stream := range streams {
		if err := pkgredis.CreateConsumerGroup(ctx, c.redis, stream, c.config.Streams.Group); err != nil {
			return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
		}
	}
	return nil
}

// Start 启动消费循环（阻塞直到 ctx 取消）
func (c *EventConsumer) Start(ctx context.Context) error {
	c.logger.Info("Event consumer started",
		zap.String("group", c.config.Streams.Group),
		zap.String("consumer", c.config.Streams.Consumer),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Event consumer stopped")
			return nil
		default:
		}

		c.pollStream(ctx, c.config.Streams.LocationStream, c.handleLocationMessage)
		c.pollStream(ctx, c.config.Streams.NotificationStream, c.handleNotificationMessage)
		c.pollStream(ctx, c.config.Streams.SOSStream, c.handleSOSMessage)
	}
}

// pollStream 读取并处理一批消息
// 处理失败且属于瞬时错误（数据库不可用等）时不 ack，消息留在 pending 列表等待重试
func (c *EventConsumer) pollStream(ctx context.Context, stream string, handle func(context.Context, pkgredis.StreamMessage) error) {
	messages, err := pkgredis.ReadFromStream(ctx, c.redis, stream, c.config.Streams.Group, c.config.Streams.Consumer, c.config.Streams.BatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("Failed to read from stream",
			zap.String("stream", stream),
			zap.Error(err),
		)
		return
	}

	for _, msg := range messages {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := handle(ctx, msg); err != nil {
			var validationErr *models.ValidationError
			if errors.As(err, &validationErr) {
				// 坏数据重试也不会成功，确认后丢弃
				c.logger.Warn("Discarding invalid event",
					zap.String("stream", stream),
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
				c.ack(ctx, stream, msg.ID)
				continue
			}

			c.logger.Error("Failed to process event",
				zap.String("stream", stream),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}

		c.ack(ctx, stream, msg.ID)
	}
}

func (c *EventConsumer) handleLocationMessage(ctx context.Context, msg pkgredis.StreamMessage) error {
	var ev models.LocationEvent
	if !c.decode(msg, &ev) {
		c.ack(ctx, msg.Stream, msg.ID)
		return nil
	}
	return c.locations.HandleLocationUpdate(ctx, ev)
}

func (c *EventConsumer) handleNotificationMessage(ctx context.Context, msg pkgredis.StreamMessage) error {
	var ev models.NotificationEvent
	if !c.decode(msg, &ev) {
		c.ack(ctx, msg.Stream, msg.ID)
		return nil
	}

	verdict, err := c.notifications.HandleNotification(ctx, ev)
	if err != nil {
		return err
	}

	c.logger.Debug("Notification processed",
		zap.String("child_user_id", ev.ChildUserID),
		zap.String("app_package", ev.AppPackage),
		zap.Bool("relayed", verdict.Relayed),
		zap.Bool("flagged", verdict.Flagged),
	)
	return nil
}

func (c *EventConsumer) handleSOSMessage(ctx context.Context, msg pkgredis.StreamMessage) error {
	var ev models.SOSEvent
	if !c.decode(msg, &ev) {
		c.ack(ctx, msg.Stream, msg.ID)
		return nil
	}
	return c.sos.HandleSOS(ctx, ev)
}

// decode 解析消息 data 字段，返回 false 表示消息格式不可恢复
func (c *EventConsumer) decode(msg pkgredis.StreamMessage, out interface{}) bool {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		c.logger.Warn("Stream message missing data field",
			zap.String("stream", msg.Stream),
			zap.String("message_id", msg.ID),
		)
		return false
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		c.logger.Warn("Failed to unmarshal event payload",
			zap.String("stream", msg.Stream),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return false
	}

	return true
}

func (c *EventConsumer) ack(ctx context.Context, stream, id string) {
	if err := pkgredis.AckMessage(ctx, c.redis, stream, c.config.Streams.Group, id); err != nil {
		c.logger.Error("Failed to ack message",
			zap.String("stream", stream),
			zap.String("message_id", id),
			zap.Error(err),
		)
	}
}
