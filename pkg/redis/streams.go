package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamMessage Redis Streams 消息
type StreamMessage struct {
	Stream string
	ID     string
	Values map[string]interface{}
}

// PublishJSONToStream 发布 JSON 消息到 Redis Streams
// 消息体放在 data 字段，附带 Unix 时间戳
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream string, data interface{}) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	// 使用 XADD 命令添加消息
	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
}

// ReadFromStream 从 Redis Streams 读取消息（消费者组模式）
func ReadFromStream(ctx context.Context, client *redis.Client, stream string, consumerGroup string, consumer string, count int64) ([]StreamMessage, error) {
	// 使用 XREADGROUP 命令读取消息
	streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    time.Second * 5, // 阻塞 5 秒
	}).Result()

	if err != nil {
		if err == redis.Nil {
			return []StreamMessage{}, nil
		}
		return nil, err
	}

	var messages []StreamMessage
	for _, s := range streams {
		for _, msg := range s.Messages {
			messages = append(messages, StreamMessage{
				Stream: s.Stream,
				ID:     msg.ID,
				Values: msg.Values,
			})
		}
	}

	return messages, nil
}

// AckMessage 确认已处理的消息
func AckMessage(ctx context.Context, client *redis.Client, stream string, consumerGroup string, id string) error {
	return client.XAck(ctx, stream, consumerGroup, id).Err()
}

// CreateConsumerGroup 创建消费者组
// 消费者组已存在时忽略错误；stream 不存在时先建 stream 再建组
func CreateConsumerGroup(ctx context.Context, client *redis.Client, stream string, groupName string) error {
	err := client.XGroupCreate(ctx, stream, groupName, "0").Err()
	if err == nil {
		return nil
	}

	// "BUSYGROUP" 说明组已存在，这是正常的
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}

	// stream 不存在：通过一条临时消息创建 stream，再建组
	msgID, createErr := client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"init": "true"},
	}).Result()
	if createErr != nil {
		return createErr
	}
	client.XDel(ctx, stream, msgID)

	err = client.XGroupCreate(ctx, stream, groupName, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}
