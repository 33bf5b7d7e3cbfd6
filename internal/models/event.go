package models

import (
	"time"
)

// LocationEvent 设备上报的定位事件（来自 Redis Streams）
type LocationEvent struct {
	ChildUserID  string    `json:"child_user_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Accuracy     float64   `json:"accuracy"`
	BatteryLevel int       `json:"battery_level"`
	CapturedAt   time.Time `json:"captured_at"`
}

// NotificationEvent 设备镜像的通知事件（来自 Redis Streams）
type NotificationEvent struct {
	ChildUserID string    `json:"child_user_id"`
	AppPackage  string    `json:"app_package"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Priority    int       `json:"priority"` // 1-5，设备端通知优先级
	Category    string    `json:"category"`
	Timestamp   time.Time `json:"timestamp"`
}

// SOSEvent 紧急求助事件（来自 Redis Streams）
type SOSEvent struct {
	ChildUserID   string    `json:"child_user_id"`
	EmergencyType string    `json:"emergency_type"` // panic, accident, help, medical
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Message       string    `json:"message"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NotificationVerdict 通知事件处理结论
type NotificationVerdict struct {
	Relayed bool   `json:"relayed"` // false 表示应用未被监控，通知被过滤
	Flagged bool   `json:"flagged"` // true 表示命中违禁关键词
	Keyword string `json:"keyword"` // 命中的关键词（未命中为空）
}
