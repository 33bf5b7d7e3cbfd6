package models

import (
	"time"
)

// AlertType 报警类型
type AlertType string

const (
	AlertTypeGeofence  AlertType = "geofence"  // 地理围栏违规
	AlertTypeEmergency AlertType = "emergency" // 紧急求助（SOS）
	AlertTypeContent   AlertType = "content"   // 违禁内容
	AlertTypeBattery   AlertType = "battery"   // 低电量
)

// AlertPriority 报警优先级
type AlertPriority string

const (
	PriorityCritical AlertPriority = "critical"
	PriorityHigh     AlertPriority = "high"
	PriorityMedium   AlertPriority = "medium"
	PriorityLow      AlertPriority = "low"
)

// priorityRank 优先级全序：critical > high > medium > low
var priorityRank = map[AlertPriority]int{
	PriorityCritical: 4,
	PriorityHigh:     3,
	PriorityMedium:   2,
	PriorityLow:      1,
}

// Rank 返回优先级序号（越大越紧急，未知优先级为 0）
func (p AlertPriority) Rank() int {
	return priorityRank[p]
}

// Alert 报警记录（对应 alerts 表）
// 创建后不可修改，仅允许标记已读
type Alert struct {
	AlertID     string        `json:"alert_id" db:"alert_id"`
	ChildUserID string        `json:"child_user_id" db:"child_user_id"`
	Type        AlertType     `json:"type" db:"type"`
	Priority    AlertPriority `json:"priority" db:"priority"`
	Title       string        `json:"title" db:"title"`
	Message     string        `json:"message" db:"message"`
	Data        string        `json:"data" db:"data"` // JSONB，按类型序列化的载荷
	IsRead      bool          `json:"is_read" db:"is_read"`
	TriggeredAt time.Time     `json:"triggered_at" db:"triggered_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// GeofencePayload 地理围栏报警载荷
type GeofencePayload struct {
	GeofenceID    string  `json:"geofence_id"`
	GeofenceName  string  `json:"geofence_name"`
	GeofenceType  string  `json:"geofence_type"`
	Distance      float64 `json:"distance"`
	ViolationType string  `json:"violation_type"`
}

// BatteryPayload 低电量报警载荷
type BatteryPayload struct {
	BatteryLevel             int  `json:"battery_level"`
	AlertThreshold           int  `json:"alert_threshold"`
	LocationTrackingAffected bool `json:"location_tracking_affected"`
}

// ContentPayload 违禁内容报警载荷
type ContentPayload struct {
	AppPackage     string `json:"app_package"`
	Keyword        string `json:"keyword"`
	Title          string `json:"title"`
	ContentPreview string `json:"content_preview"` // 脱敏后的内容预览
	Severity       string `json:"severity"`
	DetectedAt     string `json:"detected_at"` // ISO8601
}

// EmergencyPayload 紧急求助报警载荷
type EmergencyPayload struct {
	EmergencyType string           `json:"emergency_type"` // panic, accident, help, medical
	Location      EmergencyLatLon  `json:"location"`
	Timestamp     string           `json:"timestamp"` // ISO8601
}

// EmergencyLatLon 紧急求助坐标
type EmergencyLatLon struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
