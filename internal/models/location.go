package models

import (
	"time"
)

// LocationSample 定位采样（对应 locations 表）
// 创建后不可修改，按 captured_at 排序的追加流
type LocationSample struct {
	ID           int64     `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Latitude     float64   `json:"latitude" db:"latitude"`
	Longitude    float64   `json:"longitude" db:"longitude"`
	Accuracy     float64   `json:"accuracy" db:"accuracy"`
	BatteryLevel int       `json:"battery_level" db:"battery_level"` // 0-100
	CapturedAt   time.Time `json:"captured_at" db:"captured_at"`
}
