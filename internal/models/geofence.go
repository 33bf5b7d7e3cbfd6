package models

// GeofenceKind 围栏安全分类
type GeofenceKind string

const (
	GeofenceSafe   GeofenceKind = "safe"
	GeofenceDanger GeofenceKind = "danger"
)

// 围栏违规类型
const (
	ViolationLeftSafeZone      = "left_safe_zone"
	ViolationEnteredDangerZone = "entered_danger_zone"
	ViolationEnteredSafeZone   = "entered_safe_zone"
	ViolationLeftDangerZone    = "left_danger_zone"
)

// Geofence 地理围栏（对应 geofences 表）
// 圆形区域：中心坐标 + 半径（米）
type Geofence struct {
	ID              string       `json:"id" db:"id"`
	FamilyID        string       `json:"family_id" db:"family_id"`
	Name            string       `json:"name" db:"name"`
	CenterLatitude  float64      `json:"center_latitude" db:"center_latitude"`
	CenterLongitude float64      `json:"center_longitude" db:"center_longitude"`
	Radius          int          `json:"radius" db:"radius"` // 米，必须 > 0
	Kind            GeofenceKind `json:"type" db:"type"`
	IsActive        bool         `json:"is_active" db:"is_active"`
}
