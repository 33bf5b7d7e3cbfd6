package geo

import (
	"math"

	"famguard-alert/internal/models"
)

// EarthRadiusMeters 地球半径（米）
const EarthRadiusMeters = 6371000.0

// DistanceMeters 计算两个坐标之间的大圆距离（米）
// 使用 Haversine 公式；纯函数，满足对称性，相同点距离为 0
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	latDelta := deg2rad(lat2 - lat1)
	lonDelta := deg2rad(lon2 - lon1)

	a := math.Sin(latDelta/2)*math.Sin(latDelta/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*
			math.Sin(lonDelta/2)*math.Sin(lonDelta/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// ValidateCoordinate 校验坐标范围：lat ∈ [-90,90]，lon ∈ [-180,180]
func ValidateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return models.NewValidationError("latitude", "must be between -90 and 90")
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return models.NewValidationError("longitude", "must be between -180 and 180")
	}
	return nil
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180
}
