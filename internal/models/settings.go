package models

// FilterSettings 通知过滤设置（对应 app_settings 表）
// 每个 (family_id, child_user_id) 唯一一条
type FilterSettings struct {
	FamilyID    string `json:"family_id"`
	ChildUserID string `json:"child_user_id"`

	// 应用包名 -> 是否监控；未配置的应用默认放行
	NotificationFilters map[string]bool `json:"notification_filters"`

	// 违禁关键词（已小写化、去空白），匹配按配置顺序进行
	BlockedKeywords []string `json:"blocked_keywords"`

	// 定位上报间隔（秒）
	LocationUpdateInterval int `json:"location_update_interval"`
}

// ShouldMonitorApp 查询应用是否被监控（未配置默认不监控）
func (s *FilterSettings) ShouldMonitorApp(appPackage string) bool {
	return s.NotificationFilters[appPackage]
}

// DefaultNotificationFilters 新设置的默认应用监控表
// 社交类应用默认监控，浏览器/视频类噪声太大默认关闭
func DefaultNotificationFilters() map[string]bool {
	return map[string]bool{
		"com.whatsapp":               true,
		"com.instagram.android":      true,
		"org.telegram.messenger":     true,
		"com.facebook.katana":        true,
		"com.snapchat.android":       true,
		"com.zhiliaoapp.musically":   true, // TikTok
		"com.twitter.android":        true,
		"com.discord":                true,
		"com.google.android.youtube": false,
		"com.android.chrome":         false,
	}
}
