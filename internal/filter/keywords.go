package filter

// 固定的风险分级关键词表
// 先查 critical 集合，命中即定级；再查 high 集合；都未命中为 medium

// criticalKeywords 自伤/暴力/侵害类
var criticalKeywords = []string{
	"suicide",
	"kill myself",
	"self harm",
	"drugs",
	"violence",
	"bullying",
	"threat",
	"weapon",
	"abuse",
	"predator",
}

// highRiskKeywords 成人内容/成瘾物/交友类
var highRiskKeywords = []string{
	"inappropriate",
	"mature",
	"adult",
	"sexual",
	"explicit",
	"gambling",
	"alcohol",
	"tobacco",
	"dating",
}

// 严重度
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
)
