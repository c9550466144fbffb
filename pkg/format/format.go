// Package format 提供展示层的格式化工具
package format

import (
	"fmt"
	"math"
	"time"
)

// DateTimeLayout 默认的日期时间格式
const DateTimeLayout = "2006-01-02 15:04:05"

// DateTime 格式化日期时间
func DateTime(t time.Time) string {
	if t.IsZero() {
		return "无效日期"
	}
	return t.Format(DateTimeLayout)
}

// RelativeTime 格式化相对时间
// 一周以内显示"X分钟前"等相对描述，更早的显示日期
func RelativeTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "刚刚"
	case diff < time.Hour:
		return fmt.Sprintf("%d分钟前", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d小时前", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d天前", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// Progress 格式化进度百分比
func Progress(progress float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(progress)))
}

// RiskLevel 格式化风险等级，未评估时返回占位文案
func RiskLevel(level string) string {
	if level == "" {
		return "未评估"
	}
	return level
}

// TruncateText 按字符截断文本，超出部分替换为后缀
// 按 rune 计数，中文内容不会被截成半个字符
func TruncateText(text string, maxLen int, suffix string) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + suffix
}
