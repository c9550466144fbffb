package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTruncateText(t *testing.T) {
	require.Equal(t, "短文本", TruncateText("短文本", 30, "..."))
	require.Equal(t, "一二三...", TruncateText("一二三四五", 3, "..."))

	long := "本措施限定本地企业参与政府采购活动并排斥外地供应商"
	got := TruncateText(long, 10, "...")
	require.Equal(t, "本措施限定本地企业参...", got)
	require.Equal(t, 10+3, len([]rune(got)))
}

func TestProgress(t *testing.T) {
	require.Equal(t, "0%", Progress(0))
	require.Equal(t, "67%", Progress(66.7))
	require.Equal(t, "100%", Progress(100))
}

func TestRiskLevel(t *testing.T) {
	require.Equal(t, "未评估", RiskLevel(""))
	require.Equal(t, "高风险", RiskLevel("高风险"))
}

func TestRelativeTime(t *testing.T) {
	require.Equal(t, "刚刚", RelativeTime(time.Now().Add(-10*time.Second)))
	require.Equal(t, "5分钟前", RelativeTime(time.Now().Add(-5*time.Minute)))
	require.Equal(t, "3小时前", RelativeTime(time.Now().Add(-3*time.Hour)))
	require.Equal(t, "2天前", RelativeTime(time.Now().Add(-48*time.Hour)))
}

func TestDateTime(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 5, 0, 0, time.Local)
	require.Equal(t, "2025-03-01 09:05:00", DateTime(ts))
	require.Equal(t, "无效日期", DateTime(time.Time{}))
}
