package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	content := "第一条措施限定本地企业。第二条鼓励公平竞争！\n第三条没有句末标点"
	spans := SplitSentences(content)

	require.Len(t, spans, 3)
	assert.Equal(t, "第一条措施限定本地企业。", spans[0].Content)
	assert.Equal(t, "第二条鼓励公平竞争！", spans[1].Content)
	assert.Equal(t, "第三条没有句末标点", spans[2].Content)
}

func TestSplitSentencesPositionsMatchContent(t *testing.T) {
	content := "甲方案。乙方案？\n丙方案；丁方案"
	runes := []rune(content)

	for _, span := range SplitSentences(content) {
		// 位置区间切回去必须和句子内容一致
		assert.Equal(t, span.Content, string(runes[span.StartPos:span.EndPos]))
	}
}

func TestSplitSentencesSkipsEmpty(t *testing.T) {
	assert.Empty(t, SplitSentences(""))
	assert.Empty(t, SplitSentences("\n\n  \n"))

	spans := SplitSentences("。。。")
	// 只有标点没有正文时不产出空句
	for _, s := range spans {
		assert.NotEmpty(t, s.Content)
	}
}

func TestSplitSentencesLeadingSpace(t *testing.T) {
	content := "　　缩进的条款正文。"
	spans := SplitSentences(content)
	require.Len(t, spans, 1)
	// 全角缩进不计入句子起点
	assert.Equal(t, 2, spans[0].StartPos)
	assert.Equal(t, "缩进的条款正文。", spans[0].Content)
}
