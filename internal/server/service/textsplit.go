package service

import (
	"strings"
)

// SentenceSpan 切分出的句子及其在全文中的位置
// 位置按 rune 计，与前端高亮时的字符索引对齐
type SentenceSpan struct {
	Content  string
	StartPos int
	EndPos   int
}

// sentenceTerminators 句末标点
// 中文文档以句号、叹号、问号结尾，分号单独成句的措施条款也按句处理
var sentenceTerminators = map[rune]bool{
	'。': true,
	'！': true,
	'？': true,
	'；': true,
}

// SplitSentences 把全文切分成带位置信息的句子
// 段落（换行）是天然的句子边界，段内按句末标点切分。
// 返回的 StartPos/EndPos 是句子在全文 rune 序列中的半开区间 [start, end)
func SplitSentences(content string) []SentenceSpan {
	var spans []SentenceSpan
	runes := []rune(content)

	start := -1 // 当前句子的起点，-1 表示还没开始
	for i, r := range runes {
		if r == '\n' {
			// 段落边界结束当前句子
			if start >= 0 {
				spans = appendSpan(spans, runes, start, i)
				start = -1
			}
			continue
		}
		if start < 0 && !isSpace(r) {
			start = i
		}
		if sentenceTerminators[r] && start >= 0 {
			// 句末标点算在句子里
			spans = appendSpan(spans, runes, start, i+1)
			start = -1
		}
	}
	if start >= 0 {
		spans = appendSpan(spans, runes, start, len(runes))
	}
	return spans
}

// appendSpan 追加一个句子片段，丢弃清洗后为空的片段
func appendSpan(spans []SentenceSpan, runes []rune, start, end int) []SentenceSpan {
	// 去掉尾部空白，保持 EndPos 与内容一致
	for end > start && isSpace(runes[end-1]) {
		end--
	}
	text := strings.TrimSpace(string(runes[start:end]))
	if text == "" {
		return spans
	}
	return append(spans, SentenceSpan{
		Content:  text,
		StartPos: start,
		EndPos:   end,
	})
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '　':
		return true
	}
	return false
}
