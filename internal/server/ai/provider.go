// Package ai 封装审查分类与对话助手使用的模型能力
package ai

import (
	"context"
)

// Message 对话消息
type Message struct {
	Role    string // user / assistant / system
	Content string
}

// StreamResponse 流式响应的单个分片
// Content、Done、Error 三者互斥
type StreamResponse struct {
	Content string
	Done    bool
	Error   error
}

// Assistant 对话助手能力
type Assistant interface {
	// Chat 非流式对话，返回完整回复
	Chat(ctx context.Context, messages []Message) (string, error)
	// StreamChat 流式对话，分片通过 channel 返回，结束时发送 Done
	StreamChat(ctx context.Context, messages []Message) (<-chan StreamResponse, error)
}

// Verdict 单个句子的审查结论
type Verdict struct {
	// HasProblem 是否违反公平竞争要求
	HasProblem bool
	// Annotation 违规原因说明，HasProblem 为 false 时为空
	Annotation string
}

// Classifier 公平竞争合规分类能力
// 以句子为最小判定单位
type Classifier interface {
	ClassifySentence(ctx context.Context, sentence string) (Verdict, error)
}
