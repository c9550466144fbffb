package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// classifySystemPrompt 审查分类的系统提示词
// 要求模型返回固定结构的 JSON，便于解析
const classifySystemPrompt = `你是公平竞争审查专家。判断给定的政策措施句子是否违反公平竞争要求，
例如限定本地企业、排斥外地经营者、指定特定供应商、设置歧视性准入条件等。
只返回 JSON: {"has_problem": true/false, "annotation": "违规原因，合规时为空"}`

// Config OpenAI 兼容接口的配置
type Config struct {
	APIKey      string
	BaseURL     string // 留空使用官方地址
	Model       string
	MaxTokens   int
	Temperature float64
}

// OpenAIProvider 基于 OpenAI 兼容接口的模型提供方
// 同时实现 Assistant 和 Classifier
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider 创建 OpenAIProvider
// APIKey 允许为空，运行时调用会直接返回接口错误
func NewOpenAIProvider(config Config) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.Model == "" {
		config.Model = openai.GPT3Dot5Turbo
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Chat 非流式对话
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    convertMessages(messages),
		MaxTokens:   p.config.MaxTokens,
		Temperature: float32(p.config.Temperature),
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from model")
	}
	return resp.Choices[0].Message.Content, nil
}

// StreamChat 流式对话
// 分片通过返回的 channel 推送，调用方读到 Done 或 Error 后 channel 关闭
func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message) (<-chan StreamResponse, error) {
	responseChan := make(chan StreamResponse)

	req := openai.ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    convertMessages(messages),
		MaxTokens:   p.config.MaxTokens,
		Temperature: float32(p.config.Temperature),
		Stream:      true,
	}

	go func() {
		defer close(responseChan)

		stream, err := p.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			responseChan <- StreamResponse{Error: fmt.Errorf("failed to create stream: %w", err)}
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				responseChan <- StreamResponse{Done: true}
				return
			}
			if err != nil {
				responseChan <- StreamResponse{Error: fmt.Errorf("stream error: %w", err)}
				return
			}

			if len(response.Choices) > 0 {
				content := response.Choices[0].Delta.Content
				if content != "" {
					responseChan <- StreamResponse{Content: content}
				}
			}
		}
	}()

	return responseChan, nil
}

// ClassifySentence 调用模型判定句子是否违规
func (p *OpenAIProvider) ClassifySentence(ctx context.Context, sentence string) (Verdict, error) {
	answer, err := p.Chat(ctx, []Message{
		{Role: "system", Content: classifySystemPrompt},
		{Role: "user", Content: sentence},
	})
	if err != nil {
		return Verdict{}, err
	}

	// 模型偶尔会把 JSON 包在代码块里
	answer = strings.TrimSpace(answer)
	answer = strings.TrimPrefix(answer, "```json")
	answer = strings.TrimPrefix(answer, "```")
	answer = strings.TrimSuffix(answer, "```")

	var result struct {
		HasProblem bool   `json:"has_problem"`
		Annotation string `json:"annotation"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(answer)), &result); err != nil {
		return Verdict{}, fmt.Errorf("解析模型判定结果失败: %w", err)
	}

	verdict := Verdict{HasProblem: result.HasProblem}
	if result.HasProblem {
		verdict.Annotation = result.Annotation
	}
	return verdict, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return out
}
