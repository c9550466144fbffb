package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"fair-review/internal/client/model"
)

const (
	chatBasePath = "/api/chat"

	// 流式响应的结束哨兵
	streamDoneSentinel = "[DONE]"
	// 流式响应数据行前缀
	streamDataPrefix = "data: "

	// 附件上传的超时时间
	uploadTimeout = 30 * time.Second
)

// sessionPayload 服务端会话的原始报文结构
// 显式解析后转换为 model.Conversation，缺少关键字段时报解码错误
type sessionPayload struct {
	ID           json.Number      `json:"id"`
	SessionID    string           `json:"session_id"`
	Title        string           `json:"title"`
	Messages     []messagePayload `json:"messages"`
	CreatedAt    string           `json:"created_at"`
	UpdatedAt    string           `json:"updated_at"`
	MessageCount *int             `json:"message_count"`
}

// messagePayload 服务端消息的原始报文结构
type messagePayload struct {
	ID        json.Number `json:"id"`
	Role      string      `json:"role"`
	Content   *string     `json:"content"`
	CreatedAt string      `json:"created_at"`
}

// decodeConversation 把原始会话报文转换为内部类型
// session_id 作为会话 ID，messages 缺失时兜底为空序列
func decodeConversation(p sessionPayload) (model.Conversation, error) {
	id := p.SessionID
	if id == "" {
		id = p.ID.String()
	}
	if id == "" || id == "0" {
		return model.Conversation{}, NewValidationError("解析会话失败: 缺少会话ID")
	}

	title := p.Title
	if title == "" {
		title = "对话 " + truncateID(id)
	}

	conv := model.Conversation{
		ID:        id,
		Title:     title,
		Messages:  make([]model.Message, 0, len(p.Messages)),
		CreatedAt: parseServerTime(p.CreatedAt),
		UpdatedAt: parseServerTime(p.UpdatedAt),
	}
	for _, mp := range p.Messages {
		msg, err := decodeMessage(mp)
		if err != nil {
			return model.Conversation{}, err
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if p.MessageCount != nil {
		conv.Metadata = &model.ConversationMeta{TotalMessages: *p.MessageCount}
	}
	return conv, nil
}

// decodeMessage 把原始消息报文转换为内部类型
func decodeMessage(p messagePayload) (model.Message, error) {
	if p.ID.String() == "" {
		return model.Message{}, NewValidationError("解析消息失败: 缺少消息ID")
	}

	role := model.RoleUser
	if p.Role == model.RoleAssistant {
		role = model.RoleAssistant
	}

	content := ""
	if p.Content != nil {
		content = *p.Content
	}

	return model.Message{
		ID:        p.ID.String(),
		Role:      role,
		Content:   content,
		Timestamp: parseServerTime(p.CreatedAt),
	}, nil
}

// parseServerTime 解析服务端时间字符串为毫秒时间戳
// 解析失败时退回当前时间
func parseServerTime(s string) int64 {
	if s == "" {
		return time.Now().UnixMilli()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return time.Now().UnixMilli()
}

func truncateID(id string) string {
	runes := []rune(id)
	if len(runes) > 8 {
		return string(runes[:8])
	}
	return id
}

// GetConversations 获取对话列表
func (c *Client) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, chatBasePath+"/conversations", nil, requestOptions{})
	if err != nil {
		return nil, err
	}

	var payloads []sessionPayload
	if err := json.Unmarshal(raw, &payloads); err != nil {
		return nil, fmt.Errorf("解析对话列表失败: %w", err)
	}

	conversations := make([]model.Conversation, 0, len(payloads))
	for _, p := range payloads {
		conv, err := decodeConversation(p)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

// GetConversationMessages 获取指定对话的消息
func (c *Client) GetConversationMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	path := fmt.Sprintf("%s/conversations/%s/messages", chatBasePath, url.PathEscape(conversationID))
	raw, err := c.doJSON(ctx, http.MethodGet, path, nil, requestOptions{})
	if err != nil {
		return nil, err
	}

	var payloads []messagePayload
	if err := json.Unmarshal(raw, &payloads); err != nil {
		return nil, fmt.Errorf("解析对话消息失败: %w", err)
	}

	messages := make([]model.Message, 0, len(payloads))
	for _, p := range payloads {
		msg, err := decodeMessage(p)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// CreateConversation 创建新对话，title 可为空
func (c *Client) CreateConversation(ctx context.Context, title string) (model.Conversation, error) {
	body := map[string]interface{}{}
	if title != "" {
		body["title"] = title
	}

	raw, err := c.doJSON(ctx, http.MethodPost, chatBasePath+"/conversations", body, requestOptions{})
	if err != nil {
		return model.Conversation{}, err
	}

	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.Conversation{}, fmt.Errorf("解析创建响应失败: %w", err)
	}
	return decodeConversation(payload)
}

// DeleteConversation 删除对话
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	path := chatBasePath + "/conversations/" + url.PathEscape(conversationID)
	_, err := c.doJSON(ctx, http.MethodDelete, path, nil, requestOptions{})
	return err
}

// ClearConversationMessages 清空对话的全部消息
func (c *Client) ClearConversationMessages(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("%s/conversations/%s/messages", chatBasePath, url.PathEscape(conversationID))
	_, err := c.doJSON(ctx, http.MethodDelete, path, nil, requestOptions{})
	return err
}

// UpdateConversationTitle 更新对话标题（表单编码）
func (c *Client) UpdateConversationTitle(ctx context.Context, conversationID, title string) error {
	path := chatBasePath + "/conversations/" + url.PathEscape(conversationID)
	form := url.Values{"title": {title}}
	_, err := c.doForm(ctx, http.MethodPut, path, form, requestOptions{})
	return err
}

// UploadAttachment 上传聊天附件，30 秒超时
func (c *Client) UploadAttachment(ctx context.Context, filename string, file io.Reader, sessionID string) (model.Attachment, error) {
	fields := map[string]string{}
	if sessionID != "" {
		fields["session_id"] = sessionID
	}

	raw, err := c.doMultipart(ctx, chatBasePath+"/upload", fields, "file", filename, file,
		requestOptions{showLoading: true, timeout: uploadTimeout})
	if err != nil {
		return model.Attachment{}, err
	}

	var payload struct {
		Attachment struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Type    string `json:"type"`
			Size    int64  `json:"size"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"attachment"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.Attachment{}, fmt.Errorf("解析上传响应失败: %w", err)
	}
	if payload.Attachment.ID == "" {
		return model.Attachment{}, NewValidationError("解析上传响应失败: 缺少附件ID")
	}

	return model.Attachment{
		ID:      payload.Attachment.ID,
		Name:    payload.Attachment.Name,
		Type:    payload.Attachment.Type,
		Size:    payload.Attachment.Size,
		URL:     payload.Attachment.URL,
		Content: payload.Attachment.Content,
	}, nil
}

// AnalyzeAttachment 让助手分析附件内容
func (c *Client) AnalyzeAttachment(ctx context.Context, attachmentID, prompt string) (string, error) {
	if prompt == "" {
		prompt = "请分析这个文件的内容"
	}
	body := map[string]string{
		"attachment_id": attachmentID,
		"prompt":        prompt,
	}

	raw, err := c.doJSON(ctx, http.MethodPost, chatBasePath+"/analyze", body, requestOptions{})
	if err != nil {
		return "", err
	}

	var payload struct {
		Analysis string `json:"analysis"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("解析分析响应失败: %w", err)
	}
	return payload.Analysis, nil
}

// settingsPayload 聊天设置的报文结构
type settingsPayload struct {
	Model            string   `json:"model"`
	Temperature      float64  `json:"temperature"`
	MaxTokens        int      `json:"max_tokens"`
	SystemPrompt     string   `json:"system_prompt"`
	EnableFileUpload bool     `json:"enable_file_upload"`
	MaxFileSize      int64    `json:"max_file_size"`
	AllowedFileTypes []string `json:"allowed_file_types"`
}

// GetSettings 获取聊天设置
func (c *Client) GetSettings(ctx context.Context) (model.ChatSettings, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, chatBasePath+"/settings", nil, requestOptions{})
	if err != nil {
		return model.ChatSettings{}, err
	}

	var p settingsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.ChatSettings{}, fmt.Errorf("解析设置失败: %w", err)
	}
	return model.ChatSettings{
		Model:            p.Model,
		Temperature:      p.Temperature,
		MaxTokens:        p.MaxTokens,
		SystemPrompt:     p.SystemPrompt,
		EnableFileUpload: p.EnableFileUpload,
		MaxFileSize:      p.MaxFileSize,
		AllowedFileTypes: p.AllowedFileTypes,
	}, nil
}

// UpdateSettings 更新聊天设置
func (c *Client) UpdateSettings(ctx context.Context, s model.ChatSettings) error {
	body := settingsPayload{
		Model:            s.Model,
		Temperature:      s.Temperature,
		MaxTokens:        s.MaxTokens,
		SystemPrompt:     s.SystemPrompt,
		EnableFileUpload: s.EnableFileUpload,
		MaxFileSize:      s.MaxFileSize,
		AllowedFileTypes: s.AllowedFileTypes,
	}
	_, err := c.doJSON(ctx, http.MethodPut, chatBasePath+"/settings", body, requestOptions{})
	return err
}

// ExportConversation 导出对话，返回原始文件内容
// format 可选 json / txt / pdf
func (c *Client) ExportConversation(ctx context.Context, conversationID, format string) ([]byte, error) {
	if format == "" {
		format = "json"
	}
	path := fmt.Sprintf("%s/conversations/%s/export", chatBasePath, url.PathEscape(conversationID))
	raw, err := c.doJSON(ctx, http.MethodGet, path, nil, requestOptions{
		showLoading: true,
		query:       url.Values{"format": {format}},
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// SearchConversations 搜索对话
func (c *Client) SearchConversations(ctx context.Context, query string) ([]model.Conversation, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, chatBasePath+"/search", nil, requestOptions{
		query: url.Values{"q": {query}},
	})
	if err != nil {
		return nil, err
	}

	var payloads []sessionPayload
	if err := json.Unmarshal(raw, &payloads); err != nil {
		return nil, fmt.Errorf("解析搜索结果失败: %w", err)
	}

	conversations := make([]model.Conversation, 0, len(payloads))
	for _, p := range payloads {
		conv, err := decodeConversation(p)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

// SendMessageRequest 发送消息的请求参数
type SendMessageRequest struct {
	Message     string
	SessionID   string
	Attachments []model.Attachment
}

// attachmentPayload 附件的报文结构
type attachmentPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`
}

// sendMessagePayload 发送消息的报文结构
type sendMessagePayload struct {
	Message     string              `json:"message"`
	SessionID   string              `json:"session_id"`
	Attachments []attachmentPayload `json:"attachments,omitempty"`
}

func encodeSendMessage(req SendMessageRequest) sendMessagePayload {
	p := sendMessagePayload{
		Message:   req.Message,
		SessionID: req.SessionID,
	}
	for _, a := range req.Attachments {
		p.Attachments = append(p.Attachments, attachmentPayload{
			ID:      a.ID,
			Name:    a.Name,
			Type:    a.Type,
			Size:    a.Size,
			URL:     a.URL,
			Content: a.Content,
		})
	}
	return p
}

// SendMessage 非流式发送消息，返回助手的完整回复
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (model.Message, error) {
	raw, err := c.doJSON(ctx, http.MethodPost, chatBasePath+"/message", encodeSendMessage(req), requestOptions{})
	if err != nil {
		return model.Message{}, err
	}

	var payload struct {
		Message messagePayload `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.Message{}, fmt.Errorf("解析消息响应失败: %w", err)
	}
	return decodeMessage(payload.Message)
}

// StreamHandle 流式发送的任务句柄
// Cancel 终止流读取，Wait 阻塞到流结束
type StreamHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel 取消流式读取
func (h *StreamHandle) Cancel() {
	h.cancel()
}

// Wait 等待流结束（完成、出错或被取消）
func (h *StreamHandle) Wait() {
	<-h.done
}

// SendMessageStream 流式发送消息
// 响应是一串 "data: " 前缀的行，每行携带一个 JSON 增量或结束哨兵。
// 增量通过 onDelta 逐个回调，结束时回调 onComplete，出错时回调 onError。
// 返回的句柄可用于取消，所有失败都经由 onError 通知，不会二次返回。
func (c *Client) SendMessageStream(ctx context.Context, req SendMessageRequest, onDelta func(string), onComplete func(), onError func(error)) *StreamHandle {
	ctx, cancel := context.WithCancel(ctx)
	handle := &StreamHandle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(handle.done)
		c.runStream(ctx, req, onDelta, onComplete, onError)
	}()

	return handle
}

// StreamMessage 流式发送消息并阻塞到流结束
func (c *Client) StreamMessage(ctx context.Context, req SendMessageRequest, onDelta func(string), onComplete func(), onError func(error)) {
	c.SendMessageStream(ctx, req, onDelta, onComplete, onError).Wait()
}

func (c *Client) runStream(ctx context.Context, req SendMessageRequest, onDelta func(string), onComplete func(), onError func(error)) {
	jsonBody, err := json.Marshal(encodeSendMessage(req))
	if err != nil {
		onError(fmt.Errorf("序列化请求失败: %w", err))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatBasePath+"/stream", bytes.NewReader(jsonBody))
	if err != nil {
		onError(fmt.Errorf("构造请求失败: %w", err))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token := c.token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	// 流式请求不能设置整体超时
	hc := *c.httpClient
	hc.Timeout = 0

	resp, err := hc.Do(httpReq)
	if err != nil {
		onError(classifyTransport(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		onError(classifyStatus(resp.StatusCode, extractMessage(body)))
		return
	}

	// 跨网络分片的半行会被 Reader 缓冲，只解析完整的行
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// 流自然结束等同于收到结束哨兵
				onComplete()
			} else if ctx.Err() != nil {
				// 主动取消不算错误
				onComplete()
			} else {
				onError(classifyTransport(err))
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, streamDataPrefix) {
			// 空行与注释行直接忽略
			continue
		}

		payload := line[len(streamDataPrefix):]
		if payload == streamDoneSentinel {
			onComplete()
			return
		}

		var chunk struct {
			Content string `json:"content"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// 坏数据记日志后跳过，不中断整个流
			c.logger.Warn("解析流数据失败", zap.String("payload", payload), zap.Error(err))
			continue
		}
		// 服务端生成中途失败时把错误作为数据块发出，对发送方是失败
		if chunk.Error != "" {
			onError(&ErrorInfo{Type: ErrorServer, Message: chunk.Error})
			return
		}
		if chunk.Content != "" {
			onDelta(chunk.Content)
		}
	}
}
