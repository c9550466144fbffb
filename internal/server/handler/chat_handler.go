package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fair-review/internal/server/middleware"
	"fair-review/internal/server/model"
	"fair-review/internal/server/service"
)

// 对话接口不走统一的响应包装，直接返回 JSON 或事件流，
// 错误用 {"detail": ...} 表示

// ChatHandler 对话请求处理器
// 处理会话管理、消息收发（含流式）、附件和聊天设置
type ChatHandler struct {
	chatService *service.ChatService
	logger      *zap.Logger
}

// NewChatHandler 创建 ChatHandler 实例
func NewChatHandler(chatService *service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// writeChatError 把对话业务错误映射为 HTTP 响应
func (h *ChatHandler) writeChatError(c *gin.Context, err error) {
	switch err {
	case service.ErrSessionNotFound:
		c.JSON(http.StatusNotFound, gin.H{"detail": "会话不存在"})
	case service.ErrSessionForbidden:
		c.JSON(http.StatusForbidden, gin.H{"detail": "无权访问该会话"})
	case service.ErrAttachmentNotFound:
		c.JSON(http.StatusNotFound, gin.H{"detail": "附件不存在"})
	default:
		h.logger.Error("对话请求处理失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "服务器内部错误"})
	}
}

// ListConversations 获取当前用户的会话列表
// @Router /api/chat/conversations [get]
func (h *ChatHandler) ListConversations(c *gin.Context) {
	views, err := h.chatService.ListSessions(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// CreateConversation 创建新会话，title 可选
// @Router /api/chat/conversations [post]
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	// 空请求体也是合法的
	_ = c.ShouldBindJSON(&req)

	view, err := h.chatService.CreateSession(c.Request.Context(), middleware.GetUserID(c), req.Title)
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetMessages 获取会话的全部消息
// @Router /api/chat/conversations/:id/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	messages, err := h.chatService.GetMessages(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	if messages == nil {
		messages = []model.ChatMessage{}
	}
	c.JSON(http.StatusOK, messages)
}

// DeleteConversation 删除会话及其全部消息
// @Router /api/chat/conversations/:id [delete]
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	if err := h.chatService.DeleteSession(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "会话已删除"})
}

// ClearMessages 清空会话消息，保留会话本身
// @Router /api/chat/conversations/:id/messages [delete]
func (h *ChatHandler) ClearMessages(c *gin.Context) {
	if err := h.chatService.ClearMessages(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "消息已清空"})
}

// UpdateTitle 更新会话标题（表单编码）
// @Router /api/chat/conversations/:id [put]
func (h *ChatHandler) UpdateTitle(c *gin.Context) {
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "标题不能为空"})
		return
	}

	if err := h.chatService.UpdateTitle(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), title); err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "标题已更新"})
}

// ExportConversation 导出会话
// format=json 返回结构化数据，其余格式返回纯文本
// @Router /api/chat/conversations/:id/export [get]
func (h *ChatHandler) ExportConversation(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	sessionID := c.Param("id")

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "txt" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "暂不支持导出为 " + format})
		return
	}

	if format == "json" {
		messages, err := h.chatService.GetMessages(ctx, userID, sessionID)
		if err != nil {
			h.writeChatError(c, err)
			return
		}
		if messages == nil {
			messages = []model.ChatMessage{}
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"messages":   messages,
		})
		return
	}

	text, err := h.chatService.ExportSession(ctx, userID, sessionID)
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// SearchConversations 按关键词搜索会话
// @Router /api/chat/search [get]
func (h *ChatHandler) SearchConversations(c *gin.Context) {
	views, err := h.chatService.SearchSessions(c.Request.Context(), middleware.GetUserID(c), c.Query("q"))
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// UploadAttachment 上传聊天附件
// multipart 表单: file 为附件文件，session_id 可选
// @Router /api/chat/upload [post]
func (h *ChatHandler) UploadAttachment(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "请选择要上传的文件"})
		return
	}

	attachment, err := h.chatService.UploadAttachment(c.Request.Context(), middleware.GetUserID(c), header, c.PostForm("session_id"))
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachment": attachment})
}

// AnalyzeAttachment 让助手分析附件内容
// @Router /api/chat/analyze [post]
func (h *ChatHandler) AnalyzeAttachment(c *gin.Context) {
	var req struct {
		AttachmentID string `json:"attachment_id" binding:"required"`
		Prompt       string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "请求参数错误"})
		return
	}

	analysis, err := h.chatService.AnalyzeAttachment(c.Request.Context(), middleware.GetUserID(c), req.AttachmentID, req.Prompt)
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

// settingsPayload 聊天设置的报文结构
// 允许的附件类型在数据库里逗号分隔存储，对外是数组
type settingsPayload struct {
	Model            string   `json:"model"`
	Temperature      float64  `json:"temperature"`
	MaxTokens        int      `json:"max_tokens"`
	SystemPrompt     string   `json:"system_prompt"`
	EnableFileUpload bool     `json:"enable_file_upload"`
	MaxFileSize      int64    `json:"max_file_size"`
	AllowedFileTypes []string `json:"allowed_file_types"`
}

func splitFileTypes(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	types := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			types = append(types, p)
		}
	}
	return types
}

// GetSettings 获取聊天设置
// @Router /api/chat/settings [get]
func (h *ChatHandler) GetSettings(c *gin.Context) {
	setting, err := h.chatService.GetSettings(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsPayload{
		Model:            setting.Model,
		Temperature:      setting.Temperature,
		MaxTokens:        setting.MaxTokens,
		SystemPrompt:     setting.SystemPrompt,
		EnableFileUpload: setting.EnableFileUpload,
		MaxFileSize:      setting.MaxFileSize,
		AllowedFileTypes: splitFileTypes(setting.AllowedFileTypes),
	})
}

// UpdateSettings 保存聊天设置
// @Router /api/chat/settings [put]
func (h *ChatHandler) UpdateSettings(c *gin.Context) {
	var req settingsPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "请求参数错误"})
		return
	}

	setting := &model.ChatSetting{
		UserID:           middleware.GetUserID(c),
		Model:            req.Model,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		SystemPrompt:     req.SystemPrompt,
		EnableFileUpload: req.EnableFileUpload,
		MaxFileSize:      req.MaxFileSize,
		AllowedFileTypes: strings.Join(req.AllowedFileTypes, ","),
	}
	if err := h.chatService.UpdateSettings(c.Request.Context(), setting); err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "设置已保存"})
}

// sendMessageRequest 发送消息的请求体
type sendMessageRequest struct {
	Message     string `json:"message" binding:"required"`
	SessionID   string `json:"session_id"`
	Attachments []struct {
		ID string `json:"id"`
	} `json:"attachments"`
}

func (r *sendMessageRequest) toInput() service.SendMessageInput {
	input := service.SendMessageInput{
		SessionID: r.SessionID,
		Content:   r.Message,
	}
	for _, a := range r.Attachments {
		if a.ID != "" {
			input.AttachmentIDs = append(input.AttachmentIDs, a.ID)
		}
	}
	return input
}

// SendMessage 非流式发送消息，返回助手的完整回复
// @Router /api/chat/message [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "消息内容不能为空"})
		return
	}

	reply, err := h.chatService.SendMessage(c.Request.Context(), middleware.GetUserID(c), req.toInput())
	if err != nil {
		h.writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": reply})
}

// StreamMessage 流式发送消息
// 响应是一串 "data: " 前缀的行，每行携带一个 JSON 增量，
// 结束时发送 [DONE] 哨兵
// @Router /api/chat/stream [post]
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "消息内容不能为空"})
		return
	}

	// 响应头在首个增量到达时才写出，
	// 这样生成前的失败还能以普通 JSON 错误返回
	started := false
	onDelta := func(delta string) {
		if !started {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Writer.WriteHeader(http.StatusOK)
			started = true
		}
		chunk, err := json.Marshal(gin.H{"content": delta})
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", chunk)
		c.Writer.Flush()
	}

	_, err := h.chatService.StreamMessage(c.Request.Context(), middleware.GetUserID(c), req.toInput(), onDelta)
	if err != nil {
		if !started {
			h.writeChatError(c, err)
			return
		}
		// 流已经开始，把错误作为数据块发出后正常收尾，
		// 客户端按内容为空的块跳过，收到哨兵即结束
		h.logger.Warn("流式回复中断", zap.Error(err))
		if chunk, merr := json.Marshal(gin.H{"error": err.Error()}); merr == nil {
			fmt.Fprintf(c.Writer, "data: %s\n\n", chunk)
		}
		fmt.Fprint(c.Writer, "data: [DONE]\n\n")
		c.Writer.Flush()
		return
	}

	if !started {
		// 模型一个增量都没产出，补一个空流
		c.Header("Content-Type", "text/event-stream")
		c.Writer.WriteHeader(http.StatusOK)
	}
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}
