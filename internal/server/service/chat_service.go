package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"fair-review/internal/server/ai"
	"fair-review/internal/server/model"
	"fair-review/internal/server/repository"
	"fair-review/pkg/format"
	"fair-review/pkg/util"
)

// 对话相关的业务错误
var (
	ErrSessionNotFound    = errors.New("会话不存在")
	ErrSessionForbidden   = errors.New("无权访问该会话")
	ErrAttachmentNotFound = errors.New("附件不存在")
)

// defaultSystemPrompt 审查助手的默认系统提示词
const defaultSystemPrompt = "你是一个专门从事公平竞争审查任务的专业助手。"

// defaultAnalyzePrompt 附件分析的默认提示词
const defaultAnalyzePrompt = "请分析这个文件的内容"

// historyLimit 发给模型的历史消息上限，避免超出上下文窗口
const historyLimit = 20

// ChatService 对话服务
// 处理会话管理、消息收发和附件分析
type ChatService struct {
	chatRepo  *repository.ChatRepository
	assistant ai.Assistant
	logger    *zap.Logger
	uploadDir string
}

// NewChatService 创建 ChatService 实例
func NewChatService(chatRepo *repository.ChatRepository, assistant ai.Assistant, logger *zap.Logger, uploadDir string) *ChatService {
	return &ChatService{
		chatRepo:  chatRepo,
		assistant: assistant,
		logger:    logger,
		uploadDir: uploadDir,
	}
}

// SessionView 会话的对外表示
type SessionView struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ListSessions 获取用户的全部会话
func (s *ChatService) ListSessions(ctx context.Context, userID int64) ([]SessionView, error) {
	sessions, err := s.chatRepo.ListSessionsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		count, err := s.chatRepo.CountMessages(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, SessionView{
			SessionID:    session.SessionID,
			Title:        session.Title,
			CreatedAt:    session.CreatedAt,
			UpdatedAt:    session.UpdatedAt,
			MessageCount: int(count),
		})
	}
	return views, nil
}

// CreateSession 创建新会话
// title 为空时用默认标题
func (s *ChatService) CreateSession(ctx context.Context, userID int64, title string) (*SessionView, error) {
	sessionID := util.GenerateUUID()
	if title == "" {
		title = "新对话"
	}

	session := &model.ChatSession{
		SessionID: sessionID,
		UserID:    userID,
		Title:     title,
	}
	if err := s.chatRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &SessionView{
		SessionID: session.SessionID,
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}, nil
}

// getOwnedSession 获取会话并校验归属
func (s *ChatService) getOwnedSession(ctx context.Context, userID int64, sessionID string) (*model.ChatSession, error) {
	session, err := s.chatRepo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrSessionForbidden
	}
	return session, nil
}

// GetMessages 获取会话的全部消息
func (s *ChatService) GetMessages(ctx context.Context, userID int64, sessionID string) ([]model.ChatMessage, error) {
	session, err := s.getOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.chatRepo.GetMessagesBySessionID(ctx, session.ID)
}

// DeleteSession 删除会话及其全部消息
func (s *ChatService) DeleteSession(ctx context.Context, userID int64, sessionID string) error {
	session, err := s.getOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	return s.chatRepo.DeleteSession(ctx, session.ID)
}

// ClearMessages 清空会话消息，保留会话本身
func (s *ChatService) ClearMessages(ctx context.Context, userID int64, sessionID string) error {
	session, err := s.getOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	return s.chatRepo.ClearMessages(ctx, session.ID)
}

// UpdateTitle 更新会话标题
func (s *ChatService) UpdateTitle(ctx context.Context, userID int64, sessionID, title string) error {
	session, err := s.getOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	return s.chatRepo.UpdateSessionTitle(ctx, session.ID, title)
}

// SearchSessions 按关键词搜索会话
func (s *ChatService) SearchSessions(ctx context.Context, userID int64, keyword string) ([]SessionView, error) {
	sessions, err := s.chatRepo.SearchSessions(ctx, userID, keyword)
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			SessionID: session.SessionID,
			Title:     session.Title,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}
	return views, nil
}

// SendMessageInput 发送消息的输入
type SendMessageInput struct {
	SessionID     string
	Content       string
	AttachmentIDs []string
}

// StreamMessage 流式发送消息
// 持久化用户消息后调用模型流式生成回复，分片经 onDelta 回调；
// 流结束后把完整回复落库。会话不存在时隐式创建。
// 返回值是实际使用的会话标识（隐式创建时与入参不同）
func (s *ChatService) StreamMessage(ctx context.Context, userID int64, input SendMessageInput, onDelta func(string)) (string, error) {
	session, err := s.resolveSession(ctx, userID, input)
	if err != nil {
		return "", err
	}

	content, err := s.buildUserContent(ctx, userID, input)
	if err != nil {
		return "", err
	}

	// 持久化用户消息
	userMsg := &model.ChatMessage{
		SessionID: session.ID,
		Role:      model.MessageRoleUser,
		Content:   input.Content,
	}
	if err := s.chatRepo.CreateMessage(ctx, userMsg); err != nil {
		return "", err
	}

	history, err := s.buildHistory(ctx, session.ID, content)
	if err != nil {
		return "", err
	}

	stream, err := s.assistant.StreamChat(ctx, history)
	if err != nil {
		return "", err
	}

	var reply strings.Builder
	for chunk := range stream {
		if chunk.Error != nil {
			return session.SessionID, chunk.Error
		}
		if chunk.Done {
			break
		}
		reply.WriteString(chunk.Content)
		onDelta(chunk.Content)
	}

	// 持久化助手回复并刷新会话活跃时间
	assistantMsg := &model.ChatMessage{
		SessionID: session.ID,
		Role:      model.MessageRoleAssistant,
		Content:   reply.String(),
	}
	if err := s.chatRepo.CreateMessage(ctx, assistantMsg); err != nil {
		return session.SessionID, err
	}
	if err := s.chatRepo.TouchSession(ctx, session.ID); err != nil {
		s.logger.Warn("刷新会话活跃时间失败", zap.Int64("session", session.ID), zap.Error(err))
	}

	return session.SessionID, nil
}

// SendMessage 非流式发送消息，返回完整回复
func (s *ChatService) SendMessage(ctx context.Context, userID int64, input SendMessageInput) (*model.ChatMessage, error) {
	session, err := s.resolveSession(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	content, err := s.buildUserContent(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	userMsg := &model.ChatMessage{
		SessionID: session.ID,
		Role:      model.MessageRoleUser,
		Content:   input.Content,
	}
	if err := s.chatRepo.CreateMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	history, err := s.buildHistory(ctx, session.ID, content)
	if err != nil {
		return nil, err
	}

	reply, err := s.assistant.Chat(ctx, history)
	if err != nil {
		return nil, err
	}

	assistantMsg := &model.ChatMessage{
		SessionID: session.ID,
		Role:      model.MessageRoleAssistant,
		Content:   reply,
	}
	if err := s.chatRepo.CreateMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}
	return assistantMsg, nil
}

// resolveSession 定位消息所属会话，不存在时隐式创建
func (s *ChatService) resolveSession(ctx context.Context, userID int64, input SendMessageInput) (*model.ChatSession, error) {
	if input.SessionID != "" {
		return s.getOwnedSession(ctx, userID, input.SessionID)
	}

	title := format.TruncateText(input.Content, 30, "...")
	if title == "" {
		title = "新对话"
	}
	session := &model.ChatSession{
		SessionID: util.GenerateUUID(),
		UserID:    userID,
		Title:     title,
	}
	if err := s.chatRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// buildUserContent 把附件内容拼进用户消息
func (s *ChatService) buildUserContent(ctx context.Context, userID int64, input SendMessageInput) (string, error) {
	if len(input.AttachmentIDs) == 0 {
		return input.Content, nil
	}

	var sb strings.Builder
	sb.WriteString(input.Content)
	for _, id := range input.AttachmentIDs {
		attachment, err := s.chatRepo.GetAttachmentByID(ctx, id)
		if err != nil {
			return "", err
		}
		if attachment == nil || attachment.UserID != userID {
			return "", ErrAttachmentNotFound
		}
		if attachment.Content != "" {
			sb.WriteString(fmt.Sprintf("\n\n[附件 %s 的内容]\n%s", attachment.Name, attachment.Content))
		}
	}
	return sb.String(), nil
}

// buildHistory 组装发给模型的消息序列
// 系统提示词在前，取最近的历史消息，最后替换为携带附件内容的当前消息
func (s *ChatService) buildHistory(ctx context.Context, sessionID int64, currentContent string) ([]ai.Message, error) {
	messages, err := s.chatRepo.GetMessagesBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if len(messages) > historyLimit {
		messages = messages[len(messages)-historyLimit:]
	}

	history := make([]ai.Message, 0, len(messages)+1)
	history = append(history, ai.Message{Role: "system", Content: defaultSystemPrompt})
	for _, msg := range messages {
		history = append(history, ai.Message{Role: msg.Role, Content: msg.Content})
	}
	// 最后一条是刚落库的用户消息，替换为拼好附件的版本
	if len(history) > 1 {
		history[len(history)-1].Content = currentContent
	}
	return history, nil
}

// UploadAttachment 保存聊天附件
// 文本附件（.txt/.md）读出内联内容，供助手分析
func (s *ChatService) UploadAttachment(ctx context.Context, userID int64, header *multipart.FileHeader, sessionID string) (*model.ChatAttachment, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))

	dir := filepath.Join(s.uploadDir, "attachments")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建附件目录失败: %w", err)
	}

	id := util.GenerateUUID()
	storedPath := filepath.Join(dir, id+ext)
	if err := saveUploadedFile(header, storedPath); err != nil {
		return nil, err
	}

	attachment := &model.ChatAttachment{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		Name:      header.Filename,
		Type:      ext,
		Size:      header.Size,
		Path:      storedPath,
	}

	// 纯文本附件直接内联内容
	if ext == ".txt" || ext == ".md" {
		data, err := os.ReadFile(storedPath)
		if err == nil {
			attachment.Content = string(data)
		}
	}

	if err := s.chatRepo.CreateAttachment(ctx, attachment); err != nil {
		os.Remove(storedPath)
		return nil, err
	}
	return attachment, nil
}

// AnalyzeAttachment 让助手分析附件内容
func (s *ChatService) AnalyzeAttachment(ctx context.Context, userID int64, attachmentID, prompt string) (string, error) {
	attachment, err := s.chatRepo.GetAttachmentByID(ctx, attachmentID)
	if err != nil {
		return "", err
	}
	if attachment == nil || attachment.UserID != userID {
		return "", ErrAttachmentNotFound
	}

	if prompt == "" {
		prompt = defaultAnalyzePrompt
	}

	content := attachment.Content
	if content == "" {
		content = "（该附件没有可内联的文本内容）"
	}

	return s.assistant.Chat(ctx, []ai.Message{
		{Role: "system", Content: defaultSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("%s\n\n[文件 %s 的内容]\n%s", prompt, attachment.Name, content)},
	})
}

// GetSettings 获取用户的聊天设置，没有保存过时返回默认值
func (s *ChatService) GetSettings(ctx context.Context, userID int64) (*model.ChatSetting, error) {
	setting, err := s.chatRepo.GetSettingByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		setting = &model.ChatSetting{
			UserID:           userID,
			Model:            "gpt-3.5-turbo",
			Temperature:      0.7,
			MaxTokens:        2000,
			SystemPrompt:     defaultSystemPrompt,
			EnableFileUpload: true,
			MaxFileSize:      10 * 1024 * 1024,
			AllowedFileTypes: ".pdf,.doc,.docx,.txt,.md",
		}
	}
	return setting, nil
}

// UpdateSettings 保存用户的聊天设置
func (s *ChatService) UpdateSettings(ctx context.Context, setting *model.ChatSetting) error {
	return s.chatRepo.SaveSetting(ctx, setting)
}

// ExportSession 导出会话为文本
// 每条消息一段: 角色、时间、内容
func (s *ChatService) ExportSession(ctx context.Context, userID int64, sessionID string) (string, error) {
	session, err := s.getOwnedSession(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	messages, err := s.chatRepo.GetMessagesBySessionID(ctx, session.ID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", session.Title))
	for _, msg := range messages {
		role := "用户"
		if msg.Role == model.MessageRoleAssistant {
			role = "助手"
		}
		sb.WriteString(fmt.Sprintf("## %s (%s)\n%s\n\n", role, msg.CreatedAt.Format(time.DateTime), msg.Content))
	}
	return sb.String(), nil
}

// saveUploadedFile 把 multipart 文件写到磁盘
func saveUploadedFile(header *multipart.FileHeader, dst string) error {
	src, err := header.Open()
	if err != nil {
		return fmt.Errorf("读取上传文件失败: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("保存上传文件失败: %w", err)
	}
	defer out.Close()

	if _, err := out.ReadFrom(src); err != nil {
		os.Remove(dst)
		return fmt.Errorf("保存上传文件失败: %w", err)
	}
	return nil
}
