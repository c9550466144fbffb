// Package store 维护客户端侧的领域状态
// 每个 store 持有一类状态（会话、审查、文档），通过注入的后端接口
// 与服务端交互，内部用互斥锁保证并发安全
package store

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fair-review/internal/client/api"
	"fair-review/internal/client/model"
	"fair-review/pkg/format"
)

// 流式请求失败时写入助手消息的兜底文案
const fallbackReply = "抱歉，处理您的请求时出现了错误。请稍后重试。"

// 隐式创建会话时标题取自消息内容的前若干字符
const titleMaxRunes = 30

// ChatBackend 会话 store 依赖的服务端能力
type ChatBackend interface {
	GetConversations(ctx context.Context) ([]model.Conversation, error)
	GetConversationMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	CreateConversation(ctx context.Context, title string) (model.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	ClearConversationMessages(ctx context.Context, conversationID string) error
	UpdateConversationTitle(ctx context.Context, conversationID, title string) error
	GetSettings(ctx context.Context) (model.ChatSettings, error)
	UpdateSettings(ctx context.Context, settings model.ChatSettings) error
	// StreamMessage 同步执行流式发送，所有失败都经由 onError 通知
	StreamMessage(ctx context.Context, req api.SendMessageRequest, onDelta func(string), onComplete func(), onError func(error))
}

// ChatPrefs 会话相关的本地偏好持久化
type ChatPrefs interface {
	SaveCurrentConversation(conversationID string) error
	GetCurrentConversation() string
}

// ChatStore 会话状态
type ChatStore struct {
	mu            sync.Mutex
	backend       ChatBackend
	prefs         ChatPrefs
	logger        *zap.Logger
	conversations []model.Conversation
	currentID     string
	streaming     bool
	lastError     string
	settings      model.ChatSettings
	onDelta       func(delta string)
}

// SetOnDelta 注册流式增量回调，供界面层实时渲染
func (s *ChatStore) SetOnDelta(fn func(delta string)) {
	s.mu.Lock()
	s.onDelta = fn
	s.mu.Unlock()
}

// NewChatStore 创建会话 store
// prefs 可为 nil，此时不做本地持久化
func NewChatStore(backend ChatBackend, prefs ChatPrefs, logger *zap.Logger) *ChatStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatStore{
		backend:       backend,
		prefs:         prefs,
		logger:        logger,
		conversations: []model.Conversation{},
		settings:      model.DefaultChatSettings(),
	}
}

// Initialize 启动时加载会话列表并恢复上次的会话
// 后端未就绪（网络错误或 5xx）时静默跳过，不向调用方报错
func (s *ChatStore) Initialize(ctx context.Context) error {
	if err := s.LoadConversations(ctx); err != nil {
		if api.IsBackendUnready(err) {
			s.logger.Info("后端未就绪，跳过会话初始化", zap.Error(err))
			return nil
		}
		return err
	}

	s.mu.Lock()
	restored := ""
	if s.prefs != nil {
		saved := s.prefs.GetCurrentConversation()
		for _, conv := range s.conversations {
			if conv.ID == saved {
				restored = saved
				break
			}
		}
	}
	if restored == "" && len(s.conversations) > 0 {
		restored = s.conversations[0].ID
	}
	s.mu.Unlock()

	if restored == "" {
		return nil
	}
	return s.SwitchConversation(ctx, restored)
}

// LoadConversations 拉取会话列表
// 列表中每个会话的 Messages 归一化为非 nil
func (s *ChatStore) LoadConversations(ctx context.Context) error {
	conversations, err := s.backend.GetConversations(ctx)
	if err != nil {
		return err
	}
	for i := range conversations {
		if conversations[i].Messages == nil {
			conversations[i].Messages = []model.Message{}
		}
	}

	s.mu.Lock()
	s.conversations = conversations
	s.mu.Unlock()
	return nil
}

// CreateConversation 创建新会话并切换过去
// 服务端返回的时间戳弃用，创建与更新时间都取本地当前时间
func (s *ChatStore) CreateConversation(ctx context.Context, title string) (model.Conversation, error) {
	conv, err := s.backend.CreateConversation(ctx, title)
	if err != nil {
		return model.Conversation{}, err
	}

	now := time.Now().UnixMilli()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}

	s.mu.Lock()
	s.conversations = append([]model.Conversation{conv}, s.conversations...)
	s.currentID = conv.ID
	s.mu.Unlock()

	s.persistCurrent(conv.ID)
	return conv, nil
}

// SwitchConversation 切换当前会话
// 切换到已是当前的会话时不做任何事，也不重新拉取。
// 本地未知的会话先合成一个空消息的占位条目，消息只在为空时才拉取
func (s *ChatStore) SwitchConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	if s.currentID == conversationID {
		s.mu.Unlock()
		return nil
	}
	s.currentID = conversationID
	i := s.indexOf(conversationID)
	if i < 0 {
		now := time.Now().UnixMilli()
		s.conversations = append([]model.Conversation{{
			ID:        conversationID,
			Title:     "新对话",
			Messages:  []model.Message{},
			CreatedAt: now,
			UpdatedAt: now,
		}}, s.conversations...)
		i = 0
	}
	needFetch := len(s.conversations[i].Messages) == 0
	s.mu.Unlock()

	s.persistCurrent(conversationID)

	if !needFetch {
		return nil
	}

	messages, err := s.backend.GetConversationMessages(ctx, conversationID)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []model.Message{}
	}

	s.mu.Lock()
	if i := s.indexOf(conversationID); i >= 0 {
		s.conversations[i].Messages = messages
	}
	s.mu.Unlock()
	return nil
}

// DeleteConversation 删除会话
// 删除当前会话后自动切换到列表中的第一个
func (s *ChatStore) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := s.backend.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}

	s.mu.Lock()
	if i := s.indexOf(conversationID); i >= 0 {
		s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
	}
	wasCurrent := s.currentID == conversationID
	next := ""
	if wasCurrent {
		s.currentID = ""
		if len(s.conversations) > 0 {
			next = s.conversations[0].ID
		}
	}
	s.mu.Unlock()

	if wasCurrent {
		s.persistCurrent("")
		if next != "" {
			return s.SwitchConversation(ctx, next)
		}
	}
	return nil
}

// ClearMessages 清空当前会话的消息
func (s *ChatStore) ClearMessages(ctx context.Context) error {
	s.mu.Lock()
	id := s.currentID
	s.mu.Unlock()
	if id == "" {
		return api.NewValidationError("当前没有选中的会话")
	}

	if err := s.backend.ClearConversationMessages(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.conversations[i].Messages = []model.Message{}
	}
	s.mu.Unlock()
	return nil
}

// RenameConversation 更新会话标题
func (s *ChatStore) RenameConversation(ctx context.Context, conversationID, title string) error {
	if err := s.backend.UpdateConversationTitle(ctx, conversationID, title); err != nil {
		return err
	}

	s.mu.Lock()
	if i := s.indexOf(conversationID); i >= 0 {
		s.conversations[i].Title = title
	}
	s.mu.Unlock()
	return nil
}

// SendMessage 发送用户消息并流式接收助手回复
// 纯空白消息且没有附件时拒绝发送，不产生任何消息。
// 没有当前会话时先隐式创建一个。流式期间的增量持续覆写
// 助手占位消息；流失败时占位消息被替换为兜底文案，用户消息保留，
// 错误文案记入 LastError。发送前的准备工作失败时在会话里追加
// 一条新的兜底助手消息。
func (s *ChatStore) SendMessage(ctx context.Context, content string, attachments []model.Attachment) error {
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return api.NewValidationError("消息内容不能为空")
	}

	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()

	if err := s.sendMessage(ctx, content, attachments); err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		s.appendFallbackReply()
		return err
	}
	return nil
}

func (s *ChatStore) sendMessage(ctx context.Context, content string, attachments []model.Attachment) error {
	s.mu.Lock()
	conversationID := s.currentID
	s.mu.Unlock()

	if conversationID == "" {
		title := format.TruncateText(content, titleMaxRunes, "...")
		conv, err := s.CreateConversation(ctx, title)
		if err != nil {
			return err
		}
		conversationID = conv.ID
	}

	now := time.Now().UnixMilli()
	userMsg := model.Message{
		ID:          strconv.FormatInt(now, 10),
		Role:        model.RoleUser,
		Content:     content,
		Timestamp:   now,
		Attachments: attachments,
	}

	s.mu.Lock()
	firstMessage := false
	if i := s.indexOf(conversationID); i >= 0 {
		s.conversations[i].Messages = append(s.conversations[i].Messages, userMsg)
		s.conversations[i].UpdatedAt = now
		firstMessage = len(s.conversations[i].Messages) == 1
	}
	s.mu.Unlock()

	// 首条消息先把标题定下来，之后的流式失败不影响已定的标题
	if firstMessage {
		s.updateTitle(ctx, conversationID, content)
	}

	placeholder := model.Message{
		ID:        strconv.FormatInt(now+1, 10),
		Role:      model.RoleAssistant,
		Content:   "",
		Timestamp: now + 1,
	}

	s.mu.Lock()
	if i := s.indexOf(conversationID); i >= 0 {
		s.conversations[i].Messages = append(s.conversations[i].Messages, placeholder)
	}
	s.streaming = true
	s.mu.Unlock()

	var streamErr error
	s.backend.StreamMessage(ctx,
		api.SendMessageRequest{
			Message:     content,
			SessionID:   conversationID,
			Attachments: attachments,
		},
		func(delta string) {
			s.mu.Lock()
			if i := s.indexOf(conversationID); i >= 0 {
				msgs := s.conversations[i].Messages
				if len(msgs) > 0 {
					msgs[len(msgs)-1].Content += delta
				}
				s.conversations[i].UpdatedAt = time.Now().UnixMilli()
			}
			onDelta := s.onDelta
			s.mu.Unlock()
			if onDelta != nil {
				onDelta(delta)
			}
		},
		func() {},
		func(err error) {
			streamErr = err
		},
	)

	s.mu.Lock()
	s.streaming = false
	if streamErr != nil {
		// 错误文案留给调用方检查，占位消息替换为兜底文案，用户消息保留
		s.lastError = streamErr.Error()
		if i := s.indexOf(conversationID); i >= 0 {
			msgs := s.conversations[i].Messages
			if len(msgs) > 0 && msgs[len(msgs)-1].Role == model.RoleAssistant {
				msgs[len(msgs)-1].Content = fallbackReply
			}
		}
	}
	s.mu.Unlock()

	if streamErr != nil {
		s.logger.Warn("流式响应失败", zap.String("conversation", conversationID), zap.Error(streamErr))
	}
	return nil
}

// updateTitle 用首条消息内容更新会话标题
// 尽力而为，失败只记日志
func (s *ChatStore) updateTitle(ctx context.Context, conversationID, content string) {
	title := format.TruncateText(content, titleMaxRunes, "...")
	if err := s.backend.UpdateConversationTitle(ctx, conversationID, title); err != nil {
		s.logger.Warn("更新会话标题失败", zap.String("conversation", conversationID), zap.Error(err))
		return
	}

	s.mu.Lock()
	if i := s.indexOf(conversationID); i >= 0 {
		s.conversations[i].Title = title
	}
	s.mu.Unlock()
}

// appendFallbackReply 在当前会话里追加一条兜底助手消息
func (s *ChatStore) appendFallbackReply() {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(s.currentID)
	if i < 0 {
		return
	}
	now := time.Now().UnixMilli()
	s.conversations[i].Messages = append(s.conversations[i].Messages, model.Message{
		ID:        strconv.FormatInt(now, 10),
		Role:      model.RoleAssistant,
		Content:   fallbackReply,
		Timestamp: now,
	})
}

// LoadSettings 拉取聊天设置
func (s *ChatStore) LoadSettings(ctx context.Context) error {
	settings, err := s.backend.GetSettings(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// SaveSettings 保存聊天设置
func (s *ChatStore) SaveSettings(ctx context.Context, settings model.ChatSettings) error {
	if err := s.backend.UpdateSettings(ctx, settings); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// Settings 当前聊天设置
func (s *ChatStore) Settings() model.ChatSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Conversations 会话列表快照
func (s *ChatStore) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Current 当前会话，第二个返回值表示是否存在
func (s *ChatStore) Current() (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(s.currentID); i >= 0 {
		return s.conversations[i], true
	}
	return model.Conversation{}, false
}

// CurrentID 当前会话 ID，没有时返回空串
func (s *ChatStore) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// IsStreaming 是否有流式响应进行中
func (s *ChatStore) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// LastError 最近一次发送失败的用户可读错误文案
// 发送成功后清空，没有失败过时为空串
func (s *ChatStore) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// indexOf 调用方必须持有 s.mu
func (s *ChatStore) indexOf(conversationID string) int {
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			return i
		}
	}
	return -1
}

// persistCurrent 持久化当前会话 ID，失败只记日志
func (s *ChatStore) persistCurrent(conversationID string) {
	if s.prefs == nil {
		return
	}
	if err := s.prefs.SaveCurrentConversation(conversationID); err != nil {
		s.logger.Warn("持久化当前会话失败", zap.Error(err))
	}
}
