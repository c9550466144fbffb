package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fair-review/internal/client/api"
	"fair-review/internal/client/model"
)

// fakeChatBackend 可编程的假后端
type fakeChatBackend struct {
	conversations   []model.Conversation
	messages        map[string][]model.Message
	createErr       error
	titleErr        error
	streamChunks    []string
	streamErr       error
	listCalls       int
	msgCalls        int
	titleUpdates    []string
	nextID          int
}

func newFakeChatBackend() *fakeChatBackend {
	return &fakeChatBackend{messages: map[string][]model.Message{}, nextID: 100}
}

func (f *fakeChatBackend) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	f.listCalls++
	return f.conversations, nil
}

func (f *fakeChatBackend) GetConversationMessages(ctx context.Context, id string) ([]model.Message, error) {
	f.msgCalls++
	return f.messages[id], nil
}

func (f *fakeChatBackend) CreateConversation(ctx context.Context, title string) (model.Conversation, error) {
	if f.createErr != nil {
		return model.Conversation{}, f.createErr
	}
	f.nextID++
	conv := model.Conversation{
		ID:    "conv-" + time.Now().Format("150405") + "-" + string(rune('a'+f.nextID%26)),
		Title: title,
		// 服务端时间戳故意设成过去，用于验证 store 会用本地时间覆盖
		CreatedAt: 1000,
		UpdatedAt: 2000,
	}
	f.conversations = append(f.conversations, conv)
	return conv, nil
}

func (f *fakeChatBackend) DeleteConversation(ctx context.Context, id string) error { return nil }

func (f *fakeChatBackend) ClearConversationMessages(ctx context.Context, id string) error {
	return nil
}

func (f *fakeChatBackend) UpdateConversationTitle(ctx context.Context, id, title string) error {
	if f.titleErr != nil {
		return f.titleErr
	}
	f.titleUpdates = append(f.titleUpdates, title)
	return nil
}

func (f *fakeChatBackend) GetSettings(ctx context.Context) (model.ChatSettings, error) {
	return model.DefaultChatSettings(), nil
}

func (f *fakeChatBackend) UpdateSettings(ctx context.Context, s model.ChatSettings) error {
	return nil
}

func (f *fakeChatBackend) StreamMessage(ctx context.Context, req api.SendMessageRequest, onDelta func(string), onComplete func(), onError func(error)) {
	if f.streamErr != nil {
		onError(f.streamErr)
		return
	}
	for _, chunk := range f.streamChunks {
		onDelta(chunk)
	}
	onComplete()
}

// fakePrefs 内存版偏好存储
type fakePrefs struct {
	current string
}

func (p *fakePrefs) SaveCurrentConversation(id string) error { p.current = id; return nil }
func (p *fakePrefs) GetCurrentConversation() string          { return p.current }

func TestLoadConversationsNormalizesNilMessages(t *testing.T) {
	backend := newFakeChatBackend()
	backend.conversations = []model.Conversation{
		{ID: "c1", Title: "对话一", Messages: nil},
	}
	s := NewChatStore(backend, nil, nil)

	require.NoError(t, s.LoadConversations(context.Background()))

	convs := s.Conversations()
	require.Len(t, convs, 1)
	assert.NotNil(t, convs[0].Messages)
	assert.Empty(t, convs[0].Messages)
}

func TestCreateConversationUsesLocalTime(t *testing.T) {
	backend := newFakeChatBackend()
	s := NewChatStore(backend, &fakePrefs{}, nil)

	before := time.Now().UnixMilli()
	conv, err := s.CreateConversation(context.Background(), "新对话")
	require.NoError(t, err)
	after := time.Now().UnixMilli()

	// 服务端的时间戳被本地时间覆盖，且创建和更新时间相等
	assert.Equal(t, conv.CreatedAt, conv.UpdatedAt)
	assert.GreaterOrEqual(t, conv.CreatedAt, before)
	assert.LessOrEqual(t, conv.CreatedAt, after)
	assert.Equal(t, conv.ID, s.CurrentID())
}

func TestSendMessageImplicitCreate(t *testing.T) {
	backend := newFakeChatBackend()
	backend.streamChunks = []string{"好的"}
	s := NewChatStore(backend, &fakePrefs{}, nil)

	require.NoError(t, s.SendMessage(context.Background(), "帮我审查这份文件", nil))

	conv, ok := s.Current()
	require.True(t, ok)
	// 隐式创建的会话里恰好有用户消息和助手回复两条
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "帮我审查这份文件", conv.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "好的", conv.Messages[1].Content)
}

func TestSendMessageMergesStreamChunks(t *testing.T) {
	backend := newFakeChatBackend()
	backend.streamChunks = []string{"Hel", "lo"}
	s := NewChatStore(backend, &fakePrefs{}, nil)

	_, err := s.CreateConversation(context.Background(), "测试")
	require.NoError(t, err)
	conv, _ := s.Current()
	createdUpdatedAt := conv.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.SendMessage(context.Background(), "问个问题", nil))

	conv, _ = s.Current()
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "Hello", conv.Messages[1].Content)
	assert.Greater(t, conv.UpdatedAt, createdUpdatedAt)
	assert.False(t, s.IsStreaming())
}

func TestSendMessageStreamErrorKeepsUserMessage(t *testing.T) {
	backend := newFakeChatBackend()
	backend.streamErr = errors.New("连接中断")
	s := NewChatStore(backend, &fakePrefs{}, nil)

	_, err := s.CreateConversation(context.Background(), "测试")
	require.NoError(t, err)
	require.NoError(t, s.SendMessage(context.Background(), "问个问题", nil))

	conv, _ := s.Current()
	require.Len(t, conv.Messages, 2)
	// 用户消息保留，助手占位消息被替换为兜底文案
	assert.Equal(t, "问个问题", conv.Messages[0].Content)
	assert.Equal(t, fallbackReply, conv.Messages[1].Content)
	assert.False(t, s.IsStreaming())
}

func TestSendMessagePreflightFailureAppendsFallback(t *testing.T) {
	backend := newFakeChatBackend()
	s := NewChatStore(backend, &fakePrefs{}, nil)

	_, err := s.CreateConversation(context.Background(), "测试")
	require.NoError(t, err)

	// 让隐式路径之外的准备工作失败: 清掉当前会话后禁止创建
	backend.createErr = errors.New("服务端拒绝")
	s.mu.Lock()
	s.currentID = ""
	s.mu.Unlock()

	err = s.SendMessage(context.Background(), "问个问题", nil)
	require.Error(t, err)
}

func TestSendMessageEmptyContentRejected(t *testing.T) {
	s := NewChatStore(newFakeChatBackend(), nil, nil)
	err := s.SendMessage(context.Background(), "", nil)
	require.Error(t, err)
	assert.Equal(t, api.ErrorValidation, api.AsErrorInfo(err).Type)
}

func TestSendMessageWhitespaceOnlyIsNoop(t *testing.T) {
	backend := newFakeChatBackend()
	backend.streamChunks = []string{"不该出现"}
	s := NewChatStore(backend, &fakePrefs{}, nil)

	_, err := s.CreateConversation(context.Background(), "测试")
	require.NoError(t, err)

	err = s.SendMessage(context.Background(), "   \t\n", nil)
	require.Error(t, err)
	assert.Equal(t, api.ErrorValidation, api.AsErrorInfo(err).Type)

	// 纯空白消息不产生任何消息，也不触发流式请求
	conv, _ := s.Current()
	assert.Empty(t, conv.Messages)
}

func TestSendMessageWhitespaceWithAttachmentAllowed(t *testing.T) {
	backend := newFakeChatBackend()
	backend.streamChunks = []string{"已收到附件"}
	s := NewChatStore(backend, &fakePrefs{}, nil)

	attachments := []model.Attachment{{ID: "att-1", Name: "方案.pdf"}}
	require.NoError(t, s.SendMessage(context.Background(), "  ", attachments))

	conv, ok := s.Current()
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, attachments, conv.Messages[0].Attachments)
}

func TestSwitchToCurrentConversationIsNoop(t *testing.T) {
	backend := newFakeChatBackend()
	s := NewChatStore(backend, &fakePrefs{}, nil)

	conv, err := s.CreateConversation(context.Background(), "测试")
	require.NoError(t, err)
	require.NoError(t, s.SwitchConversation(context.Background(), conv.ID))
	callsAfterFirst := backend.msgCalls

	// 切换到已是当前的会话不应再发请求
	require.NoError(t, s.SwitchConversation(context.Background(), conv.ID))
	assert.Equal(t, callsAfterFirst, backend.msgCalls)
}

func TestSwitchToUnknownConversationSynthesizesPlaceholder(t *testing.T) {
	backend := newFakeChatBackend()
	backend.messages["ghost"] = []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "之前的问题"},
	}
	s := NewChatStore(backend, &fakePrefs{}, nil)

	require.NoError(t, s.SwitchConversation(context.Background(), "ghost"))

	// 本地未知的会话被合成占位条目并补齐消息
	conv, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "ghost", conv.ID)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "之前的问题", conv.Messages[0].Content)
}

func TestSwitchSkipsFetchWhenMessagesLoaded(t *testing.T) {
	backend := newFakeChatBackend()
	backend.conversations = []model.Conversation{
		{ID: "c1", Title: "一", Messages: []model.Message{{ID: "m1", Role: model.RoleUser, Content: "旧消息"}}},
		{ID: "c2", Title: "二"},
	}
	s := NewChatStore(backend, &fakePrefs{}, nil)
	require.NoError(t, s.LoadConversations(context.Background()))

	// 消息已在本地的会话不重新拉取
	require.NoError(t, s.SwitchConversation(context.Background(), "c1"))
	assert.Equal(t, 0, backend.msgCalls)

	// 消息为空的会话才发请求
	require.NoError(t, s.SwitchConversation(context.Background(), "c2"))
	assert.Equal(t, 1, backend.msgCalls)
}

func TestStreamErrorRecordedInLastError(t *testing.T) {
	backend := newFakeChatBackend()
	backend.streamErr = errors.New("模型服务中断")
	s := NewChatStore(backend, &fakePrefs{}, nil)

	_, err := s.CreateConversation(context.Background(), "测试")
	require.NoError(t, err)
	require.NoError(t, s.SendMessage(context.Background(), "问个问题", nil))
	assert.Equal(t, "模型服务中断", s.LastError())

	// 下一次成功发送后错误状态清空
	backend.streamErr = nil
	backend.streamChunks = []string{"正常回复"}
	require.NoError(t, s.SendMessage(context.Background(), "再问一次", nil))
	assert.Empty(t, s.LastError())
}

func TestTitlePersistedBeforeStreamResolves(t *testing.T) {
	backend := newFakeChatBackend()
	backend.streamErr = errors.New("连接中断")
	s := NewChatStore(backend, &fakePrefs{}, nil)

	_, err := s.CreateConversation(context.Background(), "新对话")
	require.NoError(t, err)
	require.NoError(t, s.SendMessage(context.Background(), "这份文件合规吗", nil))

	// 标题在流式阶段之前就已确定，流失败不影响
	require.Len(t, backend.titleUpdates, 1)
	assert.Equal(t, "这份文件合规吗", backend.titleUpdates[0])
	conv, _ := s.Current()
	assert.Equal(t, "这份文件合规吗", conv.Title)
}

func TestInitializeRestoresSavedConversation(t *testing.T) {
	backend := newFakeChatBackend()
	backend.conversations = []model.Conversation{
		{ID: "c1", Title: "对话一"},
		{ID: "c2", Title: "对话二"},
	}
	prefs := &fakePrefs{current: "c2"}
	s := NewChatStore(backend, prefs, nil)

	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, "c2", s.CurrentID())
}

func TestInitializeFallsBackToFirstConversation(t *testing.T) {
	backend := newFakeChatBackend()
	backend.conversations = []model.Conversation{
		{ID: "c1", Title: "对话一"},
	}
	prefs := &fakePrefs{current: "gone"}
	s := NewChatStore(backend, prefs, nil)

	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, "c1", s.CurrentID())
}

func TestFirstExchangeUpdatesTitleBestEffort(t *testing.T) {
	backend := newFakeChatBackend()
	backend.streamChunks = []string{"回复"}
	s := NewChatStore(backend, &fakePrefs{}, nil)

	_, err := s.CreateConversation(context.Background(), "新对话")
	require.NoError(t, err)
	require.NoError(t, s.SendMessage(context.Background(), "这份文件有地域歧视条款吗", nil))
	require.Len(t, backend.titleUpdates, 1)
	assert.Equal(t, "这份文件有地域歧视条款吗", backend.titleUpdates[0])
}

func TestTitleUpdateFailureDoesNotFailSend(t *testing.T) {
	backend := newFakeChatBackend()
	backend.streamChunks = []string{"回复"}
	backend.titleErr = errors.New("标题更新失败")
	s := NewChatStore(backend, &fakePrefs{}, nil)

	_, err := s.CreateConversation(context.Background(), "新对话")
	require.NoError(t, err)
	// 标题更新是尽力而为，失败不影响发送结果
	require.NoError(t, s.SendMessage(context.Background(), "问个问题", nil))
}

func TestDeleteCurrentConversationSwitchesToFirst(t *testing.T) {
	backend := newFakeChatBackend()
	s := NewChatStore(backend, &fakePrefs{}, nil)

	c1, err := s.CreateConversation(context.Background(), "一")
	require.NoError(t, err)
	c2, err := s.CreateConversation(context.Background(), "二")
	require.NoError(t, err)
	require.Equal(t, c2.ID, s.CurrentID())

	require.NoError(t, s.DeleteConversation(context.Background(), c2.ID))
	assert.Equal(t, c1.ID, s.CurrentID())
	assert.Len(t, s.Conversations(), 1)
}
