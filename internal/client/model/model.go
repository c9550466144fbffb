// Package model 定义客户端侧的领域类型
// 这些类型是解码后的内部表示，与服务端的原始报文结构解耦
package model

// 消息角色
const (
	RoleUser      = "user"      // 用户消息
	RoleAssistant = "assistant" // AI 助手响应
)

// 文档审查状态（与服务端存储值保持一致）
const (
	StatusPending   = "待审查"
	StatusReviewing = "审查中"
	StatusReviewed  = "已审查"
)

// 风险等级
const (
	RiskNone   = "无风险"
	RiskLow    = "低风险"
	RiskMedium = "中风险"
	RiskHigh   = "高风险"
)

// Message 会话中的一条消息
// 助手消息在流式响应期间 Content 会被持续覆写
type Message struct {
	ID          string
	Role        string
	Content     string
	Timestamp   int64 // 毫秒时间戳
	Attachments []Attachment
	Metadata    *MessageMeta
}

// MessageMeta 消息的可选元数据
type MessageMeta struct {
	Model          string
	Tokens         int
	ProcessingTime int64
}

// Conversation 一次对话会话
// Messages 归一化后永远不为 nil
type Conversation struct {
	ID        string
	Title     string
	Messages  []Message
	CreatedAt int64 // 毫秒时间戳
	UpdatedAt int64
	Metadata  *ConversationMeta
}

// ConversationMeta 会话的可选元数据
type ConversationMeta struct {
	TotalMessages int
}

// Attachment 上传产生的附件
type Attachment struct {
	ID      string
	Name    string
	Type    string
	Size    int64
	URL     string
	Content string // 文本文件的内联内容
}

// ChatSettings 聊天设置，服务端持久化的全局默认值
type ChatSettings struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	SystemPrompt     string
	EnableFileUpload bool
	MaxFileSize      int64
	AllowedFileTypes []string
}

// DefaultChatSettings 返回默认聊天设置
func DefaultChatSettings() ChatSettings {
	return ChatSettings{
		Model:            "gpt-3.5-turbo",
		Temperature:      0.7,
		MaxTokens:        2000,
		SystemPrompt:     "你是一个专门从事公平竞争审查任务的专业助手。",
		EnableFileUpload: true,
		MaxFileSize:      10 * 1024 * 1024,
		AllowedFileTypes: []string{".pdf", ".doc", ".docx", ".txt", ".md"},
	}
}

// ReviewProgress 单个文档的审查进度
type ReviewProgress struct {
	Progress  int    // 0-100
	Status    string // 待审查 / 审查中 / 已审查
	RiskLevel string // 审查完成后才有值
}

// ViolationSentence 审查详情中的违规句子
type ViolationSentence struct {
	ID         int64
	Content    string
	Annotation string // 违规原因标注
}

// ReviewDetail 审查完成后的完整结果
type ReviewDetail struct {
	ArticleName        string
	ReviewTime         string
	RiskLevel          string
	TotalViolation     int
	ViolationSentences []ViolationSentence
}

// Article 上传的文档
type Article struct {
	ID             int64
	Name           string
	Type           string
	Description    string
	UploadTime     string
	Status         string
	ReviewProgress int
	RiskLevel      string
	ReviewTime     string
}

// SentenceSpan 完整文档内容中的句子片段（用于高亮展示）
type SentenceSpan struct {
	ID         int64
	Content    string
	StartPos   int
	EndPos     int
	HasProblem bool
	Annotation string
}

// FullContent 完整文档内容及句子切分信息
type FullContent struct {
	ArticleID   int64
	ArticleName string
	Content     string
	Sentences   []SentenceSpan
}

// Pagination 分页信息
type Pagination struct {
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}
