package model

import (
	"time"
)

// 消息角色常量
const (
	MessageRoleUser      = "user"      // 用户消息
	MessageRoleAssistant = "assistant" // AI 助手响应
)

// ChatSession 对话会话模型
// 对应数据库表 chat_sessions
// 一个用户可以有多个会话，类似于聊天应用中的对话窗口
type ChatSession struct {
	// ID 会话唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// SessionID 对外暴露的会话标识（UUID）
	// 客户端只认这个标识，不暴露自增主键
	SessionID string `gorm:"size:64;uniqueIndex;not null" json:"session_id"`

	// UserID 会话所属用户
	UserID int64 `gorm:"index;not null" json:"user_id"`

	// Title 会话标题，默认取首条消息的前几个字
	Title string `gorm:"size:100" json:"title"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 最后活跃时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Messages 会话中的所有消息（一对多关系）
	Messages []ChatMessage `gorm:"foreignKey:SessionID;references:ID" json:"messages,omitempty"`
}

// TableName 指定表名
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage 会话消息模型
// 对应数据库表 chat_messages
type ChatMessage struct {
	// ID 消息唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// SessionID 所属会话，外键关联 chat_sessions.id
	SessionID int64 `gorm:"index;not null" json:"session_id"`

	// Role 消息角色: user / assistant
	Role string `gorm:"size:20;not null" json:"role"`

	// Content 消息内容
	Content string `gorm:"type:longtext" json:"content"`

	// CreatedAt 消息时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// ChatAttachment 聊天附件模型
// 对应数据库表 chat_attachments
type ChatAttachment struct {
	// ID 附件唯一标识（UUID）
	ID string `gorm:"primaryKey;size:64" json:"id"`

	// UserID 上传者
	UserID int64 `gorm:"index;not null" json:"user_id"`

	// SessionID 关联的会话标识，可为空（上传后再发消息时绑定）
	SessionID string `gorm:"size:64;index" json:"session_id"`

	// Name 原始文件名
	Name string `gorm:"size:255;not null" json:"name"`

	// Type 文件扩展名
	Type string `gorm:"size:20" json:"type"`

	// Size 文件大小（字节）
	Size int64 `json:"size"`

	// Path 服务器上的存储路径，不对外暴露
	Path string `gorm:"size:500" json:"-"`

	// Content 文本附件的内联内容，供助手分析使用
	Content string `gorm:"type:longtext" json:"content,omitempty"`

	// CreatedAt 上传时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (ChatAttachment) TableName() string {
	return "chat_attachments"
}

// ChatSetting 聊天设置模型
// 对应数据库表 chat_settings，按用户存储一行
type ChatSetting struct {
	// ID 自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// UserID 设置所属用户，每个用户一行
	UserID int64 `gorm:"uniqueIndex;not null" json:"user_id"`

	// Model 默认使用的模型
	Model string `gorm:"size:100" json:"model"`

	// Temperature 采样温度
	Temperature float64 `gorm:"default:0.7" json:"temperature"`

	// MaxTokens 单次回复的最大 token 数
	MaxTokens int `gorm:"default:2000" json:"max_tokens"`

	// SystemPrompt 系统提示词
	SystemPrompt string `gorm:"type:text" json:"system_prompt"`

	// EnableFileUpload 是否允许上传附件
	EnableFileUpload bool `gorm:"default:true" json:"enable_file_upload"`

	// MaxFileSize 附件大小上限（字节）
	MaxFileSize int64 `gorm:"default:10485760" json:"max_file_size"`

	// AllowedFileTypes 允许的附件扩展名，逗号分隔存储
	AllowedFileTypes string `gorm:"size:255" json:"-"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (ChatSetting) TableName() string {
	return "chat_settings"
}
