package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fair-review/internal/server/model"
)

// ChatRepository 对话数据访问层
// 负责会话、消息和附件相关的所有数据库操作
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建 ChatRepository 实例
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateSession 创建新会话
func (r *ChatRepository) CreateSession(ctx context.Context, session *model.ChatSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GetSessionBySessionID 根据对外标识获取会话
// 未找到时返回 nil 而不是错误
func (r *ChatRepository) GetSessionBySessionID(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// ListSessionsByUserID 获取用户的全部会话，按最后活跃时间倒序
func (r *ChatRepository) ListSessionsByUserID(ctx context.Context, userID int64) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// SearchSessions 按标题和消息内容搜索用户的会话
func (r *ChatRepository) SearchSessions(ctx context.Context, userID int64, keyword string) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	pattern := "%" + keyword + "%"
	// 标题命中或任意一条消息命中都算匹配
	err := r.db.WithContext(ctx).
		Distinct("chat_sessions.*").
		Joins("LEFT JOIN chat_messages ON chat_messages.session_id = chat_sessions.id").
		Where("chat_sessions.user_id = ?", userID).
		Where("chat_sessions.title LIKE ? OR chat_messages.content LIKE ?", pattern, pattern).
		Order("chat_sessions.updated_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// UpdateSessionTitle 更新会话标题
func (r *ChatRepository) UpdateSessionTitle(ctx context.Context, id int64, title string) error {
	return r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("id = ?", id).
		Update("title", title).Error
}

// TouchSession 刷新会话的最后活跃时间
func (r *ChatRepository) TouchSession(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("id = ?", id).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

// DeleteSession 删除会话及其全部消息
func (r *ChatRepository) DeleteSession(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.ChatSession{}, id).Error
	})
}

// CreateMessage 写入一条消息
func (r *ChatRepository) CreateMessage(ctx context.Context, message *model.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetMessagesBySessionID 获取会话的全部消息，按时间正序
func (r *ChatRepository) GetMessagesBySessionID(ctx context.Context, sessionID int64) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// ClearMessages 清空会话的全部消息
func (r *ChatRepository) ClearMessages(ctx context.Context, sessionID int64) error {
	return r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.ChatMessage{}).Error
}

// CountMessages 统计会话的消息数量
func (r *ChatRepository) CountMessages(ctx context.Context, sessionID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

// CreateAttachment 写入附件记录
func (r *ChatRepository) CreateAttachment(ctx context.Context, attachment *model.ChatAttachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

// GetAttachmentByID 根据 ID 获取附件
func (r *ChatRepository) GetAttachmentByID(ctx context.Context, id string) (*model.ChatAttachment, error) {
	var attachment model.ChatAttachment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attachment, nil
}

// GetSettingByUserID 获取用户的聊天设置
// 未找到时返回 nil，由服务层填充默认值
func (r *ChatRepository) GetSettingByUserID(ctx context.Context, userID int64) (*model.ChatSetting, error) {
	var setting model.ChatSetting
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &setting, nil
}

// SaveSetting 写入或更新用户的聊天设置
func (r *ChatRepository) SaveSetting(ctx context.Context, setting *model.ChatSetting) error {
	existing, err := r.GetSettingByUserID(ctx, setting.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		setting.ID = existing.ID
	}
	return r.db.WithContext(ctx).Save(setting).Error
}
