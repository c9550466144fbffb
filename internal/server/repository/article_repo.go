package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"fair-review/internal/server/model"
)

// ArticleRepository 文档数据访问层
// 负责文档、句子和标注相关的所有数据库操作
type ArticleRepository struct {
	db *gorm.DB
}

// NewArticleRepository 创建 ArticleRepository 实例
func NewArticleRepository(db *gorm.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Create 创建文档记录
func (r *ArticleRepository) Create(ctx context.Context, article *model.Article) error {
	return r.db.WithContext(ctx).Create(article).Error
}

// GetByID 根据 ID 获取文档
// 未找到时返回 nil 而不是错误
func (r *ArticleRepository) GetByID(ctx context.Context, id int64) (*model.Article, error) {
	var article model.Article
	err := r.db.WithContext(ctx).First(&article, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &article, nil
}

// ListWithPagination 分页获取用户的文档列表
// keyword 非空时按文件名模糊匹配
// 返回:
//   - []model.Article: 文档列表，按上传时间倒序
//   - int64: 总数量（用于计算总页数）
//   - error: 数据库错误
func (r *ArticleRepository) ListWithPagination(ctx context.Context, userID int64, page, pageSize int, keyword string) ([]model.Article, int64, error) {
	var articles []model.Article
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Article{}).Where("user_id = ?", userID)
	if keyword != "" {
		query = query.Where("name LIKE ?", "%"+keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&articles).Error

	return articles, total, err
}

// UpdateStatus 更新文档的审查状态与进度
func (r *ArticleRepository) UpdateStatus(ctx context.Context, id int64, status string, progress int) error {
	return r.db.WithContext(ctx).
		Model(&model.Article{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          status,
			"review_progress": progress,
		}).Error
}

// FinishReview 标记文档审查完成
// 同时写入风险等级和完成时间
func (r *ArticleRepository) FinishReview(ctx context.Context, id int64, riskLevel string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.Article{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          model.ArticleStatusReviewed,
			"review_progress": 100,
			"risk_level":      riskLevel,
			"review_time":     now,
		}).Error
}

// Delete 删除文档及其句子和标注
// 三张表在同一事务里删除，避免留下孤儿记录
func (r *ArticleRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sentenceIDs []int64
		if err := tx.Model(&model.Sentence{}).Where("article_id = ?", id).Pluck("id", &sentenceIDs).Error; err != nil {
			return err
		}
		if len(sentenceIDs) > 0 {
			if err := tx.Where("sentence_id IN ?", sentenceIDs).Delete(&model.Annotation{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("article_id = ?", id).Delete(&model.Sentence{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Article{}, id).Error
	})
}

// CreateSentences 批量写入文档句子
func (r *ArticleRepository) CreateSentences(ctx context.Context, sentences []model.Sentence) error {
	if len(sentences) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&sentences).Error
}

// GetSentences 获取文档的全部句子，按序号正序
func (r *ArticleRepository) GetSentences(ctx context.Context, articleID int64) ([]model.Sentence, error) {
	var sentences []model.Sentence
	err := r.db.WithContext(ctx).
		Where("article_id = ?", articleID).
		Order("seq ASC").
		Find(&sentences).Error
	return sentences, err
}

// GetSentencesWithAnnotations 获取文档句子并预加载违规标注
func (r *ArticleRepository) GetSentencesWithAnnotations(ctx context.Context, articleID int64) ([]model.Sentence, error) {
	var sentences []model.Sentence
	err := r.db.WithContext(ctx).
		Preload("Annotation").
		Where("article_id = ?", articleID).
		Order("seq ASC").
		Find(&sentences).Error
	return sentences, err
}

// GetViolations 获取文档的违规句子及标注
func (r *ArticleRepository) GetViolations(ctx context.Context, articleID int64) ([]model.Sentence, error) {
	var sentences []model.Sentence
	err := r.db.WithContext(ctx).
		Preload("Annotation").
		Where("article_id = ? AND has_problem = ?", articleID, true).
		Order("seq ASC").
		Find(&sentences).Error
	return sentences, err
}

// MarkViolation 标记句子违规并写入标注
func (r *ArticleRepository) MarkViolation(ctx context.Context, sentenceID int64, annotation string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Sentence{}).
			Where("id = ?", sentenceID).
			Update("has_problem", true).Error; err != nil {
			return err
		}
		return tx.Create(&model.Annotation{
			SentenceID: sentenceID,
			Content:    annotation,
		}).Error
	})
}

// CountViolations 统计文档的违规句数量
func (r *ArticleRepository) CountViolations(ctx context.Context, articleID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Sentence{}).
		Where("article_id = ? AND has_problem = ?", articleID, true).
		Count(&count).Error
	return count, err
}

// ClearReviewResult 清除文档的审查结果（重新审查前调用）
func (r *ArticleRepository) ClearReviewResult(ctx context.Context, articleID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sentenceIDs []int64
		if err := tx.Model(&model.Sentence{}).Where("article_id = ?", articleID).Pluck("id", &sentenceIDs).Error; err != nil {
			return err
		}
		if len(sentenceIDs) > 0 {
			if err := tx.Where("sentence_id IN ?", sentenceIDs).Delete(&model.Annotation{}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.Sentence{}).
			Where("article_id = ?", articleID).
			Update("has_problem", false).Error
	})
}
