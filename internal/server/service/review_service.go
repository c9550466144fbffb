package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"fair-review/internal/server/ai"
	"fair-review/internal/server/cache"
	"fair-review/internal/server/model"
	"fair-review/internal/server/repository"
)

// 审查相关的业务错误
var (
	ErrReviewInProgress = errors.New("文档正在审查中")
	ErrNotReviewed      = errors.New("文档尚未完成审查")
)

// 每个句子的审查拆成固定步数，进度曲线更平滑
// 步骤: 预处理 -> 模型判定 -> 写入标注 -> 提交
const stepsPerSentence = 4

// progressComplete 完成事件的推送值
const progressComplete = "complete"

// ReviewService 审查服务
// 负责发起审查任务、跟踪进度和产出审查结果
type ReviewService struct {
	articleRepo *repository.ArticleRepository
	cache       *cache.RedisCache
	classifier  ai.Classifier
	logger      *zap.Logger
}

// NewReviewService 创建 ReviewService 实例
func NewReviewService(
	articleRepo *repository.ArticleRepository,
	cache *cache.RedisCache,
	classifier ai.Classifier,
	logger *zap.Logger,
) *ReviewService {
	return &ReviewService{
		articleRepo: articleRepo,
		cache:       cache,
		classifier:  classifier,
		logger:      logger,
	}
}

// Start 发起文档审查
// 文档必须存在、归属当前用户且不在审查中。
// 任务在后台 goroutine 里执行，进度经 Redis 推送
func (s *ReviewService) Start(ctx context.Context, userID, articleID int64) error {
	article, err := s.articleRepo.GetByID(ctx, articleID)
	if err != nil {
		return err
	}
	if article == nil {
		return ErrArticleNotFound
	}
	if article.UserID != userID {
		return ErrArticleForbidden
	}
	if article.Status == model.ArticleStatusReviewing {
		return ErrReviewInProgress
	}

	// 重新审查时先清掉上次的结果
	if article.Status == model.ArticleStatusReviewed {
		if err := s.articleRepo.ClearReviewResult(ctx, articleID); err != nil {
			return err
		}
	}

	if err := s.articleRepo.UpdateStatus(ctx, articleID, model.ArticleStatusReviewing, 0); err != nil {
		return err
	}

	// 任务生命周期和请求解耦，用独立的 context
	go s.runReview(context.Background(), articleID)
	return nil
}

// runReview 审查任务主体
// 逐句分类，每句拆成固定步数推进进度，进度封顶 99，
// 全部完成后写入风险等级并推送完成事件。
// 失败时重置文档为待审查，不推送完成事件
func (s *ReviewService) runReview(ctx context.Context, articleID int64) {
	sentences, err := s.articleRepo.GetSentences(ctx, articleID)
	if err != nil {
		s.failReview(ctx, articleID, err)
		return
	}

	// 没有句子可审查时直接标记无风险完成
	if len(sentences) == 0 {
		if err := s.articleRepo.FinishReview(ctx, articleID, model.RiskNone); err != nil {
			s.failReview(ctx, articleID, err)
			return
		}
		s.publishProgress(ctx, articleID, 100)
		s.publishComplete(ctx, articleID)
		return
	}

	totalSteps := len(sentences) * stepsPerSentence
	currentStep := 0
	violations := 0

	advance := func(steps int) {
		currentStep += steps
		// 最后一句完成前进度封顶 99，避免提前显示完成
		progress := currentStep * 100 / totalSteps
		if progress > 99 {
			progress = 99
		}
		if err := s.articleRepo.UpdateStatus(ctx, articleID, model.ArticleStatusReviewing, progress); err != nil {
			s.logger.Warn("写入审查进度失败", zap.Int64("article_id", articleID), zap.Error(err))
		}
		s.publishProgress(ctx, articleID, progress)
	}

	for _, sentence := range sentences {
		// 步骤1: 预处理
		advance(1)

		// 步骤2: 模型判定
		verdict, err := s.classifier.ClassifySentence(ctx, sentence.Content)
		if err != nil {
			// 单句失败跳过该句，但推进剩余步骤避免进度卡住
			s.logger.Warn("句子审查失败",
				zap.Int64("sentence_id", sentence.ID),
				zap.Error(err))
			advance(stepsPerSentence - 1)
			continue
		}
		advance(1)

		// 步骤3: 写入标注
		if verdict.HasProblem {
			violations++
			if err := s.articleRepo.MarkViolation(ctx, sentence.ID, verdict.Annotation); err != nil {
				s.failReview(ctx, articleID, err)
				return
			}
		}
		advance(1)

		// 步骤4: 提交
		advance(1)
	}

	riskLevel := CalculateRiskLevel(float64(violations) / float64(len(sentences)))
	if err := s.articleRepo.FinishReview(ctx, articleID, riskLevel); err != nil {
		s.failReview(ctx, articleID, err)
		return
	}

	s.publishProgress(ctx, articleID, 100)
	s.publishComplete(ctx, articleID)
	s.logger.Info("文档审查完成",
		zap.Int64("article_id", articleID),
		zap.Int("violations", violations),
		zap.String("risk_level", riskLevel))
}

// failReview 审查失败的善后: 重置为待审查、进度清零
func (s *ReviewService) failReview(ctx context.Context, articleID int64, cause error) {
	s.logger.Error("文档审查失败", zap.Int64("article_id", articleID), zap.Error(cause))
	if err := s.articleRepo.UpdateStatus(ctx, articleID, model.ArticleStatusPending, 0); err != nil {
		s.logger.Error("重置审查状态失败", zap.Int64("article_id", articleID), zap.Error(err))
	}
	if err := s.cache.ClearReviewProgress(ctx, articleID); err != nil {
		s.logger.Warn("清除进度缓存失败", zap.Int64("article_id", articleID), zap.Error(err))
	}
}

func (s *ReviewService) publishProgress(ctx context.Context, articleID int64, progress int) {
	if err := s.cache.PublishReviewProgress(ctx, articleID, strconv.Itoa(progress)); err != nil {
		s.logger.Warn("推送审查进度失败", zap.Int64("article_id", articleID), zap.Error(err))
	}
}

func (s *ReviewService) publishComplete(ctx context.Context, articleID int64) {
	if err := s.cache.PublishReviewProgress(ctx, articleID, progressComplete); err != nil {
		s.logger.Warn("推送完成事件失败", zap.Int64("article_id", articleID), zap.Error(err))
	}
}

// CalculateRiskLevel 根据违规率计算风险等级
// 违规率是违规句数占总句数的比例（0-1）
func CalculateRiskLevel(violationRate float64) string {
	switch {
	case violationRate == 0:
		return model.RiskNone
	case violationRate <= 0.2:
		return model.RiskLow
	case violationRate <= 0.5:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// ProgressResult 审查进度查询结果
type ProgressResult struct {
	Progress  int    `json:"progress"`
	Status    string `json:"status"`
	RiskLevel string `json:"risk_level"`
}

// Progress 查询文档当前的审查进度
func (s *ReviewService) Progress(ctx context.Context, userID, articleID int64) (*ProgressResult, error) {
	article, err := s.articleRepo.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, ErrArticleNotFound
	}
	if article.UserID != userID {
		return nil, ErrArticleForbidden
	}

	return &ProgressResult{
		Progress:  article.ReviewProgress,
		Status:    article.Status,
		RiskLevel: article.RiskLevel,
	}, nil
}

// DetailResult 审查详情
type DetailResult struct {
	ArticleName        string              `json:"article_name"`
	ReviewTime         string              `json:"review_time"`
	RiskLevel          string              `json:"risk_level"`
	TotalViolation     int                 `json:"total_violation"`
	ViolationSentences []ViolationSentence `json:"violation_sentences"`
}

// ViolationSentence 审查详情中的违规句
type ViolationSentence struct {
	ID         int64  `json:"id"`
	Content    string `json:"content"`
	Annotation string `json:"annotation"`
}

// Detail 获取审查完成后的详细结果
func (s *ReviewService) Detail(ctx context.Context, userID, articleID int64) (*DetailResult, error) {
	article, err := s.articleRepo.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, ErrArticleNotFound
	}
	if article.UserID != userID {
		return nil, ErrArticleForbidden
	}
	if article.Status != model.ArticleStatusReviewed {
		return nil, ErrNotReviewed
	}

	violations, err := s.articleRepo.GetViolations(ctx, articleID)
	if err != nil {
		return nil, err
	}

	result := &DetailResult{
		ArticleName:        article.Name,
		RiskLevel:          article.RiskLevel,
		TotalViolation:     len(violations),
		ViolationSentences: make([]ViolationSentence, 0, len(violations)),
	}
	if article.ReviewTime != nil {
		result.ReviewTime = article.ReviewTime.Format(time.DateTime)
	}
	for _, v := range violations {
		vs := ViolationSentence{ID: v.ID, Content: v.Content}
		if v.Annotation != nil {
			vs.Annotation = v.Annotation.Content
		}
		result.ViolationSentences = append(result.ViolationSentences, vs)
	}
	return result, nil
}
