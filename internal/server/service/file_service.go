package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"fair-review/internal/server/cache"
	"fair-review/internal/server/model"
	"fair-review/internal/server/repository"
	"fair-review/pkg/fileutil"
	"fair-review/pkg/util"
)

// 文档相关的业务错误
var (
	ErrArticleNotFound  = errors.New("文档不存在")
	ErrArticleForbidden = errors.New("无权访问该文档")
	ErrFileTypeInvalid  = errors.New("不支持的文件类型，仅支持docx/pdf")
	ErrFileTooLarge     = errors.New("文件大小超出限制")
)

// FileService 文档服务
// 处理文档上传、文本提取、句子切分和列表查询
type FileService struct {
	articleRepo *repository.ArticleRepository
	cache       *cache.RedisCache
	extractor   TextExtractor
	logger      *zap.Logger
	uploadDir   string
	maxSize     int64
}

// NewFileService 创建 FileService 实例
func NewFileService(
	articleRepo *repository.ArticleRepository,
	cache *cache.RedisCache,
	extractor TextExtractor,
	logger *zap.Logger,
	uploadDir string,
	maxSize int64,
) *FileService {
	return &FileService{
		articleRepo: articleRepo,
		cache:       cache,
		extractor:   extractor,
		logger:      logger,
		uploadDir:   uploadDir,
		maxSize:     maxSize,
	}
}

// Upload 处理文档上传
// 流程: 校验类型和大小 -> 落盘（UUID 文件名防冲突）-> 提取文本 ->
// 切分句子入库 -> 创建文档记录（状态为待审查）
func (s *FileService) Upload(ctx context.Context, userID int64, header *multipart.FileHeader, description string) (*model.Article, error) {
	// 1. 类型与大小校验
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !fileutil.IsFileTypeAllowed(header.Filename, fileutil.DefaultAllowedTypes) {
		return nil, ErrFileTypeInvalid
	}
	if header.Size > s.maxSize {
		return nil, ErrFileTooLarge
	}

	// 2. 落盘，存储名用 UUID 避免同名覆盖，原始名只存数据库
	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %w", err)
	}
	storedName := util.GenerateUUID() + ext
	storedPath := filepath.Join(s.uploadDir, storedName)

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(storedPath)
	if err != nil {
		return nil, fmt.Errorf("保存上传文件失败: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(storedPath)
		return nil, fmt.Errorf("保存上传文件失败: %w", err)
	}
	dst.Close()

	// 3. 提取纯文本
	content, err := s.extractor.Extract(ctx, storedPath)
	if err != nil {
		os.Remove(storedPath)
		return nil, fmt.Errorf("提取文档内容失败: %w", err)
	}

	// 4. 创建文档记录
	article := &model.Article{
		UserID:      userID,
		Name:        header.Filename,
		Type:        ext,
		Description: description,
		Path:        storedPath,
		Content:     content,
		Status:      model.ArticleStatusPending,
	}
	if err := s.articleRepo.Create(ctx, article); err != nil {
		os.Remove(storedPath)
		return nil, err
	}

	// 5. 切分句子入库
	spans := SplitSentences(content)
	sentences := make([]model.Sentence, 0, len(spans))
	for i, span := range spans {
		sentences = append(sentences, model.Sentence{
			ArticleID: article.ID,
			Content:   span.Content,
			StartPos:  span.StartPos,
			EndPos:    span.EndPos,
			Seq:       i,
		})
	}
	if err := s.articleRepo.CreateSentences(ctx, sentences); err != nil {
		return nil, err
	}

	s.logger.Info("文档上传完成",
		zap.Int64("article_id", article.ID),
		zap.String("name", article.Name),
		zap.Int("sentences", len(sentences)))
	return article, nil
}

// ListResult 文档列表查询结果
type ListResult struct {
	Articles   []model.Article `json:"articles"`
	Pagination Pagination      `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// List 分页获取用户的文档列表
func (s *FileService) List(ctx context.Context, userID int64, page, pageSize int, keyword string) (*ListResult, error) {
	articles, total, err := s.articleRepo.ListWithPagination(ctx, userID, page, pageSize, keyword)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Articles: articles,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

// Get 获取文档详情并校验归属
func (s *FileService) Get(ctx context.Context, userID, articleID int64) (*model.Article, error) {
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
	return article, nil
}

// Delete 删除文档、磁盘文件和审查数据
func (s *FileService) Delete(ctx context.Context, userID, articleID int64) error {
	article, err := s.Get(ctx, userID, articleID)
	if err != nil {
		return err
	}

	if err := s.articleRepo.Delete(ctx, articleID); err != nil {
		return err
	}

	// 磁盘文件和进度缓存清理失败不影响删除结果
	if article.Path != "" {
		if err := os.Remove(article.Path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("删除磁盘文件失败", zap.String("path", article.Path), zap.Error(err))
		}
	}
	if err := s.cache.ClearReviewProgress(ctx, articleID); err != nil {
		s.logger.Warn("清除进度缓存失败", zap.Int64("article_id", articleID), zap.Error(err))
	}
	return nil
}

// FullContentResult 文档全文及句子切分
type FullContentResult struct {
	ArticleID   int64              `json:"article_id"`
	ArticleName string             `json:"article_name"`
	Content     string             `json:"content"`
	Sentences   []SentenceWithFlag `json:"sentences"`
}

// SentenceWithFlag 带违规标记的句子片段
type SentenceWithFlag struct {
	ID         int64  `json:"id"`
	Content    string `json:"content"`
	StartPos   int    `json:"start_pos"`
	EndPos     int    `json:"end_pos"`
	HasProblem bool   `json:"has_problem"`
	Annotation string `json:"annotation"`
}

// FullContent 获取文档全文和句子切分信息（用于违规句高亮）
func (s *FileService) FullContent(ctx context.Context, userID, articleID int64) (*FullContentResult, error) {
	article, err := s.Get(ctx, userID, articleID)
	if err != nil {
		return nil, err
	}

	sentences, err := s.articleRepo.GetSentencesWithAnnotations(ctx, articleID)
	if err != nil {
		return nil, err
	}

	result := &FullContentResult{
		ArticleID:   article.ID,
		ArticleName: article.Name,
		Content:     article.Content,
		Sentences:   make([]SentenceWithFlag, 0, len(sentences)),
	}
	for _, sent := range sentences {
		flag := SentenceWithFlag{
			ID:         sent.ID,
			Content:    sent.Content,
			StartPos:   sent.StartPos,
			EndPos:     sent.EndPos,
			HasProblem: sent.HasProblem,
		}
		if sent.Annotation != nil {
			flag.Annotation = sent.Annotation.Content
		}
		result.Sentences = append(result.Sentences, flag)
	}
	return result, nil
}
