package store

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"fair-review/internal/client/api"
	"fair-review/internal/client/model"
	"fair-review/pkg/fileutil"
)

// FileBackend 文档 store 依赖的服务端能力
type FileBackend interface {
	UploadDocument(ctx context.Context, filename string, file io.Reader, description string) (model.Article, error)
	ListDocuments(ctx context.Context, page, pageSize int, keyword string) (api.ListDocumentsResult, error)
	DeleteDocument(ctx context.Context, articleID int64) error
	GetDocumentDetail(ctx context.Context, articleID int64) (model.Article, error)
	GetFullContent(ctx context.Context, articleID int64) (model.FullContent, error)
}

// FileStore 文档列表状态
type FileStore struct {
	mu         sync.Mutex
	backend    FileBackend
	logger     *zap.Logger
	articles   []model.Article
	pagination model.Pagination
	keyword    string
}

// NewFileStore 创建文档 store
func NewFileStore(backend FileBackend, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		backend:  backend,
		logger:   logger,
		articles: []model.Article{},
	}
}

// LoadDocuments 分页加载文档列表
func (s *FileStore) LoadDocuments(ctx context.Context, page, pageSize int, keyword string) error {
	if v := fileutil.ValidatePagination(page, pageSize); !v.Valid {
		return api.NewValidationError(v.Message)
	}
	if keyword != "" {
		if v := fileutil.ValidateSearchKeyword(keyword); !v.Valid {
			return api.NewValidationError(v.Message)
		}
	}

	result, err := s.backend.ListDocuments(ctx, page, pageSize, keyword)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.articles = result.Articles
	if s.articles == nil {
		s.articles = []model.Article{}
	}
	s.pagination = result.Pagination
	s.keyword = keyword
	s.mu.Unlock()
	return nil
}

// Reload 按当前分页参数重新加载
func (s *FileStore) Reload(ctx context.Context) error {
	s.mu.Lock()
	page := s.pagination.Page
	pageSize := s.pagination.PageSize
	keyword := s.keyword
	s.mu.Unlock()

	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 10
	}
	return s.LoadDocuments(ctx, page, pageSize, keyword)
}

// Upload 校验并上传文档
// 校验顺序: 文件类型、文件大小、文件名，全部通过后才发请求
func (s *FileStore) Upload(ctx context.Context, filename string, size int64, file io.Reader, description string) (model.Article, error) {
	if v := fileutil.ValidateFileUpload(filename, size); !v.Valid {
		return model.Article{}, api.NewValidationError(v.Message)
	}

	article, err := s.backend.UploadDocument(ctx, filename, file, description)
	if err != nil {
		return model.Article{}, err
	}

	s.mu.Lock()
	s.articles = append([]model.Article{article}, s.articles...)
	s.pagination.Total++
	s.mu.Unlock()
	return article, nil
}

// Delete 删除文档并同步本地列表
func (s *FileStore) Delete(ctx context.Context, articleID int64) error {
	if v := fileutil.ValidateArticleID(articleID); !v.Valid {
		return api.NewValidationError(v.Message)
	}

	if err := s.backend.DeleteDocument(ctx, articleID); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.articles {
		if s.articles[i].ID == articleID {
			s.articles = append(s.articles[:i], s.articles[i+1:]...)
			if s.pagination.Total > 0 {
				s.pagination.Total--
			}
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// GetDetail 获取单个文档详情
func (s *FileStore) GetDetail(ctx context.Context, articleID int64) (model.Article, error) {
	if v := fileutil.ValidateArticleID(articleID); !v.Valid {
		return model.Article{}, api.NewValidationError(v.Message)
	}
	return s.backend.GetDocumentDetail(ctx, articleID)
}

// GetFullContent 获取文档全文及句子切分
func (s *FileStore) GetFullContent(ctx context.Context, articleID int64) (model.FullContent, error) {
	if v := fileutil.ValidateArticleID(articleID); !v.Valid {
		return model.FullContent{}, api.NewValidationError(v.Message)
	}
	return s.backend.GetFullContent(ctx, articleID)
}

// UpdateStatus 更新本地列表中某文档的状态字段（进度推送时调用）
func (s *FileStore) UpdateStatus(articleID int64, status string, progress int, riskLevel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.articles {
		if s.articles[i].ID == articleID {
			s.articles[i].Status = status
			s.articles[i].ReviewProgress = progress
			if riskLevel != "" {
				s.articles[i].RiskLevel = riskLevel
			}
			return
		}
	}
}

// Articles 文档列表快照
func (s *FileStore) Articles() []model.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Article, len(s.articles))
	copy(out, s.articles)
	return out
}

// Pagination 当前分页信息
func (s *FileStore) Pagination() model.Pagination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagination
}

// PendingArticles 尚未审查完成的文档（待审查、审查中）
func (s *FileStore) PendingArticles() []model.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Article{}
	for _, a := range s.articles {
		if a.Status != model.StatusReviewed {
			out = append(out, a)
		}
	}
	return out
}

// ReviewedArticles 已审查完成的文档
func (s *FileStore) ReviewedArticles() []model.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Article{}
	for _, a := range s.articles {
		if a.Status == model.StatusReviewed {
			out = append(out, a)
		}
	}
	return out
}
