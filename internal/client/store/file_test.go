package store

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fair-review/internal/client/api"
	"fair-review/internal/client/model"
)

type fakeFileBackend struct {
	listResult  api.ListDocumentsResult
	uploaded    model.Article
	uploadCalls int
	deleted     []int64
}

func (f *fakeFileBackend) UploadDocument(ctx context.Context, filename string, file io.Reader, description string) (model.Article, error) {
	f.uploadCalls++
	return f.uploaded, nil
}

func (f *fakeFileBackend) ListDocuments(ctx context.Context, page, pageSize int, keyword string) (api.ListDocumentsResult, error) {
	return f.listResult, nil
}

func (f *fakeFileBackend) DeleteDocument(ctx context.Context, articleID int64) error {
	f.deleted = append(f.deleted, articleID)
	return nil
}

func (f *fakeFileBackend) GetDocumentDetail(ctx context.Context, articleID int64) (model.Article, error) {
	return model.Article{ID: articleID}, nil
}

func (f *fakeFileBackend) GetFullContent(ctx context.Context, articleID int64) (model.FullContent, error) {
	return model.FullContent{ArticleID: articleID}, nil
}

func TestUploadRejectsBadFileTypeWithoutRequest(t *testing.T) {
	backend := &fakeFileBackend{}
	s := NewFileStore(backend, nil)

	_, err := s.Upload(context.Background(), "x.exe", 1024, strings.NewReader("x"), "")
	require.Error(t, err)
	assert.Equal(t, api.ErrorValidation, api.AsErrorInfo(err).Type)
	// 本地校验失败不应发出任何请求
	assert.Equal(t, 0, backend.uploadCalls)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	s := NewFileStore(&fakeFileBackend{}, nil)
	_, err := s.Upload(context.Background(), "report.pdf", 11*1024*1024, strings.NewReader("x"), "")
	require.Error(t, err)
	assert.Equal(t, api.ErrorValidation, api.AsErrorInfo(err).Type)
}

func TestUploadPrependsArticle(t *testing.T) {
	backend := &fakeFileBackend{
		uploaded: model.Article{ID: 42, Name: "report.pdf", Status: model.StatusPending},
	}
	s := NewFileStore(backend, nil)

	article, err := s.Upload(context.Background(), "report.pdf", 1024, strings.NewReader("x"), "季度采购方案")
	require.NoError(t, err)
	assert.Equal(t, int64(42), article.ID)

	articles := s.Articles()
	require.Len(t, articles, 1)
	assert.Equal(t, model.StatusPending, articles[0].Status)
	assert.Equal(t, int64(1), s.Pagination().Total)
}

func TestDeleteRemovesFromList(t *testing.T) {
	backend := &fakeFileBackend{
		listResult: api.ListDocumentsResult{
			Articles: []model.Article{
				{ID: 1, Name: "a.pdf", Status: model.StatusPending},
				{ID: 2, Name: "b.docx", Status: model.StatusReviewed},
			},
			Pagination: model.Pagination{Page: 1, PageSize: 10, Total: 2, TotalPages: 1},
		},
	}
	s := NewFileStore(backend, nil)
	require.NoError(t, s.LoadDocuments(context.Background(), 1, 10, ""))

	require.NoError(t, s.Delete(context.Background(), 1))
	assert.Equal(t, []int64{1}, backend.deleted)
	require.Len(t, s.Articles(), 1)
	assert.Equal(t, int64(2), s.Articles()[0].ID)
	assert.Equal(t, int64(1), s.Pagination().Total)
}

func TestArticlePartitions(t *testing.T) {
	backend := &fakeFileBackend{
		listResult: api.ListDocumentsResult{
			Articles: []model.Article{
				{ID: 1, Status: model.StatusPending},
				{ID: 2, Status: model.StatusReviewing},
				{ID: 3, Status: model.StatusReviewed},
			},
		},
	}
	s := NewFileStore(backend, nil)
	require.NoError(t, s.LoadDocuments(context.Background(), 1, 10, ""))

	pending := s.PendingArticles()
	reviewed := s.ReviewedArticles()
	require.Len(t, pending, 2)
	require.Len(t, reviewed, 1)
	assert.Equal(t, int64(3), reviewed[0].ID)
}

func TestLoadDocumentsValidatesPagination(t *testing.T) {
	s := NewFileStore(&fakeFileBackend{}, nil)
	err := s.LoadDocuments(context.Background(), 0, 10, "")
	require.Error(t, err)
	assert.Equal(t, api.ErrorValidation, api.AsErrorInfo(err).Type)
}

func TestUpdateStatusTouchesOnlyTarget(t *testing.T) {
	backend := &fakeFileBackend{
		listResult: api.ListDocumentsResult{
			Articles: []model.Article{
				{ID: 1, Status: model.StatusPending},
				{ID: 2, Status: model.StatusPending},
			},
		},
	}
	s := NewFileStore(backend, nil)
	require.NoError(t, s.LoadDocuments(context.Background(), 1, 10, ""))

	s.UpdateStatus(2, model.StatusReviewed, 100, model.RiskHigh)

	articles := s.Articles()
	assert.Equal(t, model.StatusPending, articles[0].Status)
	assert.Equal(t, model.StatusReviewed, articles[1].Status)
	assert.Equal(t, model.RiskHigh, articles[1].RiskLevel)
}
