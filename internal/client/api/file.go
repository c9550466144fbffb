package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"fair-review/internal/client/model"
)

const fileBasePath = "/api/files"

// articlePayload 文档的报文结构
type articlePayload struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Description    string `json:"description"`
	UploadTime     string `json:"upload_time"`
	Status         string `json:"status"`
	ReviewProgress int    `json:"review_progress"`
	RiskLevel      string `json:"risk_level"`
	ReviewTime     string `json:"review_time"`
}

func decodeArticle(p articlePayload) model.Article {
	return model.Article{
		ID:             p.ID,
		Name:           p.Name,
		Type:           p.Type,
		Description:    p.Description,
		UploadTime:     p.UploadTime,
		Status:         p.Status,
		ReviewProgress: p.ReviewProgress,
		RiskLevel:      p.RiskLevel,
		ReviewTime:     p.ReviewTime,
	}
}

// UploadDocument 上传待审查的文档
// description 可为空
func (c *Client) UploadDocument(ctx context.Context, filename string, file io.Reader, description string) (model.Article, error) {
	fields := map[string]string{}
	if description != "" {
		fields["description"] = description
	}

	raw, err := c.doMultipart(ctx, fileBasePath+"/upload", fields, "file", filename, file,
		requestOptions{showLoading: true, timeout: uploadTimeout})
	if err != nil {
		return model.Article{}, RefineUploadError(err)
	}

	var p articlePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Article{}, fmt.Errorf("解析上传响应失败: %w", err)
	}
	return decodeArticle(p), nil
}

// ListDocumentsResult 文档列表及分页信息
type ListDocumentsResult struct {
	Articles   []model.Article
	Pagination model.Pagination
}

// ListDocuments 分页获取文档列表，keyword 为空时不过滤
func (c *Client) ListDocuments(ctx context.Context, page, pageSize int, keyword string) (ListDocumentsResult, error) {
	query := url.Values{
		"page":      {strconv.Itoa(page)},
		"page_size": {strconv.Itoa(pageSize)},
	}
	if keyword != "" {
		query.Set("keyword", keyword)
	}

	raw, err := c.doJSON(ctx, http.MethodGet, fileBasePath+"/list", nil, requestOptions{query: query})
	if err != nil {
		return ListDocumentsResult{}, err
	}

	var payload struct {
		Articles   []articlePayload `json:"articles"`
		Pagination struct {
			Page       int   `json:"page"`
			PageSize   int   `json:"page_size"`
			Total      int64 `json:"total"`
			TotalPages int   `json:"total_pages"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ListDocumentsResult{}, fmt.Errorf("解析文档列表失败: %w", err)
	}

	result := ListDocumentsResult{
		Articles: make([]model.Article, 0, len(payload.Articles)),
		Pagination: model.Pagination{
			Page:       payload.Pagination.Page,
			PageSize:   payload.Pagination.PageSize,
			Total:      payload.Pagination.Total,
			TotalPages: payload.Pagination.TotalPages,
		},
	}
	for _, p := range payload.Articles {
		result.Articles = append(result.Articles, decodeArticle(p))
	}
	return result, nil
}

// DeleteDocument 删除文档及其审查数据
func (c *Client) DeleteDocument(ctx context.Context, articleID int64) error {
	path := fmt.Sprintf("%s/%d", fileBasePath, articleID)
	_, err := c.doJSON(ctx, http.MethodDelete, path, nil, requestOptions{})
	return err
}

// GetDocumentDetail 获取单个文档的详情
func (c *Client) GetDocumentDetail(ctx context.Context, articleID int64) (model.Article, error) {
	path := fmt.Sprintf("%s/%d", fileBasePath, articleID)
	raw, err := c.doJSON(ctx, http.MethodGet, path, nil, requestOptions{})
	if err != nil {
		return model.Article{}, err
	}

	var p articlePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Article{}, fmt.Errorf("解析文档详情失败: %w", err)
	}
	return decodeArticle(p), nil
}

// GetFullContent 获取文档全文及句子切分（用于违规句高亮）
func (c *Client) GetFullContent(ctx context.Context, articleID int64) (model.FullContent, error) {
	path := fmt.Sprintf("%s/%d/content", fileBasePath, articleID)
	raw, err := c.doJSON(ctx, http.MethodGet, path, nil, requestOptions{showLoading: true})
	if err != nil {
		return model.FullContent{}, err
	}

	var payload struct {
		ArticleID   int64  `json:"article_id"`
		ArticleName string `json:"article_name"`
		Content     string `json:"content"`
		Sentences   []struct {
			ID         int64  `json:"id"`
			Content    string `json:"content"`
			StartPos   int    `json:"start_pos"`
			EndPos     int    `json:"end_pos"`
			HasProblem bool   `json:"has_problem"`
			Annotation string `json:"annotation"`
		} `json:"sentences"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return model.FullContent{}, fmt.Errorf("解析文档内容失败: %w", err)
	}

	fc := model.FullContent{
		ArticleID:   payload.ArticleID,
		ArticleName: payload.ArticleName,
		Content:     payload.Content,
		Sentences:   make([]model.SentenceSpan, 0, len(payload.Sentences)),
	}
	for _, s := range payload.Sentences {
		fc.Sentences = append(fc.Sentences, model.SentenceSpan{
			ID:         s.ID,
			Content:    s.Content,
			StartPos:   s.StartPos,
			EndPos:     s.EndPos,
			HasProblem: s.HasProblem,
			Annotation: s.Annotation,
		})
	}
	return fc, nil
}
