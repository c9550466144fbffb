package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fair-review/internal/server/middleware"
	"fair-review/internal/server/model"
	"fair-review/internal/server/service"
	"fair-review/pkg/response"
)

// FileHandler 文档请求处理器
// 处理文档上传、列表、详情、全文和删除
type FileHandler struct {
	fileService *service.FileService
}

// NewFileHandler 创建 FileHandler 实例
func NewFileHandler(fileService *service.FileService) *FileHandler {
	return &FileHandler{
		fileService: fileService,
	}
}

// articleView 文档的对外表示
// 时间统一格式化成字符串，不暴露存储路径和全文
type articleView struct {
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

func newArticleView(a *model.Article) articleView {
	view := articleView{
		ID:             a.ID,
		Name:           a.Name,
		Type:           a.Type,
		Description:    a.Description,
		UploadTime:     a.CreatedAt.Format(time.DateTime),
		Status:         a.Status,
		ReviewProgress: a.ReviewProgress,
		RiskLevel:      a.RiskLevel,
	}
	if a.ReviewTime != nil {
		view.ReviewTime = a.ReviewTime.Format(time.DateTime)
	}
	return view
}

// parseArticleID 解析路径中的文档 ID，非法时直接写入 400 响应
func parseArticleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "文档ID无效")
		return 0, false
	}
	return id, true
}

// Upload 上传待审查的文档
// multipart 表单: file 为文档文件，description 可选
// @Router /api/files/upload [post]
func (h *FileHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "请选择要上传的文件")
		return
	}
	description := c.PostForm("description")

	article, err := h.fileService.Upload(c.Request.Context(), middleware.GetUserID(c), header, description)
	if err != nil {
		switch err {
		case service.ErrFileTypeInvalid, service.ErrFileTooLarge:
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, "文件上传失败")
		}
		return
	}

	response.OKWithMsg(c, "上传成功", newArticleView(article))
}

// List 分页获取文档列表
// 查询参数: page / page_size / keyword
// @Router /api/files/list [get]
func (h *FileHandler) List(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	keyword := c.Query("keyword")

	result, err := h.fileService.List(c.Request.Context(), middleware.GetUserID(c), page, pageSize, keyword)
	if err != nil {
		response.InternalError(c, "获取文档列表失败")
		return
	}

	views := make([]articleView, 0, len(result.Articles))
	for i := range result.Articles {
		views = append(views, newArticleView(&result.Articles[i]))
	}
	response.OK(c, gin.H{
		"articles":   views,
		"pagination": result.Pagination,
	})
}

// Detail 获取单个文档的详情
// @Router /api/files/:id [get]
func (h *FileHandler) Detail(c *gin.Context) {
	articleID, ok := parseArticleID(c)
	if !ok {
		return
	}

	article, err := h.fileService.Get(c.Request.Context(), middleware.GetUserID(c), articleID)
	if err != nil {
		h.writeFileError(c, err)
		return
	}
	response.OK(c, newArticleView(article))
}

// FullContent 获取文档全文和句子切分（用于违规句高亮）
// @Router /api/files/:id/content [get]
func (h *FileHandler) FullContent(c *gin.Context) {
	articleID, ok := parseArticleID(c)
	if !ok {
		return
	}

	result, err := h.fileService.FullContent(c.Request.Context(), middleware.GetUserID(c), articleID)
	if err != nil {
		h.writeFileError(c, err)
		return
	}
	response.OK(c, result)
}

// Delete 删除文档及其审查数据
// @Router /api/files/:id [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	articleID, ok := parseArticleID(c)
	if !ok {
		return
	}

	if err := h.fileService.Delete(c.Request.Context(), middleware.GetUserID(c), articleID); err != nil {
		h.writeFileError(c, err)
		return
	}
	response.OKWithMsg(c, "删除成功", nil)
}

// writeFileError 把文档业务错误映射为 HTTP 响应
func (h *FileHandler) writeFileError(c *gin.Context, err error) {
	switch err {
	case service.ErrArticleNotFound:
		response.NotFound(c, "文档不存在")
	case service.ErrArticleForbidden:
		response.Fail(c, 403, "无权访问该文档")
	default:
		response.InternalError(c, "操作失败")
	}
}
