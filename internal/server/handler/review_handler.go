package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fair-review/internal/server/cache"
	"fair-review/internal/server/middleware"
	"fair-review/internal/server/model"
	"fair-review/internal/server/service"
	"fair-review/pkg/response"
)

// sseComplete 审查完成事件在 SSE 流中的数据值
const sseComplete = "complete"

// ReviewHandler 审查请求处理器
// 处理审查发起、进度查询、结果查询和进度的 SSE 推送
type ReviewHandler struct {
	reviewService *service.ReviewService
	cache         *cache.RedisCache
	logger        *zap.Logger
}

// NewReviewHandler 创建 ReviewHandler 实例
func NewReviewHandler(reviewService *service.ReviewService, cache *cache.RedisCache, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		cache:         cache,
		logger:        logger,
	}
}

// Start 对指定文档发起审查
// 审查任务在后台执行，本接口立即返回
// @Router /api/reviews/start/:id [post]
func (h *ReviewHandler) Start(c *gin.Context) {
	articleID, ok := parseArticleID(c)
	if !ok {
		return
	}

	err := h.reviewService.Start(c.Request.Context(), middleware.GetUserID(c), articleID)
	if err != nil {
		switch err {
		case service.ErrArticleNotFound:
			response.NotFound(c, "文档不存在")
		case service.ErrArticleForbidden:
			response.Fail(c, 403, "无权访问该文档")
		case service.ErrReviewInProgress:
			response.BadRequest(c, "文档正在审查中，请勿重复发起")
		default:
			response.InternalError(c, "发起审查失败")
		}
		return
	}

	response.OKWithMsg(c, "审查已开始", nil)
}

// Progress 查询文档当前的审查进度
// @Router /api/reviews/progress/:id [get]
func (h *ReviewHandler) Progress(c *gin.Context) {
	articleID, ok := parseArticleID(c)
	if !ok {
		return
	}

	result, err := h.reviewService.Progress(c.Request.Context(), middleware.GetUserID(c), articleID)
	if err != nil {
		h.writeReviewError(c, err)
		return
	}
	response.OK(c, result)
}

// Detail 获取审查完成后的详细结果
// @Router /api/reviews/detail/:id [get]
func (h *ReviewHandler) Detail(c *gin.Context) {
	articleID, ok := parseArticleID(c)
	if !ok {
		return
	}

	result, err := h.reviewService.Detail(c.Request.Context(), middleware.GetUserID(c), articleID)
	if err != nil {
		h.writeReviewError(c, err)
		return
	}
	response.OK(c, result)
}

// ProgressSSE 以 SSE 推送审查进度
// 事件数据是进度百分比，完成时推送 complete 后关闭连接。
// 连接建立时先回放缓存的最新进度，避免错过订阅前的事件
// @Router /api/reviews/progress/sse/:id [get]
func (h *ReviewHandler) ProgressSSE(c *gin.Context) {
	articleID, ok := parseArticleID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	// 校验归属，同时拿到当前进度用于回放
	current, err := h.reviewService.Progress(ctx, userID, articleID)
	if err != nil {
		h.writeReviewError(c, err)
		return
	}

	// 先订阅再回放，两者之间不会丢事件
	pubsub := h.cache.SubscribeReviewProgress(ctx, articleID)
	defer pubsub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(200)

	lastSent := ""
	send := func(value string) bool {
		if value == lastSent {
			return true
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", value); err != nil {
			return false
		}
		c.Writer.Flush()
		lastSent = value
		return true
	}

	// 回放缓存的最新进度
	cached, err := h.cache.GetReviewProgress(ctx, articleID)
	if err != nil {
		h.logger.Warn("读取进度缓存失败", zap.Int64("article_id", articleID), zap.Error(err))
	}
	if cached != "" {
		if !send(cached) || cached == sseComplete {
			return
		}
	} else if current.Status == model.ArticleStatusReviewed {
		// 缓存已过期但审查早已完成，直接补发完成事件
		send("100")
		send(sseComplete)
		return
	}

	h.streamProgress(c, pubsub.Channel(), send)
}

// streamProgress 把订阅到的进度事件逐条写给客户端
// 空闲期间定时发注释行探测连接，客户端按非数据行忽略
func (h *ReviewHandler) streamProgress(c *gin.Context, events <-chan *redis.Message, send func(string) bool) {
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case msg, ok := <-events:
			if !ok {
				return
			}
			if !send(msg.Payload) {
				return
			}
			if msg.Payload == sseComplete {
				return
			}
		}
	}
}

// writeReviewError 把审查业务错误映射为 HTTP 响应
func (h *ReviewHandler) writeReviewError(c *gin.Context, err error) {
	switch err {
	case service.ErrArticleNotFound:
		response.NotFound(c, "文档不存在")
	case service.ErrArticleForbidden:
		response.Fail(c, 403, "无权访问该文档")
	case service.ErrNotReviewed:
		response.BadRequest(c, "文档尚未完成审查")
	default:
		response.InternalError(c, "操作失败")
	}
}
