package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"fair-review/internal/client/model"
)

const reviewBasePath = "/api/reviews"

// StartReview 对指定文档发起审查
func (c *Client) StartReview(ctx context.Context, articleID int64) error {
	path := fmt.Sprintf("%s/start/%d", reviewBasePath, articleID)
	_, err := c.doJSON(ctx, http.MethodPost, path, nil, requestOptions{})
	if err != nil {
		return RefineReviewError(err)
	}
	return nil
}

// progressPayload 审查进度的报文结构
type progressPayload struct {
	Progress  int    `json:"progress"`
	Status    string `json:"status"`
	RiskLevel string `json:"risk_level"`
}

// GetReviewProgress 轮询获取审查进度
func (c *Client) GetReviewProgress(ctx context.Context, articleID int64) (model.ReviewProgress, error) {
	path := fmt.Sprintf("%s/progress/%d", reviewBasePath, articleID)
	raw, err := c.doJSON(ctx, http.MethodGet, path, nil, requestOptions{})
	if err != nil {
		return model.ReviewProgress{}, err
	}

	var p progressPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.ReviewProgress{}, fmt.Errorf("解析审查进度失败: %w", err)
	}
	return model.ReviewProgress{
		Progress:  p.Progress,
		Status:    p.Status,
		RiskLevel: p.RiskLevel,
	}, nil
}

// reviewDetailPayload 审查详情的报文结构
type reviewDetailPayload struct {
	ArticleName        string `json:"article_name"`
	ReviewTime         string `json:"review_time"`
	RiskLevel          string `json:"risk_level"`
	TotalViolation     int    `json:"total_violation"`
	ViolationSentences []struct {
		ID         int64  `json:"id"`
		Content    string `json:"content"`
		Annotation string `json:"annotation"`
	} `json:"violation_sentences"`
}

// GetReviewDetail 获取审查完成后的详细结果
func (c *Client) GetReviewDetail(ctx context.Context, articleID int64) (model.ReviewDetail, error) {
	path := fmt.Sprintf("%s/detail/%d", reviewBasePath, articleID)
	raw, err := c.doJSON(ctx, http.MethodGet, path, nil, requestOptions{showLoading: true})
	if err != nil {
		return model.ReviewDetail{}, RefineReviewError(err)
	}

	var p reviewDetailPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.ReviewDetail{}, fmt.Errorf("解析审查详情失败: %w", err)
	}

	detail := model.ReviewDetail{
		ArticleName:        p.ArticleName,
		ReviewTime:         p.ReviewTime,
		RiskLevel:          p.RiskLevel,
		TotalViolation:     p.TotalViolation,
		ViolationSentences: make([]model.ViolationSentence, 0, len(p.ViolationSentences)),
	}
	for _, vs := range p.ViolationSentences {
		detail.ViolationSentences = append(detail.ViolationSentences, model.ViolationSentence{
			ID:         vs.ID,
			Content:    vs.Content,
			Annotation: vs.Annotation,
		})
	}
	return detail, nil
}

// ProgressSubscription 审查进度的 SSE 订阅句柄
// Close 幂等，可以被调用方和内部读循环并发调用
type ProgressSubscription struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// Close 关闭订阅，底层连接只会断开一次
func (s *ProgressSubscription) Close() {
	s.once.Do(func() {
		s.cancel()
	})
}

// Wait 阻塞到读循环退出
func (s *ProgressSubscription) Wait() {
	<-s.done
}

// SubscribeProgress 通过 SSE 订阅指定文档的审查进度
// 事件流格式: "data: <整数进度>" 若干次，结束时 "data: complete"。
// 进度通过 onProgress 回调，收到 complete 回调 onComplete 并自动关闭，
// 传输错误回调 onError 并关闭。主动 Close 不触发任何回调。
func (c *Client) SubscribeProgress(ctx context.Context, articleID int64, onProgress func(int), onComplete func(), onError func(error)) *ProgressSubscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &ProgressSubscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		c.runProgressStream(ctx, articleID, sub, onProgress, onComplete, onError)
	}()

	return sub
}

func (c *Client) runProgressStream(ctx context.Context, articleID int64, sub *ProgressSubscription, onProgress func(int), onComplete func(), onError func(error)) {
	endpoint := fmt.Sprintf("%s%s/progress/sse/%d", c.baseURL, reviewBasePath, articleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		onError(fmt.Errorf("构造请求失败: %w", err))
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// SSE 连接保持到审查结束，不能设置整体超时
	hc := *c.httpClient
	hc.Timeout = 0

	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			onError(classifyTransport(err))
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		onError(classifyStatus(resp.StatusCode, extractMessage(body)))
		return
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// 主动关闭不算错误，也不补发完成事件
			if ctx.Err() == nil {
				onError(classifyTransport(err))
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, streamDataPrefix) {
			continue
		}

		payload := line[len(streamDataPrefix):]
		if payload == "complete" {
			onComplete()
			sub.Close()
			return
		}

		progress, err := strconv.Atoi(strings.TrimSpace(payload))
		if err != nil {
			// 非进度数据直接忽略
			c.logger.Debug("忽略无法识别的进度事件", zap.String("payload", payload))
			continue
		}
		onProgress(progress)
	}
}
