package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"fair-review/internal/client/model"
)

// Subscription 进度订阅句柄，Close 必须幂等
type Subscription interface {
	Close()
}

// ReviewBackend 审查 store 依赖的服务端能力
type ReviewBackend interface {
	StartReview(ctx context.Context, articleID int64) error
	GetReviewProgress(ctx context.Context, articleID int64) (model.ReviewProgress, error)
	GetReviewDetail(ctx context.Context, articleID int64) (model.ReviewDetail, error)
	// SubscribeProgress 订阅指定文档的进度推送，返回的句柄用于提前关闭
	SubscribeProgress(ctx context.Context, articleID int64, onProgress func(int), onComplete func(), onError func(error)) Subscription
}

// ReviewStore 按文档维度维护审查进度与结果
type ReviewStore struct {
	mu            sync.Mutex
	backend       ReviewBackend
	logger        *zap.Logger
	progress      map[int64]model.ReviewProgress
	details       map[int64]model.ReviewDetail
	subscriptions map[int64]Subscription
	onChange      func(articleID int64)
}

// NewReviewStore 创建审查 store
func NewReviewStore(backend ReviewBackend, logger *zap.Logger) *ReviewStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewStore{
		backend:       backend,
		logger:        logger,
		progress:      make(map[int64]model.ReviewProgress),
		details:       make(map[int64]model.ReviewDetail),
		subscriptions: make(map[int64]Subscription),
	}
}

// SetOnChange 注册状态变更回调，进度更新和完成时触发
func (s *ReviewStore) SetOnChange(fn func(articleID int64)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// StartReview 发起审查并订阅进度推送
// 同一文档已有订阅时先关闭旧订阅再建新的
func (s *ReviewStore) StartReview(ctx context.Context, articleID int64) error {
	if err := s.backend.StartReview(ctx, articleID); err != nil {
		return err
	}

	s.mu.Lock()
	if old, ok := s.subscriptions[articleID]; ok {
		old.Close()
	}
	s.progress[articleID] = model.ReviewProgress{Progress: 0, Status: model.StatusReviewing}
	s.mu.Unlock()
	s.notify(articleID)

	sub := s.backend.SubscribeProgress(ctx, articleID,
		func(progress int) {
			s.mu.Lock()
			p := s.progress[articleID]
			// 进度只前进不后退
			if progress > p.Progress {
				p.Progress = progress
			}
			p.Status = model.StatusReviewing
			s.progress[articleID] = p
			s.mu.Unlock()
			s.notify(articleID)
		},
		func() {
			s.finishReview(ctx, articleID)
		},
		func(err error) {
			s.logger.Warn("进度推送中断", zap.Int64("article", articleID), zap.Error(err))
			s.mu.Lock()
			delete(s.subscriptions, articleID)
			s.mu.Unlock()
		},
	)

	s.mu.Lock()
	s.subscriptions[articleID] = sub
	s.mu.Unlock()
	return nil
}

// finishReview 收到完成事件后拉取最终状态与详情
func (s *ReviewStore) finishReview(ctx context.Context, articleID int64) {
	s.mu.Lock()
	delete(s.subscriptions, articleID)
	s.mu.Unlock()

	final, err := s.backend.GetReviewProgress(ctx, articleID)
	if err != nil {
		s.logger.Warn("获取最终审查状态失败", zap.Int64("article", articleID), zap.Error(err))
		final = model.ReviewProgress{Progress: 100, Status: model.StatusReviewed}
	}
	final.Progress = 100
	final.Status = model.StatusReviewed

	s.mu.Lock()
	s.progress[articleID] = final
	s.mu.Unlock()

	if detail, err := s.backend.GetReviewDetail(ctx, articleID); err == nil {
		s.mu.Lock()
		s.details[articleID] = detail
		s.mu.Unlock()
	} else {
		s.logger.Warn("获取审查详情失败", zap.Int64("article", articleID), zap.Error(err))
	}

	s.notify(articleID)
}

// RefreshProgress 主动拉取一次进度（用于页面刷新后恢复状态）
func (s *ReviewStore) RefreshProgress(ctx context.Context, articleID int64) (model.ReviewProgress, error) {
	p, err := s.backend.GetReviewProgress(ctx, articleID)
	if err != nil {
		return model.ReviewProgress{}, err
	}
	s.mu.Lock()
	s.progress[articleID] = p
	s.mu.Unlock()
	return p, nil
}

// LoadDetail 拉取并缓存审查详情
func (s *ReviewStore) LoadDetail(ctx context.Context, articleID int64) (model.ReviewDetail, error) {
	detail, err := s.backend.GetReviewDetail(ctx, articleID)
	if err != nil {
		return model.ReviewDetail{}, err
	}
	s.mu.Lock()
	s.details[articleID] = detail
	s.mu.Unlock()
	return detail, nil
}

// Progress 查询指定文档的进度，第二个返回值表示是否有记录
// 从未发起过审查或已被清除的文档没有记录
func (s *ReviewStore) Progress(articleID int64) (model.ReviewProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[articleID]
	return p, ok
}

// Detail 查询缓存的审查详情
func (s *ReviewStore) Detail(articleID int64) (model.ReviewDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.details[articleID]
	return d, ok
}

// ClearReviewData 清除指定文档的全部审查状态
// 幂等：订阅只会被关闭一次，重复调用是安全的
func (s *ReviewStore) ClearReviewData(articleID int64) {
	s.mu.Lock()
	sub := s.subscriptions[articleID]
	delete(s.subscriptions, articleID)
	delete(s.progress, articleID)
	delete(s.details, articleID)
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// CloseAllSubscriptions 关闭全部进度订阅（退出前调用）
func (s *ReviewStore) CloseAllSubscriptions() {
	s.mu.Lock()
	subs := make([]Subscription, 0, len(s.subscriptions))
	for id, sub := range s.subscriptions {
		subs = append(subs, sub)
		delete(s.subscriptions, id)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (s *ReviewStore) notify(articleID int64) {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(articleID)
	}
}
