package store

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fair-review/internal/client/model"
)

// fakeSubscription 记录关闭次数的假订阅
type fakeSubscription struct {
	closes int32
}

func (f *fakeSubscription) Close() { atomic.AddInt32(&f.closes, 1) }

// fakeReviewBackend 手动驱动进度回调的假后端
type fakeReviewBackend struct {
	startErr   error
	progress   model.ReviewProgress
	detail     model.ReviewDetail
	detailErr  error
	sub        *fakeSubscription
	onProgress func(int)
	onComplete func()
	onError    func(error)
}

func (f *fakeReviewBackend) StartReview(ctx context.Context, articleID int64) error {
	return f.startErr
}

func (f *fakeReviewBackend) GetReviewProgress(ctx context.Context, articleID int64) (model.ReviewProgress, error) {
	return f.progress, nil
}

func (f *fakeReviewBackend) GetReviewDetail(ctx context.Context, articleID int64) (model.ReviewDetail, error) {
	return f.detail, f.detailErr
}

func (f *fakeReviewBackend) SubscribeProgress(ctx context.Context, articleID int64, onProgress func(int), onComplete func(), onError func(error)) Subscription {
	f.sub = &fakeSubscription{}
	f.onProgress = onProgress
	f.onComplete = onComplete
	f.onError = onError
	return f.sub
}

func TestStartReviewTracksProgress(t *testing.T) {
	backend := &fakeReviewBackend{
		progress: model.ReviewProgress{Progress: 100, Status: model.StatusReviewed, RiskLevel: model.RiskLow},
		detail:   model.ReviewDetail{ArticleName: "测试文件", RiskLevel: model.RiskLow},
	}
	s := NewReviewStore(backend, nil)

	require.NoError(t, s.StartReview(context.Background(), 7))
	p, ok := s.Progress(7)
	require.True(t, ok)
	assert.Equal(t, model.StatusReviewing, p.Status)

	backend.onProgress(25)
	backend.onProgress(50)
	p, _ = s.Progress(7)
	assert.Equal(t, 50, p.Progress)

	backend.onComplete()
	p, _ = s.Progress(7)
	assert.Equal(t, 100, p.Progress)
	assert.Equal(t, model.StatusReviewed, p.Status)
	assert.Equal(t, model.RiskLow, p.RiskLevel)

	detail, ok := s.Detail(7)
	require.True(t, ok)
	assert.Equal(t, "测试文件", detail.ArticleName)
}

func TestProgressNeverGoesBackwards(t *testing.T) {
	backend := &fakeReviewBackend{}
	s := NewReviewStore(backend, nil)

	require.NoError(t, s.StartReview(context.Background(), 1))
	backend.onProgress(60)
	backend.onProgress(40)
	p, _ := s.Progress(1)
	assert.Equal(t, 60, p.Progress)
}

func TestClearReviewDataClosesSubscriptionOnce(t *testing.T) {
	backend := &fakeReviewBackend{}
	s := NewReviewStore(backend, nil)

	require.NoError(t, s.StartReview(context.Background(), 3))
	sub := backend.sub

	s.ClearReviewData(3)
	s.ClearReviewData(3) // 幂等
	assert.Equal(t, int32(1), atomic.LoadInt32(&sub.closes))

	// 清除后进度记录彻底消失，而不是退回某个默认状态
	_, ok := s.Progress(3)
	assert.False(t, ok)
	_, ok = s.Detail(3)
	assert.False(t, ok)
}

func TestProgressUnknownArticleHasNoEntry(t *testing.T) {
	s := NewReviewStore(&fakeReviewBackend{}, nil)
	_, ok := s.Progress(42)
	assert.False(t, ok)
}

func TestRestartReviewClosesOldSubscription(t *testing.T) {
	backend := &fakeReviewBackend{}
	s := NewReviewStore(backend, nil)

	require.NoError(t, s.StartReview(context.Background(), 5))
	old := backend.sub
	require.NoError(t, s.StartReview(context.Background(), 5))

	assert.Equal(t, int32(1), atomic.LoadInt32(&old.closes))
}

func TestCloseAllSubscriptions(t *testing.T) {
	backend := &fakeReviewBackend{}
	s := NewReviewStore(backend, nil)

	require.NoError(t, s.StartReview(context.Background(), 1))
	sub := backend.sub

	s.CloseAllSubscriptions()
	assert.Equal(t, int32(1), atomic.LoadInt32(&sub.closes))
	// 进度数据保留，只断开推送
	p, ok := s.Progress(1)
	require.True(t, ok)
	assert.Equal(t, model.StatusReviewing, p.Status)
}

func TestOnChangeFires(t *testing.T) {
	backend := &fakeReviewBackend{}
	s := NewReviewStore(backend, nil)

	var changes []int64
	s.SetOnChange(func(id int64) { changes = append(changes, id) })

	require.NoError(t, s.StartReview(context.Background(), 9))
	backend.onProgress(10)
	backend.onComplete()

	assert.GreaterOrEqual(t, len(changes), 3)
	for _, id := range changes {
		assert.Equal(t, int64(9), id)
	}
}
