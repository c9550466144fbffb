// Package cache 提供 Redis 缓存操作的封装
// 处理 JWT 黑名单、审查进度的缓存与跨实例广播
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fair-review/internal/server/config"
)

// RedisCache 封装 Redis 客户端，提供业务相关的缓存操作
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 创建 RedisCache 实例
func NewRedisCache(cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping 检查 Redis 连接
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ==================== JWT 黑名单 ====================
// 用于实现 Token 强制失效（登出）功能

// BlacklistToken 将 Token 加入黑名单
// 登出时调用，使当前 Token 失效
// TTL 设置为 Token 的剩余有效期，过期后自动删除
func (c *RedisCache) BlacklistToken(ctx context.Context, tokenHash string, expireAt time.Time) error {
	ttl := time.Until(expireAt)
	if ttl <= 0 {
		// Token 已过期，无需加入黑名单
		return nil
	}
	return c.client.Set(ctx, fmt.Sprintf("jwt:blacklist:%s", tokenHash), "1", ttl).Err()
}

// IsTokenBlacklisted 检查 Token 是否在黑名单中
// JWT 验证中间件调用
func (c *RedisCache) IsTokenBlacklisted(ctx context.Context, tokenHash string) bool {
	return c.client.Exists(ctx, fmt.Sprintf("jwt:blacklist:%s", tokenHash)).Val() > 0
}

// ==================== 审查进度 ====================
// 进度写入缓存并通过 Pub/Sub 广播，SSE 接口订阅频道转发给客户端。
// 多实例部署时审查 worker 和 SSE 连接可能不在同一个实例上，
// 经过 Redis 中转保证推送不丢。

// progressChannel 文档审查进度的广播频道
func progressChannel(articleID int64) string {
	return fmt.Sprintf("review:progress:%d", articleID)
}

// progressKey 文档当前进度的缓存 Key
func progressKey(articleID int64) string {
	return fmt.Sprintf("review:progress:value:%d", articleID)
}

// PublishReviewProgress 发布审查进度
// value 是 0-100 的进度值，或字符串 "complete"
func (c *RedisCache) PublishReviewProgress(ctx context.Context, articleID int64, value string) error {
	pipe := c.client.Pipeline()
	// 缓存当前值，SSE 连接建立时先补发一次
	pipe.Set(ctx, progressKey(articleID), value, time.Hour)
	pipe.Publish(ctx, progressChannel(articleID), value)
	_, err := pipe.Exec(ctx)
	return err
}

// GetReviewProgress 读取缓存的当前进度值
// 没有缓存时返回空串
func (c *RedisCache) GetReviewProgress(ctx context.Context, articleID int64) (string, error) {
	val, err := c.client.Get(ctx, progressKey(articleID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// ClearReviewProgress 清除进度缓存（删除文档或重新审查时调用）
func (c *RedisCache) ClearReviewProgress(ctx context.Context, articleID int64) error {
	return c.client.Del(ctx, progressKey(articleID)).Err()
}

// SubscribeReviewProgress 订阅文档的审查进度频道
// 返回 PubSub 对象，调用方负责关闭
func (c *RedisCache) SubscribeReviewProgress(ctx context.Context, articleID int64) *redis.PubSub {
	return c.client.Subscribe(ctx, progressChannel(articleID))
}
