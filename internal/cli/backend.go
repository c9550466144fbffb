package cli

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fair-review/internal/client/api"
	"fair-review/internal/client/config"
	"fair-review/internal/client/store"
)

// newAPIClient 创建接入本地配置的 API 客户端
func newAPIClient() *api.Client {
	return api.NewClient(config.GetServerURL(),
		api.WithTokenProvider(config.GetToken),
		api.WithLoadingNotifier(consoleNotifier{}),
		api.WithLogger(newCLILogger()),
	)
}

// newCLILogger 创建面向终端的 logger，只输出警告及以上级别
func newCLILogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// consoleNotifier 把加载提示打到 stderr，不干扰标准输出
type consoleNotifier struct{}

func (consoleNotifier) Show(text string) {
	fmt.Fprintf(os.Stderr, "⏳ %s\n", text)
}

func (consoleNotifier) Dismiss() {}

// reviewBackend 把 API 客户端适配成审查 store 的后端接口
// SubscribeProgress 的返回值需要从具体类型抹成接口
type reviewBackend struct {
	*api.Client
}

func (b reviewBackend) SubscribeProgress(ctx context.Context, articleID int64, onProgress func(int), onComplete func(), onError func(error)) store.Subscription {
	return b.Client.SubscribeProgress(ctx, articleID, onProgress, onComplete, onError)
}

// chatPrefs 把本地配置适配成会话偏好存储
type chatPrefs struct{}

func (chatPrefs) SaveCurrentConversation(conversationID string) error {
	return config.SaveCurrentConversation(conversationID)
}

func (chatPrefs) GetCurrentConversation() string {
	return config.GetCurrentConversation()
}
