// Package cli 实现 fairctl 命令行客户端
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fair-review/internal/client/config"
)

var rootCmd = &cobra.Command{
	Use:   "fairctl",
	Short: "公平竞争审查助手命令行客户端",
	Long: `fairctl 是公平竞争审查系统的命令行客户端。

支持上传政策文件并发起合规审查、实时跟踪审查进度、
查看违规句标注，以及与审查助手对话。

先运行 'fairctl login' 登录，再通过子命令使用各项功能。`,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// 全局参数
	rootCmd.PersistentFlags().StringP("server", "s", "", "服务器地址 (默认: http://localhost:8080)")
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "初始化配置失败: %v\n", err)
		os.Exit(1)
	}

	// 如果指定了服务器地址，更新配置
	if server, _ := rootCmd.PersistentFlags().GetString("server"); server != "" {
		config.SetServerURL(server)
	}
}

// requireLogin 未登录时提示并退出
func requireLogin() {
	if !config.IsLoggedIn() {
		fmt.Fprintln(os.Stderr, "✗ 请先运行 'fairctl login' 登录")
		os.Exit(1)
	}
}
