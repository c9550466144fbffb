package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fair-review/internal/client/config"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "登出并清除本地凭证",
	Long: `登出当前账号并清除本地保存的凭证。

服务端会把当前令牌加入黑名单，本地只清除凭证，
服务器地址和当前会话等偏好保留。`,
	Run: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) {
	if !config.IsLoggedIn() {
		fmt.Println("当前未登录")
		return
	}

	// 服务端登出尽力而为，失败不阻塞本地清理
	client := newAPIClient()
	if err := client.Logout(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "服务端登出失败: %v\n", err)
	}

	if err := config.ClearToken(); err != nil {
		fmt.Fprintf(os.Stderr, "清除凭证失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ 已登出并清除本地凭证")
}
