package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fair-review/internal/client/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "查看当前登录状态",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	fmt.Printf("服务器: %s\n", config.GetServerURL())

	if !config.IsLoggedIn() {
		fmt.Println("状态:   未登录")
		return
	}

	fmt.Println("状态:   已登录")
	if username := config.GetUsername(); username != "" {
		fmt.Printf("账号:   %s\n", username)
	}
	if conv := config.GetCurrentConversation(); conv != "" {
		fmt.Printf("会话:   %s\n", conv)
	}
}
