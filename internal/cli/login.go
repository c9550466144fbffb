package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fair-review/internal/client/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "登录账号",
	Long:  "使用用户名和密码登录，凭证保存在本地配置文件中。",
	Run:   runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "注册新账号",
	Run:   runRegister,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
}

// promptCredentials 交互式读取用户名和密码，密码隐藏输入
func promptCredentials() (string, string) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("请输入用户名: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)
	if username == "" {
		fmt.Fprintln(os.Stderr, "✗ 用户名不能为空")
		os.Exit(1)
	}

	fmt.Print("请输入密码: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 读取密码失败: %v\n", err)
		os.Exit(1)
	}
	password := strings.TrimSpace(string(passwordBytes))
	if password == "" {
		fmt.Fprintln(os.Stderr, "✗ 密码不能为空")
		os.Exit(1)
	}

	return username, password
}

func runLogin(cmd *cobra.Command, args []string) {
	username, password := promptCredentials()

	client := newAPIClient()
	result, err := client.Login(context.Background(), username, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 登录失败: %v\n", err)
		os.Exit(1)
	}

	if err := config.SaveAuth(result.AccessToken, result.RefreshToken, result.Username); err != nil {
		fmt.Fprintf(os.Stderr, "✗ 保存登录信息失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ 登录成功，欢迎 %s\n", result.Username)
}

func runRegister(cmd *cobra.Command, args []string) {
	username, password := promptCredentials()

	client := newAPIClient()
	if err := client.Register(context.Background(), username, password); err != nil {
		fmt.Fprintf(os.Stderr, "✗ 注册失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ 注册成功，请运行 'fairctl login' 登录")
}
