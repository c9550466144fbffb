package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fair-review/internal/client/model"
	"fair-review/internal/client/store"
	"fair-review/pkg/format"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "与审查助手对话",
	Long: `进入交互式对话，向审查助手咨询公平竞争合规问题。

对话内支持以下命令:
  /new           新建会话
  /list          查看会话列表
  /switch <序号>  切换会话
  /history       查看当前会话的历史消息
  /clear         清空当前会话的消息
  /exit          退出对话`,
	Run: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) {
	requireLogin()

	ctx := context.Background()
	chatStore := store.NewChatStore(newAPIClient(), chatPrefs{}, newCLILogger())

	if err := chatStore.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "✗ 初始化会话失败: %v\n", err)
		os.Exit(1)
	}

	if conv, ok := chatStore.Current(); ok {
		fmt.Printf("当前会话: %s\n", conv.Title)
	} else {
		fmt.Println("暂无会话，发送消息会自动创建")
	}
	fmt.Println("输入消息开始对话，/exit 退出，/list 查看会话")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := handleChatCommand(ctx, chatStore, line); quit {
				return
			}
			continue
		}

		sendChatMessage(ctx, chatStore, line)
	}
}

// handleChatCommand 处理对话内的斜杠命令，返回是否退出
func handleChatCommand(ctx context.Context, chatStore *store.ChatStore, line string) bool {
	parts := strings.Fields(line)
	switch parts[0] {
	case "/exit", "/quit":
		return true

	case "/new":
		conv, err := chatStore.CreateConversation(ctx, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ 创建会话失败: %v\n", err)
			return false
		}
		fmt.Printf("✓ 已创建会话: %s\n", conv.Title)

	case "/list":
		conversations := chatStore.Conversations()
		if len(conversations) == 0 {
			fmt.Println("暂无会话")
			return false
		}
		currentID := chatStore.CurrentID()
		for i, conv := range conversations {
			marker := "  "
			if conv.ID == currentID {
				marker = "* "
			}
			fmt.Printf("%s%d. %s\n", marker, i+1, conv.Title)
		}

	case "/switch":
		if len(parts) < 2 {
			fmt.Println("用法: /switch <序号>")
			return false
		}
		conversations := chatStore.Conversations()
		idx, err := strconv.Atoi(parts[1])
		if err != nil || idx < 1 || idx > len(conversations) {
			fmt.Println("序号无效，先用 /list 查看会话列表")
			return false
		}
		if err := chatStore.SwitchConversation(ctx, conversations[idx-1].ID); err != nil {
			fmt.Fprintf(os.Stderr, "✗ 切换会话失败: %v\n", err)
			return false
		}
		fmt.Printf("✓ 已切换到: %s\n", conversations[idx-1].Title)

	case "/history":
		conv, ok := chatStore.Current()
		if !ok {
			fmt.Println("暂无会话")
			return false
		}
		for _, msg := range conv.Messages {
			printChatMessage(msg)
		}

	case "/clear":
		if err := chatStore.ClearMessages(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "✗ 清空消息失败: %v\n", err)
			return false
		}
		fmt.Println("✓ 当前会话的消息已清空")

	default:
		fmt.Printf("未知命令: %s\n", parts[0])
	}
	return false
}

// sendChatMessage 发送消息并实时打印助手回复
func sendChatMessage(ctx context.Context, chatStore *store.ChatStore, content string) {
	streamed := false
	chatStore.SetOnDelta(func(delta string) {
		if !streamed {
			fmt.Print("助手: ")
			streamed = true
		}
		fmt.Print(delta)
	})
	defer chatStore.SetOnDelta(nil)

	if err := chatStore.SendMessage(ctx, content, nil); err != nil {
		fmt.Fprintf(os.Stderr, "✗ 发送失败: %v\n", err)
		return
	}

	if streamed {
		fmt.Println()
		fmt.Println()
		return
	}

	// 一个增量都没收到（流中断走了兜底文案），打印最终内容
	if conv, ok := chatStore.Current(); ok && len(conv.Messages) > 0 {
		last := conv.Messages[len(conv.Messages)-1]
		if last.Role == model.RoleAssistant {
			fmt.Printf("助手: %s\n\n", last.Content)
		}
	}
}

// printChatMessage 按角色打印一条历史消息
func printChatMessage(msg model.Message) {
	role := "用户"
	if msg.Role == model.RoleAssistant {
		role = "助手"
	}
	fmt.Printf("[%s] %s\n%s\n\n", role, format.RelativeTime(time.UnixMilli(msg.Timestamp)), msg.Content)
}
