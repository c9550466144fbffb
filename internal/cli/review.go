package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fair-review/internal/client/model"
	"fair-review/internal/client/store"
	"fair-review/pkg/format"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "发起与跟踪文档审查",
}

var reviewStartCmd = &cobra.Command{
	Use:   "start <文档ID>",
	Short: "对文档发起公平竞争审查",
	Args:  cobra.ExactArgs(1),
	Run:   runReviewStart,
}

var reviewProgressCmd = &cobra.Command{
	Use:   "progress <文档ID>",
	Short: "查询审查进度",
	Args:  cobra.ExactArgs(1),
	Run:   runReviewProgress,
}

var reviewDetailCmd = &cobra.Command{
	Use:   "detail <文档ID>",
	Short: "查看审查结果和违规句标注",
	Args:  cobra.ExactArgs(1),
	Run:   runReviewDetail,
}

func init() {
	reviewStartCmd.Flags().Bool("watch", true, "实时跟踪审查进度直到完成")

	reviewCmd.AddCommand(reviewStartCmd, reviewProgressCmd, reviewDetailCmd)
	rootCmd.AddCommand(reviewCmd)
}

func newReviewStore() *store.ReviewStore {
	return store.NewReviewStore(reviewBackend{newAPIClient()}, newCLILogger())
}

func runReviewStart(cmd *cobra.Command, args []string) {
	requireLogin()

	articleID := parseArticleArg(args[0])
	watch, _ := cmd.Flags().GetBool("watch")
	reviewStore := newReviewStore()
	ctx := context.Background()

	// 进度变化通过 onChange 通知，channel 带缓冲避免阻塞推送
	changed := make(chan struct{}, 1)
	reviewStore.SetOnChange(func(int64) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	if err := reviewStore.StartReview(ctx, articleID); err != nil {
		fmt.Fprintf(os.Stderr, "✗ 发起审查失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ 文档 %d 审查已开始\n", articleID)

	if !watch {
		reviewStore.CloseAllSubscriptions()
		fmt.Printf("  运行 'fairctl review progress %d' 查询进度\n", articleID)
		return
	}

	for {
		select {
		case <-changed:
			p, ok := reviewStore.Progress(articleID)
			if !ok {
				continue
			}
			fmt.Printf("\r审查中… %s", format.Progress(float64(p.Progress)))
			if p.Status == model.StatusReviewed {
				fmt.Println()
				printReviewFinish(reviewStore, articleID)
				return
			}
		case <-time.After(5 * time.Minute):
			fmt.Fprintln(os.Stderr, "\n✗ 等待审查进度超时")
			reviewStore.CloseAllSubscriptions()
			os.Exit(1)
		}
	}
}

// printReviewFinish 审查完成后输出结果摘要
func printReviewFinish(reviewStore *store.ReviewStore, articleID int64) {
	if p, ok := reviewStore.Progress(articleID); ok {
		fmt.Printf("✓ 审查完成，风险等级: %s\n", format.RiskLevel(p.RiskLevel))
	}

	if detail, ok := reviewStore.Detail(articleID); ok && detail.TotalViolation > 0 {
		fmt.Printf("  共发现 %d 处违规，运行 'fairctl review detail %d' 查看\n", detail.TotalViolation, articleID)
	}
}

func runReviewProgress(cmd *cobra.Command, args []string) {
	requireLogin()

	articleID := parseArticleArg(args[0])
	p, err := newReviewStore().RefreshProgress(context.Background(), articleID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 查询进度失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("状态:     %s\n", p.Status)
	fmt.Printf("进度:     %s\n", format.Progress(float64(p.Progress)))
	fmt.Printf("风险等级: %s\n", format.RiskLevel(p.RiskLevel))
}

func runReviewDetail(cmd *cobra.Command, args []string) {
	requireLogin()

	articleID := parseArticleArg(args[0])
	detail, err := newReviewStore().LoadDetail(context.Background(), articleID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 获取审查详情失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("文档:     %s\n", detail.ArticleName)
	fmt.Printf("审查时间: %s\n", detail.ReviewTime)
	fmt.Printf("风险等级: %s\n", format.RiskLevel(detail.RiskLevel))
	fmt.Printf("违规句数: %d\n", detail.TotalViolation)

	if len(detail.ViolationSentences) == 0 {
		fmt.Println("\n未发现违规内容")
		return
	}

	fmt.Println("\n──── 违规句 ────")
	for i, vs := range detail.ViolationSentences {
		fmt.Printf("%d. %s\n", i+1, vs.Content)
		if vs.Annotation != "" {
			fmt.Printf("   ↳ %s\n", vs.Annotation)
		}
	}
}
