package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"fair-review/internal/client/store"
	"fair-review/pkg/format"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "管理待审查的文档",
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "查看文档列表",
	Run:   runFilesList,
}

var filesUploadCmd = &cobra.Command{
	Use:   "upload <文件路径>",
	Short: "上传文档 (支持 docx/pdf)",
	Args:  cobra.ExactArgs(1),
	Run:   runFilesUpload,
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <文档ID>",
	Short: "删除文档及其审查数据",
	Args:  cobra.ExactArgs(1),
	Run:   runFilesDelete,
}

var filesShowCmd = &cobra.Command{
	Use:   "show <文档ID>",
	Short: "查看文档详情",
	Args:  cobra.ExactArgs(1),
	Run:   runFilesShow,
}

func init() {
	filesListCmd.Flags().Int("page", 1, "页码")
	filesListCmd.Flags().Int("size", 10, "每页数量")
	filesListCmd.Flags().String("keyword", "", "按文件名过滤")
	filesUploadCmd.Flags().String("desc", "", "文档描述")
	filesShowCmd.Flags().Bool("content", false, "显示全文和违规句标注")

	filesCmd.AddCommand(filesListCmd, filesUploadCmd, filesDeleteCmd, filesShowCmd)
	rootCmd.AddCommand(filesCmd)
}

func newFileStore() *store.FileStore {
	return store.NewFileStore(newAPIClient(), newCLILogger())
}

// parseArticleArg 解析命令行里的文档 ID
func parseArticleArg(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "✗ 文档ID无效: %s\n", arg)
		os.Exit(1)
	}
	return id
}

func runFilesList(cmd *cobra.Command, args []string) {
	requireLogin()

	page, _ := cmd.Flags().GetInt("page")
	size, _ := cmd.Flags().GetInt("size")
	keyword, _ := cmd.Flags().GetString("keyword")

	fileStore := newFileStore()
	if err := fileStore.LoadDocuments(context.Background(), page, size, keyword); err != nil {
		fmt.Fprintf(os.Stderr, "✗ 获取文档列表失败: %v\n", err)
		os.Exit(1)
	}

	articles := fileStore.Articles()
	if len(articles) == 0 {
		fmt.Println("暂无文档，用 'fairctl files upload' 上传")
		return
	}

	fmt.Printf("%-6s %-30s %-8s %-6s %-8s %s\n", "ID", "文件名", "状态", "进度", "风险", "上传时间")
	for _, a := range articles {
		fmt.Printf("%-6d %-30s %-8s %-6s %-8s %s\n",
			a.ID,
			format.TruncateText(a.Name, 28, "…"),
			a.Status,
			format.Progress(float64(a.ReviewProgress)),
			format.RiskLevel(a.RiskLevel),
			a.UploadTime,
		)
	}

	p := fileStore.Pagination()
	fmt.Printf("\n第 %d/%d 页，共 %d 个文档\n", p.Page, p.TotalPages, p.Total)
}

func runFilesUpload(cmd *cobra.Command, args []string) {
	requireLogin()

	path := args[0]
	description, _ := cmd.Flags().GetString("desc")

	file, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 打开文件失败: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 读取文件信息失败: %v\n", err)
		os.Exit(1)
	}

	article, err := newFileStore().Upload(context.Background(), filepath.Base(path), info.Size(), file, description)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 上传失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ 上传成功: %s (ID: %d)\n", article.Name, article.ID)
	fmt.Printf("  运行 'fairctl review start %d' 发起审查\n", article.ID)
}

func runFilesDelete(cmd *cobra.Command, args []string) {
	requireLogin()

	articleID := parseArticleArg(args[0])
	if err := newFileStore().Delete(context.Background(), articleID); err != nil {
		fmt.Fprintf(os.Stderr, "✗ 删除失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ 文档 %d 已删除\n", articleID)
}

func runFilesShow(cmd *cobra.Command, args []string) {
	requireLogin()

	articleID := parseArticleArg(args[0])
	showContent, _ := cmd.Flags().GetBool("content")
	fileStore := newFileStore()
	ctx := context.Background()

	article, err := fileStore.GetDetail(ctx, articleID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 获取文档详情失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("文件名:   %s\n", article.Name)
	fmt.Printf("类型:     %s\n", article.Type)
	if article.Description != "" {
		fmt.Printf("描述:     %s\n", article.Description)
	}
	fmt.Printf("状态:     %s\n", article.Status)
	fmt.Printf("进度:     %s\n", format.Progress(float64(article.ReviewProgress)))
	fmt.Printf("风险等级: %s\n", format.RiskLevel(article.RiskLevel))
	fmt.Printf("上传时间: %s\n", article.UploadTime)
	if article.ReviewTime != "" {
		fmt.Printf("审查时间: %s\n", article.ReviewTime)
	}

	if !showContent {
		return
	}

	fc, err := fileStore.GetFullContent(ctx, articleID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 获取文档内容失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n──── 全文 ────")
	for _, s := range fc.Sentences {
		if s.HasProblem {
			fmt.Printf("【违规】%s\n", s.Content)
			if s.Annotation != "" {
				fmt.Printf("        ↳ %s\n", s.Annotation)
			}
		} else {
			fmt.Println(s.Content)
		}
	}
}
