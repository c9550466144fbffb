package service

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// extractTimeout 外部转换工具的执行超时
const extractTimeout = 60 * time.Second

// TextExtractor 从上传的文档中提取纯文本
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// CommandExtractor 调用系统自带的转换工具提取文本
// pdf 用 pdftotext，docx 用 pandoc
type CommandExtractor struct{}

// NewCommandExtractor 创建 CommandExtractor
func NewCommandExtractor() *CommandExtractor {
	return &CommandExtractor{}
}

// Extract 根据扩展名选择转换工具
func (e *CommandExtractor) Extract(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return runExtract(ctx, "pdftotext", "-layout", path, "-")
	case ".docx":
		return runExtract(ctx, "pandoc", "--to=plain", path)
	default:
		return "", fmt.Errorf("不支持的文件类型: %s", ext)
	}
}

func runExtract(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s 提取文本失败: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return normalizeText(stdout.String()), nil
}

// normalizeText 清洗提取出的文本
// 统一换行符，压缩连续空行，去掉段落首尾空白
func normalizeText(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := strings.Split(raw, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paragraphs = append(paragraphs, line)
	}
	return strings.Join(paragraphs, "\n")
}
