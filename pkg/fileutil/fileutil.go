// Package fileutil 提供文件相关的校验与格式化工具
package fileutil

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultAllowedTypes 默认允许上传的文件扩展名
var DefaultAllowedTypes = []string{"docx", "pdf"}

// DefaultMaxUploadSize 默认上传大小上限（10MB）
const DefaultMaxUploadSize = 10 * 1024 * 1024

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatFileSize 将字节数格式化为可读的大小字符串
// 例如 0 -> "0 B"，1536 -> "1.5 KB"。非正数一律按 0 处理
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}

	const k = 1024
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(k)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}

	// 保留两位小数并去掉末尾的 0
	value := float64(bytes) / math.Pow(k, float64(i))
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}

// FileExtension 获取文件扩展名（小写，不含点号）
func FileExtension(filename string) string {
	ext := filepath.Ext(filename)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsFileTypeAllowed 检查文件类型是否在允许列表内
func IsFileTypeAllowed(filename string, allowedTypes []string) bool {
	ext := FileExtension(filename)
	if ext == "" {
		return false
	}
	for _, t := range allowedTypes {
		if ext == strings.ToLower(strings.TrimPrefix(t, ".")) {
			return true
		}
	}
	return false
}

// ValidationResult 校验结果
// Valid 为 false 时 Message 携带用户可读的原因
type ValidationResult struct {
	Valid   bool
	Message string
}

func ok() ValidationResult {
	return ValidationResult{Valid: true}
}

func invalid(msg string) ValidationResult {
	return ValidationResult{Valid: false, Message: msg}
}

// ValidateFileName 校验文件名
func ValidateFileName(filename string) ValidationResult {
	if strings.TrimSpace(filename) == "" {
		return invalid("文件名不能为空")
	}
	if len([]rune(filename)) > 255 {
		return invalid("文件名过长，请控制在255个字符以内")
	}
	if strings.ContainsAny(filename, `<>:"/\|?*`) {
		return invalid(`文件名包含非法字符，请移除 < > : " / \ | ? * 等字符`)
	}
	return ok()
}

// ValidateFileUpload 校验上传文件（类型、大小、文件名，按此顺序）
// 默认仅允许 docx/pdf，大小不超过 10MB
func ValidateFileUpload(filename string, size int64) ValidationResult {
	if !IsFileTypeAllowed(filename, DefaultAllowedTypes) {
		return invalid("不支持的文件格式，仅支持 .docx 和 .pdf 文件")
	}

	if size > DefaultMaxUploadSize {
		sizeMB := float64(size) / (1024 * 1024)
		return invalid(fmt.Sprintf("文件过大（%.1fMB），请选择小于10MB的文件", sizeMB))
	}

	return ValidateFileName(filename)
}

// ValidateSearchKeyword 校验搜索关键词
// 空关键词是允许的
func ValidateSearchKeyword(keyword string) ValidationResult {
	if strings.TrimSpace(keyword) == "" {
		return ok()
	}
	if len([]rune(keyword)) > 100 {
		return invalid("搜索关键词过长，请控制在100个字符以内")
	}
	if strings.ContainsAny(keyword, `'";-`) {
		return invalid("搜索关键词包含非法字符")
	}
	return ok()
}

// ValidatePagination 校验分页参数
func ValidatePagination(page, pageSize int) ValidationResult {
	if page < 1 {
		return invalid("页码必须大于0")
	}
	if pageSize < 1 || pageSize > 100 {
		return invalid("每页条数必须在1-100之间")
	}
	return ok()
}

// ValidateArticleID 校验文档 ID
func ValidateArticleID(articleID int64) ValidationResult {
	if articleID <= 0 {
		return invalid("无效的文件ID")
	}
	return ok()
}
