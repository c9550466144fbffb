package fileutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatFileSize(t *testing.T) {
	require.Equal(t, "0 B", FormatFileSize(0))
	require.Equal(t, "0 B", FormatFileSize(-1))
	require.Equal(t, "1 B", FormatFileSize(1))
	require.Equal(t, "1023 B", FormatFileSize(1023))
	require.Equal(t, "1 KB", FormatFileSize(1024))
	require.Equal(t, "1.5 KB", FormatFileSize(1536))
	require.Equal(t, "1 MB", FormatFileSize(1024*1024))
	require.Equal(t, "2.5 GB", FormatFileSize(int64(2.5*1024*1024*1024)))
}

func TestFileExtension(t *testing.T) {
	require.Equal(t, "pdf", FileExtension("报告.PDF"))
	require.Equal(t, "docx", FileExtension("a.b.docx"))
	require.Equal(t, "", FileExtension("noext"))
}

func TestValidateFileUpload(t *testing.T) {
	// 不支持的类型
	r := ValidateFileUpload("x.exe", 100)
	require.False(t, r.Valid)
	require.Contains(t, r.Message, "不支持的文件格式")

	// 正常通过
	r = ValidateFileUpload("report.pdf", 1024*1024)
	require.True(t, r.Valid)

	// 超出大小上限
	r = ValidateFileUpload("report.pdf", DefaultMaxUploadSize+1)
	require.False(t, r.Valid)
	require.Contains(t, r.Message, "文件过大")

	// 文件名非法字符
	r = ValidateFileUpload(`bad|name.pdf`, 100)
	require.False(t, r.Valid)
	require.Contains(t, r.Message, "非法字符")
}

func TestValidateFileName(t *testing.T) {
	require.False(t, ValidateFileName("").Valid)
	require.False(t, ValidateFileName(strings.Repeat("长", 256)+".pdf").Valid)
	require.True(t, ValidateFileName("合规文档.pdf").Valid)
}

func TestValidateSearchKeyword(t *testing.T) {
	require.True(t, ValidateSearchKeyword("").Valid)
	require.True(t, ValidateSearchKeyword("招标").Valid)
	require.False(t, ValidateSearchKeyword("a';--").Valid)
	require.False(t, ValidateSearchKeyword(strings.Repeat("k", 101)).Valid)
}

func TestValidatePagination(t *testing.T) {
	require.False(t, ValidatePagination(0, 10).Valid)
	require.False(t, ValidatePagination(1, 0).Valid)
	require.False(t, ValidatePagination(1, 101).Valid)
	require.True(t, ValidatePagination(1, 10).Valid)
}
