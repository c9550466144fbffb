// Package api 封装与审查服务端的 HTTP API 交互
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrorType 错误分类
type ErrorType string

const (
	ErrorNetwork    ErrorType = "NETWORK"    // 网络不可达
	ErrorTimeout    ErrorType = "TIMEOUT"    // 请求超时
	ErrorServer     ErrorType = "SERVER"     // 服务端错误（5xx）
	ErrorClient     ErrorType = "CLIENT"     // 客户端错误（4xx）
	ErrorValidation ErrorType = "VALIDATION" // 本地校验失败
	ErrorUnknown    ErrorType = "UNKNOWN"    // 未知错误
)

// ErrorInfo 归一化后的错误信息
// Message 是面向用户的提示文案，cause 保留原始错误
type ErrorInfo struct {
	Type    ErrorType
	Message string
	Code    int // HTTP 状态码，没有响应时为 0
	cause   error
}

func (e *ErrorInfo) Error() string {
	return e.Message
}

func (e *ErrorInfo) Unwrap() error {
	return e.cause
}

// NewValidationError 构造本地校验错误
func NewValidationError(msg string) *ErrorInfo {
	return &ErrorInfo{Type: ErrorValidation, Message: msg}
}

// classifyTransport 归类一次没有拿到响应的传输层错误
// 分类顺序: 超时 -> 网络 -> 未知
func classifyTransport(err error) *ErrorInfo {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		strings.Contains(err.Error(), "timeout"):
		return &ErrorInfo{
			Type:    ErrorTimeout,
			Message: "请求超时，请检查网络连接后重试",
			cause:   err,
		}
	}

	// url.Error 说明请求已经发出但没有收到响应
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &ErrorInfo{
			Type:    ErrorNetwork,
			Message: "网络连接失败，请检查网络设置",
			cause:   err,
		}
	}

	msg := err.Error()
	if msg == "" {
		msg = "未知错误，请重试"
	}
	return &ErrorInfo{Type: ErrorUnknown, Message: msg, cause: err}
}

// classifyStatus 归类一次拿到了响应的 HTTP 错误
// serverMsg 是服务端返回的 msg 字段，可能为空
func classifyStatus(status int, serverMsg string) *ErrorInfo {
	switch {
	case status >= 500:
		msg := serverMsg
		if msg == "" {
			msg = fmt.Sprintf("服务器错误 (%d)，请稍后重试", status)
		}
		return &ErrorInfo{Type: ErrorServer, Message: msg, Code: status}
	case status >= 400:
		msg := serverMsg
		if msg == "" {
			msg = fmt.Sprintf("请求错误 (%d)，请检查输入", status)
		}
		return &ErrorInfo{Type: ErrorClient, Message: msg, Code: status}
	default:
		msg := serverMsg
		if msg == "" {
			msg = "未知错误，请重试"
		}
		return &ErrorInfo{Type: ErrorUnknown, Message: msg, Code: status}
	}
}

// AsErrorInfo 尝试把任意错误还原为 ErrorInfo
// 不是 ErrorInfo 时按未知错误包装
func AsErrorInfo(err error) *ErrorInfo {
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info
	}
	return &ErrorInfo{Type: ErrorUnknown, Message: err.Error(), cause: err}
}

// IsBackendUnready 判断错误是否属于"后端未就绪"
// 初始化阶段的网络错误和 5xx 按后端未启动处理，不向用户展示
func IsBackendUnready(err error) bool {
	info := AsErrorInfo(err)
	return info.Type == ErrorNetwork || info.Type == ErrorServer
}

// RefineUploadError 上传场景的错误措辞细化
func RefineUploadError(err error) *ErrorInfo {
	info := AsErrorInfo(err)
	if info.Type == ErrorClient {
		switch {
		case strings.Contains(info.Message, "文件类型"), strings.Contains(info.Message, "文件格式"):
			return &ErrorInfo{Type: info.Type, Code: info.Code, cause: info.cause,
				Message: "不支持的文件格式，请上传 .docx 或 .pdf 文件"}
		case strings.Contains(info.Message, "文件大小"), strings.Contains(info.Message, "文件过大"):
			return &ErrorInfo{Type: info.Type, Code: info.Code, cause: info.cause,
				Message: "文件过大，请选择小于 10MB 的文件"}
		}
	}
	return info
}

// RefineReviewError 审查场景的错误措辞细化
func RefineReviewError(err error) *ErrorInfo {
	info := AsErrorInfo(err)
	if info.Type == ErrorClient && strings.Contains(info.Message, "状态") {
		return &ErrorInfo{Type: info.Type, Code: info.Code, cause: info.cause,
			Message: "文件状态不允许此操作，请刷新页面后重试"}
	}
	return info
}
