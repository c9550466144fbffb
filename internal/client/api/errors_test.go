package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTransport(t *testing.T) {
	timeout := classifyTransport(context.DeadlineExceeded)
	assert.Equal(t, ErrorTimeout, timeout.Type)

	network := classifyTransport(&url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")})
	assert.Equal(t, ErrorNetwork, network.Type)

	unknown := classifyTransport(errors.New("something odd"))
	assert.Equal(t, ErrorUnknown, unknown.Type)
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, ErrorServer, classifyStatus(502, "").Type)
	assert.Equal(t, ErrorClient, classifyStatus(404, "").Type)

	// 服务端给了 msg 时原样透出
	withMsg := classifyStatus(400, "文件格式不正确")
	assert.Equal(t, "文件格式不正确", withMsg.Message)

	// 没有 msg 时用默认文案并带上状态码
	noMsg := classifyStatus(503, "")
	assert.Contains(t, noMsg.Message, "503")
}

func TestErrorInfoUnwrap(t *testing.T) {
	cause := errors.New("根因")
	info := classifyTransport(fmt.Errorf("包装: %w", cause))
	assert.True(t, errors.Is(info, cause))
}

func TestAsErrorInfoWrapsPlainError(t *testing.T) {
	plain := errors.New("普通错误")
	info := AsErrorInfo(plain)
	assert.Equal(t, ErrorUnknown, info.Type)
	assert.Equal(t, "普通错误", info.Message)
}

func TestIsBackendUnready(t *testing.T) {
	assert.True(t, IsBackendUnready(&ErrorInfo{Type: ErrorNetwork}))
	assert.True(t, IsBackendUnready(&ErrorInfo{Type: ErrorServer}))
	assert.False(t, IsBackendUnready(&ErrorInfo{Type: ErrorClient}))
	assert.False(t, IsBackendUnready(&ErrorInfo{Type: ErrorValidation}))
}

func TestRefineUploadError(t *testing.T) {
	typeErr := RefineUploadError(&ErrorInfo{Type: ErrorClient, Message: "文件类型不支持", Code: 400})
	assert.Contains(t, typeErr.Message, ".docx 或 .pdf")

	sizeErr := RefineUploadError(&ErrorInfo{Type: ErrorClient, Message: "文件大小超出限制", Code: 400})
	assert.Contains(t, sizeErr.Message, "10MB")

	// 其他错误原样返回
	other := &ErrorInfo{Type: ErrorServer, Message: "服务器错误", Code: 500}
	assert.Equal(t, other, RefineUploadError(other))
}

func TestRefineReviewError(t *testing.T) {
	statusErr := RefineReviewError(&ErrorInfo{Type: ErrorClient, Message: "文件状态不允许审查", Code: 400})
	assert.Contains(t, statusErr.Message, "刷新页面")
}

func TestDecodeConversationRequiresID(t *testing.T) {
	_, err := decodeConversation(sessionPayload{Title: "无ID会话"})
	assert.Error(t, err)
	assert.Equal(t, ErrorValidation, AsErrorInfo(err).Type)
}

func TestDecodeMessageRequiresID(t *testing.T) {
	_, err := decodeMessage(messagePayload{Role: "user"})
	assert.Error(t, err)
}
