package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamServer 按给定的行序列模拟流式响应
func streamServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}))
}

func TestStreamMessageMergesDeltas(t *testing.T) {
	srv := streamServer(t, []string{
		`data: {"content":"Hel"}`,
		`data: {"content":"lo"}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	var got strings.Builder
	var completed bool
	c.StreamMessage(context.Background(), SendMessageRequest{Message: "hi", SessionID: "c1"},
		func(delta string) { got.WriteString(delta) },
		func() { completed = true },
		func(err error) { t.Fatalf("不应出错: %v", err) },
	)

	assert.Equal(t, "Hello", got.String())
	assert.True(t, completed)
}

func TestStreamMessageSkipsMalformedChunks(t *testing.T) {
	srv := streamServer(t, []string{
		`data: {"content":"好"}`,
		`data: {broken json`,
		`data: {"content":"的"}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	var got strings.Builder
	var completed bool
	c.StreamMessage(context.Background(), SendMessageRequest{Message: "hi"},
		func(delta string) { got.WriteString(delta) },
		func() { completed = true },
		func(err error) { t.Fatalf("坏数据不应中断流: %v", err) },
	)

	// 坏数据被跳过，其余增量正常合并
	assert.Equal(t, "好的", got.String())
	assert.True(t, completed)
}

func TestStreamMessageErrorChunkRoutesToOnError(t *testing.T) {
	srv := streamServer(t, []string{
		`data: {"content":"部分回复"}`,
		`data: {"error":"模型服务中断"}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	var got strings.Builder
	var gotErr error
	c.StreamMessage(context.Background(), SendMessageRequest{Message: "hi", SessionID: "c1"},
		func(delta string) { got.WriteString(delta) },
		func() { t.Fatal("生成中断不应按完成处理") },
		func(err error) { gotErr = err },
	)

	// 错误块之前的增量正常送达，错误块本身终止整个流
	assert.Equal(t, "部分回复", got.String())
	require.Error(t, gotErr)
	info := AsErrorInfo(gotErr)
	assert.Equal(t, ErrorServer, info.Type)
	assert.Equal(t, "模型服务中断", info.Message)
}

func TestStreamMessageEOFCompletesWithoutSentinel(t *testing.T) {
	srv := streamServer(t, []string{
		`data: {"content":"只有一段"}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	var completed bool
	c.StreamMessage(context.Background(), SendMessageRequest{Message: "hi"},
		func(string) {},
		func() { completed = true },
		func(err error) { t.Fatalf("不应出错: %v", err) },
	)
	assert.True(t, completed)
}

func TestStreamMessageErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"模型服务不可用"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	var gotErr error
	c.StreamMessage(context.Background(), SendMessageRequest{Message: "hi"},
		func(string) {},
		func() { t.Fatal("不应完成") },
		func(err error) { gotErr = err },
	)

	require.Error(t, gotErr)
	info := AsErrorInfo(gotErr)
	assert.Equal(t, ErrorServer, info.Type)
	assert.Equal(t, "模型服务不可用", info.Message)
}

func TestStreamHandleCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"content\":\"开始\"}\n\n")
		flusher.Flush()
		<-release // 挂住连接直到测试结束
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL)
	first := make(chan struct{})
	var once bool
	handle := c.SendMessageStream(context.Background(), SendMessageRequest{Message: "hi"},
		func(string) {
			if !once {
				once = true
				close(first)
			}
		},
		func() {},
		func(err error) {},
	)

	<-first
	handle.Cancel()
	handle.Wait() // 取消后读循环必须退出
}
