package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeProgressDeliversEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reviews/progress/sse/7", r.URL.Path)
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, p := range []string{"10", "55", "99"} {
			fmt.Fprintf(w, "data: %s\n\n", p)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: complete\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	var progress []int
	var completed bool
	sub := c.SubscribeProgress(context.Background(), 7,
		func(p int) { progress = append(progress, p) },
		func() { completed = true },
		func(err error) { t.Fatalf("不应出错: %v", err) },
	)
	sub.Wait()

	assert.Equal(t, []int{10, 55, 99}, progress)
	assert.True(t, completed)
}

func TestSubscribeProgressIgnoresGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: 30\n\n")
		fmt.Fprint(w, ": keep-alive comment\n\n")
		fmt.Fprint(w, "data: not-a-number\n\n")
		fmt.Fprint(w, "data: complete\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	var progress []int
	sub := c.SubscribeProgress(context.Background(), 1,
		func(p int) { progress = append(progress, p) },
		func() {},
		func(err error) { t.Fatalf("垃圾数据不应报错: %v", err) },
	)
	sub.Wait()

	assert.Equal(t, []int{30}, progress)
}

func TestSubscribeProgressCloseSuppressesCallbacks(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: 10\n\n")
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL)
	first := make(chan struct{})
	var firstClosed bool
	sub := c.SubscribeProgress(context.Background(), 2,
		func(p int) {
			if !firstClosed {
				firstClosed = true
				close(first)
			}
		},
		func() { t.Error("主动关闭不应触发完成回调") },
		func(err error) { t.Errorf("主动关闭不应触发错误回调: %v", err) },
	)

	<-first
	sub.Close()
	sub.Close() // 幂等
	sub.Wait()
}

func TestSubscribeProgressTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 劫持连接后直接断开，模拟服务端崩溃
		hj := w.(http.Hijacker)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	errCh := make(chan error, 1)
	sub := c.SubscribeProgress(context.Background(), 3,
		func(int) {},
		func() { t.Error("中断不应触发完成回调") },
		func(err error) { errCh <- err },
	)
	sub.Wait()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("等待错误回调超时")
	}
}
