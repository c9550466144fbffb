package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingNotifier 统计加载指示的调用次数
type countingNotifier struct {
	shows    int
	dismisses int
}

func (n *countingNotifier) Show(string) { n.shows++ }
func (n *countingNotifier) Dismiss()    { n.dismisses++ }

func TestBearerTokenInjection(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithTokenProvider(func() string { return "tok-123" }))
	_, err := c.doJSON(context.Background(), http.MethodGet, "/x", nil, requestOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestNoAuthHeaderWhenLoggedOut(t *testing.T) {
	var hasAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.doJSON(context.Background(), http.MethodGet, "/x", nil, requestOptions{})
	require.NoError(t, err)
	assert.False(t, hasAuth)
}

func TestEnvelopeUnwrap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"msg":"ok","data":{"id":7}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	raw, err := c.doJSON(context.Background(), http.MethodGet, "/x", nil, requestOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7}`, string(raw))
}

func TestRawPassthroughWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	raw, err := c.doJSON(context.Background(), http.MethodGet, "/x", nil, requestOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(raw))
}

func TestEnvelopeFailureBecomesClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"msg":"文件状态不允许审查","data":null}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.doJSON(context.Background(), http.MethodPost, "/x", nil, requestOptions{})
	require.Error(t, err)
	info := AsErrorInfo(err)
	assert.Equal(t, ErrorClient, info.Type)
	assert.Equal(t, http.StatusBadRequest, info.Code)
	assert.Equal(t, "文件状态不允许审查", info.Message)
}

func TestServerErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"internal"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.doJSON(context.Background(), http.MethodGet, "/x", nil, requestOptions{})
	require.Error(t, err)
	assert.Equal(t, ErrorServer, AsErrorInfo(err).Type)
}

func TestNetworkErrorClassification(t *testing.T) {
	// 端口 1 上没有服务，连接必然失败
	c := NewClient("http://127.0.0.1:1")
	_, err := c.doJSON(context.Background(), http.MethodGet, "/x", nil, requestOptions{})
	require.Error(t, err)
	info := AsErrorInfo(err)
	assert.Contains(t, []ErrorType{ErrorNetwork, ErrorTimeout}, info.Type)
	assert.True(t, IsBackendUnready(info))
}

func TestLoadingShownAndDismissedExactlyOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	n := &countingNotifier{}
	c := NewClient(srv.URL, WithLoadingNotifier(n))
	_, err := c.doJSON(context.Background(), http.MethodGet, "/x", nil, requestOptions{showLoading: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n.shows)
	assert.Equal(t, 1, n.dismisses)
}

func TestLoadingDismissedOnFailure(t *testing.T) {
	n := &countingNotifier{}
	c := NewClient("http://127.0.0.1:1", WithLoadingNotifier(n))
	_, err := c.doJSON(context.Background(), http.MethodGet, "/x", nil, requestOptions{showLoading: true})
	require.Error(t, err)
	assert.Equal(t, 1, n.shows)
	assert.Equal(t, 1, n.dismisses)
}

func TestMultipartContentTypeCarriesBoundary(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "report.pdf", header.Filename)
		assert.Equal(t, "季度方案", r.FormValue("description"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.doMultipart(context.Background(), "/upload",
		map[string]string{"description": "季度方案"},
		"file", "report.pdf", strings.NewReader("%PDF-1.4"), requestOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotContentType, "multipart/form-data; boundary="))
}

func TestFormEncodedRequest(t *testing.T) {
	var gotContentType, gotTitle string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotTitle = r.FormValue("title")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.UpdateConversationTitle(context.Background(), "c1", "新标题")
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "新标题", gotTitle)
}
