package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingServer 记录最后一次请求的方法与路径
func recordingServer(body string) (*httptest.Server, *http.Request) {
	captured := &http.Request{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = *r
		w.Write([]byte(body))
	}))
	return srv, captured
}

func TestStartReviewRequestPath(t *testing.T) {
	srv, req := recordingServer(`{"success":true,"msg":"审查已开始","data":null}`)
	defer srv.Close()

	c := NewClient(srv.URL)
	require.NoError(t, c.StartReview(context.Background(), 5))

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/reviews/start/5", req.URL.Path)
}

func TestListDocumentsRequestPath(t *testing.T) {
	srv, req := recordingServer(`{"success":true,"msg":"ok","data":{"articles":[],"pagination":{"page":2,"page_size":5,"total":0,"total_pages":0}}}`)
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.ListDocuments(context.Background(), 2, 5, "招标")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/files/list", req.URL.Path)
	assert.Equal(t, "2", req.URL.Query().Get("page"))
	assert.Equal(t, "5", req.URL.Query().Get("page_size"))
	assert.Equal(t, "招标", req.URL.Query().Get("keyword"))
}
