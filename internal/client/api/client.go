// Package api 封装与审查服务端的 HTTP API 交互
// 所有请求经过统一的流水线处理: 请求头归一化、Bearer Token 注入、
// 加载指示回调、响应解包与错误归类
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// 默认请求超时时间
const defaultTimeout = 60 * time.Second

// LoadingNotifier 加载指示回调
// 每次请求 Show 与 Dismiss 严格成对调用，Dismiss 只会触发一次
type LoadingNotifier interface {
	Show(text string)
	Dismiss()
}

type nopNotifier struct{}

func (nopNotifier) Show(string) {}
func (nopNotifier) Dismiss()    {}

// TokenProvider 提供当前的访问凭证，返回空串表示未登录
type TokenProvider func() string

// Client API 客户端
/// baseURL 例如 http://localhost:8080
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenProvider
	loading    LoadingNotifier
	logger     *zap.Logger
}

// Option 客户端可选配置
type Option func(*Client)

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenProvider 设置凭证提供函数
func WithTokenProvider(tp TokenProvider) Option {
	return func(c *Client) { c.token = tp }
}

// WithLoadingNotifier 设置加载指示回调
// 不设置时使用空实现，加载指示是组合根显式传入的依赖，
// 不存在进程级的全局单例
func WithLoadingNotifier(n LoadingNotifier) Option {
	return func(c *Client) { c.loading = n }
}

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient 创建 API 客户端
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		token:      func() string { return "" },
		loading:    nopNotifier{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// requestOptions 单次请求的可调参数
type requestOptions struct {
	showLoading bool
	query       url.Values
	timeout     time.Duration // 覆盖默认超时，0 表示不覆盖
}

// envelope 服务端统一响应包装 {success, msg, data}
// Success 用指针区分"字段缺失"与"值为 false"
type envelope struct {
	Success *bool           `json:"success"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// doJSON 发送 JSON 请求并返回解包后的数据
// body 为 nil 时不携带请求体
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, opts requestOptions) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("序列化请求失败: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := c.newRequest(ctx, method, path, reader, opts)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json;charset=utf-8")
	}

	return c.do(req, opts)
}

// doForm 发送表单编码请求（用于标题更新等接口）
func (c *Client) doForm(ctx context.Context, method, path string, form url.Values, opts requestOptions) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, method, path, strings.NewReader(form.Encode()), opts)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, opts)
}

// doMultipart 发送 multipart 文件上传请求
// Content-Type 交给 multipart.Writer 生成，保证 boundary 正确，
// 绝不预设该头
func (c *Client) doMultipart(ctx context.Context, path string, fields map[string]string, fileField, filename string, file io.Reader, opts requestOptions) (json.RawMessage, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("构造表单失败: %w", err)
		}
	}
	part, err := mw.CreateFormFile(fileField, filename)
	if err != nil {
		return nil, fmt.Errorf("构造表单失败: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("构造表单失败: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &buf, opts)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.do(req, opts)
}

// newRequest 构建请求并完成请求头归一化与凭证注入
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, opts requestOptions) (*http.Request, error) {
	fullURL := c.baseURL + path
	if len(opts.query) > 0 {
		fullURL += "?" + opts.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}

	// 确保 Header 存在后再写入
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// do 执行请求: 加载指示、错误归类、响应解包
func (c *Client) do(req *http.Request, opts requestOptions) (json.RawMessage, error) {
	if opts.showLoading {
		c.loading.Show("加载中...")
		// 无论成功失败都恰好关闭一次
		defer c.loading.Dismiss()
	}

	hc := c.httpClient
	if opts.timeout > 0 {
		// 覆盖默认超时时复制一份客户端，避免影响并发请求
		clone := *hc
		clone.Timeout = opts.timeout
		hc = &clone
	}

	resp, err := hc.Do(req)
	if err != nil {
		info := classifyTransport(err)
		c.logger.Warn("请求失败",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.String("type", string(info.Type)),
			zap.Error(err))
		return nil, info
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}

	return c.unwrap(resp.StatusCode, respBody)
}

// unwrap 解包统一响应
// 同时兼容两种返回: {success, msg, data} 包装与原始数据直接返回
func (c *Client) unwrap(status int, body []byte) (json.RawMessage, error) {
	// 只有同时带 success 和 data 字段的 JSON 对象才按包装结构处理
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		_, hasSuccess := fields["success"]
		_, hasData := fields["data"]
		if hasSuccess && hasData {
			var env envelope
			if err := json.Unmarshal(body, &env); err == nil && env.Success != nil {
				if !*env.Success && status != http.StatusOK {
					return nil, classifyStatus(status, env.Msg)
				}
				return env.Data, nil
			}
		}
	}

	if status >= 400 {
		// 非包装格式的错误响应，尝试取 msg/detail 字段
		return nil, classifyStatus(status, extractMessage(body))
	}

	// 原始数据（数组、对象或二进制）原样透传
	return body, nil
}

// extractMessage 从错误响应体中提取提示信息
func extractMessage(body []byte) string {
	var payload struct {
		Msg    string `json:"msg"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Msg != "" {
		return payload.Msg
	}
	return payload.Detail
}
