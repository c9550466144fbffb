// Package response 提供统一的 HTTP 响应格式
// 审查与文件相关的 API 都使用相同的包装结构，便于客户端统一解包
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
// success: 业务是否成功
// msg: 提示信息
// data: 响应数据
type Response struct {
	Success bool        `json:"success"`        // 业务是否成功
	Msg     string      `json:"msg"`            // 提示信息
	Data    interface{} `json:"data,omitempty"` // 响应数据，可选
}

// OK 返回成功响应
// 参数:
//   - c: Gin 上下文
//   - data: 响应数据，可以是任意类型
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Msg:     "success",
		Data:    data,
	})
}

// OKWithMsg 返回成功响应（带自定义消息）
func OKWithMsg(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Msg:     msg,
		Data:    data,
	})
}

// Fail 返回失败响应（通用）
// 参数:
//   - c: Gin 上下文
//   - httpCode: HTTP 状态码
//   - msg: 错误信息
func Fail(c *gin.Context, httpCode int, msg string) {
	c.JSON(httpCode, Response{
		Success: false,
		Msg:     msg,
	})
}

// BadRequest 返回 400 错误（请求参数错误）
func BadRequest(c *gin.Context, msg string) {
	Fail(c, http.StatusBadRequest, msg)
}

// Unauthorized 返回 401 错误（未授权）
func Unauthorized(c *gin.Context, msg string) {
	Fail(c, http.StatusUnauthorized, msg)
}

// NotFound 返回 404 错误（资源不存在）
func NotFound(c *gin.Context, msg string) {
	Fail(c, http.StatusNotFound, msg)
}

// InternalError 返回 500 错误（服务器内部错误）
func InternalError(c *gin.Context, msg string) {
	Fail(c, http.StatusInternalServerError, msg)
}
