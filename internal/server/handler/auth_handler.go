// Package handler 提供 HTTP 请求处理器
// 负责解析请求、调用服务层并组装响应
package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"fair-review/internal/server/service"
	"fair-review/pkg/response"
	"fair-review/pkg/util"
)

// AuthHandler 认证请求处理器
// 处理用户注册、登录、登出和 Token 刷新
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register 用户注册
// @Summary 用户注册
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body service.RegisterRequest true "注册信息"
// @Success 200 {object} response.Response{data=service.RegisterResponse}
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	// ShouldBindJSON 会自动验证 binding 标签中的规则
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		switch err {
		case service.ErrUserExists:
			response.BadRequest(c, "用户名已存在")
		default:
			response.InternalError(c, "注册失败")
		}
		return
	}

	response.OKWithMsg(c, "注册成功", result)
}

// Login 用户登录
// @Summary 用户登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body service.LoginRequest true "登录信息"
// @Success 200 {object} response.Response{data=service.LoginResponse}
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		switch err {
		case service.ErrUserNotFound, service.ErrPasswordWrong:
			// 不区分用户不存在和密码错误，避免用户名枚举
			response.Unauthorized(c, "用户名或密码错误")
		case service.ErrUserDisabled:
			response.Fail(c, 403, "账号已被禁用")
		default:
			response.InternalError(c, "登录失败")
		}
		return
	}

	response.OKWithMsg(c, "登录成功", result)
}

// Logout 用户登出
// 将当前 Token 加入黑名单，TTL 为 Token 的剩余有效期
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	// Token 信息由认证中间件写入上下文
	token, exists := c.Get("token")
	if !exists {
		response.BadRequest(c, "无法获取 Token 信息")
		return
	}
	expireAt, exists := c.Get("token_exp")
	if !exists {
		response.BadRequest(c, "无法获取 Token 过期时间")
		return
	}

	tokenHash := util.HashToken(token.(string))
	if err := h.authService.Logout(c.Request.Context(), tokenHash, expireAt.(time.Time)); err != nil {
		response.InternalError(c, "登出失败")
		return
	}

	response.OKWithMsg(c, "登出成功", nil)
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken 刷新 Access Token
// @Router /api/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	result, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Unauthorized(c, "Refresh Token 无效或已过期")
		return
	}

	response.OK(c, result)
}
