package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const authBasePath = "/api/auth"

// LoginResult 登录成功后的凭证信息
type LoginResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Username     string `json:"username"`
}

// Login 用户名密码登录
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	raw, err := c.doJSON(ctx, http.MethodPost, authBasePath+"/login", body, requestOptions{showLoading: true})
	if err != nil {
		return LoginResult{}, err
	}

	var result LoginResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return LoginResult{}, fmt.Errorf("解析登录响应失败: %w", err)
	}
	if result.AccessToken == "" {
		return LoginResult{}, NewValidationError("解析登录响应失败: 缺少访问令牌")
	}
	return result, nil
}

// Register 注册新用户
func (c *Client) Register(ctx context.Context, username, password string) error {
	body := map[string]string{
		"username": username,
		"password": password,
	}
	_, err := c.doJSON(ctx, http.MethodPost, authBasePath+"/register", body, requestOptions{showLoading: true})
	return err
}

// Logout 退出登录，服务端会把当前令牌加入黑名单
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.doJSON(ctx, http.MethodPost, authBasePath+"/logout", nil, requestOptions{})
	return err
}

// RefreshToken 用刷新令牌换取新的访问令牌
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (LoginResult, error) {
	body := map[string]string{"refresh_token": refreshToken}

	raw, err := c.doJSON(ctx, http.MethodPost, authBasePath+"/refresh", body, requestOptions{})
	if err != nil {
		return LoginResult{}, err
	}

	var result LoginResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return LoginResult{}, fmt.Errorf("解析刷新响应失败: %w", err)
	}
	return result, nil
}
