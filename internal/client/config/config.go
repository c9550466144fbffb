// Package config 管理 CLI 客户端配置
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Config CLI 配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Chat   ChatConfig   `mapstructure:"chat"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	URL string `mapstructure:"url"` // HTTP API 地址
}

// AuthConfig 登录凭证
type AuthConfig struct {
	Token        string `mapstructure:"token"`         // 访问 Token
	RefreshToken string `mapstructure:"refresh_token"` // 刷新 Token
	Username     string `mapstructure:"username"`      // 当前登录用户名
}

// ChatConfig 聊天相关的本地状态
type ChatConfig struct {
	CurrentConversationID string `mapstructure:"current_conversation_id"` // 上次使用的会话
}

var (
	cfg        *Config
	configPath string
	configDir  string
)

// Init 初始化配置
func Init() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("获取用户目录失败: %w", err)
	}

	configDir = filepath.Join(home, ".fair-review")
	configPath = filepath.Join(configDir, "config.yaml")

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 设置默认值
	viper.SetDefault("server.url", "http://localhost:8080")
	viper.SetDefault("auth.token", "")
	viper.SetDefault("auth.refresh_token", "")
	viper.SetDefault("auth.username", "")
	viper.SetDefault("chat.current_conversation_id", "")

	// 尝试读取配置文件，不存在时写入默认配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := viper.SafeWriteConfig(); err != nil {
				// 忽略文件已存在的错误
			}
		}
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("解析配置失败: %w", err)
	}

	return nil
}

// Get 获取配置
func Get() *Config {
	return cfg
}

// SaveAuth 保存登录凭证
func SaveAuth(token, refreshToken, username string) error {
	viper.Set("auth.token", token)
	viper.Set("auth.refresh_token", refreshToken)
	viper.Set("auth.username", username)
	if cfg != nil {
		cfg.Auth.Token = token
		cfg.Auth.RefreshToken = refreshToken
		cfg.Auth.Username = username
	}
	return viper.WriteConfig()
}

// GetToken 获取访问 Token
func GetToken() string {
	if cfg == nil {
		return ""
	}
	return cfg.Auth.Token
}

// GetUsername 获取当前登录用户名
func GetUsername() string {
	if cfg == nil {
		return ""
	}
	return cfg.Auth.Username
}

// ClearToken 清除本地凭证
// 只清凭证，不动服务器地址和会话记录
func ClearToken() error {
	viper.Set("auth.token", "")
	viper.Set("auth.refresh_token", "")
	viper.Set("auth.username", "")
	if cfg != nil {
		cfg.Auth.Token = ""
		cfg.Auth.RefreshToken = ""
		cfg.Auth.Username = ""
	}
	return viper.WriteConfig()
}

// SaveCurrentConversation 持久化当前会话 ID
func SaveCurrentConversation(conversationID string) error {
	viper.Set("chat.current_conversation_id", conversationID)
	if cfg != nil {
		cfg.Chat.CurrentConversationID = conversationID
	}
	return viper.WriteConfig()
}

// GetCurrentConversation 读取上次使用的会话 ID
func GetCurrentConversation() string {
	if cfg == nil {
		return ""
	}
	return cfg.Chat.CurrentConversationID
}

// GetServerURL 获取服务器地址
func GetServerURL() string {
	if cfg == nil {
		return "http://localhost:8080"
	}
	return cfg.Server.URL
}

// SetServerURL 设置服务器地址
func SetServerURL(url string) {
	viper.Set("server.url", url)
	if cfg != nil {
		cfg.Server.URL = url
	}
}

// IsLoggedIn 检查是否已登录
func IsLoggedIn() bool {
	return cfg != nil && cfg.Auth.Token != ""
}

// GetClientID 获取或生成客户端唯一标识
// 持久化存储在 ~/.fair-review/client_id 文件中
func GetClientID() (string, error) {
	clientIDPath := filepath.Join(configDir, "client_id")

	data, err := os.ReadFile(clientIDPath)
	if err == nil && len(data) > 0 {
		return string(data), nil
	}

	newUUID := uuid.New().String()
	if err := os.WriteFile(clientIDPath, []byte(newUUID), 0600); err != nil {
		return "", fmt.Errorf("保存客户端标识失败: %w", err)
	}

	return newUUID, nil
}
