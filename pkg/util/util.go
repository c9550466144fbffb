// Package util 提供通用工具函数
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword 使用 bcrypt 哈希密码
// bcrypt 是一种专门为密码哈希设计的算法，自动添加盐值
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword 验证密码是否匹配
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateUUID 生成 UUID v4，去掉连字符使其更紧凑
func GenerateUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// HashToken 计算 Token 的 SHA-256 哈希
// 黑名单只存哈希值，不存原始 Token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// StringPtr 返回字符串的指针，用于可选字段的赋值
func StringPtr(s string) *string {
	return &s
}
