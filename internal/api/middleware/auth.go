package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/migratesafely/membership_server/internal/pkg/jwt"
	"github.com/migratesafely/membership_server/internal/pkg/response"
)

const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

// RoleLookup 按用户 ID 查询当前角色
type RoleLookup interface {
	GetRole(ctx context.Context, userID int64) (string, error)
}

// Auth JWT 认证中间件
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "请提供认证信息")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "认证格式错误")
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "认证失败或已过期")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole 校验数据库中的当前角色，token 中的角色可能已过时
func RequireRole(roles RoleLookup, allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		role, err := roles.GetRole(c.Request.Context(), userID)
		if err != nil {
			response.PermissionError(c, "")
			c.Abort()
			return
		}

		for _, r := range allowed {
			if role == r {
				c.Set(RoleKey, role)
				c.Next()
				return
			}
		}

		response.PermissionError(c, "")
		c.Abort()
	}
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}
