// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"kb-ai-api/pkg/logger"
)

// OrgContextKey 组织上下文 Key 类型
type OrgContextKey string

// OrgIDKey 组织 ID 上下文 Key
const OrgIDKey OrgContextKey = "org_id"

// OrgConfig 组织中间件配置
type OrgConfig struct {
	// HeaderName 从 Header 中获取组织 ID 的字段名
	HeaderName string
	// DefaultOrgID 默认组织 ID（用于开发环境）
	DefaultOrgID string
}

// Org 组织隔离中间件。
// 所有业务路由都要求组织上下文，缺失时直接拒绝。
func Org(cfg OrgConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-Org-ID"
	}

	return func(c *gin.Context) {
		orgID := c.GetHeader(cfg.HeaderName)

		if orgID == "" && cfg.DefaultOrgID != "" {
			orgID = cfg.DefaultOrgID
		}

		if orgID == "" {
			c.AbortWithStatusJSON(400, gin.H{
				"code":    400,
				"message": "missing organization header",
			})
			return
		}

		c.Set("org_id", orgID)

		// 同时注入 request context，便于仓储层与日志使用
		ctx := context.WithValue(c.Request.Context(), OrgIDKey, orgID)
		ctx = logger.WithContext(ctx, logger.OrgIDKey, orgID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetOrgID 从 context 中获取组织 ID
func GetOrgID(ctx context.Context) string {
	if v := ctx.Value(OrgIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetOrgIDFromGin 从 Gin Context 中获取组织 ID
func GetOrgIDFromGin(c *gin.Context) string {
	return c.GetString("org_id")
}
