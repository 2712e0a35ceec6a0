package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-markethub/internal/core/auth"
	"go-markethub/internal/domain"
	resp "go-markethub/internal/transport/http/response"
)

// AuthJWT 校验 Bearer token，通过后把身份写入 gin 键值对，
// 并把 Actor 注入请求 context，数据层据此落活动日志。
func AuthJWT(j *auth.JWTer, requireRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "missing token"))
			return
		}
		claims, err := j.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "invalid token"))
			return
		}
		if requireRole != "" && claims.Role != requireRole {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeForbidden, "forbidden"))
			return
		}
		c.Set("userId", claims.UID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Request = c.Request.WithContext(domain.WithActor(c.Request.Context(), domain.Actor{
			ID:    claims.UID,
			Email: claims.Email,
			Role:  claims.Role,
		}))
		c.Next()
	}
}
