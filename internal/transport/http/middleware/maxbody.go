package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "go-markethub/internal/transport/http/response"
)

// MaxBodyBytes 限制请求体大小（图片上传走 multipart 也受此约束）
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
		if c.Err() != nil && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeBadRequest, "request body too large"))
		}
	}
}
