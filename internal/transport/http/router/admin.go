package router

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"go-markethub/internal/core/auth"
	"go-markethub/internal/core/cache"
	"go-markethub/internal/datasource"
	mdw "go-markethub/internal/transport/http/middleware"
)

func NewAdminEngine(l *zap.Logger, sel *datasource.Selector, jwter *auth.JWTer, ch *cache.Cache) *gin.Engine {
	r := gin.New()

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(16<<20),
		mdw.Timeout(10*time.Second),
		ginzap.RecoveryWithZap(l, true),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	mdw.SetDataSourceGauge(sel.Mode())

	// 管理端 v1（统一要求 admin 角色）
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(jwter, "admin"))

	Register(&adminRoutes{ds: sel.Current, sel: sel, ch: ch})
	MountAllAdmin(admin)

	return r
}
