package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-markethub/internal/core/auth"
	"go-markethub/internal/core/cache"
	"go-markethub/internal/datasource"
	mdw "go-markethub/internal/transport/http/middleware"
)

func NewAPIEngine(l *zap.Logger, sel *datasource.Selector, jwter *auth.JWTer, ch *cache.Cache) *gin.Engine {
	r := gin.New()

	// 中间件
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
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", mdw.KeyRequestID},
		MaxAge:       12 * time.Hour,
	}))

	// 健康检查：报当前后端与连通性
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		if err := sel.Current().Ping(c.Request.Context()); err != nil {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{"ok": 1, "datasource": sel.Mode(), "status": status})
	})

	mdw.SetDataSourceGauge(sel.Mode())

	// ⚠️ ds 必须是 provider 而不是快照：运行期切换后端后新请求要走新后端
	ds := sel.Current

	Register(&authRoutes{ds: ds, jwter: jwter})
	Register(&catalogRoutes{ds: ds, ch: ch})
	Register(&shopRoutes{ds: ds, jwter: jwter})
	Register(&jobRoutes{ds: ds, jwter: jwter, ch: ch})
	Register(&aiRoutes{ds: ds, jwter: jwter})

	api := r.Group("/api/v1")
	MountAllAPI(api)

	return r
}
