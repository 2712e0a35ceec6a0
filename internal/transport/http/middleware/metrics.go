package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests"},
		[]string{"path", "method", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"},
	)
	// ActiveDataSource 当前激活后端：local=0 / remote=1，切换时打点
	ActiveDataSource = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "markethub_active_datasource", Help: "Currently active data source backend"},
		[]string{"mode"},
	)
)

func init() { prometheus.MustRegister(httpReqTotal, httpLatency, ActiveDataSource) }

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		httpReqTotal.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// SetDataSourceGauge 切换后端时由路由层调用
func SetDataSourceGauge(mode string) {
	for _, m := range []string{"local", "remote"} {
		v := 0.0
		if m == mode {
			v = 1.0
		}
		ActiveDataSource.WithLabelValues(m).Set(v)
	}
}
