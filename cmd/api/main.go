package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"go-markethub/internal/core/auth"
	"go-markethub/internal/core/cache"
	"go-markethub/internal/core/config"
	"go-markethub/internal/core/logger"
	"go-markethub/internal/core/sched"
	"go-markethub/internal/core/server"
	"go-markethub/internal/datasource"
	"go-markethub/internal/notify"
	"go-markethub/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log.Level, cfg.Log.JSON)
	defer cleanup()

	// 通知扇出总线 + 数据源选择器（失败直接 Fatal）
	bus := notify.New(log)
	sel := datasource.New(cfg, log, bus)
	if err := sel.Start(context.Background()); err != nil {
		log.Fatal("data source start", zap.Error(err))
	}
	defer func() { _ = sel.Close(context.Background()) }()
	log.Info("data source ready", zap.String("mode", sel.Mode()))

	// 扇出端永远跟随当前激活的后端
	if err := bus.Attach(func() notify.Sink { return sel.Current() }); err != nil {
		log.Fatal("notification fan-out attach", zap.Error(err))
	}
	defer bus.Close()

	// 读缓存（redis 未配置时为 nil，直接回源）
	ch := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer func() { _ = ch.Close() }()

	// JWT
	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}

	// 维护任务：过期清扫要勤，聚合自愈可以稀
	cr := sched.New(log)
	mustEvery(log, cr, time.Minute, "expire-jobs", func(ctx context.Context) {
		n, err := sel.Current().ExpireJobs(ctx, time.Now())
		if err != nil {
			log.Warn("expire jobs sweep", zap.Error(err))
			return
		}
		if n > 0 {
			log.Info("jobs expired", zap.Int("count", n))
		}
	})
	mustEvery(log, cr, 10*time.Minute, "reconcile", func(ctx context.Context) {
		if err := sel.Current().Reconcile(ctx); err != nil {
			log.Warn("reconcile aggregates", zap.Error(err))
		}
	})
	cr.Start()
	defer cr.Stop()

	// 路由（用户端）
	r := router.NewAPIEngine(log, sel, jwter, ch)

	// HTTP Server
	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	// 启动日志
	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("user api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
	)

	// 异步启动
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("user api start FAILED", zap.Error(err))
		}
	}()
	log.Info("user api started SUCCESS")

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("user api stopped gracefully")
}

func mustEvery(l *zap.Logger, cr *sched.Scheduler, d time.Duration, name string, fn func(ctx context.Context)) {
	if err := cr.Every(d, name, fn); err != nil {
		l.Fatal("register scheduled task", zap.String("task", name), zap.Error(err))
	}
}
