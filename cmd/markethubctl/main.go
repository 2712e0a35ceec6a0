// markethubctl 运维小工具：不经 HTTP 直接操作数据层。
//
//	markethubctl -cmd seed                播种当前后端
//	markethubctl -cmd switch -mode remote 切换激活后端
//	markethubctl -cmd reconcile           全量重算派生聚合
//	markethubctl -cmd expire              立即清扫过期工单
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"go-markethub/internal/core/config"
	"go-markethub/internal/core/logger"
	"go-markethub/internal/datasource"
)

func main() {
	var (
		cmd  = flag.String("cmd", "", "seed | switch | reconcile | expire")
		mode = flag.String("mode", "", "switch 的目标后端：local / remote")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log.Level, cfg.Log.JSON)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// ctl 不需要通知扇出，bus 传 nil
	sel := datasource.New(cfg, log, nil)
	if err := sel.Start(ctx); err != nil {
		log.Fatal("data source start", zap.Error(err))
	}
	defer func() { _ = sel.Close(context.Background()) }()

	switch *cmd {
	case "seed":
		// Start 已播种，这里只确认
		if err := sel.Current().Seed(ctx); err != nil {
			log.Fatal("seed", zap.Error(err))
		}
		fmt.Printf("seeded (%s)\n", sel.Mode())

	case "switch":
		if *mode == "" {
			log.Fatal("switch requires -mode")
		}
		if err := sel.Use(ctx, *mode); err != nil {
			log.Fatal("switch data source", zap.Error(err))
		}
		fmt.Printf("data source now %s\n", sel.Mode())

	case "reconcile":
		if err := sel.Current().Reconcile(ctx); err != nil {
			log.Fatal("reconcile", zap.Error(err))
		}
		fmt.Println("aggregates reconciled")

	case "expire":
		n, err := sel.Current().ExpireJobs(ctx, time.Now())
		if err != nil {
			log.Fatal("expire jobs", zap.Error(err))
		}
		fmt.Printf("expired %d job(s)\n", n)

	default:
		flag.Usage()
		os.Exit(2)
	}
}
