package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ergoapi/util/exgin"
	"github.com/ergoapi/util/exhttp"
	"github.com/gin-contrib/gzip"
	"github.com/sirupsen/logrus"

	"github.com/ysicing/AutoEcoleMedia/config"
	"github.com/ysicing/AutoEcoleMedia/internal/api"
	"github.com/ysicing/AutoEcoleMedia/internal/app"
	"github.com/ysicing/AutoEcoleMedia/internal/cron"
	"github.com/ysicing/AutoEcoleMedia/internal/logger"
	"github.com/ysicing/AutoEcoleMedia/internal/middleware"
	"github.com/ysicing/AutoEcoleMedia/internal/seed"
	"github.com/ysicing/AutoEcoleMedia/pkg/metrics"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000-0700",
	})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.DebugLevel)
}

func main() {
	logrus.Info("正在启动驾校媒体服务...")

	if err := config.LoadConfig(); err != nil {
		logrus.Fatalf("加载配置失败: %v", err)
	}
	cfg := &config.AppConfig
	logger.SetDebug(cfg.Debug)
	defer logger.Sync()

	metricsCollector := metrics.NewMetrics("autoecole")

	a, err := app.New(cfg, metricsCollector)
	if err != nil {
		logrus.Fatalf("初始化服务失败: %v", err)
	}
	defer a.Close()

	scheduler := cron.NewScheduler()
	if err := scheduler.SetupJobs(cfg.Seed.Schedule, a.Seeder); err != nil {
		logrus.Fatalf("设置定时任务失败: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// 配置热重载：对象存储重连、调度更新。存储类型、端口、重试和数据库路径需重启生效
	applyConfig := func(newCfg *config.Config) {
		logrus.Info("检测到配置变更，正在重新加载服务...")
		logger.SetDebug(newCfg.Debug)
		if a.Object != nil && newCfg.Storage.Object.Enabled {
			if err := a.Object.Reconnect(app.ObjectConfig(newCfg)); err != nil {
				logrus.Errorf("重新连接对象存储失败: %v", err)
			}
		}
		scheduler.UpdateJobs(newCfg.Seed.Schedule, a.Seeder)
	}
	config.WatchConfig(applyConfig)

	// SIGHUP 手动重新加载配置
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			newCfg, err := config.ReloadConfig()
			if err != nil {
				logrus.Errorf("%v，忽略此次配置更新", err)
				continue
			}
			applyConfig(newCfg)
		}
	}()

	if cfg.Seed.OnStartup {
		go func() {
			report, err := a.Seeder.Run(context.Background())
			if err != nil && !errors.Is(err, seed.ErrSeedRunning) {
				logrus.Errorf("启动导入失败: %v", err)
				return
			}
			if report != nil {
				logrus.Infof("启动导入完成: 发现 %d 张，上传 %d 张，失败 %d 张",
					report.Discovered, report.Uploaded, len(report.Failed))
			}
		}()
	}

	router := exgin.Init(&exgin.Config{
		Debug:   cfg.Debug,
		Metrics: true,
	})
	router.Use(exgin.ExLog("/metrics"), exgin.ExRecovery())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/media"})))
	router.Use(metrics.MetricsMiddleware(metricsCollector))

	// 本地存储模式下直接提供转换后的图片
	if a.Local != nil {
		router.Static("/media", a.Local.Root())
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Limit:      cfg.API.RateLimit,
		WindowSize: cfg.API.RateLimitWindow,
	}, logger.GetLogger("ratelimit"))
	defer limiter.Stop()

	handler := api.NewHandler(cfg, a.Normalizer, a.Seeder, a.Catalog)
	handler.SetupRoutes(router, limiter.Handler())

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}
	go func() {
		exhttp.SetupGracefulStop(srv)
	}()
	logrus.Infof("http listen to %v, pid is %v", addr, os.Getpid())
	logrus.Infof("上传接口: http://localhost:%s%s/admin/upload-image", cfg.Server.Port, cfg.API.BasePath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Errorf("Failed to start http server, error: %s", err)
	}
}
