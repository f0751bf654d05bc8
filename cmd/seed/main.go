package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ysicing/AutoEcoleMedia/config"
	"github.com/ysicing/AutoEcoleMedia/internal/app"
	"github.com/ysicing/AutoEcoleMedia/internal/logger"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000-0700",
	})
	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.InfoLevel)
}

type seedFlags struct {
	configDir string
	publicDir string
	workers   int
	printURLs bool
	debug     bool
}

func newRootCmd() *cobra.Command {
	var f seedFlags

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "转换并上传公开目录中的图片，再写入默认目录数据",
		Long: `seed 扫描公开目录下的 articles、certifciate、images、illustration、types，
把每张图片转换为 AVIF（失败时为 WEBP）后上传，然后用生成的URL写入驾照类型、文章和站点设置。
可重复执行，同一路径的图片会覆盖上一次的结果。`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.configDir, "config-dir", config.ConfigDir, "配置文件目录")
	cmd.Flags().StringVar(&f.publicDir, "public-dir", "", "公开目录，默认取配置 seed.publicDir")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "并发处理的图片数，默认取配置 seed.workers")
	cmd.Flags().BoolVar(&f.printURLs, "print-urls", false, "以 JSON 输出路径到URL的映射")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "输出调试日志")
	return cmd
}

func runSeed(cmd *cobra.Command, f seedFlags) error {
	config.ConfigDir = f.configDir
	if err := config.LoadConfig(); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	cfg := &config.AppConfig
	if cmd.Flags().Changed("public-dir") {
		cfg.Seed.PublicDir = f.publicDir
	}
	if cmd.Flags().Changed("workers") {
		cfg.Seed.Workers = f.workers
	}
	logger.SetDebug(f.debug || cfg.Debug)
	defer logger.Sync()

	a, err := app.New(cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := a.Seeder.Run(ctx)
	if err != nil {
		return fmt.Errorf("导入中断: %w", err)
	}

	logrus.Infof("导入完成: 发现 %d 张，上传 %d 张，失败 %d 张，目录写入失败 %d 条，耗时 %v",
		report.Discovered, report.Uploaded, len(report.Failed), report.UpsertErrors, report.Duration)
	for _, p := range report.Failed {
		logrus.Warnf("失败: %s", p)
	}

	if f.printURLs {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(report.URLs)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
