// Package app 根据配置组装存储、图片流水线、目录库和导入器，供各个命令共用
package app

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ysicing/AutoEcoleMedia/config"
	"github.com/ysicing/AutoEcoleMedia/internal/catalog"
	"github.com/ysicing/AutoEcoleMedia/internal/logger"
	"github.com/ysicing/AutoEcoleMedia/internal/media"
	"github.com/ysicing/AutoEcoleMedia/internal/seed"
	"github.com/ysicing/AutoEcoleMedia/pkg/metrics"
	"github.com/ysicing/AutoEcoleMedia/pkg/storage"
)

// App 运行期依赖
type App struct {
	Storage    storage.Provider
	Object     *storage.ObjectStorage
	Local      *storage.LocalStorage
	Encoder    *media.VipsEncoder
	Normalizer *media.Normalizer
	Catalog    *catalog.Store
	Seeder     *seed.Seeder
}

// New 组装应用依赖。m 可以为 nil
func New(cfg *config.Config, m *metrics.Metrics) (*App, error) {
	a := &App{}

	if err := a.initStorage(cfg); err != nil {
		return nil, err
	}

	a.Encoder = media.NewVipsEncoder(media.VipsConfig{}, logger.GetLogger("vips"))
	a.Normalizer = media.NewNormalizer(media.Options{
		Encoder: a.Encoder,
		Storage: a.Storage,
		Retry: media.RetryPolicy{
			Attempts: cfg.Retry.MaxAttempts,
			Delay:    cfg.RetryDelay(),
		},
		UploadTimeout: cfg.Retry.UploadTimeout,
		Logger:        logger.GetLogger("media"),
		Metrics:       m,
	})

	db, err := catalog.Open(cfg.Database.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("打开目录数据库失败: %w", err)
	}
	a.Catalog = db
	logrus.Infof("已打开目录数据库: %s", cfg.Database.Path)

	a.Seeder, err = seed.NewSeeder(seed.Options{
		Processor: a.Normalizer,
		Store:     a.Catalog,
		PublicDir: cfg.Seed.PublicDir,
		Dirs:      cfg.Seed.Dirs,
		Workers:   cfg.Seed.Workers,
		Logger:    logger.GetLogger("seed"),
		Metrics:   m,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// initStorage 对象存储启用时使用对象存储，否则落地到本地目录
func (a *App) initStorage(cfg *config.Config) error {
	if cfg.Storage.Object.Enabled {
		object, err := storage.NewObjectStorage(ObjectConfig(cfg))
		if err != nil {
			return fmt.Errorf("初始化对象存储失败: %w", err)
		}
		a.Object = object
		a.Storage = object
		logrus.Infof("已初始化对象存储: %s/%s", cfg.Storage.Object.Endpoint, cfg.Storage.Object.BucketName)
		return nil
	}

	local, err := storage.NewLocalStorage(cfg.Storage.Local.Path, cfg.Storage.Local.BaseURL)
	if err != nil {
		return fmt.Errorf("初始化本地存储失败: %w", err)
	}
	a.Local = local
	a.Storage = local
	logrus.Infof("对象存储已禁用，使用本地存储: %s", cfg.Storage.Local.Path)
	return nil
}

// ObjectConfig 从应用配置提取对象存储配置
func ObjectConfig(cfg *config.Config) storage.ObjectStorageConfig {
	o := cfg.Storage.Object
	return storage.ObjectStorageConfig{
		Endpoint:        o.Endpoint,
		AccessKeyID:     o.AccessKeyID,
		SecretAccessKey: o.SecretAccessKey,
		BucketName:      o.BucketName,
		Region:          o.Region,
		UseSSL:          o.UseSSL,
		BaseURL:         o.BaseURL,
		PathPrefix:      o.PathPrefix,
	}
}

// Close 释放资源
func (a *App) Close() {
	if a.Catalog != nil {
		if err := a.Catalog.Close(); err != nil {
			logrus.Warnf("关闭目录数据库失败: %v", err)
		}
	}
	if a.Encoder != nil {
		a.Encoder.Shutdown()
	}
}
