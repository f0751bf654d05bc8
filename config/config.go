package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
		Host string `mapstructure:"host"`
	} `mapstructure:"server"`

	Storage struct {
		// 本地存储配置，对象存储未启用时使用
		Local struct {
			Path    string `mapstructure:"path"`
			BaseURL string `mapstructure:"baseURL"`
		} `mapstructure:"local"`

		// 对象存储配置
		Object struct {
			Enabled         bool   `mapstructure:"enabled"`
			Endpoint        string `mapstructure:"endpoint"`
			AccessKeyID     string `mapstructure:"accessKeyID"`
			SecretAccessKey string `mapstructure:"secretAccessKey"`
			BucketName      string `mapstructure:"bucketName"`
			Region          string `mapstructure:"region"`
			UseSSL          bool   `mapstructure:"useSSL"`
			BaseURL         string `mapstructure:"baseURL"`
			PathPrefix      string `mapstructure:"pathPrefix"`
		} `mapstructure:"object"`
	} `mapstructure:"storage"`

	Retry struct {
		MaxAttempts   int           `mapstructure:"maxAttempts"`
		DelayMs       int           `mapstructure:"delayMs"`
		UploadTimeout time.Duration `mapstructure:"uploadTimeout"`
	} `mapstructure:"retry"`

	Seed struct {
		PublicDir string   `mapstructure:"publicDir"`
		Dirs      []string `mapstructure:"dirs"`
		Workers   int      `mapstructure:"workers"`
		// Schedule 为空时不启用定时导入
		Schedule  string `mapstructure:"schedule"`
		OnStartup bool   `mapstructure:"onStartup"`
	} `mapstructure:"seed"`

	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`

	API struct {
		BasePath        string        `mapstructure:"basePath"`
		RateLimit       int           `mapstructure:"rateLimit"`
		RateLimitWindow time.Duration `mapstructure:"rateLimitWindow"`
	} `mapstructure:"api"`

	Debug bool `mapstructure:"debug"`
}

// RetryDelay 重试间隔
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelayMs) * time.Millisecond
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Storage.Object.Enabled {
		if c.Storage.Object.AccessKeyID == "" || c.Storage.Object.SecretAccessKey == "" {
			logrus.Warn("对象存储已启用，但未提供访问凭证。这可能导致连接失败。")
		}
		if c.Storage.Object.Endpoint == "" {
			return errors.New("对象存储已启用，但未提供服务地址")
		}
		if c.Storage.Object.BucketName == "" {
			return errors.New("对象存储已启用，但未提供桶名称")
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.maxAttempts 必须大于0: %d", c.Retry.MaxAttempts)
	}
	if c.Retry.DelayMs < 0 {
		return fmt.Errorf("retry.delayMs 不能为负数: %d", c.Retry.DelayMs)
	}
	if c.API.RateLimit < 1 || c.API.RateLimitWindow <= 0 {
		return fmt.Errorf("无效的速率限制: %d/%v", c.API.RateLimit, c.API.RateLimitWindow)
	}
	return nil
}

var (
	// AppConfig 全局配置
	AppConfig Config

	// ConfigDir 配置文件目录
	ConfigDir = "./config"
)

func setDefaults() {
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.host", "0.0.0.0")

	// 本地存储默认配置
	viper.SetDefault("storage.local.path", "./cache/media")
	viper.SetDefault("storage.local.baseURL", "http://localhost:3000/media")

	// 对象存储默认配置
	viper.SetDefault("storage.object.enabled", false)
	viper.SetDefault("storage.object.endpoint", "")
	viper.SetDefault("storage.object.accessKeyID", "")
	viper.SetDefault("storage.object.secretAccessKey", "")
	viper.SetDefault("storage.object.bucketName", "media")
	viper.SetDefault("storage.object.region", "us-east-1")
	viper.SetDefault("storage.object.useSSL", true)
	viper.SetDefault("storage.object.baseURL", "")
	viper.SetDefault("storage.object.pathPrefix", "")

	// 重试配置
	viper.SetDefault("retry.maxAttempts", 3)
	viper.SetDefault("retry.delayMs", 300)
	viper.SetDefault("retry.uploadTimeout", "0s")

	// 批量导入配置
	viper.SetDefault("seed.publicDir", "./public")
	viper.SetDefault("seed.dirs", []string{"articles", "certifciate", "images", "illustration", "types"})
	viper.SetDefault("seed.workers", 1)
	viper.SetDefault("seed.schedule", "")
	viper.SetDefault("seed.onStartup", false)

	viper.SetDefault("database.path", "./data/autoecole.db")

	// API配置
	viper.SetDefault("api.basePath", "/api")
	viper.SetDefault("api.rateLimit", 30)
	viper.SetDefault("api.rateLimitWindow", "1m")

	viper.SetDefault("debug", false)
}

// LoadConfig 加载配置文件。先加载 .env，再读取 ConfigDir 下的 config.yaml，
// 环境变量（前缀 AUTOECOLE）优先级最高
func LoadConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("加载 .env 失败: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(ConfigDir)

	// 设置环境变量前缀
	viper.SetEnvPrefix("AUTOECOLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// 尝试读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}

		// 如果配置文件不存在，创建默认配置文件
		if err := os.MkdirAll(ConfigDir, 0755); err != nil {
			return err
		}
		file := filepath.Join(ConfigDir, "config.yaml")
		if err := viper.SafeWriteConfigAs(file); err != nil {
			return err
		}
		log.Printf("已创建默认配置文件: %s", file)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	AppConfig = cfg
	return nil
}

// WatchConfig 监视配置文件变更
func WatchConfig(callback func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		logrus.Infof("配置文件已修改: %s", e.Name)

		cfg, err := ReloadConfig()
		if err != nil {
			logrus.Errorf("%v，忽略此次配置更新", err)
			return
		}
		if callback != nil {
			callback(cfg)
		}
	})

	// 开始监视配置文件
	viper.WatchConfig()
	logrus.Info("已启动配置文件监视")
}

// ReloadConfig 重新读取配置文件。校验失败时保留当前配置
func ReloadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("重新加载配置失败: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	old := AppConfig
	AppConfig = cfg
	logConfigChanges(&old, &cfg)
	return &cfg, nil
}

// logConfigChanges 记录配置更改
func logConfigChanges(old, new *Config) {
	if old.Server.Port != new.Server.Port || old.Server.Host != new.Server.Host {
		logrus.Infof("服务器配置已更改（需重启生效）: %s:%s -> %s:%s",
			old.Server.Host, old.Server.Port, new.Server.Host, new.Server.Port)
	}

	if old.Seed.Schedule != new.Seed.Schedule {
		logrus.Infof("导入计划已更改: %q -> %q", old.Seed.Schedule, new.Seed.Schedule)
	}

	if old.Storage.Object.Enabled != new.Storage.Object.Enabled ||
		old.Storage.Object.Endpoint != new.Storage.Object.Endpoint ||
		old.Storage.Object.BucketName != new.Storage.Object.BucketName {
		logrus.Infof("对象存储配置已更改: %s/%s -> %s/%s",
			old.Storage.Object.Endpoint, old.Storage.Object.BucketName,
			new.Storage.Object.Endpoint, new.Storage.Object.BucketName)
	}

	if old.Retry != new.Retry {
		logrus.Infof("重试配置已更改（需重启生效）: %d次/%dms -> %d次/%dms",
			old.Retry.MaxAttempts, old.Retry.DelayMs, new.Retry.MaxAttempts, new.Retry.DelayMs)
	}
}
