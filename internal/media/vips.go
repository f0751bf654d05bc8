package media

import (
	"fmt"
	"runtime"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"
	"go.uber.org/zap"
)

var vipsOnce sync.Once

// VipsConfig libvips 后端配置
type VipsConfig struct {
	MaxWorkers   int
	MaxCacheSize int
}

// VipsEncoder 基于 libvips 的编码器，可并发使用
type VipsEncoder struct{}

// NewVipsEncoder 初始化 libvips，进程退出前调用 Shutdown
func NewVipsEncoder(cfg VipsConfig, log *zap.SugaredLogger) *VipsEncoder {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	vipsOnce.Do(func() {
		if log != nil {
			govips.LoggingSettings(func(domain string, level govips.LogLevel, msg string) {
				log.Debugf("[%s] %s", domain, msg)
			}, govips.LogLevelWarning)
		}
		govips.Startup(&govips.Config{
			ConcurrencyLevel: cfg.MaxWorkers,
			MaxCacheSize:     cfg.MaxCacheSize,
		})
	})
	return &VipsEncoder{}
}

// Shutdown 释放 libvips 资源
func (e *VipsEncoder) Shutdown() {
	govips.Shutdown()
}

// Probe 解码头部并检查尺寸
func (e *VipsEncoder) Probe(data []byte) error {
	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return err
	}
	defer ref.Close()

	if ref.Width() <= 0 || ref.Height() <= 0 {
		return fmt.Errorf("无效的图片尺寸 %dx%d", ref.Width(), ref.Height())
	}
	return nil
}

// Encode 重新编码为 avif 或 webp
func (e *VipsEncoder) Encode(data []byte, format Format, quality int) ([]byte, error) {
	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %w", err)
	}
	defer ref.Close()

	switch format {
	case FormatAVIF:
		ep := govips.NewAvifExportParams()
		ep.Quality = quality
		buf, _, err := ref.ExportAvif(ep)
		if err != nil {
			return nil, fmt.Errorf("导出 avif 失败: %w", err)
		}
		return buf, nil

	case FormatWEBP:
		ep := govips.NewWebpExportParams()
		ep.Quality = quality
		buf, _, err := ref.ExportWebp(ep)
		if err != nil {
			return nil, fmt.Errorf("导出 webp 失败: %w", err)
		}
		return buf, nil

	default:
		return nil, fmt.Errorf("不支持的输出格式: %s", format)
	}
}

var _ Encoder = (*VipsEncoder)(nil)
