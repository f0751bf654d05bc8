package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/ysicing/AutoEcoleMedia/pkg/metrics"
)

// 固定的编码质量
const (
	AVIFQuality = 80
	WEBPQuality = 85
)

// Format 输出图片格式
type Format string

const (
	FormatAVIF Format = "avif"
	FormatWEBP Format = "webp"
)

// Ext 返回带点的扩展名
func (f Format) Ext() string { return "." + string(f) }

// ContentType 返回对应的 MIME 类型
func (f Format) ContentType() string { return "image/" + string(f) }

var (
	ErrConvertFailed = errors.New("avif 与 webp 转换均失败")
	ErrEmptyOutput   = errors.New("编码结果为空")
)

// Encoder 图片编码后端
type Encoder interface {
	// Probe 读取图片元数据，用于轻量校验
	Probe(data []byte) error
	// Encode 将图片重新编码为目标格式
	Encode(data []byte, format Format, quality int) ([]byte, error)
}

// Output 转换结果
type Output struct {
	Data        []byte
	Format      Format
	Passthrough bool
}

// PassthroughFormat 判断文件是否已经是 avif/webp，是则无需重新编码
func PassthroughFormat(name string) (Format, bool) {
	switch strings.ToLower(path.Ext(name)) {
	case ".avif":
		return FormatAVIF, true
	case ".webp":
		return FormatWEBP, true
	}
	return "", false
}

// Converter 把任意图片转换为 avif，失败时回退到 webp
type Converter struct {
	encoder Encoder
	retry   RetryPolicy
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewConverter 创建转换器
func NewConverter(encoder Encoder, retry RetryPolicy, log *zap.SugaredLogger, m *metrics.Metrics) *Converter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Converter{encoder: encoder, retry: retry, log: log, metrics: m}
}

// Convert 转换一张图片。name 只用于判断扩展名和日志
func (c *Converter) Convert(ctx context.Context, data []byte, name string) (Output, error) {
	if f, ok := PassthroughFormat(name); ok {
		if err := c.probe(data); err != nil {
			c.log.Warnf("无法校验 %s 图片，按原样上传: %s: %v", f, name, err)
		}
		return Output{Data: data, Format: f, Passthrough: true}, nil
	}

	targets := []struct {
		format  Format
		quality int
	}{
		{FormatAVIF, AVIFQuality},
		{FormatWEBP, WEBPQuality},
	}

	for _, t := range targets {
		out, err := Retry(ctx, c.retry, fmt.Sprintf("%s %s", t.format, name), c.log, func(context.Context) ([]byte, error) {
			return c.encode(data, t.format, t.quality)
		})
		if err == nil {
			return Output{Data: out, Format: t.format}, nil
		}
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
	}

	return Output{}, fmt.Errorf("%w: %s", ErrConvertFailed, name)
}

func (c *Converter) probe(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("读取元数据异常: %v", r)
		}
	}()
	return c.encoder.Probe(data)
}

func (c *Converter) encode(data []byte, format Format, quality int) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("编码异常: %v", r)
		}
		if c.metrics != nil {
			result := "success"
			if err != nil {
				result = "failure"
			}
			c.metrics.EncodeAttempts.WithLabelValues(string(format), result).Inc()
		}
	}()

	out, err = c.encoder.Encode(data, format, quality)
	if err == nil && len(out) == 0 {
		err = ErrEmptyOutput
	}
	return out, err
}
