package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ysicing/AutoEcoleMedia/pkg/metrics"
	"github.com/ysicing/AutoEcoleMedia/pkg/storage"
	"github.com/ysicing/AutoEcoleMedia/pkg/utils"
)

// ErrEmptySource 源文件为空
var ErrEmptySource = errors.New("源文件为空")

// Reason 单张图片处理失败的原因
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonEmptySource Reason = "empty_source"
	ReasonUnreadable  Reason = "unreadable_source"
	ReasonConvert     Reason = "convert_failed"
	ReasonUpload      Reason = "upload_failed"
	ReasonInternal    Reason = "internal_error"
)

// Result 单张图片的处理结果。失败时 Reason 非空，URL 为空
type Result struct {
	LogicalPath string
	Key         string
	URL         string
	Format      Format
	Passthrough bool
	Reason      Reason
	Err         error
}

// OK 是否处理成功
func (r Result) OK() bool {
	return r.Reason == ReasonNone && r.URL != ""
}

// Options 规范化器选项
type Options struct {
	Encoder Encoder
	Storage storage.Provider
	Retry   RetryPolicy
	// UploadTimeout 大于0时限制单次上传耗时
	UploadTimeout time.Duration
	Logger        *zap.SugaredLogger
	Metrics       *metrics.Metrics
}

// Normalizer 图片规范化流水线：读取 -> 转换 -> 推导 key -> 上传 -> 返回公开URL。
// 单张图片的任何失败都记录日志并以 Result 返回，不会向调用方抛出。
type Normalizer struct {
	converter     *Converter
	storage       storage.Provider
	uploadTimeout time.Duration
	log           *zap.SugaredLogger
	metrics       *metrics.Metrics

	now    func() time.Time
	suffix func() string
}

// NewNormalizer 创建规范化器
func NewNormalizer(opts Options) *Normalizer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}

	return &Normalizer{
		converter:     NewConverter(opts.Encoder, opts.Retry, opts.Logger, opts.Metrics),
		storage:       opts.Storage,
		uploadTimeout: opts.UploadTimeout,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		now:           time.Now,
		suffix:        randomSuffix,
	}
}

// randomSuffix 7位随机后缀
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
}

// ProcessFile 处理磁盘上的图片（批量导入）。relPath 为相对于公开目录的逻辑路径
func (n *Normalizer) ProcessFile(ctx context.Context, absPath, relPath string) (res Result) {
	logical := utils.NormalizePath(relPath)
	defer n.recoverInto(&res, logical)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return n.fail(logical, ReasonUnreadable, err)
	}
	return n.process(ctx, data, logical)
}

// ProcessBuffer 处理上传的文件内容（交互上传）。
// 先合成唯一的逻辑路径 {folder}/{base}-{毫秒时间戳}-{随机后缀}.{扩展名}，避免同名覆盖。
func (n *Normalizer) ProcessBuffer(ctx context.Context, data []byte, originalName, folder string) (res Result) {
	logical := n.UniquePath(originalName, folder)
	defer n.recoverInto(&res, logical)

	return n.process(ctx, data, logical)
}

// UniquePath 为上传文件合成逻辑路径
func (n *Normalizer) UniquePath(originalName, folder string) string {
	name := path.Base(utils.NormalizePath(originalName))
	if name == "." || name == "/" {
		name = ""
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base = "image"
	}

	unique := fmt.Sprintf("%s-%d-%s", base, n.now().UnixMilli(), n.suffix())
	logical := unique + strings.ToLower(ext)
	if folder = strings.Trim(folder, "/"); folder != "" {
		logical = folder + "/" + logical
	}
	return logical
}

func (n *Normalizer) process(ctx context.Context, data []byte, logical string) Result {
	if len(data) == 0 {
		return n.fail(logical, ReasonEmptySource, ErrEmptySource)
	}

	out, err := n.converter.Convert(ctx, data, logical)
	if err != nil {
		return n.fail(logical, ReasonConvert, err)
	}

	key := StoragePath(logical, out.Format)

	uctx, cancel := ctx, context.CancelFunc(func() {})
	if n.uploadTimeout > 0 {
		uctx, cancel = context.WithTimeout(ctx, n.uploadTimeout)
	}
	defer cancel()

	start := time.Now()
	stored, err := n.storage.Upload(uctx, key, bytes.NewReader(out.Data), int64(len(out.Data)), storage.UploadOptions{
		ContentType: out.Format.ContentType(),
		Upsert:      true,
	})
	if err != nil {
		return n.fail(logical, ReasonUpload, err)
	}

	if n.metrics != nil {
		n.metrics.StorageDuration.WithLabelValues(n.storage.Name()).Observe(time.Since(start).Seconds())
		n.metrics.ImageSize.Observe(float64(len(out.Data)))
		n.metrics.ImagesProcessed.WithLabelValues(string(out.Format)).Inc()
	}

	url := n.storage.PublicURL(stored)
	n.log.Debugf("图片已上传: %s -> %s", logical, url)

	return Result{
		LogicalPath: logical,
		Key:         stored,
		URL:         url,
		Format:      out.Format,
		Passthrough: out.Passthrough,
	}
}

func (n *Normalizer) fail(logical string, reason Reason, err error) Result {
	n.log.Warnf("跳过图片 %s (%s): %v", logical, reason, err)
	n.metrics.IncError(string(reason))
	return Result{LogicalPath: logical, Reason: reason, Err: err}
}

func (n *Normalizer) recoverInto(res *Result, logical string) {
	if r := recover(); r != nil {
		*res = n.fail(logical, ReasonInternal, fmt.Errorf("处理异常: %v", r))
	}
}
