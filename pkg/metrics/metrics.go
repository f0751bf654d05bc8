package metrics

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 应用指标集合
type Metrics struct {
	// 错误计数器
	Errors *prometheus.CounterVec

	// 转换后的图片大小
	ImageSize prometheus.Histogram

	// 存储耗时
	StorageDuration *prometheus.HistogramVec

	// 编码尝试次数，按格式和结果区分
	EncodeAttempts *prometheus.CounterVec

	// 处理成功的图片数，按输出格式区分
	ImagesProcessed *prometheus.CounterVec

	// 批量导入耗时
	SeedDuration prometheus.Histogram

	// API请求计数
	APIRequests *prometheus.CounterVec

	// API响应时间
	APILatency *prometheus.HistogramVec
}

// NewMetrics 创建新的指标收集器
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		Errors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "错误次数",
			},
			[]string{"type"},
		),

		ImageSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "image_size_bytes",
				Help:      "上传的图片大小（字节）",
				Buckets:   prometheus.ExponentialBuckets(1024, 2, 12), // 从1KB到2MB的指数分布
			},
		),

		StorageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "存储操作耗时（秒）",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),

		EncodeAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "encode_attempts_total",
				Help:      "图片编码尝试次数",
			},
			[]string{"format", "result"},
		),

		ImagesProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "images_processed_total",
				Help:      "处理成功的图片数",
			},
			[]string{"format"},
		),

		SeedDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "seed_duration_seconds",
				Help:      "批量导入耗时（秒）",
				Buckets:   prometheus.LinearBuckets(1, 10, 10), // 从1秒到91秒的线性分布
			},
		),

		APIRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "API请求次数",
			},
			[]string{"method", "path", "status"},
		),

		APILatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "API响应时间（秒）",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	return m
}

// IncError 记录一次错误，m 为 nil 时忽略
func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(kind).Inc()
}

// MetricsMiddleware Gin中间件，用于收集API指标
func MetricsMiddleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// 继续处理请求
		c.Next()

		// 忽略健康检查端点的指标收集
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			return
		}

		// 使用路由模板，避免路径参数造成标签爆炸
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.APIRequests.WithLabelValues(
			c.Request.Method,
			path,
			fmt.Sprintf("%d", c.Writer.Status()),
		).Inc()

		metrics.APILatency.WithLabelValues(
			c.Request.Method,
			path,
		).Observe(time.Since(start).Seconds())
	}
}
