package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	// 每个窗口允许的请求数
	Limit int
	// 限制窗口，如1分钟
	WindowSize time.Duration
	// 清理过期客户端的间隔
	CleanupInterval time.Duration
	// 客户端视为过期的时间
	ExpiryDuration time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按客户端IP限流，用于上传和手动导入接口
type RateLimiter struct {
	cfg     RateLimitConfig
	log     *zap.SugaredLogger
	mu      sync.Mutex
	clients map[string]*clientLimiter
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter 创建限流器并启动过期清理协程
func NewRateLimiter(cfg RateLimitConfig, log *zap.SugaredLogger) *RateLimiter {
	// 默认清理间隔：5分钟
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	// 默认过期时间：1小时
	if cfg.ExpiryDuration == 0 {
		cfg.ExpiryDuration = time.Hour
	}
	if cfg.Limit < 1 {
		cfg.Limit = 1
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = time.Minute
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	rl := &RateLimiter{
		cfg:     cfg,
		log:     log,
		clients: make(map[string]*clientLimiter),
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop 停止清理协程
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			if n := rl.cleanup(now); n > 0 {
				rl.log.Debugf("已清理 %d 个过期的速率限制器", n)
			}
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	expired := 0
	for ip, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.cfg.ExpiryDuration {
			delete(rl.clients, ip)
			expired++
		}
	}
	return expired
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	c, ok := rl.clients[ip]
	if !ok {
		c = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(rl.cfg.WindowSize/time.Duration(rl.cfg.Limit)), rl.cfg.Limit),
		}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	rl.mu.Unlock()

	return c.limiter.Allow()
}

// Handler gin 中间件
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	retryAfter := int(rl.cfg.WindowSize.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !rl.allow(clientIP) {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			rl.log.Warnf("客户端 %s 已超过速率限制", clientIP)
			return
		}

		c.Next()
	}
}
