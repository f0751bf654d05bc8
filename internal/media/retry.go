package media

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// 默认重试策略：每种格式最多3次，间隔300ms
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 300 * time.Millisecond
)

// RetryPolicy 固定间隔重试策略
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy 返回默认重试策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: DefaultAttempts, Delay: DefaultRetryDelay}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1))
	return backoff.WithContext(b, ctx)
}

// Retry 按策略执行 op，首次成功即返回；每次失败都会记录尝试序号。
// 用 backoff.Permanent 包装的错误不再重试。
func Retry[T any](ctx context.Context, p RetryPolicy, label string, log *zap.SugaredLogger, op func(context.Context) (T, error)) (T, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	total := p.Attempts
	if total <= 0 {
		total = 1
	}

	attempt := 0
	return backoff.RetryWithData(func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err != nil {
			log.Warnf("%s 第 %d/%d 次尝试失败: %v", label, attempt, total, err)
		}
		return v, err
	}, p.backOff(ctx))
}
