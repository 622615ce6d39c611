package sandbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/labsandbox/go-sdk/backoff"
)

const (
	// DefaultPollInterval 默认轮询间隔
	DefaultPollInterval = 30 * time.Second
	// DefaultMaxWait 默认最长等待时间
	DefaultMaxWait = 20 * time.Minute
)

// PollOption 配置轮询行为的选项。
type PollOption func(*pollOpts)

type pollOpts struct {
	backoff backoff.Backoff
	maxWait time.Duration
	onPoll  func(attempt int)
	logger  *zap.Logger
}

func newPollOpts(opts []PollOption) *pollOpts {
	o := &pollOpts{
		backoff: backoff.NewFixedBackoff(DefaultPollInterval),
		maxWait: DefaultMaxWait,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithPollInterval 设置固定的轮询间隔，0 表示不等待立即进行下一次获取。
func WithPollInterval(d time.Duration) PollOption {
	return func(o *pollOpts) {
		if d < 0 {
			d = 0
		}
		o.backoff = backoff.NewFixedBackoff(d)
	}
}

// WithMaxWait 设置从第一次获取开始计算的最长等待时间。
func WithMaxWait(d time.Duration) PollOption {
	return func(o *pollOpts) { o.maxWait = d }
}

// WithBackoff 使用自定义退避策略计算每次轮询之间的间隔，会覆盖 WithPollInterval。
func WithBackoff(b backoff.Backoff) PollOption {
	return func(o *pollOpts) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithOnPoll 设置每次轮询时的回调函数。
// attempt 从 1 开始递增。
func WithOnPoll(fn func(attempt int)) PollOption {
	return func(o *pollOpts) { o.onPoll = fn }
}

// WithPollLogger 设置轮询过程使用的日志记录器
func WithPollLogger(logger *zap.Logger) PollOption {
	return func(o *pollOpts) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Poll 反复调用 fetch，直到 shouldContinue 对获取到的值返回 false，并返回该值。
//
// fetch 返回的错误会立即终止轮询并原样返回。
// 超过最长等待时间仍需继续时返回 *PollingTimeoutError，其中 Last 为最后一次获取到的值。
// 每次等待都会被裁剪到剩余的等待时间内，ctx 取消时返回 ctx.Err()。
func Poll[T any](ctx context.Context, fetch func(context.Context) (T, error), shouldContinue func(T) bool, opts ...PollOption) (T, error) {
	return pollLoop(ctx, newPollOpts(opts), fetch, shouldContinue)
}

func pollLoop[T any](ctx context.Context, opts *pollOpts, fetch func(context.Context) (T, error), shouldContinue func(T) bool) (T, error) {
	var (
		zero     T
		timer    *time.Timer
		start    = time.Now()
		deadline = start.Add(opts.maxWait)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		attempt++
		if opts.onPoll != nil {
			opts.onPoll(attempt)
		}

		value, err := fetch(ctx)
		if err != nil {
			return zero, err
		}
		if !shouldContinue(value) {
			return value, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			opts.logger.Debug("polling timed out",
				zap.Int("attempts", attempt),
				zap.Duration("max_wait", opts.maxWait),
			)
			return zero, &PollingTimeoutError{MaxWait: opts.maxWait, Attempts: attempt, Last: value}
		}

		wait := opts.backoff.Time(ctx, &backoff.BackoffOptions{Attempts: attempt, Elapsed: time.Since(start)})
		if wait > remaining {
			wait = remaining
		}
		if wait <= 0 {
			continue
		}

		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
