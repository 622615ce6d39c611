package clientv2

import (
	"io"
	"net/http"
	"time"

	"github.com/alex-ant/gomath/rational"
	"go.uber.org/zap"

	"github.com/labsandbox/go-sdk/backoff"
	"github.com/labsandbox/go-sdk/internal/log"
	"github.com/labsandbox/go-sdk/retrier"
)

type RetryConfig struct {
	RetryMax int             // 最大重试次数
	Backoff  backoff.Backoff // 重试时间间隔
	Retrier  retrier.Retrier // 重试器
}

func (c *RetryConfig) init() {
	if c == nil {
		return
	}

	if c.RetryMax < 0 {
		c.RetryMax = 0
	}

	if c.Backoff == nil {
		c.Backoff = backoff.NewLimitedBackoff(
			backoff.NewRandomizedBackoff(backoff.NewExponentialBackoff(200*time.Millisecond, 2), rational.New(1, 2), rational.New(3, 2)),
			100*time.Millisecond, 5*time.Second,
		)
	}

	if c.Retrier == nil {
		c.Retrier = retrier.NewErrorRetrier()
	}
}

type simpleRetryInterceptor struct {
	config RetryConfig
}

func NewSimpleRetryInterceptor(config RetryConfig) Interceptor {
	config.init()
	return &simpleRetryInterceptor{
		config: config,
	}
}

func (r *simpleRetryInterceptor) Priority() InterceptorPriority {
	return InterceptorPriorityRetrySimple
}

func (r *simpleRetryInterceptor) Intercept(req *http.Request, handler Handler) (resp *http.Response, err error) {
	// 不重试
	if r.config.RetryMax == 0 {
		return handler(req)
	}

	start := time.Now()
	// 可能会被重试多次
	for i := 0; ; i++ {
		// Clone 防止后面 Handler 处理对 req 有污染
		reqBefore := req.Clone(req.Context())
		resp, err = handler(req)

		options := retrier.RetrierOptions{Attempts: i + 1, Elapsed: time.Since(start)}
		if r.config.Retrier.Retry(reqBefore, resp, err, &options) != retrier.RetryRequest {
			return resp, err
		}
		if i >= r.config.RetryMax || !isRequestRewindable(reqBefore) {
			break
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		req = reqBefore

		wait := r.config.Backoff.Time(req.Context(), (*backoff.BackoffOptions)(&options))
		log.Debug("retry request",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Int("attempt", i+1),
			zap.Duration("wait", wait),
			zap.Error(err))
		if wait <= time.Millisecond {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
	return resp, err
}

func isRequestRewindable(req *http.Request) bool {
	if req == nil {
		return false
	}

	if req.Body == nil || req.Body == http.NoBody {
		return true
	}

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return false
		}
		req.Body = body
		return true
	}

	seeker, ok := req.Body.(io.Seeker)
	if !ok {
		return false
	}

	_, err := seeker.Seek(0, io.SeekStart)
	return err == nil
}
