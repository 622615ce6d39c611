// Package retrier 判断一次 HTTP 请求失败后是否值得重试。
package retrier

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/labsandbox/go-sdk/backoff"
)

type (
	// RetryDecision 重试决策
	RetryDecision int
	// RetrierOptions 重试器选项
	RetrierOptions backoff.BackoffOptions

	// Retrier 重试器接口
	Retrier interface {
		// Retry 根据响应和错误给出重试决策
		Retry(*http.Request, *http.Response, error, *RetrierOptions) RetryDecision
	}

	// StatusCoder 由携带 HTTP 状态码的错误实现
	StatusCoder interface {
		HTTPStatusCode() int
	}

	neverRetrier      struct{}
	errorRetrier      struct{}
	customizedRetrier struct {
		retryFn func(*http.Request, *http.Response, error, *RetrierOptions) RetryDecision
	}
)

const (
	// 不再重试
	DontRetry RetryDecision = iota

	// 重试当前请求
	RetryRequest
)

// NewRetrier 创建自定义重试器
func NewRetrier(fn func(*http.Request, *http.Response, error, *RetrierOptions) RetryDecision) Retrier {
	return customizedRetrier{retryFn: fn}
}

func (retrier customizedRetrier) Retry(request *http.Request, response *http.Response, err error, options *RetrierOptions) RetryDecision {
	return retrier.retryFn(request, response, err, options)
}

// NewNeverRetrier 创建从不重试的重试器
func NewNeverRetrier() Retrier {
	return neverRetrier{}
}

func (neverRetrier) Retry(*http.Request, *http.Response, error, *RetrierOptions) RetryDecision {
	return DontRetry
}

// NewErrorRetrier 创建默认的错误重试器。
// 只有幂等请求会被重试：启动沙箱、执行命令等 POST 请求重复发送会产生副作用。
func NewErrorRetrier() Retrier {
	return errorRetrier{}
}

func (errorRetrier) Retry(request *http.Request, response *http.Response, err error, _ *RetrierOptions) RetryDecision {
	if !IsRequestIdempotent(request) {
		return DontRetry
	}
	if isResponseRetryable(response) {
		return RetryRequest
	} else if err == nil {
		return DontRetry
	}
	return getRetryDecisionForError(err)
}

// IsRequestIdempotent 判断请求方法是否幂等
func IsRequestIdempotent(request *http.Request) bool {
	if request == nil {
		return false
	}
	switch request.Method {
	case "", http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

func isResponseRetryable(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	return IsStatusCodeRetryable(resp.StatusCode)
}

func IsStatusCodeRetryable(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func IsErrorRetryable(err error) bool {
	return getRetryDecisionForError(err) == RetryRequest
}

func getRetryDecisionForError(err error) RetryDecision {
	if err == nil {
		return DontRetry
	}

	tryToUnwrapUnderlyingError := func(err error) (error, bool) {
		switch err := err.(type) {
		case *os.SyscallError:
			return err.Err, true
		case *url.Error:
			return err.Err, true
		case *net.OpError:
			return err.Err, true
		}
		return err, false
	}
	unwrapUnderlyingError := func(err error) error {
		ok := true
		for ok {
			err, ok = tryToUnwrapUnderlyingError(err)
		}
		return err
	}

	unwrapedErr := unwrapUnderlyingError(err)
	if errors.Is(unwrapedErr, context.DeadlineExceeded) || errors.Is(unwrapedErr, context.Canceled) {
		return DontRetry
	} else if os.IsTimeout(unwrapedErr) {
		return RetryRequest
	} else if _, ok := unwrapedErr.(*net.DNSError); ok {
		return RetryRequest
	} else if errno, ok := unwrapedErr.(syscall.Errno); ok {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNABORTED, syscall.ECONNRESET:
			return RetryRequest
		default:
			return DontRetry
		}
	}

	var coder StatusCoder
	if errors.As(err, &coder) {
		if IsStatusCodeRetryable(coder.HTTPStatusCode()) {
			return RetryRequest
		}
		return DontRetry
	}

	desc := unwrapedErr.Error()
	if strings.Contains(desc, "use of closed network connection") ||
		strings.Contains(desc, "unexpected EOF reading trailer") ||
		strings.Contains(desc, "transport connection broken") ||
		strings.Contains(desc, "server closed idle connection") {
		return RetryRequest
	}
	return DontRetry
}
