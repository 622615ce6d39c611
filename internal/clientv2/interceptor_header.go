package clientv2

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/labsandbox/go-sdk/conf"
)

const HeaderRequestID = "X-Request-Id"

type defaultHeaderInterceptor struct{}

func newDefaultHeaderInterceptor() Interceptor {
	return &defaultHeaderInterceptor{}
}

func (interceptor *defaultHeaderInterceptor) Priority() InterceptorPriority {
	return InterceptorPrioritySetHeader
}

func (interceptor *defaultHeaderInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	if req == nil {
		return handler(req)
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", conf.UserAgent())
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", conf.CONTENT_TYPE_JSON)
	}
	return handler(req)
}

type requestIDInterceptor struct {
	generate func() string
}

// NewRequestIDInterceptor 为每次发送（包括重试）生成新的 X-Request-Id，便于与服务端日志对应
func NewRequestIDInterceptor() Interceptor {
	return &requestIDInterceptor{generate: func() string { return uuid.NewString() }}
}

func (interceptor *requestIDInterceptor) Priority() InterceptorPriority {
	return InterceptorPriorityRequestID
}

func (interceptor *requestIDInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	if req == nil {
		return handler(req)
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set(HeaderRequestID, interceptor.generate())
	return handler(req)
}
