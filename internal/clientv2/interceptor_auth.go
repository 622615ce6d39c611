package clientv2

import (
	"net/http"
	"strings"
)

// TokenSource 提供当前有效的访问令牌
type TokenSource interface {
	Token() string
}

// TokenSourceFunc 将函数适配为 TokenSource
type TokenSourceFunc func() string

func (f TokenSourceFunc) Token() string {
	return f()
}

type AuthConfig struct {
	// 令牌来源
	TokenSource TokenSource
	// 授权头的类型前缀，默认为 Basic
	Scheme string
	// 无需鉴权的路径后缀，例如登录接口
	SkipPaths []string
	// 签名前回调函数
	BeforeSign func(*http.Request)
	// 签名后回调函数
	AfterSign func(*http.Request)
}

type authInterceptor struct {
	config AuthConfig
}

func NewAuthInterceptor(config AuthConfig) Interceptor {
	if config.Scheme == "" {
		config.Scheme = "Basic"
	}
	return &authInterceptor{
		config: config,
	}
}

func (interceptor *authInterceptor) Priority() InterceptorPriority {
	return InterceptorPriorityAuth
}

func (interceptor *authInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	if interceptor == nil || req == nil || interceptor.config.TokenSource == nil || interceptor.skip(req) {
		return handler(req)
	}

	token := interceptor.config.TokenSource.Token()
	if token == "" {
		return handler(req)
	}

	if interceptor.config.BeforeSign != nil {
		interceptor.config.BeforeSign(req)
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set("Authorization", interceptor.config.Scheme+" "+token)
	if interceptor.config.AfterSign != nil {
		interceptor.config.AfterSign(req)
	}

	return handler(req)
}

func (interceptor *authInterceptor) skip(req *http.Request) bool {
	if req.URL == nil {
		return false
	}
	for _, p := range interceptor.config.SkipPaths {
		if strings.HasSuffix(req.URL.Path, p) {
			return true
		}
	}
	return false
}
