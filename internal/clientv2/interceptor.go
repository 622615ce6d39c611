package clientv2

import (
	"net/http"
	"sort"
)

// InterceptorPriority 决定拦截器在调用链中的位置，数字越小越靠外层，越先看到请求。
//
// 沙箱客户端的调用链从外到内依次为：
// 重试（每次重试都重新经过内层）→ 默认请求头 → X-Request-Id（每次尝试生成新的 ID）→
// 调用方自定义拦截器 → 令牌鉴权（登录接口跳过）→ 调试输出（看到最终发出的请求）。
type InterceptorPriority int

const (
	InterceptorPriorityDefault     InterceptorPriority = 100
	InterceptorPriorityRetrySimple InterceptorPriority = 300
	InterceptorPrioritySetHeader   InterceptorPriority = 400
	InterceptorPriorityRequestID   InterceptorPriority = 450
	InterceptorPriorityNormal      InterceptorPriority = 500
	InterceptorPriorityAuth        InterceptorPriority = 600
	InterceptorPriorityDebug       InterceptorPriority = 700
)

// Interceptor 包装一次 HTTP 调用，可以修改请求、重复调用 handler 或改写响应
type Interceptor interface {
	Priority() InterceptorPriority
	Intercept(req *http.Request, handler Handler) (*http.Response, error)
}

// InterceptorFunc 拦截处理函数
type InterceptorFunc func(req *http.Request, handler Handler) (*http.Response, error)

type funcInterceptor struct {
	priority InterceptorPriority
	fn       InterceptorFunc
}

func (f *funcInterceptor) Priority() InterceptorPriority {
	return f.priority
}

func (f *funcInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	if f.fn == nil {
		return handler(req)
	}
	return f.fn(req, handler)
}

// NewSimpleInterceptor 以 InterceptorPriorityNormal 创建拦截器，位于请求 ID 之后、鉴权之前
func NewSimpleInterceptor(fn InterceptorFunc) Interceptor {
	return NewSimpleInterceptorWithPriority(InterceptorPriorityNormal, fn)
}

// NewSimpleInterceptorWithPriority 以指定优先级创建拦截器，非正数使用 InterceptorPriorityDefault
func NewSimpleInterceptorWithPriority(priority InterceptorPriority, fn InterceptorFunc) Interceptor {
	if priority <= 0 {
		priority = InterceptorPriorityDefault
	}
	return &funcInterceptor{priority: priority, fn: fn}
}

// chain 将拦截器按优先级包在 core 外面，优先级相同时先注册的在外层
func chain(core Handler, interceptors []Interceptor) Handler {
	ordered := make([]Interceptor, 0, len(interceptors))
	for _, interceptor := range interceptors {
		if interceptor != nil {
			ordered = append(ordered, interceptor)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	handler := core
	for i := len(ordered) - 1; i >= 0; i-- {
		interceptor, next := ordered[i], handler
		handler = func(req *http.Request) (*http.Response, error) {
			return interceptor.Intercept(req, next)
		}
	}
	return handler
}
