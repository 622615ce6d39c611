package clientv2

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	internal_io "github.com/labsandbox/go-sdk/internal/io"
)

type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

type Handler func(req *http.Request) (*http.Response, error)

type client struct {
	handler Handler
}

// NewClient 在 cli 外组装拦截器链，cli 为 nil 时使用 http.DefaultClient。
// 默认请求头和调试输出拦截器总是存在。
func NewClient(cli Client, interceptors ...Interceptor) Client {
	if cli == nil {
		cli = http.DefaultClient
	}

	all := make([]Interceptor, 0, len(interceptors)+2)
	all = append(all, interceptors...)
	all = append(all, newDefaultHeaderInterceptor(), newDebugInterceptor())

	return &client{handler: chain(cli.Do, all)}
}

func (c *client) Do(req *http.Request) (*http.Response, error) {
	return c.handler(req)
}

// ResponseError 表示服务端返回了非 2xx 响应，Body 为完整的响应内容
type ResponseError struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, string(e.Body))
}

func (e *ResponseError) HTTPStatusCode() int {
	return e.StatusCode
}

func Do(c Client, options RequestParams) (*http.Response, error) {
	req, err := NewRequest(options)
	if err != nil {
		return nil, err
	}

	return handleResponseAndError(c.Do(req))
}

func handleResponseAndError(resp *http.Response, err error) (*http.Response, error) {
	if err != nil {
		return resp, err
	}

	if resp == nil {
		return nil, fmt.Errorf("unknown error, no response")
	}

	if resp.StatusCode/100 != 2 {
		respErr := &ResponseError{StatusCode: resp.StatusCode}
		if resp.Body != nil {
			respErr.Body, _ = internal_io.ReadAll(resp.Body)
			resp.Body.Close()
			resp.Body = internal_io.NewBytesNopCloser(respErr.Body)
		}
		if resp.Request != nil {
			respErr.RequestID = resp.Request.Header.Get(HeaderRequestID)
		}
		return resp, respErr
	}

	return resp, nil
}

// DoAndDecodeJsonResponse 发送请求并将 JSON 响应解码到 ret，ret 为 nil 时丢弃响应内容
func DoAndDecodeJsonResponse(c Client, options RequestParams, ret interface{}) error {
	resp, err := Do(c, options)
	defer func() {
		if resp != nil && resp.Body != nil {
			internal_io.SinkAll(resp.Body)
			resp.Body.Close()
		}
	}()

	if err != nil {
		return err
	}

	if ret == nil || resp.ContentLength == 0 {
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(ret); err != nil && err != io.EOF {
		return err
	}

	return nil
}

// DoAndReadResponse 发送请求并返回完整的响应内容
func DoAndReadResponse(c Client, options RequestParams) ([]byte, error) {
	resp, err := Do(c, options)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return internal_io.ReadAll(resp.Body)
}
