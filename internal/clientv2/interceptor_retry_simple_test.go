//go:build unit
// +build unit

package clientv2

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/labsandbox/go-sdk/backoff"
	"github.com/labsandbox/go-sdk/retrier"
)

func alwaysRetry() retrier.Retrier {
	return retrier.NewRetrier(func(*http.Request, *http.Response, error, *retrier.RetrierOptions) retrier.RetryDecision {
		return retrier.RetryRequest
	})
}

func countingInterceptor(doCount *int) Interceptor {
	return NewSimpleInterceptor(func(req *http.Request, handler Handler) (*http.Response, error) {
		*doCount += 1

		value := req.Header.Get(headerKey)
		value += " -> request"
		req.Header.Set(headerKey, value)

		resp, err := handler(req)

		value = resp.Header.Get(headerKey)
		value += " -> response"
		resp.Header.Set(headerKey, value)
		return resp, err
	})
}

func TestSimpleAlwaysRetryInterceptor(t *testing.T) {
	retryMax := 1
	rInterceptor := NewSimpleRetryInterceptor(RetryConfig{
		RetryMax: retryMax,
		Backoff:  backoff.NewFixedBackoff(200 * time.Millisecond),
		Retrier:  alwaysRetry(),
	})

	doCount := 0
	c := NewClient(&testClient{}, rInterceptor, countingInterceptor(&doCount))

	start := time.Now()
	resp, _ := Do(c, RequestParams{
		Url: "https://cs.example.com",
	})
	duration := time.Since(start)

	if duration < 200*time.Millisecond || duration > time.Second {
		t.Fatalf("retry interval may be error: %s", duration)
	}

	if (retryMax + 1) != doCount {
		t.Fatalf("retry count is not 2")
	}

	value := resp.Header.Get(headerKey)
	if value != " -> request -> Do -> response" {
		t.Fatalf("retry flow error: %s", value)
	}
}

func TestSimpleNotRetryInterceptor(t *testing.T) {
	rInterceptor := NewSimpleRetryInterceptor(RetryConfig{
		RetryMax: 1,
		Backoff:  backoff.NewFixedBackoff(time.Second),
		// 默认重试器不重试 400
	})

	doCount := 0
	c := NewClient(&testClient{statusCode: 400}, rInterceptor, countingInterceptor(&doCount))

	start := time.Now()
	resp, _ := Do(c, RequestParams{
		Url: "https://cs.example.com",
	})

	// 不重试，只执行一次，不等待
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("retry interval may be error")
	}

	if doCount != 1 {
		t.Fatalf("retry count is not 1")
	}

	value := resp.Header.Get(headerKey)
	if value != " -> request -> Do -> response" {
		t.Fatalf("retry flow error")
	}
}

func TestSimpleRetryDefaultRetrierSkipsPost(t *testing.T) {
	rInterceptor := NewSimpleRetryInterceptor(RetryConfig{
		RetryMax: 3,
		Backoff:  backoff.NewFixedBackoff(0),
	})

	doCount := 0
	c := NewClient(&testClient{statusCode: http.StatusServiceUnavailable}, rInterceptor, countingInterceptor(&doCount))
	if _, err := Do(c, RequestParams{Method: RequestMethodPost, Url: "https://cs.example.com/api/v2/blueprints/bp/start"}); err == nil {
		t.Fatal("expected response error")
	}
	if doCount != 1 {
		t.Fatalf("post should not be retried, got %d attempts", doCount)
	}

	doCount = 0
	if _, err := Do(c, RequestParams{Method: RequestMethodGet, Url: "https://cs.example.com/api/v2/sandboxes"}); err == nil {
		t.Fatal("expected response error")
	}
	if doCount != 4 {
		t.Fatalf("get should be retried 3 times, got %d attempts", doCount)
	}
}

func TestSimpleRetryInterceptorCancelled(t *testing.T) {
	rInterceptor := NewSimpleRetryInterceptor(RetryConfig{
		RetryMax: 5,
		Backoff:  backoff.NewFixedBackoff(time.Hour),
		Retrier:  alwaysRetry(),
	})
	doCount := 0
	c := NewClient(&testClient{}, rInterceptor, countingInterceptor(&doCount))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := Do(c, RequestParams{Context: ctx, Url: "https://cs.example.com"})
	if err != context.DeadlineExceeded {
		t.Fatalf("unexpected error: %v", err)
	}
	if doCount != 1 {
		t.Fatalf("unexpected attempts: %d", doCount)
	}
}
