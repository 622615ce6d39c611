package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labsandbox/go-sdk/internal/clientv2"
)

var (
	// ErrPollingTimeout 所有轮询超时错误都可以用 errors.Is 匹配到它
	ErrPollingTimeout = errors.New("polling timeout")
	// ErrOrchestrationPollingTimeout Setup 或 Teardown 编排在限定时间内没有结束
	ErrOrchestrationPollingTimeout = errors.New("orchestration polling timeout")
	// ErrCommandPollingTimeout 命令执行在限定时间内没有结束
	ErrCommandPollingTimeout = errors.New("command polling timeout")

	ErrSetupFailed            = errors.New("sandbox setup failed")
	ErrTeardownFailed         = errors.New("sandbox teardown failed")
	ErrCommandExecutionFailed = errors.New("command execution failed")

	ErrNoSandboxID = errors.New("no sandbox id")
	// ErrSandboxNotReady 沙箱不是 Ready 状态时拒绝执行命令
	ErrSandboxNotReady = errors.New("sandbox not ready")
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrInvalidParams   = errors.New("invalid params")
	ErrInvalidToken    = errors.New("invalid token")
	// ErrStopRejected 服务端没有接受停止沙箱的请求
	ErrStopRejected = errors.New("stop sandbox rejected")
)

// APIError 表示 API 返回的非预期 HTTP 响应。
type APIError struct {
	StatusCode int
	Body       []byte

	// Code 是从响应 body 中解析出的错误码（如果有）。
	Code string
	// Message 是从响应 body 中解析出的错误消息（如果有）。
	Message string
	// RequestID 是请求携带的 X-Request-Id
	RequestID string
}

// Error 实现 error 接口。
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status %d, body: %s", e.StatusCode, string(e.Body))
}

// HTTPStatusCode 返回 HTTP 状态码
func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// newAPIError 创建 APIError 并尝试从 JSON body 中解析结构化字段。
func newAPIError(statusCode int, body []byte) *APIError {
	e := &APIError{StatusCode: statusCode, Body: body}
	e.Code, e.Message = parseAPIErrorBody(body)
	return e
}

// parseAPIErrorBody 尝试从 JSON body 中解析错误码和错误消息。
func parseAPIErrorBody(body []byte) (code, message string) {
	if len(body) == 0 {
		return "", ""
	}
	var parsed struct {
		Code      string `json:"code"`
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
		Error     string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return "", ""
	}
	code = parsed.Code
	if code == "" {
		code = parsed.ErrorCode
	}
	message = parsed.Message
	if message == "" {
		message = parsed.Error
	}
	return code, message
}

// toAPIError 将传输层的响应错误转换为 APIError，其他错误原样返回
func toAPIError(err error) error {
	var respErr *clientv2.ResponseError
	if errors.As(err, &respErr) {
		apiErr := newAPIError(respErr.StatusCode, respErr.Body)
		apiErr.RequestID = respErr.RequestID
		return apiErr
	}
	return err
}

// isNotFoundError 判断错误是否为"未找到"类型。
func isNotFoundError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// PollingTimeoutKind 区分超时发生在沙箱编排还是命令执行
type PollingTimeoutKind int

const (
	TimeoutUnspecified PollingTimeoutKind = iota
	TimeoutOrchestration
	TimeoutCommand
)

func (k PollingTimeoutKind) String() string {
	switch k {
	case TimeoutOrchestration:
		return "orchestration"
	case TimeoutCommand:
		return "command"
	default:
		return "unspecified"
	}
}

// PollingTimeoutError 轮询超过最长等待时间仍未到达终态。
// 表示"没有结束"，与 SetupFailedError 等"结束但失败"的错误区分开。
type PollingTimeoutError struct {
	Kind PollingTimeoutKind
	// Operation 如 setup、teardown、execution
	Operation string
	// ID 沙箱 ID 或执行 ID
	ID       string
	MaxWait  time.Duration
	Attempts int
	// Last 最后一次获取到的值，便于诊断
	Last any
}

func (e *PollingTimeoutError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("polling timed out after %s (%d attempts)", e.MaxWait, e.Attempts)
	}
	return fmt.Sprintf("%s polling for %q timed out after %s (%d attempts)", e.Operation, e.ID, e.MaxWait, e.Attempts)
}

func (e *PollingTimeoutError) Is(target error) bool {
	switch target {
	case ErrPollingTimeout:
		return true
	case ErrOrchestrationPollingTimeout:
		return e.Kind == TimeoutOrchestration
	case ErrCommandPollingTimeout:
		return e.Kind == TimeoutCommand
	}
	return false
}

// SetupFailedError 沙箱 Setup 结束于 Error 状态，Events 为 Setup 期间的错误事件
type SetupFailedError struct {
	SandboxID string
	Details   *SandboxDetails
	Events    []ActivityEvent
}

func (e *SetupFailedError) Error() string {
	stage := SetupStage("")
	if e.Details != nil {
		stage = e.Details.SetupStage
	}
	return fmt.Sprintf("sandbox %q setup failed at stage %q with %d error events", e.SandboxID, stage, len(e.Events))
}

func (e *SetupFailedError) Is(target error) bool {
	return target == ErrSetupFailed
}

// TeardownFailedError Teardown 期间出现了错误事件，Events 只包含 Watermark 之后的事件
type TeardownFailedError struct {
	SandboxID string
	Details   *SandboxDetails
	Events    []ActivityEvent
	Watermark int64
}

func (e *TeardownFailedError) Error() string {
	return fmt.Sprintf("sandbox %q teardown failed with %d error events after event %d", e.SandboxID, len(e.Events), e.Watermark)
}

func (e *TeardownFailedError) Is(target error) bool {
	return target == ErrTeardownFailed
}

// CommandExecutionFailedError 命令执行结束于 Failed 状态
type CommandExecutionFailedError struct {
	Execution *ExecutionDetails
}

func (e *CommandExecutionFailedError) Error() string {
	if e.Execution == nil {
		return ErrCommandExecutionFailed.Error()
	}
	return fmt.Sprintf("execution %q ended with status %s: %s", e.Execution.ID, e.Execution.Status, e.Execution.Output)
}

func (e *CommandExecutionFailedError) Is(target error) bool {
	return target == ErrCommandExecutionFailed
}
