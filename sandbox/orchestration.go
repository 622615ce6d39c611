package sandbox

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SandboxDetailsGetter 获取沙箱详情快照
type SandboxDetailsGetter interface {
	GetSandboxDetails(ctx context.Context, sandboxID string) (*SandboxDetails, error)
}

// ActivityGetter 查询沙箱活动事件
type ActivityGetter interface {
	GetSandboxActivity(ctx context.Context, sandboxID string, params *ActivityParams) (*ActivityEvents, error)
}

// OrchestrationAPI 轮询 Setup 和 Teardown 编排所需的接口
type OrchestrationAPI interface {
	SandboxDetailsGetter
	ActivityGetter
}

// ExecutionGetter 获取命令执行详情
type ExecutionGetter interface {
	GetExecutionDetails(ctx context.Context, executionID string) (*ExecutionDetails, error)
}

// PollSandboxSetup 轮询直到沙箱离开 Setup 编排。
//
// 沙箱进入 Ready 时返回最终快照；进入 Error 时查询错误事件并返回 *SetupFailedError；
// 超时返回 Kind 为 TimeoutOrchestration 的 *PollingTimeoutError。
func PollSandboxSetup(ctx context.Context, api OrchestrationAPI, sandboxID string, opts ...PollOption) (*SandboxDetails, error) {
	o := newPollOpts(opts)
	details, err := pollLoop(ctx, o, sandboxDetailsFetcher(api, sandboxID, "setup", o.logger), IsSetupInProgress)
	if err != nil {
		return nil, annotateTimeout(err, TimeoutOrchestration, "setup", sandboxID)
	}

	if details.State == StateError {
		activity, err := api.GetSandboxActivity(ctx, sandboxID, &ActivityParams{ErrorOnly: true})
		if err != nil {
			return nil, fmt.Errorf("get setup errors of sandbox %s: %w", sandboxID, err)
		}
		return nil, &SetupFailedError{SandboxID: sandboxID, Details: details, Events: errorEventsAfter(activity, -1)}
	}
	return details, nil
}

// PollSandboxTeardown 记录当前最新的事件 ID 作为水位线后轮询 Teardown 编排，
// 只有水位线之后的错误事件才会被视为 Teardown 失败。
func PollSandboxTeardown(ctx context.Context, api OrchestrationAPI, sandboxID string, opts ...PollOption) (*SandboxDetails, error) {
	watermark, err := LatestEventID(ctx, api, sandboxID)
	if err != nil {
		return nil, err
	}
	return PollSandboxTeardownFrom(ctx, api, sandboxID, watermark, opts...)
}

// PollSandboxTeardownFrom 与 PollSandboxTeardown 相同，但使用调用方在停止沙箱之前记录的水位线
func PollSandboxTeardownFrom(ctx context.Context, api OrchestrationAPI, sandboxID string, watermark int64, opts ...PollOption) (*SandboxDetails, error) {
	o := newPollOpts(opts)
	details, err := pollLoop(ctx, o, sandboxDetailsFetcher(api, sandboxID, "teardown", o.logger), IsTeardownInProgress)
	if err != nil {
		return nil, annotateTimeout(err, TimeoutOrchestration, "teardown", sandboxID)
	}

	activity, err := api.GetSandboxActivity(ctx, sandboxID, &ActivityParams{ErrorOnly: true, FromEventID: watermark + 1})
	if err != nil {
		return nil, fmt.Errorf("get teardown errors of sandbox %s: %w", sandboxID, err)
	}
	if events := errorEventsAfter(activity, watermark); len(events) > 0 {
		return nil, &TeardownFailedError{SandboxID: sandboxID, Details: details, Events: events, Watermark: watermark}
	}
	return details, nil
}

// LatestEventID 返回沙箱当前最新的活动事件 ID，没有事件时返回 0
func LatestEventID(ctx context.Context, api ActivityGetter, sandboxID string) (int64, error) {
	activity, err := api.GetSandboxActivity(ctx, sandboxID, &ActivityParams{Tail: 1})
	if err != nil {
		return 0, fmt.Errorf("get latest event of sandbox %s: %w", sandboxID, err)
	}
	var latest int64
	if activity != nil {
		for _, event := range activity.Events {
			if event.ID > latest {
				latest = event.ID
			}
		}
	}
	return latest, nil
}

// PollCommandExecution 轮询直到命令执行结束。
// 执行失败返回 *CommandExecutionFailedError，超时返回 Kind 为 TimeoutCommand 的 *PollingTimeoutError。
func PollCommandExecution(ctx context.Context, api ExecutionGetter, executionID string, opts ...PollOption) (*ExecutionDetails, error) {
	o := newPollOpts(opts)
	fetch := func(ctx context.Context) (*ExecutionDetails, error) {
		execution, err := api.GetExecutionDetails(ctx, executionID)
		if err != nil {
			return nil, fmt.Errorf("get execution %s: %w", executionID, err)
		}
		if execution == nil {
			return nil, fmt.Errorf("get execution %s: empty response", executionID)
		}
		o.logger.Debug("polling command execution",
			zap.String("execution_id", executionID),
			zap.String("status", string(execution.Status)),
		)
		return execution, nil
	}

	execution, err := pollLoop(ctx, o, fetch, IsExecutionUnfinished)
	if err != nil {
		return nil, annotateTimeout(err, TimeoutCommand, "execution", executionID)
	}
	if execution.Status == ExecutionFailed {
		return nil, &CommandExecutionFailedError{Execution: execution}
	}
	return execution, nil
}

func sandboxDetailsFetcher(api SandboxDetailsGetter, sandboxID, operation string, logger *zap.Logger) func(context.Context) (*SandboxDetails, error) {
	return func(ctx context.Context) (*SandboxDetails, error) {
		details, err := api.GetSandboxDetails(ctx, sandboxID)
		if err != nil {
			return nil, fmt.Errorf("get sandbox %s: %w", sandboxID, err)
		}
		if details == nil {
			return nil, fmt.Errorf("get sandbox %s: empty response", sandboxID)
		}
		logger.Debug("polling sandbox "+operation,
			zap.String("sandbox_id", sandboxID),
			zap.String("state", string(details.State)),
			zap.String("setup_stage", string(details.SetupStage)),
		)
		return details, nil
	}
}

// errorEventsAfter 返回 ID 大于水位线的错误事件，服务端忽略 from_event_id 时也不会误报
func errorEventsAfter(activity *ActivityEvents, watermark int64) []ActivityEvent {
	if activity == nil {
		return nil
	}
	var events []ActivityEvent
	for _, event := range activity.Events {
		if event.ID > watermark && (event.Type == "" || event.Type == EventError) {
			events = append(events, event)
		}
	}
	return events
}

func annotateTimeout(err error, kind PollingTimeoutKind, operation, id string) error {
	var timeoutErr *PollingTimeoutError
	if errors.As(err, &timeoutErr) {
		timeoutErr.Kind = kind
		timeoutErr.Operation = operation
		timeoutErr.ID = id
	}
	return err
}
