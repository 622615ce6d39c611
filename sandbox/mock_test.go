package sandbox

import (
	"context"
	"sync"
)

// mockAPI 实现 ControllerAPI 用于测试。
// 每个方法字段可按测试设置；未设置的方法会 panic。
type mockAPI struct {
	mu    sync.Mutex
	calls map[string]int

	startSandboxFn         func(ctx context.Context, params StartParams) (*SandboxDetails, error)
	stopSandboxFn          func(ctx context.Context, sandboxID string) error
	getSandboxDetailsFn    func(ctx context.Context, sandboxID string) (*SandboxDetails, error)
	getSandboxActivityFn   func(ctx context.Context, sandboxID string, params *ActivityParams) (*ActivityEvents, error)
	getSandboxComponentsFn func(ctx context.Context, sandboxID string) ([]Component, error)
	runSandboxCommandFn    func(ctx context.Context, sandboxID, commandName string, params *CommandParams) (*CommandStart, error)
	runComponentCommandFn  func(ctx context.Context, sandboxID, componentID, commandName string, params *CommandParams) (*CommandStart, error)
	getExecutionDetailsFn  func(ctx context.Context, executionID string) (*ExecutionDetails, error)
	deleteExecutionFn      func(ctx context.Context, executionID string) error
}

func (m *mockAPI) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *mockAPI) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockAPI) StartSandbox(ctx context.Context, params StartParams) (*SandboxDetails, error) {
	m.record("StartSandbox")
	return m.startSandboxFn(ctx, params)
}

func (m *mockAPI) StopSandbox(ctx context.Context, sandboxID string) error {
	m.record("StopSandbox")
	return m.stopSandboxFn(ctx, sandboxID)
}

func (m *mockAPI) GetSandboxDetails(ctx context.Context, sandboxID string) (*SandboxDetails, error) {
	m.record("GetSandboxDetails")
	return m.getSandboxDetailsFn(ctx, sandboxID)
}

func (m *mockAPI) GetSandboxActivity(ctx context.Context, sandboxID string, params *ActivityParams) (*ActivityEvents, error) {
	m.record("GetSandboxActivity")
	return m.getSandboxActivityFn(ctx, sandboxID, params)
}

func (m *mockAPI) GetSandboxComponents(ctx context.Context, sandboxID string) ([]Component, error) {
	m.record("GetSandboxComponents")
	return m.getSandboxComponentsFn(ctx, sandboxID)
}

func (m *mockAPI) RunSandboxCommand(ctx context.Context, sandboxID, commandName string, params *CommandParams) (*CommandStart, error) {
	m.record("RunSandboxCommand")
	return m.runSandboxCommandFn(ctx, sandboxID, commandName, params)
}

func (m *mockAPI) RunComponentCommand(ctx context.Context, sandboxID, componentID, commandName string, params *CommandParams) (*CommandStart, error) {
	m.record("RunComponentCommand")
	return m.runComponentCommandFn(ctx, sandboxID, componentID, commandName, params)
}

func (m *mockAPI) GetExecutionDetails(ctx context.Context, executionID string) (*ExecutionDetails, error) {
	m.record("GetExecutionDetails")
	return m.getExecutionDetailsFn(ctx, executionID)
}

func (m *mockAPI) DeleteExecution(ctx context.Context, executionID string) error {
	m.record("DeleteExecution")
	return m.deleteExecutionFn(ctx, executionID)
}

// stateSequence 依次返回给定状态的沙箱详情，用完后保持最后一个状态
func stateSequence(sandboxID string, states ...SandboxState) func(context.Context, string) (*SandboxDetails, error) {
	var (
		mu sync.Mutex
		i  int
	)
	return func(ctx context.Context, id string) (*SandboxDetails, error) {
		mu.Lock()
		defer mu.Unlock()
		state := states[len(states)-1]
		if i < len(states) {
			state = states[i]
		}
		i++
		return &SandboxDetails{ID: sandboxID, State: state}, nil
	}
}

// eventHistory 模拟服务端的活动事件查询，按 error_only、from_event_id 和 tail 过滤
func eventHistory(events ...ActivityEvent) func(context.Context, string, *ActivityParams) (*ActivityEvents, error) {
	return func(ctx context.Context, sandboxID string, params *ActivityParams) (*ActivityEvents, error) {
		var result []ActivityEvent
		for _, event := range events {
			if params != nil && params.ErrorOnly && event.Type != EventError {
				continue
			}
			if params != nil && params.FromEventID > 0 && event.ID < params.FromEventID {
				continue
			}
			result = append(result, event)
		}
		if params != nil && params.Tail > 0 && len(result) > params.Tail {
			result = result[len(result)-params.Tail:]
		}
		return &ActivityEvents{NumReturned: len(result), Events: result}, nil
	}
}
