package sandbox

// 判断是否需要继续轮询的谓词，nil 输入一律视为"无需继续"。

// IsSetupInProgress 沙箱是否仍在 Setup 编排中。
// "Pending Setup" 是部分服务端版本在 Setup 排队时返回的状态，与 BeforeSetup 同义。
func IsSetupInProgress(details *SandboxDetails) bool {
	if details == nil {
		return false
	}
	switch details.State {
	case StatePending, StateBeforeSetup, StatePendingSetup, StateSetup:
		return true
	}
	return false
}

// IsTeardownInProgress 沙箱是否仍在 Teardown 编排中
func IsTeardownInProgress(details *SandboxDetails) bool {
	return details != nil && details.State == StateTeardown
}

// IsExecutionUnfinished 命令执行是否仍未结束
func IsExecutionUnfinished(execution *ExecutionDetails) bool {
	if execution == nil {
		return false
	}
	return execution.Status == ExecutionPending || execution.Status == ExecutionRunning
}
