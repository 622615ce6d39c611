package sandbox

import "encoding/json"

// SandboxState 沙箱状态。
// 正常流转为 {Pending, BeforeSetup, Pending Setup, Setup} → {Ready, Error} → Teardown → Ended，不会回退。
type SandboxState string

const (
	StatePending      SandboxState = "Pending"
	StateBeforeSetup  SandboxState = "BeforeSetup"
	StatePendingSetup SandboxState = "Pending Setup"
	StateSetup        SandboxState = "Setup"
	StateReady        SandboxState = "Ready"
	StateError        SandboxState = "Error"
	StateTeardown     SandboxState = "Teardown"
	StateEnded        SandboxState = "Ended"
)

// SandboxStates 返回全部已知的沙箱状态
func SandboxStates() []SandboxState {
	return []SandboxState{
		StatePending, StateBeforeSetup, StatePendingSetup, StateSetup,
		StateReady, StateError, StateTeardown, StateEnded,
	}
}

// SetupStage Setup 编排所处的阶段
type SetupStage string

const (
	SetupStageNone          SetupStage = "None"
	SetupStageProvisioning  SetupStage = "Provisioning"
	SetupStageConnectivity  SetupStage = "Connectivity"
	SetupStageConfiguration SetupStage = "Configuration"
	SetupStageEnded         SetupStage = "Ended"
)

// ExecutionStatus 命令执行状态
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "Pending"
	ExecutionRunning   ExecutionStatus = "Running"
	ExecutionStopping  ExecutionStatus = "Stopping"
	ExecutionCancelled ExecutionStatus = "Cancelled"
	ExecutionComplete  ExecutionStatus = "Complete"
	// ExecutionCompleted 是部分服务端版本返回的 Complete 的别名
	ExecutionCompleted ExecutionStatus = "Completed"
	ExecutionFailed    ExecutionStatus = "Failed"
)

// ExecutionStatuses 返回全部已知的执行状态
func ExecutionStatuses() []ExecutionStatus {
	return []ExecutionStatus{
		ExecutionPending, ExecutionRunning, ExecutionStopping,
		ExecutionCancelled, ExecutionComplete, ExecutionCompleted, ExecutionFailed,
	}
}

// IsTerminal 判断执行是否已经结束
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionCancelled, ExecutionComplete, ExecutionCompleted, ExecutionFailed:
		return true
	}
	return false
}

// EventType 活动事件类型
type EventType string

const (
	EventSuccess EventType = "success"
	EventError   EventType = "error"
)

// Param 是蓝图或命令的参数
type Param struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value"`
}

// BlueprintInput 蓝图输入参数的定义
type BlueprintInput struct {
	Name           string   `json:"name"`
	Type           string   `json:"type,omitempty"`
	PossibleValues []string `json:"possible_values,omitempty"`
	DefaultValue   string   `json:"default_value,omitempty"`
	Value          string   `json:"value,omitempty"`
}

// Blueprint 蓝图描述
type Blueprint struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Categories  []string         `json:"categories,omitempty"`
	Description string           `json:"description,omitempty"`
	Params      []BlueprintInput `json:"params,omitempty"`
	// Availability 取值为 "Available Now" 或 "Not Available"
	Availability string `json:"availability,omitempty"`
	// EstimatedSetupDuration ISO 8601 格式，如 PT4H2M
	EstimatedSetupDuration string `json:"estimated_setup_duration,omitempty"`
}

// ComponentSummary 沙箱详情中附带的组件概要
type ComponentSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	ComponentType string `json:"component_type"`
	Description   string `json:"description,omitempty"`
	Address       string `json:"address,omitempty"`
	AppLifecycle  string `json:"app_lifecycle,omitempty"`
}

// SandboxDetails 每次轮询获取到的沙箱快照
type SandboxDetails struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	BlueprintID    string             `json:"blueprint_id"`
	Type           string             `json:"type,omitempty"`
	Description    string             `json:"description,omitempty"`
	PermittedUsers []string           `json:"permitted_users,omitempty"`
	StartTime      string             `json:"start_time,omitempty"`
	EndTime        string             `json:"end_time,omitempty"`
	Params         []BlueprintInput   `json:"params,omitempty"`
	Components     []ComponentSummary `json:"components,omitempty"`
	State          SandboxState       `json:"state"`
	SetupStage     SetupStage         `json:"setup_stage,omitempty"`

	// Raw 为服务端返回的原始 JSON
	Raw json.RawMessage `json:"-"`
}

// BlueprintReference 沙箱列表中引用的蓝图
type BlueprintReference struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SandboxSummary 沙箱列表中的条目
type SandboxSummary struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Blueprint   BlueprintReference `json:"blueprint"`
	Description string             `json:"description,omitempty"`
	State       SandboxState       `json:"state"`
}

// ActivityEvent 沙箱活动事件，ID 在同一沙箱内严格递增
type ActivityEvent struct {
	ID     int64     `json:"id"`
	Type   EventType `json:"event_type"`
	Text   string    `json:"event_text"`
	Output string    `json:"output,omitempty"`
	Time   string    `json:"time"`
}

// ActivityEvents 活动事件查询结果
type ActivityEvents struct {
	NumReturned int             `json:"num_returned_events"`
	MorePages   bool            `json:"more_pages"`
	NextEventID int64           `json:"next_event_id"`
	Events      []ActivityEvent `json:"events"`
}

// ActivityParams 活动事件查询参数，零值字段不会发送
type ActivityParams struct {
	ErrorOnly bool
	// Since ISO 8601 时间
	Since       string
	FromEventID int64
	Tail        int
}

// OutputEntry 沙箱输出条目
type OutputEntry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Time string `json:"time"`
}

// SandboxOutput 沙箱输出查询结果
type SandboxOutput struct {
	NumReturned int           `json:"number_of_returned_entries"`
	NextEntryID string        `json:"next_entry_id"`
	MorePages   bool          `json:"more_pages"`
	Entries     []OutputEntry `json:"entries"`
}

// OutputParams 沙箱输出查询参数
type OutputParams struct {
	Tail        int
	FromEntryID string
	Since       string
}

// CommandParameter 命令参数定义
type CommandParameter struct {
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	Type           string   `json:"type,omitempty"`
	PossibleValues []string `json:"possibleValues,omitempty"`
	DefaultValue   string   `json:"defaultValue,omitempty"`
	Mandatory      bool     `json:"mandatory"`
}

// CommandExecution 命令的一次执行记录
type CommandExecution struct {
	ID                   string          `json:"id"`
	Status               ExecutionStatus `json:"status"`
	SupportsCancellation bool            `json:"supports_cancellation"`
}

// Command 沙箱或组件上可执行的命令
type Command struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Params      []CommandParameter `json:"params,omitempty"`
	Executions  []CommandExecution `json:"executions,omitempty"`
}

// CommandParams 启动命令时的请求体
type CommandParams struct {
	Params      []Param `json:"params" validate:"dive"`
	PrintOutput bool    `json:"printOutput"`
}

// CommandStart 启动命令的响应
type CommandStart struct {
	ExecutionID          string `json:"executionId"`
	SupportsCancellation bool   `json:"supports_cancellation"`
}

// ExecutionDetails 命令执行详情
type ExecutionDetails struct {
	ID                   string          `json:"id"`
	Status               ExecutionStatus `json:"status"`
	SupportsCancellation bool            `json:"supports_cancellation"`
	Started              string          `json:"started,omitempty"`
	Ended                string          `json:"ended,omitempty"`
	Output               string          `json:"output,omitempty"`
}

// ComponentAttribute 组件属性
type ComponentAttribute struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ConnectionInterface 组件的访问入口
type ConnectionInterface struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Component 沙箱组件的完整信息
type Component struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	Type                 string                `json:"type"`
	ComponentType        string                `json:"component_type"`
	Description          string                `json:"description,omitempty"`
	Address              string                `json:"address,omitempty"`
	AppLifecycle         string                `json:"app_lifecycle,omitempty"`
	Attributes           []ComponentAttribute  `json:"attributes,omitempty"`
	ConnectionInterfaces []ConnectionInterface `json:"connection_interfaces,omitempty"`
}

// ExtendResult 延长沙箱时长的响应
type ExtendResult struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	RemainingTime string `json:"remaining_time"`
}

// StartParams 启动沙箱的参数
type StartParams struct {
	// BlueprintID 蓝图 ID 或名称（必填）
	BlueprintID string `json:"-" validate:"required"`
	// Name 沙箱名称，为空时使用蓝图名称
	Name string `json:"name"`
	// Duration ISO 8601 时长，为空时使用 DefaultSandboxDuration，持久化沙箱忽略该字段
	Duration       string   `json:"duration,omitempty" validate:"omitempty,iso8601duration"`
	Params         []Param  `json:"params" validate:"dive"`
	PermittedUsers []string `json:"permitted_users"`
}
