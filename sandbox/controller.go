package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultControllerMaxWait 控制器中每次编排轮询的默认最长等待时间
const DefaultControllerMaxWait = 30 * time.Minute

// ControllerState 控制器所处的生命周期阶段
type ControllerState int

const (
	ControllerCreated ControllerState = iota
	ControllerLaunching
	ControllerActive
	ControllerSetupFailed
	ControllerTearingDown
	ControllerEnded
	ControllerTeardownFailed
)

func (s ControllerState) String() string {
	switch s {
	case ControllerCreated:
		return "created"
	case ControllerLaunching:
		return "launching"
	case ControllerActive:
		return "active"
	case ControllerSetupFailed:
		return "setup_failed"
	case ControllerTearingDown:
		return "tearing_down"
	case ControllerEnded:
		return "ended"
	case ControllerTeardownFailed:
		return "teardown_failed"
	default:
		return fmt.Sprintf("ControllerState(%d)", int(s))
	}
}

// ControllerAPI 控制器依赖的沙箱 API，*Client 实现了该接口
type ControllerAPI interface {
	OrchestrationAPI
	ExecutionGetter
	ComponentsGetter

	StartSandbox(ctx context.Context, params StartParams) (*SandboxDetails, error)
	StopSandbox(ctx context.Context, sandboxID string) error
	RunSandboxCommand(ctx context.Context, sandboxID, commandName string, params *CommandParams) (*CommandStart, error)
	RunComponentCommand(ctx context.Context, sandboxID, componentID, commandName string, params *CommandParams) (*CommandStart, error)
	DeleteExecution(ctx context.Context, executionID string) error
}

// ControllerOption 配置控制器的选项
type ControllerOption func(*Controller)

// WithSandboxID 接管已经存在的沙箱，Launch 将不再启动新的沙箱。
// 沙箱的真实状态在 Attach 或 Launch 之前未知，此时不能执行命令。
func WithSandboxID(sandboxID string) ControllerOption {
	return func(c *Controller) {
		c.sandboxID = sandboxID
	}
}

// WithControllerLogger 设置日志记录器，默认不输出日志
func WithControllerLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSetupPolling 设置等待 Setup 编排的轮询选项
func WithSetupPolling(opts ...PollOption) ControllerOption {
	return func(c *Controller) { c.setupOpts = append(c.setupOpts, opts...) }
}

// WithTeardownPolling 设置等待 Teardown 编排的轮询选项
func WithTeardownPolling(opts ...PollOption) ControllerOption {
	return func(c *Controller) { c.teardownOpts = append(c.teardownOpts, opts...) }
}

// WithCommandPolling 设置等待命令执行的轮询选项
func WithCommandPolling(opts ...PollOption) ControllerOption {
	return func(c *Controller) { c.commandOpts = append(c.commandOpts, opts...) }
}

// Controller 管理单个沙箱从启动到结束的完整生命周期，并记录 Setup 和 Teardown 的错误与耗时。
//
// Controller 不是并发安全的，需要并行管理多个沙箱时应为每个沙箱创建独立的 Controller。
type Controller struct {
	api    ControllerAPI
	logger *zap.Logger

	setupOpts    []PollOption
	teardownOpts []PollOption
	commandOpts  []PollOption

	state            ControllerState
	sandboxID        string
	details          *SandboxDetails
	setupErrors      []ActivityEvent
	teardownErrors   []ActivityEvent
	setupDuration    time.Duration
	teardownDuration time.Duration
	lastSeenEventID  int64
	components       *Components
	// synced 是否已经从服务端获取过沙箱状态
	synced bool
}

// NewController 创建控制器
func NewController(api ControllerAPI, opts ...ControllerOption) *Controller {
	c := &Controller{
		api:        api,
		logger:     zap.NewNop(),
		components: NewComponents(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Controller) pollOptions(opts []PollOption) []PollOption {
	defaults := []PollOption{WithMaxWait(DefaultControllerMaxWait), WithPollLogger(c.logger)}
	return append(defaults, opts...)
}

// Launch 启动沙箱并等待 Setup 编排结束。
//
// 控制器已经持有沙箱时不会再启动新的沙箱：接管的沙箱会先同步状态，仍在 Setup 中则继续等待。
// Setup 失败时记录错误事件并返回 *SetupFailedError，此后不能再执行命令，但仍然可以调用 Teardown。
func (c *Controller) Launch(ctx context.Context, params StartParams) error {
	if c.sandboxID != "" {
		c.logger.Debug("sandbox already launched", zap.String("sandbox_id", c.sandboxID))
		if !c.synced {
			if err := c.Attach(ctx); err != nil {
				return err
			}
		}
		if c.state == ControllerLaunching {
			return c.waitForSetup(ctx, time.Now())
		}
		return nil
	}

	c.state = ControllerLaunching
	start := time.Now()
	details, err := c.api.StartSandbox(ctx, params)
	if err != nil {
		c.state = ControllerCreated
		return fmt.Errorf("start sandbox from blueprint %s: %w", params.BlueprintID, err)
	}
	if details == nil || details.ID == "" {
		c.state = ControllerCreated
		return fmt.Errorf("start sandbox from blueprint %s: empty sandbox id", params.BlueprintID)
	}
	c.sandboxID = details.ID
	c.details = details
	c.synced = true
	c.logger.Info("sandbox started, waiting for setup",
		zap.String("sandbox_id", c.sandboxID),
		zap.String("blueprint_id", params.BlueprintID),
	)
	return c.waitForSetup(ctx, start)
}

func (c *Controller) waitForSetup(ctx context.Context, start time.Time) error {
	details, err := PollSandboxSetup(ctx, c.api, c.sandboxID, c.pollOptions(c.setupOpts)...)
	if err != nil {
		var setupErr *SetupFailedError
		if errors.As(err, &setupErr) {
			c.setupErrors = setupErr.Events
			c.details = setupErr.Details
			c.state = ControllerSetupFailed
			c.logger.Error("sandbox setup failed",
				zap.String("sandbox_id", c.sandboxID),
				zap.Strings("errors", eventTexts(setupErr.Events)),
			)
		}
		return err
	}

	c.setupDuration = time.Since(start)
	c.details = details
	c.state = ControllerActive
	c.logger.Info("sandbox setup finished",
		zap.String("sandbox_id", c.sandboxID),
		zap.Duration("duration", c.setupDuration),
	)
	return c.RefreshComponents(ctx)
}

// Attach 获取 WithSandboxID 指定的沙箱的当前状态和组件
func (c *Controller) Attach(ctx context.Context) error {
	if c.sandboxID == "" {
		return ErrNoSandboxID
	}
	details, err := c.api.GetSandboxDetails(ctx, c.sandboxID)
	if err != nil {
		return fmt.Errorf("get sandbox %s: %w", c.sandboxID, err)
	}
	if details == nil {
		return fmt.Errorf("get sandbox %s: empty response", c.sandboxID)
	}
	c.details = details
	c.state = controllerStateOf(details.State)
	c.synced = true
	return c.RefreshComponents(ctx)
}

func controllerStateOf(state SandboxState) ControllerState {
	switch state {
	case StateReady:
		return ControllerActive
	case StateError:
		return ControllerSetupFailed
	case StateTeardown:
		return ControllerTearingDown
	case StateEnded:
		return ControllerEnded
	default:
		return ControllerLaunching
	}
}

// Teardown 结束沙箱并等待 Teardown 编排结束。
//
// 没有沙箱、已经完成 Teardown 或沙箱已经是 Ended 时什么也不做。只有停止请求之后产生的错误事件才会被视为失败，
// 失败时记录错误事件并返回 *TeardownFailedError，调用方可以决定是否重试。
func (c *Controller) Teardown(ctx context.Context) error {
	if c.sandboxID == "" {
		return nil
	}
	if c.teardownDuration > 0 || c.state == ControllerEnded {
		c.logger.Debug("sandbox already torn down", zap.String("sandbox_id", c.sandboxID))
		return nil
	}

	previous := c.state
	c.state = ControllerTearingDown
	start := time.Now()

	watermark, err := LatestEventID(ctx, c.api, c.sandboxID)
	if err != nil {
		c.state = previous
		return err
	}
	c.lastSeenEventID = watermark

	if err := c.api.StopSandbox(ctx, c.sandboxID); err != nil {
		c.state = previous
		return fmt.Errorf("stop sandbox %s: %w", c.sandboxID, err)
	}
	c.logger.Info("sandbox stopping, waiting for teardown", zap.String("sandbox_id", c.sandboxID))

	details, err := PollSandboxTeardownFrom(ctx, c.api, c.sandboxID, watermark, c.pollOptions(c.teardownOpts)...)
	if err != nil {
		var teardownErr *TeardownFailedError
		if errors.As(err, &teardownErr) {
			c.teardownErrors = teardownErr.Events
			c.details = teardownErr.Details
			c.state = ControllerTeardownFailed
			c.logger.Error("sandbox teardown failed",
				zap.String("sandbox_id", c.sandboxID),
				zap.Strings("errors", eventTexts(teardownErr.Events)),
			)
		} else {
			c.state = previous
		}
		return err
	}

	c.teardownDuration = time.Since(start)
	if c.teardownDuration <= 0 {
		c.teardownDuration = time.Nanosecond
	}
	c.details = details
	c.state = ControllerEnded
	c.logger.Info("sandbox teardown finished",
		zap.String("sandbox_id", c.sandboxID),
		zap.Duration("duration", c.teardownDuration),
	)
	return c.RefreshComponents(ctx)
}

// RefreshComponents 重新获取组件清单并整体替换
func (c *Controller) RefreshComponents(ctx context.Context) error {
	if c.sandboxID == "" {
		return ErrNoSandboxID
	}
	if err := c.components.Refresh(ctx, c.api, c.sandboxID); err != nil {
		return fmt.Errorf("get components of sandbox %s: %w", c.sandboxID, err)
	}
	return nil
}

// RunSandboxCommand 在 Ready 的沙箱上执行命令并等待结束。
// 等待超时且命令支持取消时会尝试取消该执行。
func (c *Controller) RunSandboxCommand(ctx context.Context, commandName string, params []Param) (*ExecutionDetails, error) {
	if err := c.ensureActive(); err != nil {
		return nil, err
	}
	start, err := c.api.RunSandboxCommand(ctx, c.sandboxID, commandName, &CommandParams{Params: params, PrintOutput: true})
	if err != nil {
		return nil, fmt.Errorf("run command %s on sandbox %s: %w", commandName, c.sandboxID, err)
	}
	return c.waitForExecution(ctx, start)
}

// RunComponentCommand 在 Ready 的沙箱的组件上执行命令并等待结束
func (c *Controller) RunComponentCommand(ctx context.Context, componentID, commandName string, params []Param) (*ExecutionDetails, error) {
	if err := c.ensureActive(); err != nil {
		return nil, err
	}
	start, err := c.api.RunComponentCommand(ctx, c.sandboxID, componentID, commandName, &CommandParams{Params: params, PrintOutput: true})
	if err != nil {
		return nil, fmt.Errorf("run command %s on component %s: %w", commandName, componentID, err)
	}
	return c.waitForExecution(ctx, start)
}

func (c *Controller) ensureActive() error {
	if c.sandboxID == "" {
		return ErrNoSandboxID
	}
	if c.state != ControllerActive {
		return fmt.Errorf("%w: sandbox %s is %s", ErrSandboxNotReady, c.sandboxID, c.state)
	}
	return nil
}

func (c *Controller) waitForExecution(ctx context.Context, start *CommandStart) (*ExecutionDetails, error) {
	execution, err := PollCommandExecution(ctx, c.api, start.ExecutionID, c.pollOptions(c.commandOpts)...)
	if err != nil && start.SupportsCancellation && errors.Is(err, ErrCommandPollingTimeout) {
		if cancelErr := c.api.DeleteExecution(context.WithoutCancel(ctx), start.ExecutionID); cancelErr != nil {
			c.logger.Warn("cancel timed out execution",
				zap.String("execution_id", start.ExecutionID),
				zap.Error(cancelErr),
			)
		}
	}
	return execution, err
}

// Use 启动沙箱后执行 fn，无论 fn 是否出错都会结束沙箱。
//
// fn 出错时 Teardown 的错误只会被记录和合并，不会掩盖 fn 的错误；
// 沙箱没有进入 Ready 时不会执行 fn，但仍然会结束沙箱。
func (c *Controller) Use(ctx context.Context, params StartParams, fn func(context.Context, *Controller) error) (err error) {
	defer func() {
		teardownErr := c.Teardown(context.WithoutCancel(ctx))
		if teardownErr == nil {
			return
		}
		c.logger.Error("sandbox teardown on exit", zap.String("sandbox_id", c.sandboxID), zap.Error(teardownErr))
		if err == nil {
			err = teardownErr
		} else {
			err = errors.Join(err, teardownErr)
		}
	}()

	if err = c.Launch(ctx, params); err != nil {
		return err
	}
	if err = c.ensureActive(); err != nil {
		return err
	}
	return fn(ctx, c)
}

// Use 创建控制器，启动沙箱并执行 fn，返回时沙箱已经结束
func Use(ctx context.Context, api ControllerAPI, params StartParams, fn func(context.Context, *Controller) error, opts ...ControllerOption) error {
	return NewController(api, opts...).Use(ctx, params, fn)
}

func (c *Controller) SandboxID() string {
	return c.sandboxID
}

func (c *Controller) State() ControllerState {
	return c.state
}

// Details 最近一次获取到的沙箱快照
func (c *Controller) Details() *SandboxDetails {
	return c.details
}

// SetupErrors Setup 失败时的错误事件
func (c *Controller) SetupErrors() []ActivityEvent {
	return c.setupErrors
}

// TeardownErrors Teardown 失败时的错误事件
func (c *Controller) TeardownErrors() []ActivityEvent {
	return c.teardownErrors
}

// SetupDuration 从请求启动到沙箱 Ready 的耗时，Setup 未成功时为 0
func (c *Controller) SetupDuration() time.Duration {
	return c.setupDuration
}

// TeardownDuration 从请求结束到 Teardown 完成的耗时，Teardown 未成功时为 0
func (c *Controller) TeardownDuration() time.Duration {
	return c.teardownDuration
}

// LastSeenEventID Teardown 开始前记录的水位线
func (c *Controller) LastSeenEventID() int64 {
	return c.lastSeenEventID
}

func (c *Controller) Components() *Components {
	return c.components
}

func eventTexts(events []ActivityEvent) []string {
	texts := make([]string, 0, len(events))
	for _, event := range events {
		texts = append(texts, event.Text)
	}
	return texts
}
