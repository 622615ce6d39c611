// Package sandbox 提供实验室沙箱 REST API 的 Go SDK，用于从蓝图启动沙箱、等待编排结束、执行命令并结束沙箱。
//
// 沙箱从蓝图启动后会经历 Setup 编排（Pending → Setup → Ready 或 Error），结束时经历
// Teardown 编排（Teardown → Ended）。编排都是异步的，需要轮询沙箱详情直到离开对应阶段。
//
// # 核心概念
//
//   - Blueprint: 沙箱模板，定义资源、应用、服务以及 Setup/Teardown 编排
//   - Sandbox: 从蓝图启动的实例，状态依次为 Pending、Setup、Ready/Error、Teardown、Ended
//   - ActivityEvent: 沙箱活动事件，ID 单调递增，可以作为水位线区分 Setup 和 Teardown 期间的错误
//   - Execution: 沙箱或组件命令的一次执行
//
// # 快速开始
//
//	c, err := sandbox.Connect(ctx, &sandbox.Config{
//	    Host:     "cloudshell.example.com",
//	    Username: "admin",
//	    Password: os.Getenv("LABSANDBOX_PASSWORD"),
//	})
//
//	err = sandbox.Use(ctx, c, sandbox.StartParams{BlueprintID: "my blueprint"},
//	    func(ctx context.Context, ctrl *sandbox.Controller) error {
//	        _, err := ctrl.RunSandboxCommand(ctx, "health_check", nil)
//	        return err
//	    })
//
// # 轮询
//
// [Poll] 是通用的阻塞轮询原语：立即获取一次，只要谓词返回 true 就等待后再次获取，直到谓词返回 false
// 或超过最长等待时间。获取失败会立即返回，不会重试。等待可以被 ctx 取消。
//
// 基于 [Poll] 的编排函数:
//
//   - [PollSandboxSetup]: 等待 Setup 结束，Error 时返回 [SetupFailedError]
//   - [PollSandboxTeardown] / [PollSandboxTeardownFrom]: 等待 Teardown 结束，只报告水位线之后的错误事件
//   - [PollCommandExecution]: 等待命令执行结束，Failed 时返回 [CommandExecutionFailedError]
//
// 超时返回 [PollingTimeoutError]，可以用 errors.Is 匹配 [ErrOrchestrationPollingTimeout] 或
// [ErrCommandPollingTimeout]，与"结束但失败"的错误区分开。
//
// # 生命周期控制器
//
// [Controller] 管理单个沙箱的完整生命周期:
//
//   - [Controller.Launch]: 启动沙箱并等待 Setup，已经持有沙箱时什么也不做
//   - [Controller.Teardown]: 结束沙箱并等待 Teardown，已经结束时什么也不做
//   - [Controller.Use] / [Use]: 启动沙箱，执行函数，并保证在返回前结束沙箱
//   - [Controller.SetupErrors] / [Controller.TeardownErrors]: 失败时记录的错误事件
//
// # 组件
//
// [Components] 缓存沙箱的组件清单，支持按类型、型号、属性过滤。
package sandbox
