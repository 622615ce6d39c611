package sandbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/labsandbox/go-sdk/internal/clientv2"
)

// RunSandboxCommand 启动沙箱级别的命令，params 为 nil 时不带参数且不打印输出
func (c *Client) RunSandboxCommand(ctx context.Context, sandboxID, commandName string, params *CommandParams) (*CommandStart, error) {
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/commands/%s/start", []string{sandboxID, commandName}, nil)
	if err != nil {
		return nil, err
	}
	return c.startCommand(ctx, u, params, zap.String("sandbox_id", sandboxID), zap.String("command", commandName))
}

// RunComponentCommand 启动组件上的命令
func (c *Client) RunComponentCommand(ctx context.Context, sandboxID, componentID, commandName string, params *CommandParams) (*CommandStart, error) {
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/components/%s/commands/%s/start", []string{sandboxID, componentID, commandName}, nil)
	if err != nil {
		return nil, err
	}
	return c.startCommand(ctx, u, params,
		zap.String("sandbox_id", sandboxID),
		zap.String("component_id", componentID),
		zap.String("command", commandName),
	)
}

func (c *Client) startCommand(ctx context.Context, u string, params *CommandParams, fields ...zap.Field) (*CommandStart, error) {
	body := CommandParams{Params: []Param{}}
	if params != nil {
		if err := defaultValidator.Validate(params); err != nil {
			return nil, err
		}
		body.PrintOutput = params.PrintOutput
		if params.Params != nil {
			body.Params = params.Params
		}
	}

	var start CommandStart
	if err := c.doJSON(ctx, clientv2.RequestMethodPost, u, &body, &start); err != nil {
		return nil, err
	}
	if start.ExecutionID == "" {
		return nil, fmt.Errorf("start command: empty execution id")
	}
	c.logger.Debug("command started", append(fields, zap.String("execution_id", start.ExecutionID))...)
	return &start, nil
}

// GetExecutionDetails 获取命令执行详情
func (c *Client) GetExecutionDetails(ctx context.Context, executionID string) (*ExecutionDetails, error) {
	u, err := c.endpoint(apiV2BasePath, "/executions/%s", []string{executionID}, nil)
	if err != nil {
		return nil, err
	}
	var execution ExecutionDetails
	if err := c.doJSON(ctx, clientv2.RequestMethodGet, u, nil, &execution); err != nil {
		return nil, err
	}
	return &execution, nil
}

// DeleteExecution 取消仍在运行的命令执行，只对 SupportsCancellation 为 true 的执行有效
func (c *Client) DeleteExecution(ctx context.Context, executionID string) error {
	u, err := c.endpoint(apiV2BasePath, "/executions/%s", []string{executionID}, nil)
	if err != nil {
		return err
	}
	var resp resultResponse
	if err := c.doJSON(ctx, clientv2.RequestMethodDelete, u, nil, &resp); err != nil {
		return err
	}
	if resp.Result != "success" {
		return fmt.Errorf("delete execution %s: result %q", executionID, resp.Result)
	}
	return nil
}

// RunSandboxCommandAndPoll 启动沙箱命令并等待执行结束
func (c *Client) RunSandboxCommandAndPoll(ctx context.Context, sandboxID, commandName string, params *CommandParams, opts ...PollOption) (*ExecutionDetails, error) {
	start, err := c.RunSandboxCommand(ctx, sandboxID, commandName, params)
	if err != nil {
		return nil, err
	}
	return PollCommandExecution(ctx, c, start.ExecutionID, c.withLogger(opts)...)
}

// RunComponentCommandAndPoll 启动组件命令并等待执行结束
func (c *Client) RunComponentCommandAndPoll(ctx context.Context, sandboxID, componentID, commandName string, params *CommandParams, opts ...PollOption) (*ExecutionDetails, error) {
	start, err := c.RunComponentCommand(ctx, sandboxID, componentID, commandName, params)
	if err != nil {
		return nil, err
	}
	return PollCommandExecution(ctx, c, start.ExecutionID, c.withLogger(opts)...)
}
