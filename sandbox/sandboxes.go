package sandbox

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/labsandbox/go-sdk/internal/clientv2"
)

// StopSandbox 请求结束沙箱，服务端开始 Teardown 编排后立即返回。
func (c *Client) StopSandbox(ctx context.Context, sandboxID string) error {
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/stop", []string{sandboxID}, nil)
	if err != nil {
		return err
	}
	data, err := c.doRaw(ctx, clientv2.RequestMethodPost, u, nil)
	if err != nil {
		return err
	}
	var resp resultResponse
	if err := decodeJSON(data, &resp); err != nil {
		return err
	}
	if resp.Result != "success" {
		return fmt.Errorf("%w: sandbox %s: %s", ErrStopRejected, sandboxID, string(data))
	}
	c.logger.Info("sandbox stop requested", zap.String("sandbox_id", sandboxID))
	return nil
}

// ExtendSandbox 延长沙箱时长，duration 为 ISO 8601 时长
func (c *Client) ExtendSandbox(ctx context.Context, sandboxID, duration string) (*ExtendResult, error) {
	if !IsValidDuration(duration) {
		return nil, fmt.Errorf("%w: invalid duration %q", ErrInvalidParams, duration)
	}
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/extend", []string{sandboxID}, nil)
	if err != nil {
		return nil, err
	}
	var result ExtendResult
	if err := c.doJSON(ctx, clientv2.RequestMethodPost, u, map[string]string{"extended_time": duration}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSandboxes 列出沙箱，showHistoric 为 true 时包含已结束的沙箱
func (c *Client) GetSandboxes(ctx context.Context, showHistoric bool) ([]SandboxSummary, error) {
	query := url.Values{}
	if err := addQueryParam(query, "show_historic", showHistoric); err != nil {
		return nil, err
	}
	u, err := c.endpoint(apiV2BasePath, "/sandboxes", nil, query)
	if err != nil {
		return nil, err
	}
	var sandboxes []SandboxSummary
	if err := c.doJSON(ctx, clientv2.RequestMethodGet, u, nil, &sandboxes); err != nil {
		return nil, err
	}
	return sandboxes, nil
}

// GetSandboxDetails 获取沙箱详情，Raw 字段保留服务端返回的原始 JSON
func (c *Client) GetSandboxDetails(ctx context.Context, sandboxID string) (*SandboxDetails, error) {
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s", []string{sandboxID}, nil)
	if err != nil {
		return nil, err
	}
	data, err := c.doRaw(ctx, clientv2.RequestMethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return decodeSandboxDetails(data)
}

// GetSandboxActivity 查询沙箱活动事件，params 为 nil 时返回全部事件
func (c *Client) GetSandboxActivity(ctx context.Context, sandboxID string, params *ActivityParams) (*ActivityEvents, error) {
	query := url.Values{}
	if params != nil {
		if params.ErrorOnly {
			if err := addQueryParam(query, "error_only", true); err != nil {
				return nil, err
			}
		}
		if params.Since != "" {
			if err := addQueryParam(query, "since", params.Since); err != nil {
				return nil, err
			}
		}
		if params.FromEventID > 0 {
			if err := addQueryParam(query, "from_event_id", params.FromEventID); err != nil {
				return nil, err
			}
		}
		if params.Tail > 0 {
			if err := addQueryParam(query, "tail", params.Tail); err != nil {
				return nil, err
			}
		}
	}
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/activity", []string{sandboxID}, query)
	if err != nil {
		return nil, err
	}
	var events ActivityEvents
	if err := c.doJSON(ctx, clientv2.RequestMethodGet, u, nil, &events); err != nil {
		return nil, err
	}
	return &events, nil
}

// GetSandboxCommands 列出沙箱级别的命令
func (c *Client) GetSandboxCommands(ctx context.Context, sandboxID string) ([]Command, error) {
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/commands", []string{sandboxID}, nil)
	if err != nil {
		return nil, err
	}
	var commands []Command
	if err := c.doJSON(ctx, clientv2.RequestMethodGet, u, nil, &commands); err != nil {
		return nil, err
	}
	return commands, nil
}

func (c *Client) GetSandboxCommand(ctx context.Context, sandboxID, commandName string) (*Command, error) {
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/commands/%s", []string{sandboxID, commandName}, nil)
	if err != nil {
		return nil, err
	}
	var command Command
	if err := c.doJSON(ctx, clientv2.RequestMethodGet, u, nil, &command); err != nil {
		return nil, err
	}
	return &command, nil
}

// GetSandboxComponents 获取沙箱全部组件的完整信息
func (c *Client) GetSandboxComponents(ctx context.Context, sandboxID string) ([]Component, error) {
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/components", []string{sandboxID}, nil)
	if err != nil {
		return nil, err
	}
	var components []Component
	if err := c.doJSON(ctx, clientv2.RequestMethodGet, u, nil, &components); err != nil {
		return nil, err
	}
	return components, nil
}

func (c *Client) GetSandboxComponent(ctx context.Context, sandboxID, componentID string) (*Component, error) {
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/components/%s", []string{sandboxID, componentID}, nil)
	if err != nil {
		return nil, err
	}
	var component Component
	if err := c.doJSON(ctx, clientv2.RequestMethodGet, u, nil, &component); err != nil {
		return nil, err
	}
	return &component, nil
}

func (c *Client) GetComponentCommands(ctx context.Context, sandboxID, componentID string) ([]Command, error) {
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/components/%s/commands", []string{sandboxID, componentID}, nil)
	if err != nil {
		return nil, err
	}
	var commands []Command
	if err := c.doJSON(ctx, clientv2.RequestMethodGet, u, nil, &commands); err != nil {
		return nil, err
	}
	return commands, nil
}

func (c *Client) GetComponentCommand(ctx context.Context, sandboxID, componentID, commandName string) (*Command, error) {
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/components/%s/commands/%s", []string{sandboxID, componentID, commandName}, nil)
	if err != nil {
		return nil, err
	}
	var command Command
	if err := c.doJSON(ctx, clientv2.RequestMethodGet, u, nil, &command); err != nil {
		return nil, err
	}
	return &command, nil
}

// GetSandboxInstructions 返回蓝图中为沙箱编写的使用说明（纯文本）
func (c *Client) GetSandboxInstructions(ctx context.Context, sandboxID string) (string, error) {
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/instructions", []string{sandboxID}, nil)
	if err != nil {
		return "", err
	}
	data, err := c.doRaw(ctx, clientv2.RequestMethodGet, u, nil)
	if err != nil {
		return "", err
	}
	if s, err := strconv.Unquote(string(data)); err == nil {
		return s, nil
	}
	return string(data), nil
}

// GetSandboxOutput 查询沙箱输出
func (c *Client) GetSandboxOutput(ctx context.Context, sandboxID string, params *OutputParams) (*SandboxOutput, error) {
	query := url.Values{}
	if params != nil {
		if params.Tail > 0 {
			if err := addQueryParam(query, "tail", params.Tail); err != nil {
				return nil, err
			}
		}
		if params.FromEntryID != "" {
			if err := addQueryParam(query, "from_entry_id", params.FromEntryID); err != nil {
				return nil, err
			}
		}
		if params.Since != "" {
			if err := addQueryParam(query, "since", params.Since); err != nil {
				return nil, err
			}
		}
	}
	u, err := c.endpoint(apiV2BasePath, "/sandboxes/%s/output", []string{sandboxID}, query)
	if err != nil {
		return nil, err
	}
	var output SandboxOutput
	if err := c.doJSON(ctx, clientv2.RequestMethodGet, u, nil, &output); err != nil {
		return nil, err
	}
	return &output, nil
}

// StartSandboxAndPoll 启动沙箱并等待 Setup 编排结束
func (c *Client) StartSandboxAndPoll(ctx context.Context, params StartParams, opts ...PollOption) (*SandboxDetails, error) {
	details, err := c.StartSandbox(ctx, params)
	if err != nil {
		return nil, err
	}
	return PollSandboxSetup(ctx, c, details.ID, c.withLogger(opts)...)
}

// StopSandboxAndPoll 结束沙箱并等待 Teardown 编排结束，只有停止之后产生的错误事件会被视为失败
func (c *Client) StopSandboxAndPoll(ctx context.Context, sandboxID string, opts ...PollOption) (*SandboxDetails, error) {
	watermark, err := LatestEventID(ctx, c, sandboxID)
	if err != nil {
		return nil, err
	}
	if err := c.StopSandbox(ctx, sandboxID); err != nil {
		return nil, err
	}
	return PollSandboxTeardownFrom(ctx, c, sandboxID, watermark, c.withLogger(opts)...)
}

// withLogger 让轮询默认使用客户端的日志记录器，调用方传入的选项优先
func (c *Client) withLogger(opts []PollOption) []PollOption {
	return append([]PollOption{WithPollLogger(c.logger)}, opts...)
}
