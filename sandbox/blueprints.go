package sandbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/labsandbox/go-sdk/internal/cache"
	"github.com/labsandbox/go-sdk/internal/clientv2"
)

type blueprintCacheValue struct {
	Blueprint    Blueprint `json:"blueprint"`
	RefreshAfter time.Time `json:"refresh_after"`
	ExpiredAt    time.Time `json:"expired_at"`
}

func newBlueprintCacheValue(bp *Blueprint, ttl time.Duration) *blueprintCacheValue {
	now := time.Now()
	return &blueprintCacheValue{
		Blueprint:    *bp,
		RefreshAfter: now.Add(ttl / 2),
		ExpiredAt:    now.Add(ttl),
	}
}

func (v *blueprintCacheValue) ShouldRefresh() bool {
	return v == nil || time.Now().After(v.RefreshAfter)
}

func (v *blueprintCacheValue) IsValid() bool {
	return v != nil && time.Now().Before(v.ExpiredAt)
}

// GetBlueprints 列出当前用户可见的蓝图
func (c *Client) GetBlueprints(ctx context.Context) ([]Blueprint, error) {
	u, err := c.endpoint(apiV2BasePath, "/blueprints", nil, nil)
	if err != nil {
		return nil, err
	}
	var blueprints []Blueprint
	if err := c.doJSON(ctx, clientv2.RequestMethodGet, u, nil, &blueprints); err != nil {
		return nil, err
	}
	return blueprints, nil
}

// GetBlueprint 获取蓝图详情，blueprintID 可以是蓝图 ID 或名称。结果会被缓存。
func (c *Client) GetBlueprint(ctx context.Context, blueprintID string) (*Blueprint, error) {
	if c.blueprints == nil {
		return c.fetchBlueprint(ctx, blueprintID)
	}

	var fetchErr error
	cached, result := c.blueprints.Get(blueprintID, func() (*blueprintCacheValue, error) {
		bp, err := c.fetchBlueprint(ctx, blueprintID)
		if err != nil {
			fetchErr = err
			return nil, err
		}
		return newBlueprintCacheValue(bp, c.config.BlueprintCacheTTL), nil
	})
	switch result {
	case cache.NoResult:
		if fetchErr != nil {
			return nil, fetchErr
		}
		return nil, fmt.Errorf("get blueprint %s: no result", blueprintID)
	case cache.FromInvalidCache:
		if isNotFoundError(fetchErr) {
			return nil, fetchErr
		}
		c.logger.Warn("using expired blueprint from cache", zap.String("blueprint_id", blueprintID), zap.Error(fetchErr))
	}

	bp := cached.Blueprint
	return &bp, nil
}

func (c *Client) fetchBlueprint(ctx context.Context, blueprintID string) (*Blueprint, error) {
	u, err := c.endpoint(apiV2BasePath, "/blueprints/%s", []string{blueprintID}, nil)
	if err != nil {
		return nil, err
	}
	var bp Blueprint
	if err := c.doJSON(ctx, clientv2.RequestMethodGet, u, nil, &bp); err != nil {
		return nil, err
	}
	return &bp, nil
}

// StartSandbox 从蓝图启动沙箱，Duration 为空时使用 DefaultSandboxDuration。
// 返回时沙箱通常仍在 Setup 中，可以使用 PollSandboxSetup 等待其就绪。
func (c *Client) StartSandbox(ctx context.Context, params StartParams) (*SandboxDetails, error) {
	if params.Duration == "" {
		params.Duration = DefaultSandboxDuration
	}
	return c.startSandbox(ctx, "/blueprints/%s/start", params)
}

// StartPersistentSandbox 从蓝图启动不会自动结束的沙箱，忽略 Duration。
func (c *Client) StartPersistentSandbox(ctx context.Context, params StartParams) (*SandboxDetails, error) {
	params.Duration = ""
	return c.startSandbox(ctx, "/blueprints/%s/start-persistent", params)
}

func (c *Client) startSandbox(ctx context.Context, pathFormat string, params StartParams) (*SandboxDetails, error) {
	if err := defaultValidator.Validate(&params); err != nil {
		return nil, err
	}
	if params.Name == "" {
		bp, err := c.GetBlueprint(ctx, params.BlueprintID)
		if err != nil {
			return nil, fmt.Errorf("get blueprint %s for sandbox name: %w", params.BlueprintID, err)
		}
		params.Name = bp.Name
	}
	if params.Params == nil {
		params.Params = []Param{}
	}
	if params.PermittedUsers == nil {
		params.PermittedUsers = []string{}
	}

	u, err := c.endpoint(apiV2BasePath, pathFormat, []string{params.BlueprintID}, nil)
	if err != nil {
		return nil, err
	}
	data, err := c.doRaw(ctx, clientv2.RequestMethodPost, u, &params)
	if err != nil {
		return nil, err
	}
	details, err := decodeSandboxDetails(data)
	if err != nil {
		return nil, err
	}
	c.logger.Info("sandbox started",
		zap.String("sandbox_id", details.ID),
		zap.String("blueprint_id", params.BlueprintID),
		zap.String("name", params.Name),
	)
	return details, nil
}

func decodeSandboxDetails(data []byte) (*SandboxDetails, error) {
	var details SandboxDetails
	if err := decodeJSON(data, &details); err != nil {
		return nil, err
	}
	details.Raw = append([]byte(nil), data...)
	return &details, nil
}
