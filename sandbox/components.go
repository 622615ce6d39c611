package sandbox

import (
	"context"
	"strings"
	"sync"
)

const (
	ComponentTypeApplication = "Application"
	ComponentTypeResource    = "Resource"
	ComponentTypeService     = "Service"

	AppLifecycleDeployed   = "Deployed"
	AppLifecycleUndeployed = "Undeployed"

	AttributeTypeBoolean = "boolean"
)

// ComponentsGetter 获取沙箱的组件列表
type ComponentsGetter interface {
	GetSandboxComponents(ctx context.Context, sandboxID string) ([]Component, error)
}

// Components 沙箱组件清单的本地缓存，Refresh 时整体替换
type Components struct {
	mu    sync.RWMutex
	items []Component
}

// NewComponents 使用给定组件创建清单
func NewComponents(items []Component) *Components {
	c := &Components{}
	c.Replace(items)
	return c
}

// Replace 整体替换缓存的组件
func (c *Components) Replace(items []Component) {
	copied := make([]Component, len(items))
	copy(copied, items)

	c.mu.Lock()
	c.items = copied
	c.mu.Unlock()
}

// Refresh 重新获取组件列表并替换缓存
func (c *Components) Refresh(ctx context.Context, api ComponentsGetter, sandboxID string) error {
	items, err := api.GetSandboxComponents(ctx, sandboxID)
	if err != nil {
		return err
	}
	c.Replace(items)
	return nil
}

// All 返回全部组件的副本
func (c *Components) All() []Component {
	return c.filter(func(Component) bool { return true })
}

func (c *Components) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Components) Resources() []Component {
	return c.FilterByType(ComponentTypeResource)
}

func (c *Components) Services() []Component {
	return c.FilterByType(ComponentTypeService)
}

func (c *Components) Apps() []Component {
	return c.FilterByType(ComponentTypeApplication)
}

// DeployedApps 已部署的应用
func (c *Components) DeployedApps() []Component {
	return c.filter(func(comp Component) bool {
		return comp.Type == ComponentTypeApplication && comp.AppLifecycle == AppLifecycleDeployed
	})
}

// UndeployedApps 尚未部署的应用
func (c *Components) UndeployedApps() []Component {
	return c.filter(func(comp Component) bool {
		return comp.Type == ComponentTypeApplication && comp.AppLifecycle == AppLifecycleUndeployed
	})
}

// FilterByType 按组件大类（Application、Resource、Service）过滤
func (c *Components) FilterByType(componentType string) []Component {
	return c.filter(func(comp Component) bool { return comp.Type == componentType })
}

// FilterByModel 按组件型号过滤，即 component_type 字段
func (c *Components) FilterByModel(model string) []Component {
	return c.filter(func(comp Component) bool { return comp.ComponentType == model })
}

// FindByName 按名称查找组件，未找到时第二个返回值为 false
func (c *Components) FindByName(name string) (Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, comp := range c.items {
		if comp.Name == name {
			return comp, true
		}
	}
	return Component{}, false
}

// FilterByAttribute 返回存在名称以 attrName 结尾且值等于 value 的属性的组件。
// 属性名通常带有型号前缀，如 "Cisco.IOS.Model"。
func (c *Components) FilterByAttribute(attrName, value string) []Component {
	return c.filter(func(comp Component) bool {
		for _, attr := range comp.Attributes {
			if strings.HasSuffix(attr.Name, attrName) && attr.Value == value {
				return true
			}
		}
		return false
	})
}

// FilterByBooleanAttribute 返回布尔属性 attrName 为 True 的组件
func (c *Components) FilterByBooleanAttribute(attrName string) []Component {
	return c.filter(func(comp Component) bool {
		for _, attr := range comp.Attributes {
			if attr.Type == AttributeTypeBoolean && strings.HasSuffix(attr.Name, attrName) && attr.Value == "True" {
				return true
			}
		}
		return false
	})
}

func (c *Components) filter(match func(Component) bool) []Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var result []Component
	for _, comp := range c.items {
		if match(comp) {
			result = append(result, comp)
		}
	}
	return result
}
