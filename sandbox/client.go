package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/labsandbox/go-sdk/internal/cache"
	"github.com/labsandbox/go-sdk/internal/clientv2"
	"github.com/labsandbox/go-sdk/internal/configfile"
	"github.com/labsandbox/go-sdk/internal/env"
)

const (
	// DefaultPort 是沙箱 REST API 的默认端口。
	DefaultPort = 82
	// DefaultDomain 是登录使用的默认域。
	DefaultDomain = "Global"
	// DefaultSandboxDuration 是启动非持久化沙箱时的默认时长。
	DefaultSandboxDuration = "PT2H0M"
	// DefaultRetryMax 幂等请求在网络错误或 5xx 时的默认重试次数
	DefaultRetryMax = 2
	// DefaultBlueprintCacheTTL 蓝图详情的默认缓存时长
	DefaultBlueprintCacheTTL = 5 * time.Minute

	apiBasePath   = "/api"
	apiV2BasePath = "/api/v2"
)

// Config 是沙箱客户端的配置。
type Config struct {
	// Host 是 API 服务器地址（必填），可以带 http:// 或 https:// 前缀。
	Host string
	// Port 默认为 DefaultPort。
	Port int
	// UseHTTPS 是否使用 HTTPS，Host 带有协议前缀时忽略。
	UseHTTPS bool

	// Username 和 Password 用于登录换取令牌，已提供 Token 时可以不填。
	Username string
	Password string
	// Domain 默认为 DefaultDomain。
	Domain string
	// Token 已有的访问令牌，提供时不再使用用户名密码登录。
	Token string

	// HTTPClient 自定义 HTTP 客户端（可选，默认值：http.DefaultClient）。
	HTTPClient *http.Client
	// RetryMax 幂等请求的最大重试次数，0 使用 DefaultRetryMax，小于 0 表示不重试。
	RetryMax int
	// Logger 默认不输出日志。
	Logger *zap.Logger

	// BlueprintCacheTTL 蓝图详情的缓存时长，0 使用默认值，小于 0 表示不缓存。
	BlueprintCacheTTL time.Duration
	// BlueprintCacheFile 蓝图缓存的持久化文件路径，为空时只缓存在内存中。
	BlueprintCacheFile string
}

// ConfigFromEnvironment 从配置文件和 LABSANDBOX_ 前缀的环境变量构造配置，环境变量优先。
func ConfigFromEnvironment() (*Config, error) {
	settings, err := env.Load()
	if err != nil {
		return nil, err
	}
	config := &Config{RetryMax: settings.RetryMax}

	profile, err := configfile.ProfileFromConfigFile()
	if err != nil {
		return nil, err
	}
	if profile != nil {
		config.Host = profile.Host
		config.Port = profile.Port
		if profile.UseHTTPS != nil {
			config.UseHTTPS = *profile.UseHTTPS
		}
		config.Username = profile.Username
		config.Password = profile.Password
		config.Domain = profile.Domain
		config.Token = profile.Token
	}

	if settings.Host != "" {
		config.Host = settings.Host
	}
	if settings.Port != 0 {
		config.Port = settings.Port
	}
	if settings.UseHTTPS != nil {
		config.UseHTTPS = *settings.UseHTTPS
	}
	if username, password := env.CredentialsFromEnvironment(); username != "" {
		config.Username, config.Password = username, password
	}
	if settings.Domain != "" {
		config.Domain = settings.Domain
	}
	if settings.Token != "" {
		config.Token = settings.Token
	}
	if settings.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: settings.Timeout}
	}
	return config, nil
}

// Client 是沙箱 REST API 的客户端，可以被多个控制器共享。
type Client struct {
	config     Config
	serverURL  string
	httpClient clientv2.Client
	logger     *zap.Logger
	blueprints *cache.Cache[*blueprintCacheValue]

	tokenMu sync.RWMutex
	token   string
}

// NewClient 创建一个新的沙箱客户端，不会发起网络请求。
func NewClient(config *Config) (*Client, error) {
	if config == nil || config.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidParams)
	}
	cfg := *config
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = DefaultRetryMax
	}
	if cfg.BlueprintCacheTTL == 0 {
		cfg.BlueprintCacheTTL = DefaultBlueprintCacheTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	c := &Client{
		config:    cfg,
		serverURL: serverURL(cfg.Host, cfg.Port, cfg.UseHTTPS),
		logger:    cfg.Logger,
		token:     cfg.Token,
	}

	interceptors := []clientv2.Interceptor{
		clientv2.NewRequestIDInterceptor(),
		clientv2.NewAuthInterceptor(clientv2.AuthConfig{
			TokenSource: clientv2.TokenSourceFunc(c.Token),
			SkipPaths:   []string{apiBasePath + "/login"},
		}),
	}
	if cfg.RetryMax > 0 {
		interceptors = append(interceptors, clientv2.NewSimpleRetryInterceptor(clientv2.RetryConfig{RetryMax: cfg.RetryMax}))
	}
	var httpClient clientv2.Client
	if cfg.HTTPClient != nil {
		httpClient = cfg.HTTPClient
	}
	c.httpClient = clientv2.NewClient(httpClient, interceptors...)

	if cfg.BlueprintCacheTTL > 0 {
		if cfg.BlueprintCacheFile != "" {
			blueprints, err := cache.NewPersistent[*blueprintCacheValue](cfg.BlueprintCacheFile, time.Minute, time.Minute, func(err error) {
				c.logger.Warn("blueprint cache", zap.Error(err))
			})
			if err != nil {
				return nil, err
			}
			c.blueprints = blueprints
		} else {
			c.blueprints = cache.New[*blueprintCacheValue](time.Minute)
		}
	}
	return c, nil
}

// Connect 创建客户端并在没有令牌时使用用户名密码登录。
func Connect(ctx context.Context, config *Config) (*Client, error) {
	c, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	if c.Token() == "" {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func serverURL(host string, port int, useHTTPS bool) string {
	host = strings.TrimSuffix(host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	scheme := "http"
	if useHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// Token 返回当前的访问令牌，未登录时为空。
func (c *Client) Token() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()
}

// Login 使用配置中的用户名密码换取令牌，已配置 Token 时直接使用该令牌。
func (c *Client) Login(ctx context.Context) error {
	if c.config.Token != "" {
		c.setToken(c.config.Token)
		return nil
	}
	if c.config.Username == "" || c.config.Password == "" {
		return fmt.Errorf("%w: login requires token or username and password", ErrInvalidParams)
	}

	body, err := clientv2.GetJsonRequestBody(map[string]string{
		"username": c.config.Username,
		"password": c.config.Password,
		"domain":   c.config.Domain,
	})
	if err != nil {
		return err
	}
	text, err := clientv2.DoAndReadResponse(c.httpClient, clientv2.RequestParams{
		Context: ctx,
		Method:  clientv2.RequestMethodPut,
		Url:     c.serverURL + apiBasePath + "/login",
		GetBody: body,
	})
	if err != nil {
		return toAPIError(err)
	}

	token := unquoteToken(text)
	if token == "" {
		return fmt.Errorf("%w: login response %q", ErrInvalidToken, string(text))
	}
	c.setToken(token)
	c.logger.Debug("logged in", zap.String("user", c.config.Username), zap.String("domain", c.config.Domain))
	return nil
}

// Logout 删除当前令牌，未登录时什么也不做。
func (c *Client) Logout(ctx context.Context) error {
	token := c.Token()
	if token == "" {
		return nil
	}
	if err := c.DeleteToken(ctx, token); err != nil {
		return err
	}
	c.setToken("")
	return nil
}

// GetTokenForUser 为指定用户生成访问令牌，需要管理员权限。
func (c *Client) GetTokenForUser(ctx context.Context, username string) (string, error) {
	text, err := c.doRaw(ctx, clientv2.RequestMethodPost, c.serverURL+apiBasePath+"/token", map[string]string{"username": username})
	if err != nil {
		return "", err
	}
	return unquoteToken(text), nil
}

// DeleteToken 使令牌失效
func (c *Client) DeleteToken(ctx context.Context, token string) error {
	u, err := c.endpoint(apiBasePath, "/token/%s", []string{token}, nil)
	if err != nil {
		return err
	}
	_, err = c.doRaw(ctx, clientv2.RequestMethodDelete, u, nil)
	return err
}

// unquoteToken 去掉服务端返回的令牌两侧的引号
func unquoteToken(text []byte) string {
	s := strings.TrimSpace(string(text))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// endpoint 拼接请求地址，路径参数和查询参数都按 OpenAPI 的 simple/form 风格编码
func (c *Client) endpoint(base, pathFormat string, pathParams []string, query url.Values) (string, error) {
	escaped := make([]interface{}, 0, len(pathParams))
	for _, p := range pathParams {
		if p == "" {
			return "", fmt.Errorf("%w: empty path parameter", ErrInvalidParams)
		}
		v, err := runtime.StyleParamWithLocation("simple", false, "id", runtime.ParamLocationPath, p)
		if err != nil {
			return "", err
		}
		escaped = append(escaped, v)
	}
	u := c.serverURL + base + fmt.Sprintf(pathFormat, escaped...)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u, nil
}

func addQueryParam(query url.Values, name string, value interface{}) error {
	styled, err := runtime.StyleParamWithLocation("form", true, name, runtime.ParamLocationQuery, value)
	if err != nil {
		return err
	}
	parsed, err := url.ParseQuery(styled)
	if err != nil {
		return err
	}
	for k, vs := range parsed {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	return nil
}

func (c *Client) requestParams(ctx context.Context, method, u string, body interface{}) (clientv2.RequestParams, error) {
	if c.Token() == "" {
		return clientv2.RequestParams{}, ErrNotLoggedIn
	}
	params := clientv2.RequestParams{
		Context: ctx,
		Method:  method,
		Url:     u,
		Header:  http.Header{},
	}
	if body != nil {
		getBody, err := clientv2.GetJsonRequestBody(body)
		if err != nil {
			return params, err
		}
		params.GetBody = getBody
	}
	return params, nil
}

// doJSON 发送需要鉴权的请求并将 JSON 响应解码到 ret
func (c *Client) doJSON(ctx context.Context, method, u string, body, ret interface{}) error {
	params, err := c.requestParams(ctx, method, u, body)
	if err != nil {
		return err
	}
	return toAPIError(clientv2.DoAndDecodeJsonResponse(c.httpClient, params, ret))
}

// doRaw 发送需要鉴权的请求并返回完整的响应内容
func (c *Client) doRaw(ctx context.Context, method, u string, body interface{}) ([]byte, error) {
	params, err := c.requestParams(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	data, err := clientv2.DoAndReadResponse(c.httpClient, params)
	if err != nil {
		return nil, toAPIError(err)
	}
	return data, nil
}

// resultResponse 停止沙箱和删除执行记录返回的确认
type resultResponse struct {
	Result string `json:"result"`
}

func decodeJSON(data []byte, ret interface{}) error {
	if err := json.Unmarshal(data, ret); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
