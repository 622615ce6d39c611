package log

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 日志配置
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
}

var std atomic.Pointer[zap.Logger]

func init() {
	std.Store(zap.NewNop())
}

// New 按配置创建 zap 日志器
func New(cfg Config) (*zap.Logger, error) {
	var level zapcore.Level
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = []string{"stderr"}
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = cfg.OutputPaths
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.DisableStacktrace = !cfg.Development
	return zapCfg.Build()
}

// SetLogger 替换 SDK 内部使用的日志器，传入 nil 则恢复为不输出
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	std.Store(logger)
}

// Logger 返回 SDK 内部使用的日志器
func Logger() *zap.Logger {
	return std.Load()
}

func Debug(msg string, fields ...zap.Field) {
	std.Load().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	std.Load().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	std.Load().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	std.Load().Error(msg, fields...)
}
