package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nicekwell/easyweb3-sentiment/internal/config"
)

// New builds the process logger. Every entry carries the service name and env.
func New(app config.AppConfig, cfg config.LogConfig) (*zap.Logger, error) {
	return buildConfig(app, cfg).Build()
}

func buildConfig(app config.AppConfig, cfg config.LogConfig) zap.Config {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoding := strings.ToLower(strings.TrimSpace(cfg.Encoding))
	if encoding != "console" {
		encoding = "json"
	}

	enc := zap.NewProductionEncoderConfig()
	if encoding == "console" {
		enc = zap.NewDevelopmentEncoderConfig()
	}
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	out := cfg.OutputPaths
	if len(out) == 0 {
		out = []string{"stdout"}
	}

	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encoding,
		DisableCaller:     cfg.DisableCaller,
		DisableStacktrace: cfg.DisableStacktrace,
		EncoderConfig:     enc,
		OutputPaths:       out,
		ErrorOutputPaths:  []string{"stderr"},
		InitialFields:     map[string]any{},
	}
	if name := strings.TrimSpace(app.Name); name != "" {
		zc.InitialFields["service"] = name
	}
	if env := strings.TrimSpace(app.Env); env != "" {
		zc.InitialFields["env"] = env
	}

	if cfg.Sampling {
		zc.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	}
	return zc
}
