// internal/infra/logging/logger.go
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger.
//   - local env: development config (console encoder, debug level)
//   - otherwise: production JSON config
//
// level overrides the config level when it parses ("debug", "warn", ...).
func New(local bool, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if local {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if lv := strings.TrimSpace(level); lv != "" {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(strings.ToLower(lv))); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(l)
		}
	}

	return cfg.Build()
}
