package config

import (
	"context"
	"sync"

	"github.com/compozy/docbuddy/pkg/logger"
)

type ContextKey string

const ConfigCtxKey ContextKey = "config"

// ContextWithConfig stores the active configuration in the context.
func ContextWithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ConfigCtxKey, cfg)
}

var (
	fallbackConfig *Config
	fallbackOnce   sync.Once
)

// FromContext returns the configuration attached to ctx. When none is present
// it lazily loads defaults plus environment overrides.
func FromContext(ctx context.Context) *Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(ConfigCtxKey).(*Config); ok && cfg != nil {
			return cfg
		}
	}
	fallbackOnce.Do(func() {
		cfg, err := NewService().Load(ctx)
		if err != nil {
			logger.FromContext(ctx).Warn("failed to load default configuration, using built-in defaults", "error", err)
			cfg = Default()
		}
		fallbackConfig = cfg
	})
	return fallbackConfig
}

const ServiceCtxKey ContextKey = "config_service"

// ContextWithService stores the service that produced the active config so
// callers can ask where a value came from.
func ContextWithService(ctx context.Context, svc Service) context.Context {
	return context.WithValue(ctx, ServiceCtxKey, svc)
}

// ServiceFromContext returns the attached service or nil.
func ServiceFromContext(ctx context.Context) Service {
	if ctx == nil {
		return nil
	}
	svc, _ := ctx.Value(ServiceCtxKey).(Service)
	return svc
}
