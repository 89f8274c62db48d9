package monitoring

import (
	"errors"
	"fmt"
	"strings"

	appconfig "github.com/compozy/docbuddy/pkg/config"
)

const defaultPath = "/metrics"

// Config controls the Prometheus endpoint.
type Config struct {
	Enabled bool
	Path    string
}

func DefaultConfig() *Config {
	return &Config{Path: defaultPath}
}

// FromAppConfig reads the monitoring section, keeping the default path when
// none is set.
func FromAppConfig(cfg *appconfig.Config) *Config {
	out := DefaultConfig()
	if cfg != nil {
		out.Enabled = cfg.Monitoring.Enabled
		if p := strings.TrimSpace(cfg.Monitoring.Path); p != "" {
			out.Path = p
		}
	}
	return out
}

// Validate requires an absolute path outside /api/ with no query string.
func (c *Config) Validate() error {
	switch {
	case c.Path == "":
		return errors.New("monitoring path cannot be empty")
	case !strings.HasPrefix(c.Path, "/"):
		return fmt.Errorf("monitoring path must start with '/': got %s", c.Path)
	case strings.HasPrefix(c.Path, "/api/"):
		return errors.New("monitoring path cannot be under /api/")
	case strings.ContainsRune(c.Path, '?'):
		return errors.New("monitoring path cannot contain query parameters")
	}
	return nil
}
