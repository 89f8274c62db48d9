package appstate

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/compozy/docbuddy/engine/session"
	appconfig "github.com/compozy/docbuddy/pkg/config"
)

// ErrNotFound is returned when a request context carries no State.
var ErrNotFound = errors.New("app state not found in context")

type stateKey struct{}

// State is what handlers need from the running server.
type State struct {
	Config    *appconfig.Config
	Sessions  *session.Manager
	StartedAt time.Time
}

func NewState(cfg *appconfig.Config, sessions *session.Manager) (*State, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("config is required")
	case sessions == nil:
		return nil, errors.New("session manager is required")
	}
	return &State{Config: cfg, Sessions: sessions, StartedAt: time.Now()}, nil
}

// Uptime is the time elapsed since the state was built.
func (s *State) Uptime() time.Duration {
	return time.Since(s.StartedAt).Round(time.Second)
}

func WithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, stateKey{}, state)
}

func GetState(ctx context.Context) (*State, error) {
	if state, ok := ctx.Value(stateKey{}).(*State); ok && state != nil {
		return state, nil
	}
	return nil, ErrNotFound
}

// StateMiddleware makes state reachable from every request context.
func StateMiddleware(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithState(c.Request.Context(), state))
		c.Next()
	}
}
