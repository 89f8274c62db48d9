package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/compozy/docbuddy/engine/infra/monitoring"
	"github.com/compozy/docbuddy/engine/infra/server/appstate"
	"github.com/compozy/docbuddy/engine/session"
	appconfig "github.com/compozy/docbuddy/pkg/config"
	"github.com/compozy/docbuddy/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	httpReadTimeout        = 15 * time.Second
	httpIdleTimeout        = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

type Server struct {
	config     *appconfig.Config
	sessions   *session.Manager
	monitoring *monitoring.Service
	router     *gin.Engine
}

func NewServer(ctx context.Context, cfg *appconfig.Config, sessions *session.Manager, mon *monitoring.Service) (*Server, error) {
	state, err := appstate.NewState(cfg, sessions)
	if err != nil {
		return nil, err
	}
	s := &Server{config: cfg, sessions: sessions, monitoring: mon}
	s.router = s.buildRouter(logger.FromContext(ctx), state)
	return s, nil
}

func (s *Server) buildRouter(log logger.Logger, state *appstate.State) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(log))
	if s.monitoring != nil {
		r.Use(s.monitoring.GinMiddleware())
	}
	if s.config.Server.CORSEnabled {
		r.Use(CORSMiddleware())
	}
	r.Use(appstate.StateMiddleware(state))
	RegisterRoutes(r, s.monitoring)
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Address() string {
	return net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
}

// Run serves until ctx is cancelled, then drains in-flight requests and tears
// down every session.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	srv := &http.Server{
		Addr:              s.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: httpReadTimeout,
		WriteTimeout:      s.config.Server.Timeout,
		IdleTimeout:       httpIdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("http://%s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	log.Info("Shutting down HTTP server")
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := s.sessions.CloseAll(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("close sessions: %w", err))
	}
	if s.monitoring != nil {
		if err := s.monitoring.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("monitoring shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
