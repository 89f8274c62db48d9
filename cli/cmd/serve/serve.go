package serve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/compozy/docbuddy/cli/cmd"
	"github.com/compozy/docbuddy/cli/helpers"
	"github.com/compozy/docbuddy/engine/infra/monitoring"
	"github.com/compozy/docbuddy/engine/infra/server"
	appconfig "github.com/compozy/docbuddy/pkg/config"
	"github.com/compozy/docbuddy/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the command that runs the HTTP API.
func NewServeCommand() *cobra.Command {
	c := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the DocBuddy HTTP server",
		Long:    "Serve the session API: upload a document, create embeddings and chat over HTTP.",
		RunE:    executeServeCommand,
	}
	c.Flags().String("host", "", "Host interface to bind")
	c.Flags().Int("port", 0, "Port to listen on")
	c.Flags().Bool("cors", false, "Allow cross origin requests")
	c.Flags().Bool("metrics", false, "Expose Prometheus metrics")
	return c
}

func executeServeCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ModeHandlers{
		JSON: handleServe,
	}, args)
}

func handleServe(ctx context.Context, _ *cobra.Command, _ *cmd.CommandExecutor, _ []string) error {
	cfg := appconfig.FromContext(ctx)
	log := logger.FromContext(ctx)
	gin.SetMode(gin.ReleaseMode)
	if err := helpers.EnsurePortAvailable(ctx, cfg.Server.Host, cfg.Server.Port); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	mon, err := monitoring.NewMonitoringService(ctx, monitoring.FromAppConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize monitoring: %w", err)
	}
	mon.SetAsGlobal()
	rt, err := cmd.NewRuntime(ctx)
	if err != nil {
		return errors.Join(err, mon.Shutdown(context.WithoutCancel(ctx)))
	}
	srv, err := server.NewServer(ctx, cfg, rt.Sessions, mon)
	if err != nil {
		cleanupCtx := context.WithoutCancel(ctx)
		return errors.Join(fmt.Errorf("failed to create server: %w", err), rt.Close(cleanupCtx), mon.Shutdown(cleanupCtx))
	}
	log.Info("Starting DocBuddy server",
		"vector_db", cfg.VectorDB.Provider,
		"collection", cfg.VectorDB.Collection,
		"embedder", cfg.Embedder.Model,
		"llm", cfg.LLM.Model,
	)
	return srv.Run(ctx)
}
