package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/compozy/docbuddy/cli/cmd"
	"github.com/compozy/docbuddy/cli/helpers"
	appconfig "github.com/compozy/docbuddy/pkg/config"
	"github.com/compozy/docbuddy/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// flagConfigKeys maps flags to the configuration path they override. Only
// flags set on the command line are applied, so unset flags never shadow
// YAML or environment values.
var flagConfigKeys = map[string]string{
	helpers.FlagLogLevel:  "log.level",
	helpers.FlagLogJSON:   "log.json",
	helpers.FlagLogSource: "log.source",
	"vector-db":           "vectordb.provider",
	"vector-db-url":       "vectordb.url",
	"collection":          "vectordb.collection",
	"embedder":            "embedder.provider",
	"embedding-model":     "embedder.model",
	"llm":                 "llm.provider",
	"model":               "llm.model",
	"host":                "server.host",
	"port":                "server.port",
	"cors":                "server.cors_enabled",
	"metrics":             "monitoring.enabled",
	"top-k":               "retrieval.top_k",
}

// bootstrap loads the environment file and configuration, then attaches the
// config, its service and a logger to the command context.
func bootstrap(cobraCmd *cobra.Command, _ []string) error {
	if err := loadEnvFile(cobraCmd); err != nil {
		return cmd.HandleCommonErrors(cobraCmd, err, helpers.DetectMode(cobraCmd))
	}
	configPath, err := cobraCmd.Flags().GetString(helpers.FlagConfig)
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	ctx := cobraCmd.Context()
	svc := appconfig.NewService()
	cfg, err := svc.Load(ctx, appconfig.NewYAMLProvider(configPath), appconfig.NewCLIProvider(changedFlags(cobraCmd)))
	if err != nil {
		err = helpers.WrapCliError("CONFIG_ERROR", "Failed to load configuration", err)
		return cmd.HandleCommonErrors(cobraCmd, err, helpers.DetectMode(cobraCmd))
	}
	log := logger.SetupLoggerWithOutput(cobraCmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.JSON, cfg.Log.Source)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = appconfig.ContextWithConfig(ctx, cfg)
	ctx = appconfig.ContextWithService(ctx, svc)
	cobraCmd.SetContext(ctx)
	log.Debug("Configuration loaded", "config_file", configPath, "vector_db", cfg.VectorDB.Provider)
	return nil
}

// loadEnvFile reads the env file when present. A missing default file is
// fine; a missing file named explicitly is not.
func loadEnvFile(cobraCmd *cobra.Command) error {
	path, err := cobraCmd.Flags().GetString(helpers.FlagEnvFile)
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !cobraCmd.Flags().Changed(helpers.FlagEnvFile) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func changedFlags(cobraCmd *cobra.Command) map[string]any {
	out := make(map[string]any)
	for name, key := range flagConfigKeys {
		flag := cobraCmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		out[key] = flag.Value.String()
	}
	return out
}
