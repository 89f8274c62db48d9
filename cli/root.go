package cli

import (
	"github.com/compozy/docbuddy/cli/cmd/ask"
	"github.com/compozy/docbuddy/cli/cmd/chat"
	configcmd "github.com/compozy/docbuddy/cli/cmd/config"
	"github.com/compozy/docbuddy/cli/cmd/index"
	"github.com/compozy/docbuddy/cli/cmd/serve"
	versioncmd "github.com/compozy/docbuddy/cli/cmd/version"
	"github.com/compozy/docbuddy/cli/helpers"
	"github.com/compozy/docbuddy/pkg/version"
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docbuddy",
		Short: "Chat with your documents",
		Long: `DocBuddy indexes a document into a vector database and answers questions
about it with a local or hosted language model.`,
		Version:           version.Get().String(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: bootstrap,
	}
	flags := root.PersistentFlags()
	flags.String(helpers.FlagConfig, "docbuddy.yaml", "Path to the config file")
	flags.String(helpers.FlagEnvFile, ".env", "Path to an environment file")
	flags.Bool(helpers.FlagJSON, false, "Print machine readable JSON")
	flags.String(helpers.FlagLogLevel, "info", "Log level (debug, info, warn, error, disabled)")
	flags.Bool(helpers.FlagLogJSON, false, "Write logs as JSON")
	flags.Bool(helpers.FlagLogSource, false, "Include source locations in logs")
	flags.String("vector-db", "", "Vector database (qdrant, pgvector, redis, filesystem, memory)")
	flags.String("vector-db-url", "", "Vector database URL")
	flags.String("collection", "", "Vector database collection")
	flags.String("embedder", "", "Embedding provider (local, ollama, openai, mock)")
	flags.String("embedding-model", "", "Embedding model name")
	flags.String("llm", "", "Chat model provider (ollama, openai, mock)")
	flags.String("model", "", "Chat model name")

	root.AddCommand(
		serve.NewServeCommand(),
		index.NewIndexCommand(),
		ask.NewAskCommand(),
		chat.NewChatCommand(),
		configcmd.NewConfigCommand(),
		versioncmd.NewVersionCommand(),
	)
	return root
}
