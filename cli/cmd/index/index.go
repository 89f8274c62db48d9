package index

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/compozy/docbuddy/cli/cmd"
	"github.com/compozy/docbuddy/cli/helpers"
	"github.com/compozy/docbuddy/cli/tui/styles"
	"github.com/compozy/docbuddy/engine/knowledge/ingest"
	"github.com/compozy/docbuddy/pkg/logger"
	"github.com/spf13/cobra"
)

// Report is the JSON shape of a finished indexing run.
type Report struct {
	Document   string `json:"document"`
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Persisted  int    `json:"persisted"`
	Duration   string `json:"duration"`
	Message    string `json:"message"`
}

// NewIndexCommand creates the command that embeds a document into the
// configured collection.
func NewIndexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "index <file>",
		Short: "Embed a document into the vector database",
		Long: `Load a PDF, Word, PowerPoint, text or CSV document, split it into
chunks and store their embeddings in the configured collection. The
collection is cleared first.`,
		Args: cobra.ExactArgs(1),
		RunE: executeIndexCommand,
	}
}

func executeIndexCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ModeHandlers{
		JSON: handleIndexJSON,
		TUI:  handleIndexTUI,
	}, args)
}

func handleIndexJSON(ctx context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, args []string) error {
	result, err := Run(ctx, args[0], nil)
	if err != nil {
		return err
	}
	return helpers.WriteJSON(cobraCmd.OutOrStdout(), newReport(args[0], result))
}

func handleIndexTUI(ctx context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, args []string) error {
	out := cobraCmd.OutOrStdout()
	fmt.Fprintln(out, styles.TitleStyle.Render("Indexing "+filepath.Base(args[0])))
	result, err := Run(ctx, args[0], ProgressPrinter(out))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, styles.SuccessStyle.Render(result.Message))
	fmt.Fprintln(out, styles.MutedStyle.Render(fmt.Sprintf(
		"%d %s, %d %s stored in %q (%s)",
		result.Documents, helpers.Pluralize(result.Documents, "section", "sections"),
		result.Persisted, helpers.Pluralize(result.Persisted, "chunk", "chunks"),
		result.Collection, helpers.FormatDuration(result.Duration),
	)))
	return nil
}

// Run stages path in a fresh session and runs the indexing pipeline on it.
// The session and its staged copy are removed afterwards; the embeddings stay
// in the collection.
func Run(ctx context.Context, path string, observer ingest.Observer) (*ingest.Result, error) {
	rt, err := cmd.NewRuntime(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rt.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.FromContext(ctx).Warn("Failed to release session resources", "error", closeErr)
		}
	}()
	sess, err := rt.Sessions.Create(ctx)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer file.Close()
	if _, err := sess.Stage(filepath.Base(path), file); err != nil {
		return nil, err
	}
	var opts []ingest.Option
	if observer != nil {
		opts = append(opts, ingest.WithObserver(observer))
	}
	return sess.CreateEmbeddings(ctx, opts...)
}

// ProgressPrinter renders in-flight pipeline states. Terminal states are left
// to the caller, which reports the result or the error once.
func ProgressPrinter(w io.Writer) ingest.Observer {
	return func(_ context.Context, t ingest.Transition) {
		if t.To.Terminal() {
			return
		}
		line := t.Message
		if line == "" {
			line = progressLabels[t.To]
		}
		fmt.Fprintln(w, styles.MutedStyle.Render("• "+line))
	}
}

var progressLabels = map[ingest.State]string{
	ingest.StateLoading:  "Loading document...",
	ingest.StateChunking: "Splitting into chunks...",
}

func newReport(path string, result *ingest.Result) Report {
	return Report{
		Document:   filepath.Base(path),
		Collection: result.Collection,
		Documents:  result.Documents,
		Chunks:     result.Chunks,
		Persisted:  result.Persisted,
		Duration:   result.Duration.String(),
		Message:    result.Message,
	}
}
