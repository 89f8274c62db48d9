package ask

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/compozy/docbuddy/cli/cmd"
	"github.com/compozy/docbuddy/cli/helpers"
	"github.com/compozy/docbuddy/cli/tui/styles"
	"github.com/compozy/docbuddy/engine/assistant"
	"github.com/compozy/docbuddy/pkg/logger"
	"github.com/spf13/cobra"
)

// Output is the JSON shape of one answered question.
type Output struct {
	Question string             `json:"question"`
	Answer   string             `json:"answer"`
	Sources  []assistant.Source `json:"sources,omitempty"`
}

// NewAskCommand creates the one-shot question command.
func NewAskCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question from the indexed document",
		Long: `Retrieve the chunks closest to the question from the configured collection
and answer from them. With --file the document is indexed first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: executeAskCommand,
	}
	c.Flags().StringP("file", "f", "", "Index this document before answering")
	c.Flags().Int("top-k", 0, "Number of chunks to retrieve")
	return c
}

func executeAskCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ModeHandlers{
		JSON: handleAskJSON,
		TUI:  handleAskTUI,
	}, args)
}

func handleAskJSON(ctx context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, args []string) error {
	out, err := run(ctx, cobraCmd, args)
	if err != nil {
		return err
	}
	return helpers.WriteJSON(cobraCmd.OutOrStdout(), out)
}

func handleAskTUI(ctx context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, args []string) error {
	out, err := run(ctx, cobraCmd, args)
	if err != nil {
		return err
	}
	w := cobraCmd.OutOrStdout()
	fmt.Fprintln(w, styles.AssistantStyle.Render("DocBuddy"))
	fmt.Fprintln(w, out.Answer)
	if len(out.Sources) > 0 {
		fmt.Fprintln(w)
		for _, src := range out.Sources {
			name := src.Name
			if name == "" {
				name = src.ID
			}
			fmt.Fprintln(w, styles.MutedStyle.Render(fmt.Sprintf("  %s (%.3f)", name, src.Score)))
		}
	}
	return nil
}

func run(ctx context.Context, cobraCmd *cobra.Command, args []string) (*Output, error) {
	question := strings.TrimSpace(strings.Join(args, " "))
	file, err := cobraCmd.Flags().GetString("file")
	if err != nil {
		return nil, fmt.Errorf("failed to get file flag: %w", err)
	}
	if file != "" {
		return askAfterIndexing(ctx, file, question)
	}
	return Ask(ctx, question)
}

// Ask answers question over whatever the configured collection holds.
func Ask(ctx context.Context, question string) (*Output, error) {
	rt, err := cmd.NewRuntime(ctx)
	if err != nil {
		return nil, err
	}
	svc, closeFn, err := rt.OpenAssistant(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.FromContext(ctx).Warn("Failed to close assistant", "error", err)
		}
	}()
	answer, err := svc.Ask(ctx, question)
	if err != nil {
		return nil, err
	}
	return &Output{Question: question, Answer: answer.Text, Sources: answer.Sources}, nil
}

// askAfterIndexing indexes file and asks in the same session, so it also
// works with the in-process memory store.
func askAfterIndexing(ctx context.Context, file, question string) (*Output, error) {
	rt, err := cmd.NewRuntime(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rt.Close(context.WithoutCancel(ctx)); err != nil {
			logger.FromContext(ctx).Warn("Failed to release session resources", "error", err)
		}
	}()
	sess, err := rt.Sessions.Create(ctx)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()
	if _, err := sess.Stage(filepath.Base(file), f); err != nil {
		return nil, err
	}
	if _, err := sess.CreateEmbeddings(ctx); err != nil {
		return nil, err
	}
	reply := sess.Send(ctx, question)
	return &Output{Question: question, Answer: reply.Content}, nil
}
