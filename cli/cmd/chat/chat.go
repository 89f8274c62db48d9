package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/compozy/docbuddy/cli/cmd"
	"github.com/compozy/docbuddy/cli/tui/models"
	"github.com/compozy/docbuddy/engine/knowledge/ingest"
	"github.com/compozy/docbuddy/engine/session"
	"github.com/compozy/docbuddy/pkg/logger"
)

// Event is one JSON line written in non-interactive mode.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

const (
	EventStaged   = "staged"
	EventProgress = "progress"
	EventIndexed  = "indexed"
	EventReply    = "reply"
	EventError    = "error"
)

// NewChatCommand creates the interactive chat command.
func NewChatCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "chat [file]",
		Short: "Chat with a document",
		Long: `Open a chat session. When a file is given it is indexed before the first
question. In a terminal this starts the interactive screen; otherwise lines
are read from stdin and every event is written as a JSON line.

Commands: /upload <path>, /embed, /quit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: executeChatCommand,
	}
	c.Flags().Int("top-k", 0, "Number of chunks to retrieve")
	c.Flags().Bool("prompt", false, "Ask for the document path before starting")
	return c
}

func executeChatCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ModeHandlers{
		JSON: handleChatJSON,
		TUI:  handleChatTUI,
	}, args)
}

func handleChatTUI(ctx context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, args []string) error {
	file := firstArg(args)
	prompt, err := cobraCmd.Flags().GetBool("prompt")
	if err != nil {
		return fmt.Errorf("failed to get prompt flag: %w", err)
	}
	if file == "" && prompt {
		if file, err = promptForFile(); err != nil {
			return err
		}
	}
	return withSession(ctx, func(sess *session.Session) error {
		if file != "" {
			fmt.Fprintf(cobraCmd.OutOrStdout(), "Indexing %s...\n", filepath.Base(file))
			if err := stageAndEmbed(ctx, sess, file, nil); err != nil {
				return err
			}
		}
		p := tea.NewProgram(models.NewChatModel(ctx, sess), tea.WithAltScreen(), tea.WithContext(ctx))
		finalModel, err := p.Run()
		if err != nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		if m, ok := finalModel.(*models.ChatModel); ok && m.Error() != nil {
			logger.FromContext(ctx).Debug("Chat ended with an error", "error", m.Error())
		}
		return nil
	})
}

func handleChatJSON(ctx context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, args []string) error {
	return withSession(ctx, func(sess *session.Session) error {
		out := json.NewEncoder(cobraCmd.OutOrStdout())
		if file := firstArg(args); file != "" {
			if err := stageAndEmbed(ctx, sess, file, progressEvents(out)); err != nil {
				return err
			}
			if err := out.Encode(Event{Type: EventIndexed, Content: filepath.Base(file)}); err != nil {
				return err
			}
		}
		return RunLines(ctx, sess, cobraCmd.InOrStdin(), cobraCmd.OutOrStdout())
	})
}

// RunLines drives sess from newline separated input until EOF or /quit.
// Failed commands are reported as error events and do not end the loop.
func RunLines(ctx context.Context, sess models.ChatSession, in io.Reader, w io.Writer) error {
	out := json.NewEncoder(w)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}
		event := handleLine(ctx, sess, line, out)
		if err := out.Encode(event); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func handleLine(ctx context.Context, sess models.ChatSession, line string, out *json.Encoder) Event {
	switch {
	case line == "/embed":
		if sess.Document() == nil {
			return Event{Type: EventError, Error: session.MessageNoDocument}
		}
		result, err := sess.CreateEmbeddings(ctx, ingest.WithObserver(progressEvents(out)))
		if err != nil {
			return Event{Type: EventError, Error: err.Error()}
		}
		return Event{Type: EventIndexed, Content: result.Message}
	case line == "/upload" || strings.HasPrefix(line, "/upload "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/upload"))
		if path == "" {
			return Event{Type: EventError, Error: "usage: /upload <path>"}
		}
		doc, err := stage(sess, path)
		if err != nil {
			return Event{Type: EventError, Error: err.Error()}
		}
		return Event{Type: EventStaged, Content: doc.Name}
	}
	reply := sess.Send(ctx, line)
	return Event{Type: EventReply, Content: reply.Content}
}

func progressEvents(out *json.Encoder) ingest.Observer {
	return func(_ context.Context, t ingest.Transition) {
		if t.Message == "" || t.To.Terminal() {
			return
		}
		_ = out.Encode(Event{Type: EventProgress, Content: t.Message})
	}
}

func withSession(ctx context.Context, fn func(sess *session.Session) error) error {
	rt, err := cmd.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.FromContext(ctx).Warn("Failed to release session resources", "error", closeErr)
		}
	}()
	sess, err := rt.Sessions.Create(ctx)
	if err != nil {
		return err
	}
	return fn(sess)
}

func stageAndEmbed(ctx context.Context, sess models.ChatSession, path string, observer ingest.Observer) error {
	if _, err := stage(sess, path); err != nil {
		return err
	}
	var opts []ingest.Option
	if observer != nil {
		opts = append(opts, ingest.WithObserver(observer))
	}
	_, err := sess.CreateEmbeddings(ctx, opts...)
	return err
}

func stage(sess models.ChatSession, path string) (*session.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()
	return sess.Stage(filepath.Base(path), f)
}

func promptForFile() (string, error) {
	var path string
	err := huh.NewInput().
		Title("Document").
		Description("Path to a .pdf, .txt, .docx, .pptx or .csv file").
		Value(&path).
		Validate(validatePath).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", context.Canceled
		}
		return "", fmt.Errorf("failed to read document path: %w", err)
	}
	return strings.TrimSpace(path), nil
}

func validatePath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
