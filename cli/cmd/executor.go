package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compozy/docbuddy/cli/helpers"
	"github.com/compozy/docbuddy/cli/tui/models"
	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/pkg/logger"
)

// CommandExecutor dispatches a command to the handler for its output mode.
type CommandExecutor struct {
	mode models.Mode
}

type HandlerFunc func(ctx context.Context, cmd *cobra.Command, executor *CommandExecutor, args []string) error

// ModeHandlers pairs a handler with each output mode. TUI falls back to
// JSON when only JSON is set.
type ModeHandlers struct {
	JSON HandlerFunc
	TUI  HandlerFunc
}

func (h ModeHandlers) pick(mode models.Mode) (HandlerFunc, error) {
	switch mode {
	case models.ModeJSON:
		if h.JSON != nil {
			return h.JSON, nil
		}
	case models.ModeTUI:
		if h.TUI != nil {
			return h.TUI, nil
		}
		if h.JSON != nil {
			return h.JSON, nil
		}
	default:
		return nil, fmt.Errorf("unsupported mode: %s", mode)
	}
	return nil, fmt.Errorf("%s mode handler not implemented", mode)
}

func NewCommandExecutor(cmd *cobra.Command) *CommandExecutor {
	mode := helpers.DetectMode(cmd)
	logger.FromContext(cmd.Context()).Debug("Detected execution mode", "mode", mode)
	return &CommandExecutor{mode: mode}
}

func (e *CommandExecutor) Mode() models.Mode {
	return e.mode
}

// Execute runs the handler for the executor's mode with a context that is
// cancelled when it returns.
func (e *CommandExecutor) Execute(ctx context.Context, cmd *cobra.Command, handlers ModeHandlers, args []string) error {
	handler, err := handlers.pick(e.mode)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return handler(ctx, cmd, e, args)
}

// ExecuteCommand detects the mode, runs the matching handler and reports
// any failure.
func ExecuteCommand(cmd *cobra.Command, handlers ModeHandlers, args []string) error {
	e := NewCommandExecutor(cmd)
	return HandleCommonErrors(cmd, e.Execute(cmd.Context(), cmd, handlers, args), e.Mode())
}

// HandleCommonErrors prints err in mode and returns it so cobra sets a
// non-zero exit status.
func HandleCommonErrors(cmd *cobra.Command, err error, mode models.Mode) error {
	if err == nil {
		return nil
	}
	err = categorize(err)
	helpers.OutputError(cmd.ErrOrStderr(), err, mode)
	return err
}

// categorize maps known failures to CliErrors. Errors that already are
// CliErrors, and unknown ones, are returned unchanged.
func categorize(err error) error {
	var cliErr *helpers.CliError
	if errors.As(err, &cliErr) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return helpers.NewCliError("OPERATION_CANCELED", "Operation was canceled by user")
	case errors.Is(err, context.DeadlineExceeded):
		return helpers.NewCliError("OPERATION_TIMEOUT", "Operation timed out")
	case errors.Is(err, core.ErrUnsupportedFormat):
		return helpers.WrapCliError(core.CodeUnsupportedFormat, "Unsupported document format", err)
	case errors.Is(err, core.ErrEmptyDocument):
		return helpers.WrapCliError(core.CodeEmptyDocument, "Document contains no text", err)
	case helpers.IsNetworkError(err):
		return helpers.WrapCliError("NETWORK_ERROR", "Network connection failed", err)
	}
	return err
}
