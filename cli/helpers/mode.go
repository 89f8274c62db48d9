package helpers

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/compozy/docbuddy/cli/tui/models"
)

// ciMarkers are environment variables set by common CI runners.
var ciMarkers = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"CIRCLECI",
	"BUILDKITE",
	"JENKINS_URL",
	"TF_BUILD",
	"CONTINUOUS_INTEGRATION",
}

func inCI() bool {
	for _, name := range ciMarkers {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

func tty(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive is true when stdin and stdout are terminals, TERM is usable
// and no CI marker is set.
func IsInteractive() bool {
	if inCI() || !tty(os.Stdin) || !tty(os.Stdout) {
		return false
	}
	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}

// DetectMode returns ModeJSON when --json is set or the session is not
// interactive.
func DetectMode(cmd *cobra.Command) models.Mode {
	if cmd != nil {
		if f := cmd.Flags().Lookup(FlagJSON); f != nil && f.Value.String() == "true" {
			return models.ModeJSON
		}
	}
	if IsInteractive() {
		return models.ModeTUI
	}
	return models.ModeJSON
}
