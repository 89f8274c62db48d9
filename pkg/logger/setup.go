package logger

import (
	"io"
	"os"
)

// SetupLogger initializes the process logger on stderr, leaving stdout to
// command output.
func SetupLogger(logLevel string, logJSON, logSource bool) Logger {
	return SetupLoggerWithOutput(os.Stderr, logLevel, logJSON, logSource)
}

func SetupLoggerWithOutput(out io.Writer, logLevel string, logJSON, logSource bool) Logger {
	return Init(&Config{
		Level:      ParseLevel(logLevel),
		Output:     out,
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	})
}
