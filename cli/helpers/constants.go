package helpers

// OutputFormat represents different output formats
type OutputFormat string

const (
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
	OutputFormatYAML  OutputFormat = "yaml"
	OutputFormatTUI   OutputFormat = "tui"
)

// Persistent flag names shared by every command.
const (
	FlagConfig    = "config"
	FlagEnvFile   = "env-file"
	FlagJSON      = "json"
	FlagLogLevel  = "log-level"
	FlagLogJSON   = "log-json"
	FlagLogSource = "log-source"
)
