package ui

// Config contains settings that only come from the environment.
type Config struct {
	// Debug turns on debug-level logging.
	Debug bool `env:"CHATTTS_DEBUG"`

	// LogStderr mirrors the log file to stderr even when the status line
	// is running.
	LogStderr bool `env:"CHATTTS_LOG_STDERR"`

	// AltScreen draws the status line on the alternate screen.
	AltScreen bool `env:"CHATTTS_ALT_SCREEN" envDefault:"false"`
}
