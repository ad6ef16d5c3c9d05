// Package exitcodes defines the process exit codes of the blocks CLI.
package exitcodes

const (
	OK              = 0
	General         = 1
	UsageError      = 2
	ConfigError     = 3
	NetworkError    = 4
	ResolutionError = 5
	StrictModeError = 6
	Cancelled       = 130
)
