package playtest

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/gamestr/pkg/logger"
)

// SetupLogging logs to stdout and, when logFile is set, to that file too.
// The returned closer releases the file.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closer = f
	}
	if err := logger.Init(logger.WithWriter(w)); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			return nil, err
		}
	}
	return closer, nil
}

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `gamestr playtest
================

Submits random guest scores to a running service, rebuilds the leaderboard
and checks that it is ranked consistently.

Usage:
  go run ./cmd/playtest [options]

Options:
  -url string       Base URL of the service (default "http://localhost:9080")
  -players int      Number of guest submissions (default 20)
  -max-score int    Highest random score (default 500)
  -workers int      Concurrent submitters (default 4)
  -timeout duration HTTP request timeout (default 30s)
  -output string    Save submissions as JSON to this file
  -log string       Also write logs to this file
  -verbose          Log every submission
  -help             Show this message
`)
}
