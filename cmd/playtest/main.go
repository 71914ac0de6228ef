package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/gamestr/internal/playtest"
)

const (
	defaultPlayers     = 20
	defaultMaxScore    = 500
	defaultWorkers     = 4
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 5 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players  = flag.Int("players", defaultPlayers, "Number of guest submissions")
		maxScore = flag.Int("max-score", defaultMaxScore, "Highest random score")
		workers  = flag.Int("workers", defaultWorkers, "Concurrent submitters")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		output   = flag.String("output", "", "Save submissions as JSON to this file")
		logFile  = flag.String("log", "", "Also write logs to this file")
		verbose  = flag.Bool("verbose", false, "Log every submission")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		playtest.ShowHelp(os.Stdout)
		return
	}

	closer, err := playtest.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &playtest.Config{
		BaseURL:    *baseURL,
		Players:    *players,
		MaxScore:   *maxScore,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *output,
		Verbose:    *verbose,
	}
	if _, err := playtest.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Playtest failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
