// Package playtest drives a running gamestr service with random guest
// scores and checks that the rebuilt leaderboard is consistent.
package playtest

import (
	"time"

	"github.com/okian/gamestr/internal/domain/types"
)

// Config holds configuration for a playtest run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Players    int           // Number of guest submissions
	MaxScore   int           // Scores are drawn from [0, MaxScore]
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for submissions; empty skips saving
	Verbose    bool
}

// Submission is one generated score and what the service answered.
type Submission struct {
	PlayerName string               `json:"player_name"`
	Score      int                  `json:"score"`
	EventID    string               `json:"event_id,omitempty"`
	Accepted   int                  `json:"accepted"`
	Status     int                  `json:"status"`
	Relays     []types.RelayOutcome `json:"relays,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// Stats holds playtest statistics.
type Stats struct {
	RunID              string
	Generated          int
	Submitted          int
	Published          int
	Rejected           int
	Failed             int
	LeaderboardEntries int
	Found              int // published submissions present on the rebuilt board
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
