// Package types contains the JSON shapes exchanged over the HTTP API.
package types

import "time"

// Entry represents a leaderboard entry.
type Entry struct {
	Rank        int    `json:"rank"`
	EventID     string `json:"event_id"`
	Identity    string `json:"identity,omitempty"`
	DisplayName string `json:"display_name"`
	PictureURL  string `json:"picture_url"`
	Score       int    `json:"score"`
	Verified    bool   `json:"verified"`
}

// Leaderboard is the GET /leaderboard response.
type Leaderboard struct {
	Status  string     `json:"status"`
	Message string     `json:"message,omitempty"`
	BuiltAt *time.Time `json:"built_at,omitempty"`
	Total   int        `json:"total"`
	Entries []Entry    `json:"entries"`
}

// SubmitScoreRequest is the POST /scores body.
type SubmitScoreRequest struct {
	PlayerName   string `json:"player_name"`
	PlayerPubkey string `json:"player_pubkey,omitempty"`
	Score        int    `json:"score"`
}

// ShareScoreRequest is the POST /share body. An empty Text uses the share template.
type ShareScoreRequest struct {
	Score int    `json:"score"`
	Text  string `json:"text,omitempty"`
}

// RelayOutcome reports one relay's answer to a publish.
type RelayOutcome struct {
	Relay     string `json:"relay"`
	Accepted  bool   `json:"accepted"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// PublishResponse is returned by POST /scores and POST /share.
type PublishResponse struct {
	EventID  string         `json:"event_id"`
	Accepted int            `json:"accepted"`
	Relays   []RelayOutcome `json:"relays"`
}

// Profile is the GET /profile/{identity} response.
type Profile struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
	PictureURL  string `json:"picture_url"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
