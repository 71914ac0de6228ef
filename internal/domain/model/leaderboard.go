// Package model contains domain models passed between layers.
package model

import "time"

// GuestIdentity is the placeholder identity the remote signer receives for
// anonymous players. Score events carrying it are rendered as guests.
const GuestIdentity = "guest"

// ScoreRecord is the parsed view of one score announcement.
type ScoreRecord struct {
	EventID        string
	RawContent     string
	Score          int    // non-negative; unparsable tags become 0
	PlayerIdentity string // empty for guests
	CreatedAt      time.Time
}

// IsGuest reports whether the record has no player identity to enrich.
func (r ScoreRecord) IsGuest() bool { return r.PlayerIdentity == "" }

// ProfileRecord is the display data parsed from a kind-0 event.
type ProfileRecord struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	PictureURL  string    `json:"picture_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// RankedEntry is one rendered row of the leaderboard.
type RankedEntry struct {
	Rank        int
	EventID     string
	Identity    string // empty for guests
	DisplayName string
	PictureURL  string
	Score       int
	Verified    bool
}

// Status tells a client how to render a board.
type Status string

// Board states. StatusEmpty is distinct from StatusLoading so clients can
// show "No scores yet" only once a build actually finished.
const (
	StatusLoading Status = "loading"
	StatusEmpty   Status = "empty"
	StatusReady   Status = "ready"
)

// EmptyMessage is shown when a finished board has no entries.
const EmptyMessage = "No scores yet. Be the first!"

// Board is an immutable leaderboard snapshot. Entries is never nil.
type Board struct {
	Status  Status
	Entries []RankedEntry
	BuiltAt time.Time
}

// LoadingBoard is the board served before the first build completes.
func LoadingBoard() Board {
	return Board{Status: StatusLoading, Entries: []RankedEntry{}}
}

// RefreshRequest asks the refresh workers to rebuild the board.
type RefreshRequest struct {
	Reason      string
	RequestedAt time.Time
}
