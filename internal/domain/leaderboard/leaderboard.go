// Package leaderboard turns raw score and profile events into a ranked board.
//
// Everything here is pure: the relay round trips live in the app layer, which
// calls ExtractScores, Identities, ParseProfile and Render in that order.
package leaderboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/okian/gamestr/internal/domain/model"
)

// Tag names of a score announcement.
const (
	TagGame   = "game"
	TagScore  = "score"
	TagPlayer = "p"
	TagTopic  = "t"
	TagDedup  = "d"
)

// Fallback display names.
const (
	UnknownName = "Unknown"
	GuestName   = "Guest"
)

// ErrMalformedProfile is returned for kind-0 content that is not a JSON object.
var ErrMalformedProfile = errors.New("malformed profile metadata")

var scoredPrefix = regexp.MustCompile(`^(.*?) scored`)

// TagValue returns the first value of the first tag named key.
func TagValue(tags nostr.Tags, key string) (string, bool) {
	for _, t := range tags {
		if len(t) >= 2 && t[0] == key {
			return t[1], true
		}
	}
	return "", false
}

// ParseScore reads a decimal score tag. Missing, non-numeric and negative
// values are 0.
func ParseScore(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ExtractScores keeps the events whose game tag matches gameID
// case-insensitively and returns them sorted by descending score. Ties keep
// the order in which the relay returned them.
func ExtractScores(events []nostr.Event, gameID string) []model.ScoreRecord {
	out := make([]model.ScoreRecord, 0, len(events))
	for i := range events {
		ev := &events[i]
		game, ok := TagValue(ev.Tags, TagGame)
		if !ok || !strings.EqualFold(game, gameID) {
			continue
		}
		raw, _ := TagValue(ev.Tags, TagScore)
		identity, _ := TagValue(ev.Tags, TagPlayer)
		identity = strings.TrimSpace(identity)
		if strings.EqualFold(identity, model.GuestIdentity) {
			identity = ""
		}
		out = append(out, model.ScoreRecord{
			EventID:        ev.ID,
			RawContent:     ev.Content,
			Score:          ParseScore(raw),
			PlayerIdentity: identity,
			CreatedAt:      ev.CreatedAt.Time(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Identities returns the distinct non-guest identities in first-seen order.
func Identities(records []model.ScoreRecord) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0, len(records))
	for _, r := range records {
		if r.IsGuest() {
			continue
		}
		if _, ok := seen[r.PlayerIdentity]; ok {
			continue
		}
		seen[r.PlayerIdentity] = struct{}{}
		out = append(out, r.PlayerIdentity)
	}
	return out
}

type metadata struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	NIP05       string `json:"nip05"`
	Picture     string `json:"picture"`
}

// ParseProfile decodes a kind-0 event. The display name falls back from name
// to display_name to nip05 to "Unknown"; an empty picture uses defaultPicture.
func ParseProfile(ev nostr.Event, defaultPicture string) (model.ProfileRecord, error) {
	var md metadata
	if err := json.Unmarshal([]byte(ev.Content), &md); err != nil {
		return model.ProfileRecord{}, fmt.Errorf("%w: %s: %w", ErrMalformedProfile, ev.PubKey, err)
	}

	name := UnknownName
	for _, candidate := range []string{md.Name, md.DisplayName, md.NIP05} {
		if c := strings.TrimSpace(candidate); c != "" {
			name = c
			break
		}
	}
	picture := strings.TrimSpace(md.Picture)
	if picture == "" {
		picture = defaultPicture
	}

	return model.ProfileRecord{
		Identity:    ev.PubKey,
		DisplayName: name,
		PictureURL:  picture,
		CreatedAt:   ev.CreatedAt.Time(),
	}, nil
}

// NameFromContent returns the text before " scored" in a score event's
// content, or "Guest".
func NameFromContent(content string) string {
	m := scoredPrefix.FindStringSubmatch(content)
	if m == nil {
		return GuestName
	}
	if name := strings.TrimSpace(m[1]); name != "" {
		return name
	}
	return GuestName
}

// Render joins the sorted records with their profiles and assigns ranks.
// An empty result is marked model.StatusEmpty.
func Render(records []model.ScoreRecord, profiles map[string]model.ProfileRecord, defaultPicture string, builtAt time.Time) model.Board {
	entries := make([]model.RankedEntry, 0, len(records))
	for i, r := range records {
		entry := model.RankedEntry{
			Rank:     i + 1,
			EventID:  r.EventID,
			Identity: r.PlayerIdentity,
			Score:    r.Score,
		}
		if p, ok := profiles[r.PlayerIdentity]; ok && !r.IsGuest() {
			entry.DisplayName = p.DisplayName
			entry.PictureURL = p.PictureURL
			entry.Verified = true
		} else {
			entry.DisplayName = NameFromContent(r.RawContent)
			entry.PictureURL = defaultPicture
		}
		entries = append(entries, entry)
	}

	status := model.StatusReady
	if len(entries) == 0 {
		status = model.StatusEmpty
	}
	return model.Board{Status: status, Entries: entries, BuiltAt: builtAt}
}

// ProfileIndex is the result of IndexProfiles.
type ProfileIndex struct {
	Profiles  map[string]model.ProfileRecord
	Malformed int
}

// IndexProfiles parses kind-0 events authored by one of wanted. Malformed
// entries are counted and skipped; for repeated authors the newest wins.
func IndexProfiles(events []nostr.Event, wanted []string, defaultPicture string) ProfileIndex {
	want := make(map[string]struct{}, len(wanted))
	for _, w := range wanted {
		want[w] = struct{}{}
	}

	idx := ProfileIndex{Profiles: make(map[string]model.ProfileRecord, len(wanted))}
	for i := range events {
		ev := events[i]
		if ev.Kind != nostr.KindProfileMetadata {
			continue
		}
		if _, ok := want[ev.PubKey]; !ok {
			continue
		}
		p, err := ParseProfile(ev, defaultPicture)
		if err != nil {
			idx.Malformed++
			continue
		}
		if prev, ok := idx.Profiles[p.Identity]; ok && prev.CreatedAt.After(p.CreatedAt) {
			continue
		}
		idx.Profiles[p.Identity] = p
	}
	return idx
}
