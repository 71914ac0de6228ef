package repository

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/gamestr/internal/domain/model"
	"github.com/okian/gamestr/pkg/metrics"
)

// Snapshot is an immutable view of a published board with O(1) rank lookups.
type Snapshot struct {
	Board      model.Board
	ByIdentity map[string]int // identity -> index of its best entry
	ByEvent    map[string]int // event id -> index
}

// BoardStore is a lock-free Store: readers load the current snapshot
// pointer, writers swap in a freshly built one.
type BoardStore struct {
	now      func() time.Time
	snapshot atomic.Pointer[Snapshot]
}

var _ Store = (*BoardStore)(nil)

// NewBoardStore returns a store serving a loading board.
func NewBoardStore(opts ...Option) *BoardStore {
	s := &BoardStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(newSnapshot(model.LoadingBoard()))
	return s
}

func newSnapshot(b model.Board) *Snapshot {
	if b.Entries == nil {
		b.Entries = []model.RankedEntry{}
	}
	snap := &Snapshot{
		Board:      b,
		ByIdentity: make(map[string]int, len(b.Entries)),
		ByEvent:    make(map[string]int, len(b.Entries)),
	}
	for i, e := range b.Entries {
		if e.EventID != "" {
			snap.ByEvent[e.EventID] = i
		}
		if e.Identity == "" {
			continue
		}
		// entries are rank ordered, so the first hit is the best
		if _, ok := snap.ByIdentity[e.Identity]; !ok {
			snap.ByIdentity[e.Identity] = i
		}
	}
	return snap
}

// Publish implements Store.Publish.
func (s *BoardStore) Publish(_ context.Context, board model.Board) bool {
	if board.BuiltAt.IsZero() {
		board.BuiltAt = s.now()
	}
	next := newSnapshot(board)
	for {
		cur := s.snapshot.Load()
		if cur.Board.Status != model.StatusLoading && board.BuiltAt.Before(cur.Board.BuiltAt) {
			return false
		}
		if s.snapshot.CompareAndSwap(cur, next) {
			metrics.RecordLeaderboardPublished(board.BuiltAt)
			return true
		}
	}
}

// Board implements Store.Board.
func (s *BoardStore) Board(_ context.Context) model.Board {
	return s.snapshot.Load().Board
}

// Snapshot returns the current snapshot.
func (s *BoardStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Rank implements Store.Rank.
func (s *BoardStore) Rank(_ context.Context, key string) (model.RankedEntry, error) {
	snap := s.snapshot.Load()
	if i, ok := snap.ByIdentity[key]; ok {
		return snap.Board.Entries[i], nil
	}
	if i, ok := snap.ByEvent[key]; ok {
		return snap.Board.Entries[i], nil
	}
	return model.RankedEntry{}, ErrNotFound
}

// TopN implements Store.TopN.
func (s *BoardStore) TopN(_ context.Context, n int) ([]model.RankedEntry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	entries := s.snapshot.Load().Board.Entries
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]model.RankedEntry, n)
	copy(out, entries[:n])
	return out, nil
}

// Count implements Store.Count.
func (s *BoardStore) Count(_ context.Context) int {
	return len(s.snapshot.Load().Board.Entries)
}
