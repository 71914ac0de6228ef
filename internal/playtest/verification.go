package playtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/gamestr/internal/domain/types"
	"github.com/okian/gamestr/pkg/logger"
)

// ErrInconsistentBoard is returned when the rebuilt board breaks ordering.
var ErrInconsistentBoard = errors.New("inconsistent leaderboard")

// verifyBoard checks ranks and ordering and counts the published
// submissions that made it onto the board.
func verifyBoard(ctx context.Context, lb types.Leaderboard, subs []Submission, stats *Stats) error {
	if err := checkOrdering(lb.Entries); err != nil {
		return err
	}

	onBoard := make(map[string]types.Entry, len(lb.Entries))
	for _, e := range lb.Entries {
		onBoard[e.EventID] = e
	}

	stats.Found = 0
	for _, s := range subs {
		if s.Accepted == 0 || s.EventID == "" {
			continue
		}
		e, ok := onBoard[s.EventID]
		if !ok {
			// the board is capped by the score filter limit
			continue
		}
		if e.Score != s.Score {
			return fmt.Errorf("%w: event %s has score %d, submitted %d", ErrInconsistentBoard, s.EventID, e.Score, s.Score)
		}
		stats.Found++
	}

	logger.Get().Info(ctx, "leaderboard verified",
		logger.Int("entries", len(lb.Entries)),
		logger.Int("found", stats.Found))
	return nil
}

func checkOrdering(entries []types.Entry) error {
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: entry %d has rank %d", ErrInconsistentBoard, i, e.Rank)
		}
		if i > 0 && e.Score > entries[i-1].Score {
			return fmt.Errorf("%w: entry %d scores %d above entry %d with %d",
				ErrInconsistentBoard, i, e.Score, i-1, entries[i-1].Score)
		}
	}
	return nil
}
