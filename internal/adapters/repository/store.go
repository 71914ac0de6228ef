// Package repository holds the published leaderboard snapshot.
package repository

import (
	"context"

	"github.com/okian/gamestr/internal/domain/model"
)

// Store provides read/write access to the published leaderboard.
type Store interface {
	// Publish replaces the current board. Boards older than the current one are ignored.
	Publish(ctx context.Context, board model.Board) bool

	// Board returns the current board, or a loading board before the first publish.
	Board(ctx context.Context) model.Board

	// Rank returns the best entry of a player identity or the entry of an event id.
	// Returns ErrNotFound when neither matches.
	Rank(ctx context.Context, key string) (model.RankedEntry, error)

	// TopN returns the first n entries ordered by rank.
	TopN(ctx context.Context, n int) ([]model.RankedEntry, error)

	// Count returns the number of entries on the current board.
	Count(ctx context.Context) int
}
