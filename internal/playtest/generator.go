package playtest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/okian/gamestr/internal/domain/model"
	"github.com/okian/gamestr/pkg/logger"
)

// generateSubmissions draws a random guest name and score per player.
func generateSubmissions(ctx context.Context, cfg *Config, stats *Stats) ([]Submission, error) {
	logger.Get().Info(ctx, "generating guest submissions", logger.Int("players", cfg.Players))

	out := make([]Submission, 0, cfg.Players)
	for i := 0; i < cfg.Players; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		p, err := model.NewGuestPlayer()
		if err != nil {
			return nil, fmt.Errorf("player %d: %w", i, err)
		}
		score, err := randomScore(cfg.MaxScore)
		if err != nil {
			return nil, fmt.Errorf("score %d: %w", i, err)
		}
		out = append(out, Submission{PlayerName: p.Name, Score: score})
	}

	stats.Generated = len(out)
	return out, nil
}

func randomScore(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)+1))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
