package playtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gamestr/internal/adapters/signer"
	"github.com/okian/gamestr/internal/domain/types"
	"github.com/okian/gamestr/pkg/logger"
)

// httpClient is a small JSON client bound to one service.
type httpClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	return &httpClient{client: signer.NewHTTPClient(timeout), baseURL: baseURL}
}

// do sends body as JSON when non-nil and decodes a 2xx reply into out.
// The status code is returned even on error.
func (c *httpClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e types.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return resp.StatusCode, fmt.Errorf("HTTP %d: %s: %s", resp.StatusCode, e.Error, e.Message)
		}
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("parse response: %w", err)
	}
	return resp.StatusCode, nil
}

// submitScores posts every submission with cfg.Workers concurrent workers
// and records each answer in place.
func submitScores(ctx context.Context, cfg *Config, subs []Submission, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting scores", logger.Int("count", len(subs)), logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	var published, rejected, failed, submitted int64

	indexes := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				submitOne(ctx, client, &subs[i])
				atomic.AddInt64(&submitted, 1)
				switch {
				case subs[i].Accepted > 0:
					atomic.AddInt64(&published, 1)
				case subs[i].Status >= 400 && subs[i].Status < 600:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				if cfg.Verbose {
					log.Debug(ctx, "score submitted",
						logger.String("player", subs[i].PlayerName),
						logger.Int("score", subs[i].Score),
						logger.Int("status", subs[i].Status),
						logger.String("event_id", subs[i].EventID))
				}
			}
		}()
	}

	go func() {
		defer close(indexes)
		for i := range subs {
			select {
			case <-ctx.Done():
				return
			case indexes <- i:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Published = int(atomic.LoadInt64(&published))
	stats.Rejected = int(atomic.LoadInt64(&rejected))
	stats.Failed = int(atomic.LoadInt64(&failed))
	log.Info(ctx, "score submission completed",
		logger.Int("published", stats.Published),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed))
}

func submitOne(ctx context.Context, client *httpClient, sub *Submission) {
	var resp types.PublishResponse
	req := types.SubmitScoreRequest{PlayerName: sub.PlayerName, Score: sub.Score}
	status, err := client.do(ctx, http.MethodPost, "/scores", req, &resp)
	sub.Status = status
	if err != nil {
		sub.Error = err.Error()
		return
	}
	sub.EventID = resp.EventID
	sub.Accepted = resp.Accepted
	sub.Relays = resp.Relays
}

// refreshLeaderboard forces a rebuild and returns the fresh board.
func refreshLeaderboard(ctx context.Context, cfg *Config, stats *Stats) (types.Leaderboard, error) {
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	var lb types.Leaderboard
	if _, err := client.do(ctx, http.MethodPost, "/leaderboard/refresh", nil, &lb); err != nil {
		return types.Leaderboard{}, err
	}
	stats.LeaderboardEntries = len(lb.Entries)
	logger.Get().Info(ctx, "leaderboard rebuilt",
		logger.String("status", lb.Status),
		logger.Int("entries", len(lb.Entries)))
	return lb, nil
}
