// Package app owns the state of one game session: the leaderboard pipeline,
// the submission flow and the published board the HTTP API reads.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/okian/gamestr/internal/adapters/mq/queue"
	"github.com/okian/gamestr/internal/adapters/mq/worker"
	"github.com/okian/gamestr/internal/adapters/relay"
	"github.com/okian/gamestr/internal/adapters/repository"
	"github.com/okian/gamestr/internal/adapters/signer"
	"github.com/okian/gamestr/internal/config"
	"github.com/okian/gamestr/internal/domain/dedupe"
	"github.com/okian/gamestr/internal/domain/leaderboard"
	"github.com/okian/gamestr/internal/domain/model"
	"github.com/okian/gamestr/pkg/logger"
	"github.com/okian/gamestr/pkg/metrics"
)

const defaultDedupeSize = 10000

// Service implements the API dependencies for one game.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	collector   Collector
	publisher   Publisher
	scoreSigner ScoreSigner
	eventSigner EventSigner
	aggregator  *Aggregator
	store       repository.Store
	deduper     dedupe.Deduper
	queue       *queue.InMemoryQueue
	pool        *worker.Pool

	dedupeSize int
	clock      func() time.Time

	started bool
	cancel  context.CancelFunc
	loops   sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCollector replaces the relay collector.
func WithCollector(c Collector) Option {
	return func(s *Service) {
		if c != nil {
			s.collector = c
		}
	}
}

// WithPublisher replaces the relay publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithScoreSigner replaces the remote score signer.
func WithScoreSigner(sg ScoreSigner) Option {
	return func(s *Service) {
		if sg != nil {
			s.scoreSigner = sg
		}
	}
}

// WithEventSigner sets the local signer used for sharing.
func WithEventSigner(sg EventSigner) Option {
	return func(s *Service) {
		if sg != nil {
			s.eventSigner = sg
		}
	}
}

// WithStore replaces the board store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithDedupeSize bounds the ids remembered by the submission guard.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a Service from cfg. Collaborators not given as options are
// built from cfg; a configured secret key that cannot be decoded is an error.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:        cfg,
		dedupeSize: defaultDedupeSize,
		clock:      time.Now,
		logger:     logger.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.collector == nil {
		s.collector = relay.NewCollector()
	}
	if s.publisher == nil {
		s.publisher = relay.NewPublisher(
			relay.WithPublishTimeout(cfg.PublishTimeout()),
			relay.WithSignatureCheck(cfg.VerifySignatures),
		)
	}
	if s.scoreSigner == nil {
		s.scoreSigner = signer.NewRemoteSigner(cfg.SignerURL,
			signer.WithHTTPClient(signer.NewHTTPClient(cfg.SignerTimeout())))
	}
	if s.eventSigner == nil && cfg.SecretKey != "" {
		ks, err := signer.NewKeySigner(cfg.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("secret_key: %w", err)
		}
		s.eventSigner = ks
	}
	if s.store == nil {
		s.store = repository.NewBoardStore(repository.WithClock(s.clock))
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.aggregator = NewAggregator(s.collector, AggregatorConfig{
		GameID:         cfg.GameID,
		ScoreEndpoint:  cfg.ScoreRelay,
		ScoreTimeout:   cfg.ScoreTimeout(),
		ProfileTimeout: cfg.ProfileTimeout(),
		DefaultPicture: cfg.DefaultPicture,
	})
	s.aggregator.now = s.clock
	return s, nil
}

// Start launches the refresh workers, schedules the first build and, when
// configured, a periodic refresh.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting leaderboard service",
		logger.String("game", s.cfg.GameID),
		logger.String("score_relay", s.cfg.ScoreRelay),
		logger.Strings("publish_relays", s.cfg.PublishRelays))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.RefreshQueueSize))
	s.pool = worker.NewPool(s.cfg.RefreshWorkers, s.queue, s, s.store)
	s.pool.Start(runCtx)

	if interval := s.cfg.RefreshInterval(); interval > 0 {
		s.loops.Add(1)
		go s.refreshLoop(runCtx, interval)
	}

	s.started = true
	s.enqueue(runCtx, "startup")

	s.logger.Info(ctx, "leaderboard service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_capacity", s.cfg.RefreshQueueSize),
		logger.Bool("sharing", s.eventSigner != nil))
	return nil
}

// Stop shuts the workers down and waits for them.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping leaderboard service")

	s.cancel()
	s.loops.Wait()
	err := s.pool.Shutdown(ctx)

	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
	return err
}

func (s *Service) refreshLoop(ctx context.Context, interval time.Duration) {
	defer s.loops.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueue(ctx, "interval")
		}
	}
}

// RequestRefresh schedules an asynchronous rebuild. It reports false when
// the service is not running or a rebuild is already pending.
func (s *Service) RequestRefresh(ctx context.Context, reason string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false
	}
	return s.enqueue(ctx, reason)
}

func (s *Service) enqueue(ctx context.Context, reason string) bool {
	err := s.queue.Enqueue(ctx, model.RefreshRequest{Reason: reason, RequestedAt: s.clock()})
	switch {
	case err == nil:
		return true
	case errors.Is(err, queue.ErrFull):
		s.logger.Debug(ctx, "refresh already pending", logger.String("reason", reason))
	default:
		s.logger.Warn(ctx, "refresh not scheduled", logger.String("reason", reason), logger.Error(err))
	}
	return false
}

// ScoreFilter is the subscription filter for this game's score events.
func (s *Service) ScoreFilter() nostr.Filter {
	f := nostr.Filter{
		Kinds: []int{s.cfg.ScoreKind},
		Tags:  nostr.TagMap{leaderboard.TagDedup: []string{s.cfg.GameID}},
		Limit: s.cfg.LeaderboardLimit,
	}
	if len(s.cfg.ScoreAuthors) > 0 {
		f.Authors = s.cfg.ScoreAuthors
	}
	return f
}

// Build implements worker.Builder.
func (s *Service) Build(ctx context.Context, _ model.RefreshRequest) model.Board {
	return s.aggregator.BuildLeaderboard(ctx, s.ScoreFilter(), s.cfg.ProfileRelay)
}

// Refresh rebuilds the board synchronously and returns the published board.
func (s *Service) Refresh(ctx context.Context) model.Board {
	board := s.Build(ctx, model.RefreshRequest{Reason: "manual", RequestedAt: s.clock()})
	if !s.store.Publish(ctx, board) {
		s.logger.Debug(ctx, "newer board already published")
	}
	return s.store.Board(ctx)
}

// Leaderboard returns the published board cut to limit entries. A limit of
// zero returns every entry.
func (s *Service) Leaderboard(ctx context.Context, limit int) (model.Board, error) {
	if limit < 0 || limit > s.cfg.MaxLeaderboardLimit {
		return model.Board{}, repository.ErrInvalidLimit
	}
	board := s.store.Board(ctx)
	if limit > 0 && limit < len(board.Entries) {
		board.Entries = board.Entries[:limit]
	}
	return board, nil
}

// Rank returns the best entry of a player identity (hex or npub) or the
// entry of an event id.
func (s *Service) Rank(ctx context.Context, key string) (model.RankedEntry, error) {
	if pk, err := signer.DecodePublicKey(key); err == nil {
		key = pk
	}
	return s.store.Rank(ctx, key)
}

// CanShare reports whether a local signing key is configured.
func (s *Service) CanShare() bool { return s.eventSigner != nil }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	board := s.store.Board(ctx)
	stats := map[string]interface{}{
		"started":        s.started,
		"game":           s.cfg.GameID,
		"publishRelays":  len(s.cfg.PublishRelays),
		"boardStatus":    string(board.Status),
		"boardEntries":   s.store.Count(ctx),
		"submittedIds":   s.deduper.Size(),
		"sharingEnabled": s.eventSigner != nil,
	}
	if !board.BuiltAt.IsZero() {
		stats["boardBuiltAt"] = board.BuiltAt.UTC().Format(time.RFC3339)
	}
	if s.started {
		stats["workerCount"] = s.pool.Size()
		stats["queueLength"] = s.queue.Len()
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}
