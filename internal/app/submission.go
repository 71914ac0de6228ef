package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/okian/gamestr/internal/adapters/relay"
	"github.com/okian/gamestr/internal/adapters/signer"
	"github.com/okian/gamestr/internal/domain/leaderboard"
	"github.com/okian/gamestr/internal/domain/model"
	"github.com/okian/gamestr/pkg/logger"
)

// ScoreSigner obtains a signed score announcement.
type ScoreSigner interface {
	SignScore(ctx context.Context, req signer.ScoreRequest) (nostr.Event, error)
}

// EventSigner signs events with a local key.
type EventSigner interface {
	Sign(ctx context.Context, ev nostr.Event) (nostr.Event, error)
	PublicKey() string
}

// Publisher fans a signed event out to relays.
type Publisher interface {
	Publish(ctx context.Context, ev nostr.Event, urls []string) (relay.Result, error)
}

// Submission is a published event with the answers of every relay.
type Submission struct {
	Event  nostr.Event
	Result relay.Result
}

// SubmitScore has the remote signer build and sign a score announcement
// for player, publishes it to every publish relay and schedules a
// leaderboard refresh. Signing problems are ErrSigningFailed; a publish
// nobody accepted is ErrAllEndpointsRejected. Nothing is retried.
func (s *Service) SubmitScore(ctx context.Context, player model.Player, score int) (Submission, error) {
	if score < 0 {
		return Submission{}, ErrInvalidScore
	}

	ev, err := s.scoreSigner.SignScore(ctx, signer.NewScoreRequest(player, score))
	if err != nil {
		if errors.Is(err, signer.ErrSigningFailed) {
			return Submission{}, err
		}
		return Submission{}, fmt.Errorf("%w: %w", signer.ErrSigningFailed, err)
	}
	if !relay.IsSigned(ev) {
		return Submission{}, fmt.Errorf("%w: signer returned an unsigned event", signer.ErrSigningFailed)
	}

	sub, err := s.publish(ctx, ev)
	if err != nil {
		return sub, err
	}

	s.logger.Info(ctx, "score submitted",
		logger.String("event_id", ev.ID),
		logger.String("player", player.Name),
		logger.Int("score", score),
		logger.Int("accepted", sub.Result.Accepted()))
	s.RequestRefresh(ctx, "score submitted")
	return sub, nil
}

// ShareScore posts a kind-1 note about score signed with the local key.
// An empty text is built from the share template.
func (s *Service) ShareScore(ctx context.Context, score int, text string) (Submission, error) {
	if s.eventSigner == nil {
		return Submission{}, ErrIdentityRequired
	}
	if score < 0 {
		return Submission{}, ErrInvalidScore
	}

	if strings.TrimSpace(text) == "" {
		text = strings.ReplaceAll(s.cfg.ShareTemplate, "{score}", strconv.Itoa(score))
	}
	tags := make(nostr.Tags, 0, len(s.cfg.ShareTags))
	for _, t := range s.cfg.ShareTags {
		tags = append(tags, nostr.Tag{leaderboard.TagTopic, t})
	}

	ev, err := s.eventSigner.Sign(ctx, relay.BuildUnsigned(nostr.KindTextNote, tags, text, s.now))
	if err != nil {
		return Submission{}, err
	}

	sub, err := s.publish(ctx, ev)
	if err != nil {
		return sub, err
	}
	s.logger.Info(ctx, "score shared",
		logger.String("event_id", ev.ID),
		logger.Int("score", score),
		logger.Int("accepted", sub.Result.Accepted()))
	return sub, nil
}

func (s *Service) publish(ctx context.Context, ev nostr.Event) (Submission, error) {
	if s.deduper.SeenAndRecord(ctx, ev.ID) {
		return Submission{Event: ev}, ErrDuplicateEvent
	}

	res, err := s.publisher.Publish(ctx, ev, s.cfg.PublishRelays)
	if err != nil {
		// a failed event may be submitted again
		s.deduper.Unrecord(ctx, ev.ID)
		s.logger.Warn(ctx, "publish failed",
			logger.String("event_id", ev.ID), logger.Int("kind", ev.Kind), logger.Error(err))
		return Submission{Event: ev, Result: res}, err
	}
	return Submission{Event: ev, Result: res}, nil
}

// Profile looks up the newest kind-0 metadata of identity, given as hex or
// npub, on the profile relay.
func (s *Service) Profile(ctx context.Context, identity string) (model.ProfileRecord, bool) {
	pubkey, err := signer.DecodePublicKey(identity)
	if err != nil {
		return model.ProfileRecord{}, false
	}

	filter := nostr.Filter{
		Kinds:   []int{nostr.KindProfileMetadata},
		Authors: []string{pubkey},
	}
	events, _ := s.collector.Collect(ctx, s.cfg.ProfileRelay, filter, s.cfg.ProfileTimeout())
	idx := leaderboard.IndexProfiles(events, []string{pubkey}, s.cfg.DefaultPicture)
	p, ok := idx.Profiles[pubkey]
	return p, ok
}

func (s *Service) now() time.Time { return s.clock() }
