// Package signer obtains signed events, either from the remote score
// signing endpoint or from a locally held secret key.
package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/okian/gamestr/internal/domain/model"
	"github.com/okian/gamestr/pkg/logger"
	"github.com/okian/gamestr/pkg/metrics"
)

const (
	defaultRemoteTimeout = 10 * time.Second
	maxResponseBytes     = 1 << 20
)

// ScoreRequest is the body sent to the signing endpoint.
type ScoreRequest struct {
	PlayerName   string `json:"playerName"`
	PlayerPubkey string `json:"playerPubkey"`
	Score        int    `json:"score"`
}

// NewScoreRequest builds the request for player, sending the guest
// placeholder when the player has no identity.
func NewScoreRequest(player model.Player, score int) ScoreRequest {
	pubkey := player.Identity
	if pubkey == "" {
		pubkey = model.GuestIdentity
	}
	return ScoreRequest{PlayerName: player.Name, PlayerPubkey: pubkey, Score: score}
}

type errorBody struct {
	Error string `json:"error"`
}

type wrappedEvent struct {
	Event *nostr.Event `json:"event"`
}

// RemoteSigner asks an HTTP endpoint to build and sign score events.
type RemoteSigner struct {
	url    string
	client *http.Client
	log    logger.Logger
}

// RemoteOption configures a RemoteSigner.
type RemoteOption func(*RemoteSigner)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(s *RemoteSigner) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRemoteLogger sets the logger.
func WithRemoteLogger(l logger.Logger) RemoteOption {
	return func(s *RemoteSigner) {
		if l != nil {
			s.log = l
		}
	}
}

// NewHTTPClient returns a client with bounded dial and handshake times.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// NewRemoteSigner returns a signer posting to url.
func NewRemoteSigner(url string, opts ...RemoteOption) *RemoteSigner {
	s := &RemoteSigner{
		url: url,
		log: logger.Named("remote-signer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = NewHTTPClient(defaultRemoteTimeout)
	}
	return s
}

// SignScore posts req and returns the signed event. Any transport error,
// non-2xx status or unsigned reply is ErrSigningFailed.
func (s *RemoteSigner) SignScore(ctx context.Context, req ScoreRequest) (nostr.Event, error) {
	start := time.Now()
	ev, err := s.signScore(ctx, req)
	metrics.RecordSigning("remote", err == nil, float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.log.Warn(ctx, "remote signing failed",
			logger.String("player", req.PlayerName), logger.Int("score", req.Score), logger.Error(err))
		return nostr.Event{}, err
	}
	return ev, nil
}

func (s *RemoteSigner) signScore(ctx context.Context, req ScoreRequest) (nostr.Event, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nostr.Event{}, fmt.Errorf("%w: encode request: %w", ErrSigningFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nostr.Event{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nostr.Event{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nostr.Event{}, fmt.Errorf("%w: read response: %w", ErrSigningFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			return nostr.Event{}, fmt.Errorf("%w: %s", ErrSigningFailed, eb.Error)
		}
		return nostr.Event{}, fmt.Errorf("%w: signer returned status %d", ErrSigningFailed, resp.StatusCode)
	}

	ev, err := decodeEvent(raw)
	if err != nil {
		return nostr.Event{}, err
	}
	if ev.ID == "" || ev.Sig == "" {
		return nostr.Event{}, fmt.Errorf("%w: reply is missing id or sig", ErrSigningFailed)
	}
	return ev, nil
}

// decodeEvent accepts a bare event or one wrapped as {"event": ...}.
func decodeEvent(raw []byte) (nostr.Event, error) {
	var w wrappedEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nostr.Event{}, fmt.Errorf("%w: decode reply: %w", ErrSigningFailed, err)
	}
	if w.Event != nil {
		return *w.Event, nil
	}
	var ev nostr.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nostr.Event{}, fmt.Errorf("%w: decode reply: %w", ErrSigningFailed, err)
	}
	return ev, nil
}
