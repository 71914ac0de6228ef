package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/okian/gamestr/pkg/logger"
	"github.com/okian/gamestr/pkg/metrics"
	"github.com/okian/gamestr/pkg/telemetry"
)

const defaultPublishTimeout = 3 * time.Second

// Outcome labels used in metrics and logs.
const (
	OutcomeAccepted    = "accepted"
	OutcomeRejected    = "rejected"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
)

// Outcome is how one relay resolved a publish.
type Outcome struct {
	URL      string
	Accepted bool
	Reason   string // relay-supplied text of an OK frame
	Err      error  // nil when accepted
	Latency  time.Duration
}

// Label classifies the outcome.
func (o Outcome) Label() string {
	switch {
	case o.Accepted:
		return OutcomeAccepted
	case errors.Is(o.Err, ErrRejected):
		return OutcomeRejected
	case errors.Is(o.Err, ErrTimeout):
		return OutcomeTimeout
	default:
		return OutcomeUnavailable
	}
}

// Result aggregates the outcomes of one publish in endpoint order.
type Result struct {
	EventID  string
	Outcomes []Outcome
}

// Accepted counts relays that acknowledged the event.
func (r Result) Accepted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Accepted {
			n++
		}
	}
	return n
}

// Success is true when at least one relay accepted.
func (r Result) Success() bool { return r.Accepted() > 0 }

// Publisher fans a signed event out to several relays.
type Publisher struct {
	dialer  *Dialer
	timeout time.Duration
	verify  bool
	log     logger.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublishTimeout bounds each relay from dial to acknowledgement.
func WithPublishTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithSignatureCheck verifies the event signature before any relay is dialed.
func WithSignatureCheck(enabled bool) PublisherOption {
	return func(p *Publisher) { p.verify = enabled }
}

// WithPublisherDialer replaces the default dialer.
func WithPublisherDialer(d *Dialer) PublisherOption {
	return func(p *Publisher) {
		if d != nil {
			p.dialer = d
		}
	}
}

// WithPublisherLogger sets the logger.
func WithPublisherLogger(l logger.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPublisher returns a Publisher with a 3s per-relay timeout.
func NewPublisher(opts ...PublisherOption) *Publisher {
	p := &Publisher{
		timeout: defaultPublishTimeout,
		log:     logger.Named("publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dialer == nil {
		p.dialer = NewDialer(WithDialerLogger(p.log))
	}
	return p
}

// Publish sends ev to every relay in urls concurrently and waits until each
// one accepted, rejected, failed or timed out. It succeeds when at least one
// relay accepted; otherwise it returns ErrAllEndpointsRejected together with
// the per-relay outcomes. Nothing is retried.
func (p *Publisher) Publish(ctx context.Context, ev nostr.Event, urls []string) (Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "relay.publish")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", ev.ID), attribute.Int("event.kind", ev.Kind))

	res := Result{EventID: ev.ID}
	if !IsSigned(ev) {
		span.SetStatus(codes.Error, ErrUnsigned.Error())
		return res, ErrUnsigned
	}
	if p.verify {
		if err := VerifySignature(ev); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return res, err
		}
	}
	payload, err := EncodeEnvelope(ev)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	urls = uniqueURLs(urls)
	span.SetAttributes(attribute.Int("relay.count", len(urls)))
	res.Outcomes = make([]Outcome, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			res.Outcomes[i] = p.publishOne(ctx, ev.ID, payload, url)
		}(i, url)
	}
	wg.Wait()

	for _, o := range res.Outcomes {
		metrics.RecordPublishAttempt(o.URL, o.Label(), float64(o.Latency.Milliseconds()))
		fields := []logger.Field{
			logger.String("relay", o.URL),
			logger.String("event_id", ev.ID),
			logger.String("outcome", o.Label()),
			logger.Duration("latency", o.Latency),
		}
		if o.Accepted {
			p.log.Debug(ctx, "relay accepted event", fields...)
			continue
		}
		if o.Reason != "" {
			fields = append(fields, logger.String("reason", o.Reason))
		}
		p.log.Warn(ctx, "relay did not accept event", append(fields, logger.Error(o.Err))...)
	}

	accepted := res.Accepted()
	span.SetAttributes(attribute.Int("relay.accepted", accepted))
	metrics.RecordPublishResult(accepted > 0)
	if accepted == 0 {
		span.SetStatus(codes.Error, ErrAllEndpointsRejected.Error())
		return res, ErrAllEndpointsRejected
	}
	return res, nil
}

func (p *Publisher) publishOne(ctx context.Context, eventID string, payload []byte, url string) Outcome {
	start := time.Now()
	out := Outcome{URL: url}
	finish := func() Outcome {
		out.Latency = time.Since(start)
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dialer.Open(ctx, url)
	if err != nil {
		out.Err = err
		return finish()
	}
	defer func() { _ = conn.Close() }()

	if err := conn.Send(ctx, payload); err != nil {
		out.Err = err
		return finish()
	}

	for {
		select {
		case msg, ok := <-conn.Messages():
			if !ok {
				out.Err = closedErr(ctx, conn)
				return finish()
			}
			ack, isAck := msg.(Acknowledgement)
			if !isAck || ack.EventID != eventID {
				continue
			}
			// the first matching acknowledgement is terminal
			out.Accepted = ack.Accepted
			out.Reason = ack.Reason
			if !ack.Accepted {
				out.Err = fmt.Errorf("%w: %s: %s", ErrRejected, url, ack.Reason)
			}
			return finish()
		case <-ctx.Done():
			out.Err = fmt.Errorf("%w: %s: no acknowledgement after %s", ErrTimeout, url, p.timeout)
			return finish()
		}
	}
}

func closedErr(ctx context.Context, conn *Conn) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, conn.URL(), ctx.Err())
	}
	if err := conn.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s: connection closed", ErrNetworkUnavailable, conn.URL())
}

func uniqueURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
