package relay

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/gamestr/pkg/logger"
	"github.com/okian/gamestr/pkg/metrics"
	"github.com/okian/gamestr/pkg/telemetry"
)

// Termination labels of a collection.
const (
	TerminationEOSE      = "eose"
	TerminationClosed    = "closed"
	TerminationTimeout   = "timeout"
	TerminationDropped   = "dropped"
	TerminationDialError = "dial_error"
)

const defaultSubscriptionPrefix = "gamestr-"

// Collector runs one-shot subscriptions: it asks a relay for stored events
// and returns them once the relay signals end of stream.
type Collector struct {
	dialer *Dialer
	prefix string
	log    logger.Logger
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithSubscriptionPrefix sets the prefix of generated subscription ids.
func WithSubscriptionPrefix(prefix string) CollectorOption {
	return func(c *Collector) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithCollectorDialer replaces the default dialer.
func WithCollectorDialer(d *Dialer) CollectorOption {
	return func(c *Collector) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithCollectorLogger sets the logger.
func WithCollectorLogger(l logger.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCollector returns a Collector with defaults applied.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		prefix: defaultSubscriptionPrefix,
		log:    logger.Named("collector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = NewDialer(WithDialerLogger(c.log))
	}
	return c
}

// Collect subscribes to url with filter and gathers matching events in
// arrival order. It returns (events, true) when the relay ends the stream
// with EOSE or CLOSED, and (partial events, false) on timeout, dial failure
// or a dropped connection. The slice is never nil and Collect never blocks
// longer than timeout.
func (c *Collector) Collect(ctx context.Context, url string, filter nostr.Filter, timeout time.Duration) ([]nostr.Event, bool) {
	ctx, span := telemetry.Tracer().Start(ctx, "relay.collect")
	defer span.End()

	subID := c.prefix + uuid.NewString()
	span.SetAttributes(attribute.String("relay.url", url), attribute.String("subscription.id", subID))

	start := time.Now()
	events := make([]nostr.Event, 0)
	done := func(termination string) ([]nostr.Event, bool) {
		latency := time.Since(start)
		metrics.RecordSubscriptionCompletion(url, termination, float64(latency.Milliseconds()))
		span.SetAttributes(attribute.String("termination", termination), attribute.Int("events", len(events)))
		c.log.Debug(ctx, "subscription finished",
			logger.String("relay", url),
			logger.String("subscription", subID),
			logger.String("termination", termination),
			logger.Int("events", len(events)),
			logger.Duration("latency", latency))
		return events, termination == TerminationEOSE || termination == TerminationClosed
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := c.dialer.Open(ctx, url)
	if err != nil {
		c.log.Warn(ctx, "subscription dial failed", logger.String("relay", url), logger.Error(err))
		return done(TerminationDialError)
	}
	defer func() { _ = conn.Close() }()

	req, err := EncodeRequest(subID, filter)
	if err != nil {
		c.log.Error(ctx, "encode subscription", logger.Error(err))
		return done(TerminationDialError)
	}
	if err := conn.Send(ctx, req); err != nil {
		c.log.Warn(ctx, "subscription send failed", logger.String("relay", url), logger.Error(err))
		return done(TerminationDropped)
	}

	for {
		select {
		case msg, ok := <-conn.Messages():
			if !ok {
				if ctx.Err() != nil {
					return done(TerminationTimeout)
				}
				c.log.Warn(ctx, "subscription dropped", logger.String("relay", url), logger.Error(conn.Err()))
				return done(TerminationDropped)
			}
			switch m := msg.(type) {
			case EventMessage:
				if m.SubscriptionID != subID {
					continue
				}
				metrics.RecordSubscriptionEvent(url)
				events = append(events, m.Event)
			case EndOfStream:
				if m.SubscriptionID != subID {
					continue
				}
				c.closeSubscription(ctx, conn, subID)
				return done(TerminationEOSE)
			case Closed:
				if m.SubscriptionID != subID {
					continue
				}
				c.log.Info(ctx, "relay closed subscription",
					logger.String("relay", url), logger.String("reason", m.Reason))
				return done(TerminationClosed)
			}
		case <-ctx.Done():
			return done(TerminationTimeout)
		}
	}
}

// closeSubscription tells the relay to drop the subscription. Best effort.
func (c *Collector) closeSubscription(ctx context.Context, conn *Conn, subID string) {
	payload, err := EncodeClose(subID)
	if err != nil {
		return
	}
	if err := conn.Send(ctx, payload); err != nil {
		c.log.Debug(ctx, "close subscription", logger.String("relay", conn.URL()), logger.Error(err))
	}
}
