package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/okian/gamestr/pkg/logger"
	"github.com/okian/gamestr/pkg/metrics"
)

const (
	defaultOrigin     = "http://localhost"
	defaultBufferSize = 64
	maxLoggedFrame    = 256
)

// Dialer opens relay connections.
type Dialer struct {
	origin     string
	bufferSize int
	log        logger.Logger
}

// DialerOption configures a Dialer.
type DialerOption func(*Dialer)

// WithOrigin sets the Origin header sent during the handshake.
func WithOrigin(origin string) DialerOption {
	return func(d *Dialer) {
		if origin != "" {
			d.origin = origin
		}
	}
}

// WithBufferSize sets how many decoded frames may queue before the reader blocks.
func WithBufferSize(n int) DialerOption {
	return func(d *Dialer) {
		if n > 0 {
			d.bufferSize = n
		}
	}
}

// WithDialerLogger sets the logger used for dropped frames.
func WithDialerLogger(l logger.Logger) DialerOption {
	return func(d *Dialer) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDialer returns a Dialer with defaults applied.
func NewDialer(opts ...DialerOption) *Dialer {
	d := &Dialer{
		origin:     defaultOrigin,
		bufferSize: defaultBufferSize,
		log:        logger.Named("relay"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Conn is one websocket to a relay. Inbound frames are decoded once by a
// reader goroutine and delivered on Messages. Undecodable frames are logged
// and dropped there, so consumers only see meaningful variants.
//
// The connection is closed when Close is called, when the context passed to
// Open is done, or when the relay hangs up. Messages is closed afterwards.
type Conn struct {
	url  string
	ws   *websocket.Conn
	log  logger.Logger
	msgs chan Message
	done chan struct{}

	closeOnce sync.Once
	sendMu    sync.Mutex

	errMu sync.Mutex
	err   error
}

// Open dials url. The connection lives until ctx is done or Close is called.
func (d *Dialer) Open(ctx context.Context, url string) (*Conn, error) {
	cfg, err := websocket.NewConfig(url, d.origin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNetworkUnavailable, url, err)
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTimeout, url, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrNetworkUnavailable, url, err)
	}

	c := &Conn{
		url:  url,
		ws:   ws,
		log:  d.log,
		msgs: make(chan Message, d.bufferSize),
		done: make(chan struct{}),
	}
	go c.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			c.closeWith(fmt.Errorf("%w: %s: %w", ErrTimeout, url, ctx.Err()))
		case <-c.done:
		}
	}()
	return c, nil
}

// URL returns the relay address.
func (c *Conn) URL() string { return c.url }

// Messages delivers decoded inbound frames until the connection closes.
func (c *Conn) Messages() <-chan Message { return c.msgs }

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why the connection closed; nil after a local Close.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Send writes one text frame.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrTimeout, c.url, ctx.Err())
	default:
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := websocket.Message.Send(c.ws, string(payload)); err != nil {
		return fmt.Errorf("%w: %s: send: %w", ErrNetworkUnavailable, c.url, err)
	}
	return nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeWith(nil)
	return nil
}

func (c *Conn) closeWith(cause error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = cause
		c.errMu.Unlock()
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *Conn) readLoop() {
	defer close(c.msgs)
	for {
		var frame []byte
		if err := websocket.Message.Receive(c.ws, &frame); err != nil {
			if errors.Is(err, io.EOF) {
				c.closeWith(fmt.Errorf("%w: %s: connection closed by relay", ErrNetworkUnavailable, c.url))
			} else {
				c.closeWith(fmt.Errorf("%w: %s: receive: %w", ErrNetworkUnavailable, c.url, err))
			}
			return
		}

		msg := DecodeIncoming(frame)
		switch m := msg.(type) {
		case Unrecognized:
			metrics.RecordProtocolViolation(c.url)
			c.log.Warn(context.Background(), "dropping undecodable frame",
				logger.String("relay", c.url),
				logger.String("reason", m.Reason),
				logger.String("frame", truncate(m.Raw, maxLoggedFrame)),
				logger.Error(ErrProtocolViolation))
			continue
		case Notice:
			c.log.Debug(context.Background(), "relay notice",
				logger.String("relay", c.url), logger.String("notice", m.Text))
			continue
		}

		select {
		case c.msgs <- msg:
		case <-c.done:
			return
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
