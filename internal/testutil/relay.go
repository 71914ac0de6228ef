// Package testutil provides an in-process relay and signing helpers for tests.
package testutil

import (
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/net/websocket"
)

// AckMode selects how the fake relay answers published events.
type AckMode int

const (
	// AckAccept answers OK true and stores the event.
	AckAccept AckMode = iota
	// AckReject answers OK false with the configured reason.
	AckReject
	// AckSilent never answers.
	AckSilent
	// AckDuplicate answers OK for another id, then OK true twice, then OK false.
	AckDuplicate
	// AckHangUp closes the connection without answering.
	AckHangUp
)

// RelayOption configures a FakeRelay.
type RelayOption func(*FakeRelay)

// WithAckMode sets the publish behaviour.
func WithAckMode(mode AckMode) RelayOption {
	return func(r *FakeRelay) { r.ackMode = mode }
}

// WithRejectReason sets the reason sent with negative acknowledgements.
func WithRejectReason(reason string) RelayOption {
	return func(r *FakeRelay) { r.rejectReason = reason }
}

// WithStoredEvents preloads events served to subscriptions.
func WithStoredEvents(events ...nostr.Event) RelayOption {
	return func(r *FakeRelay) { r.stored = append(r.stored, events...) }
}

// WithoutEOSE never ends stored-event streams.
func WithoutEOSE() RelayOption {
	return func(r *FakeRelay) { r.withholdEOSE = true }
}

// WithClosedReply answers subscriptions with CLOSED instead of EOSE.
func WithClosedReply(reason string) RelayOption {
	return func(r *FakeRelay) { r.closedReason = reason }
}

// WithNoise sends an undecodable frame, a notice and an event for a foreign
// subscription before answering each request.
func WithNoise() RelayOption {
	return func(r *FakeRelay) { r.noise = true }
}

// FakeRelay is a websocket relay served by httptest.
type FakeRelay struct {
	URL string

	srv          *httptest.Server
	ackMode      AckMode
	rejectReason string
	withholdEOSE bool
	closedReason string
	noise        bool

	mu        sync.Mutex
	stored    []nostr.Event
	published []nostr.Event
	requests  []nostr.Filter
	closes    []string
}

// NewFakeRelay starts a relay. Call Close when done.
func NewFakeRelay(opts ...RelayOption) *FakeRelay {
	r := &FakeRelay{rejectReason: "blocked: test relay"}
	for _, opt := range opts {
		opt(r)
	}
	r.srv = httptest.NewServer(websocket.Handler(r.serve))
	r.URL = "ws" + strings.TrimPrefix(r.srv.URL, "http")
	return r
}

// Close stops the server and drops open connections.
func (r *FakeRelay) Close() {
	r.srv.CloseClientConnections()
	r.srv.Close()
}

// Store adds events served to later subscriptions.
func (r *FakeRelay) Store(events ...nostr.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = append(r.stored, events...)
}

// Published returns every event received through EVENT frames.
func (r *FakeRelay) Published() []nostr.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]nostr.Event(nil), r.published...)
}

// Requests returns the filters of every REQ frame.
func (r *FakeRelay) Requests() []nostr.Filter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]nostr.Filter(nil), r.requests...)
}

// Closes returns the subscription ids of every CLOSE frame.
func (r *FakeRelay) Closes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.closes...)
}

func (r *FakeRelay) serve(ws *websocket.Conn) {
	defer func() { _ = ws.Close() }()
	for {
		var frame string
		if err := websocket.Message.Receive(ws, &frame); err != nil {
			return
		}
		switch env := nostr.ParseMessage([]byte(frame)).(type) {
		case *nostr.EventEnvelope:
			if !r.onEvent(ws, env.Event) {
				return
			}
		case *nostr.ReqEnvelope:
			r.onRequest(ws, env.SubscriptionID, env.Filters)
		case *nostr.CloseEnvelope:
			r.mu.Lock()
			r.closes = append(r.closes, string(*env))
			r.mu.Unlock()
		}
	}
}

func (r *FakeRelay) onEvent(ws *websocket.Conn, ev nostr.Event) bool {
	r.mu.Lock()
	r.published = append(r.published, ev)
	if r.ackMode == AckAccept || r.ackMode == AckDuplicate {
		r.stored = append(r.stored, ev)
	}
	r.mu.Unlock()

	switch r.ackMode {
	case AckAccept:
		send(ws, &nostr.OKEnvelope{EventID: ev.ID, OK: true})
	case AckReject:
		send(ws, &nostr.OKEnvelope{EventID: ev.ID, OK: false, Reason: r.rejectReason})
	case AckDuplicate:
		send(ws, &nostr.OKEnvelope{EventID: "not-" + ev.ID, OK: false, Reason: "other event"})
		send(ws, &nostr.OKEnvelope{EventID: ev.ID, OK: true})
		send(ws, &nostr.OKEnvelope{EventID: ev.ID, OK: true, Reason: "duplicate: already have it"})
		send(ws, &nostr.OKEnvelope{EventID: ev.ID, OK: false, Reason: "late"})
	case AckHangUp:
		return false
	}
	return true
}

func (r *FakeRelay) onRequest(ws *websocket.Conn, subID string, filters nostr.Filters) {
	r.mu.Lock()
	r.requests = append(r.requests, filters...)
	stored := append([]nostr.Event(nil), r.stored...)
	r.mu.Unlock()

	if r.noise {
		_ = websocket.Message.Send(ws, `["EVENT", {broken`)
		send(ws, ptr(nostr.NoticeEnvelope("rate limited")))
		if len(stored) > 0 {
			foreign := "someone-else"
			send(ws, &nostr.EventEnvelope{SubscriptionID: &foreign, Event: stored[0]})
		}
	}

	for _, f := range filters {
		sent := 0
		for _, ev := range stored {
			if f.Limit > 0 && sent >= f.Limit {
				break
			}
			if !f.Matches(&ev) {
				continue
			}
			id := subID
			send(ws, &nostr.EventEnvelope{SubscriptionID: &id, Event: ev})
			sent++
		}
	}

	switch {
	case r.closedReason != "":
		send(ws, &nostr.ClosedEnvelope{SubscriptionID: subID, Reason: r.closedReason})
	case !r.withholdEOSE:
		send(ws, ptr(nostr.EOSEEnvelope(subID)))
	}
}

func send(ws *websocket.Conn, env nostr.Envelope) {
	b, err := env.MarshalJSON()
	if err != nil {
		return
	}
	_ = websocket.Message.Send(ws, string(b))
}

func ptr[T any](v T) *T { return &v }
