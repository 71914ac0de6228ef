// Package relay speaks the event-network wire protocol: it encodes and
// decodes frames, publishes signed events to several relays at once and
// collects stored events for a subscription.
package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Message is one decoded inbound frame. The concrete types are
// EventMessage, EndOfStream, Acknowledgement, Closed, Notice and Unrecognized.
type Message interface {
	isMessage()
}

// EventMessage carries a stored or live event for a subscription.
type EventMessage struct {
	SubscriptionID string
	Event          nostr.Event
}

// EndOfStream signals that all stored events for a subscription were sent.
type EndOfStream struct {
	SubscriptionID string
}

// Acknowledgement answers a published event.
type Acknowledgement struct {
	EventID  string
	Accepted bool
	Reason   string
}

// Closed means the relay ended a subscription on its side.
type Closed struct {
	SubscriptionID string
	Reason         string
}

// Notice is a human-readable relay message.
type Notice struct {
	Text string
}

// Unrecognized is any frame that failed to decode.
type Unrecognized struct {
	Raw    string
	Reason string
}

func (EventMessage) isMessage()    {}
func (EndOfStream) isMessage()     {}
func (Acknowledgement) isMessage() {}
func (Closed) isMessage()          {}
func (Notice) isMessage()          {}
func (Unrecognized) isMessage()    {}

// BuildUnsigned creates an event with empty id, author and signature.
func BuildUnsigned(kind int, tags nostr.Tags, content string, now func() time.Time) nostr.Event {
	if now == nil {
		now = time.Now
	}
	if tags == nil {
		tags = nostr.Tags{}
	}
	return nostr.Event{
		CreatedAt: nostr.Timestamp(now().Unix()),
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
}

// IsSigned reports whether both id and signature are present.
func IsSigned(ev nostr.Event) bool {
	return ev.ID != "" && ev.Sig != ""
}

// VerifySignature checks that the id matches the content and that the
// signature is valid for the author.
func VerifySignature(ev nostr.Event) error {
	if !IsSigned(ev) {
		return ErrUnsigned
	}
	if ev.GetID() != ev.ID {
		return fmt.Errorf("%w: id does not match content", ErrInvalidSignature)
	}
	ok, err := ev.CheckSignature()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// EncodeEnvelope returns ["EVENT", event].
func EncodeEnvelope(ev nostr.Event) ([]byte, error) {
	env := nostr.EventEnvelope{Event: ev}
	b, err := env.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	return b, nil
}

// EncodeRequest returns ["REQ", subID, filter].
func EncodeRequest(subID string, filter nostr.Filter) ([]byte, error) {
	env := nostr.ReqEnvelope{SubscriptionID: subID, Filters: nostr.Filters{filter}}
	b, err := env.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode request %s: %w", subID, err)
	}
	return b, nil
}

// EncodeClose returns ["CLOSE", subID].
func EncodeClose(subID string) ([]byte, error) {
	env := nostr.CloseEnvelope(subID)
	b, err := env.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode close %s: %w", subID, err)
	}
	return b, nil
}

// DecodeIncoming classifies a relay frame. It never fails: anything that
// cannot be decoded becomes Unrecognized.
func DecodeIncoming(raw []byte) (msg Message) {
	defer func() {
		if r := recover(); r != nil {
			msg = Unrecognized{Raw: string(raw), Reason: fmt.Sprintf("decoder panic: %v", r)}
		}
	}()

	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil || len(frame) == 0 {
		return Unrecognized{Raw: string(raw), Reason: "not a JSON array"}
	}
	var label string
	if err := json.Unmarshal(frame[0], &label); err != nil {
		return Unrecognized{Raw: string(raw), Reason: "missing frame label"}
	}

	var env nostr.Envelope
	switch label {
	case "EVENT":
		env = &nostr.EventEnvelope{}
	case "EOSE":
		env = new(nostr.EOSEEnvelope)
	case "OK":
		env = &nostr.OKEnvelope{}
	case "CLOSED":
		env = &nostr.ClosedEnvelope{}
	case "NOTICE":
		env = new(nostr.NoticeEnvelope)
	default:
		return Unrecognized{Raw: string(raw), Reason: fmt.Sprintf("unexpected %q frame", label)}
	}
	if err := env.UnmarshalJSON(raw); err != nil {
		return Unrecognized{Raw: string(raw), Reason: err.Error()}
	}

	switch e := env.(type) {
	case *nostr.EventEnvelope:
		if e.SubscriptionID == nil {
			return Unrecognized{Raw: string(raw), Reason: "event without subscription id"}
		}
		return EventMessage{SubscriptionID: *e.SubscriptionID, Event: e.Event}
	case *nostr.EOSEEnvelope:
		return EndOfStream{SubscriptionID: string(*e)}
	case *nostr.OKEnvelope:
		return Acknowledgement{EventID: e.EventID, Accepted: e.OK, Reason: e.Reason}
	case *nostr.ClosedEnvelope:
		return Closed{SubscriptionID: e.SubscriptionID, Reason: e.Reason}
	case *nostr.NoticeEnvelope:
		return Notice{Text: string(*e)}
	}
	return Unrecognized{Raw: string(raw), Reason: "unhandled frame"}
}
