package relay

import "errors"

// Sentinel kinds for relay errors.
var (
	// ErrNetworkUnavailable covers dial and send failures and dropped connections.
	ErrNetworkUnavailable = errors.New("relay unavailable")
	// ErrTimeout means the relay did not answer within the operation deadline.
	ErrTimeout = errors.New("relay timeout")
	// ErrRejected is an explicit negative acknowledgement.
	ErrRejected = errors.New("relay rejected event")
	// ErrProtocolViolation marks an inbound frame that could not be decoded.
	ErrProtocolViolation = errors.New("relay protocol violation")
	// ErrAllEndpointsRejected is returned by Publish when no relay accepted.
	ErrAllEndpointsRejected = errors.New("all relays rejected or failed to respond")
	// ErrUnsigned is returned for events without id or signature.
	ErrUnsigned = errors.New("event is not signed")
	// ErrInvalidSignature is returned when signature verification is on and fails.
	ErrInvalidSignature = errors.New("event signature is invalid")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("relay connection closed")
)
