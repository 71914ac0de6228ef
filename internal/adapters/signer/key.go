package signer

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/okian/gamestr/pkg/metrics"
)

// KeySigner signs events with a secret key held in memory.
type KeySigner struct {
	secret string
	public string
}

// NewKeySigner accepts a 64-hex secret key or an nsec string.
func NewKeySigner(secret string) (*KeySigner, error) {
	sk, err := DecodeSecretKey(secret)
	if err != nil {
		return nil, err
	}
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &KeySigner{secret: sk, public: pk}, nil
}

// PublicKey returns the hex public key.
func (s *KeySigner) PublicKey() string { return s.public }

// Sign sets the author and returns the signed copy of ev.
func (s *KeySigner) Sign(_ context.Context, ev nostr.Event) (nostr.Event, error) {
	start := time.Now()
	ev.PubKey = s.public
	if ev.Tags == nil {
		ev.Tags = nostr.Tags{}
	}
	err := ev.Sign(s.secret)
	metrics.RecordSigning("local", err == nil, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nostr.Event{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	return ev, nil
}

// DecodeSecretKey returns the hex form of a hex or nsec secret key.
func DecodeSecretKey(s string) (string, error) {
	return decodeKey(s, "nsec")
}

// DecodePublicKey returns the hex form of a hex or npub public key.
func DecodePublicKey(s string) (string, error) {
	return decodeKey(s, "npub")
}

func decodeKey(s, prefix string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, prefix+"1") {
		got, value, err := nip19.Decode(s)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		if got != prefix {
			return "", fmt.Errorf("%w: expected %s, got %s", ErrInvalidKey, prefix, got)
		}
		key, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%w: unexpected %s payload", ErrInvalidKey, prefix)
		}
		return key, nil
	}
	if len(s) != 64 {
		return "", fmt.Errorf("%w: want 64 hex characters or %s", ErrInvalidKey, prefix)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return strings.ToLower(s), nil
}
