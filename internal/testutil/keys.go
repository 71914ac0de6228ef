package testutil

import (
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Keypair is a generated secret key and its public key.
type Keypair struct {
	Secret string
	Public string
}

// NewKeypair generates a random keypair.
func NewKeypair(t testing.TB) Keypair {
	t.Helper()
	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	return Keypair{Secret: sk, Public: pk}
}

// Sign fills author, id and signature of ev.
func (k Keypair) Sign(t testing.TB, ev nostr.Event) nostr.Event {
	t.Helper()
	ev.PubKey = k.Public
	if ev.CreatedAt == 0 {
		ev.CreatedAt = nostr.Now()
	}
	if ev.Tags == nil {
		ev.Tags = nostr.Tags{}
	}
	if err := ev.Sign(k.Secret); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return ev
}

// ScoreEvent returns a signed score announcement for game with an optional player tag.
func (k Keypair) ScoreEvent(t testing.TB, kind int, game string, score string, player string, content string) nostr.Event {
	t.Helper()
	tags := nostr.Tags{{"d", game}, {"game", game}, {"score", score}}
	if player != "" {
		tags = append(tags, nostr.Tag{"p", player})
	}
	return k.Sign(t, nostr.Event{Kind: kind, Tags: tags, Content: content, CreatedAt: nostr.Timestamp(time.Now().Unix())})
}

// ProfileEvent returns a signed kind-0 event with the given JSON content.
func (k Keypair) ProfileEvent(t testing.TB, content string) nostr.Event {
	t.Helper()
	return k.Sign(t, nostr.Event{Kind: nostr.KindProfileMetadata, Content: content})
}
