package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Player is the submitter of a score.
type Player struct {
	Name     string
	Identity string // hex public key; empty for anonymous players
}

var (
	guestAdjectives = []string{"Neon", "Cyber", "Sats", "Crypto", "Laser", "Rusty", "Based"}
	guestNouns      = []string{"Snake", "Viper", "Ostrich", "Miner", "Hodler", "Node", "Hash"}
)

// NewGuestPlayer returns a player with a random name such as "NeonViper42"
// and a random 64-hex identity.
func NewGuestPlayer() (Player, error) {
	adj, err := randIndex(len(guestAdjectives))
	if err != nil {
		return Player{}, err
	}
	noun, err := randIndex(len(guestNouns))
	if err != nil {
		return Player{}, err
	}
	num, err := randIndex(100)
	if err != nil {
		return Player{}, err
	}

	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return Player{}, fmt.Errorf("guest identity: %w", err)
	}

	return Player{
		Name:     fmt.Sprintf("%s%s%d", guestAdjectives[adj], guestNouns[noun], num),
		Identity: hex.EncodeToString(key[:]),
	}, nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("guest name: %w", err)
	}
	return int(v.Int64()), nil
}
