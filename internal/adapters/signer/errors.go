package signer

import "errors"

// Sentinel kinds for signer errors.
var (
	// ErrSigningFailed is returned when no signed event could be obtained.
	ErrSigningFailed = errors.New("signing failed")
	// ErrInvalidKey is returned for keys that are neither hex nor bech32.
	ErrInvalidKey = errors.New("invalid key")
)
