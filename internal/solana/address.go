package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidatePublicKey checks that s is a base58 encoded 32-byte key.
func ValidatePublicKey(s string) error {
	b, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	if len(b) != 32 {
		return fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, s, len(b))
	}
	return nil
}

// IsOnCurve reports whether address is a point on the ed25519 curve, i.e. a
// key a wallet can sign for. Program derived addresses are off the curve.
// Malformed addresses report false.
func IsOnCurve(address string) bool {
	b, err := base58.Decode(address)
	if err != nil || len(b) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(b)
	return err == nil
}
