package identity

import (
	"crypto/ed25519"
	"errors"

	"github.com/mr-tron/base58"
)

// ErrMalformedPubkey is returned when a pubkey string does not decode to a
// valid ed25519 public key.
var ErrMalformedPubkey = errors.New("identity: pubkey does not decode to a 32-byte ed25519 key")

// DecodePubkey decodes a base58 identity string into raw ed25519 public key
// bytes.
func DecodePubkey(pubkey string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(pubkey)
	if err != nil {
		return nil, ErrMalformedPubkey
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, ErrMalformedPubkey
	}
	return ed25519.PublicKey(raw), nil
}

// VerifySignature reports whether signature is a valid ed25519 signature
// over message, produced by the private key behind pubkey. Any malformed
// input is treated as a verification failure, never a panic.
func VerifySignature(pubkey string, message, signature []byte) bool {
	key, err := DecodePubkey(pubkey)
	if err != nil {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(key, message, signature)
}
