package common

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// EncodeBytesToBase58 encodes bytes directly to base58
func EncodeBytesToBase58(bytes []byte) string {
	return base58.Encode(bytes)
}

// DecodeBase58ToBytes decodes base58 string to bytes
func DecodeBase58ToBytes(base58Str string) ([]byte, error) {
	bytes, err := base58.Decode(base58Str)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base58 string: %w", err)
	}
	return bytes, nil
}

// ValidateAddress checks that addr is a base58 encoded ed25519 public key.
// Accounts on the chain are addressed by their public key, so anything that
// does not decode to exactly 32 bytes can never receive funds.
func ValidateAddress(addr string) error {
	decoded, err := DecodeBase58ToBytes(addr)
	if err != nil {
		return fmt.Errorf("address is not valid base58: %w", err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		return fmt.Errorf("address decodes to %d bytes, want %d", len(decoded), ed25519.PublicKeySize)
	}
	return nil
}
