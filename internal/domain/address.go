package domain

import (
	"errors"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned when an address string is empty after trimming.
var ErrInvalidAddress = errors.New("invalid address")

// Address is a normalized wallet identifier used as an opaque map key.
type Address string

// Handle is a normalized social handle identifying one community member.
type Handle string

// String returns the address as a plain string.
func (a Address) String() string { return string(a) }

// String returns the handle as a plain string.
func (h Handle) String() string { return string(h) }

// NormalizeAddress canonicalises a wallet address.
//   - 0x-prefixed (EVM) addresses are lowercased
//   - 32-byte base58 keys (Solana) are kept verbatim, base58 is case-sensitive
//   - anything else is lowercased
func NormalizeAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidAddress
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		return Address("0x" + strings.ToLower(trimmed[2:])), nil
	}
	if isBase58Key(trimmed) {
		return Address(trimmed), nil
	}
	return Address(strings.ToLower(trimmed)), nil
}

// MustAddress normalizes raw and panics on empty input. Intended for fixtures.
func MustAddress(raw string) Address {
	a, err := NormalizeAddress(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// NormalizeHandle trims whitespace, strips a leading '@' and lowercases.
// Returns "" for input that carries no handle.
func NormalizeHandle(raw string) Handle {
	h := strings.TrimSpace(raw)
	h = strings.TrimPrefix(h, "@")
	return Handle(strings.ToLower(strings.TrimSpace(h)))
}

// IsSolanaKey reports whether the address is a 32-byte base58 public key.
func (a Address) IsSolanaKey() bool {
	return isBase58Key(string(a))
}

// IsOnCurve reports whether a Solana key is a valid ed25519 point.
// Program-derived accounts (pools, vaults) are off-curve and cannot sign,
// so they never belong to a community member.
// Non-Solana addresses always report true.
func IsOnCurve(a Address) bool {
	if !a.IsSolanaKey() {
		return true
	}
	decoded, err := base58.Decode(string(a))
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}

func isBase58Key(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}
