package opid

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressSize is the width of a module address in bytes.
const AddressSize = 20

// Address identifies an independently deployed module (or an external
// account such as the service owner). The zero value is the null sentinel:
// it designates "no module" in Remove cut entries and a renounced owner.
type Address [AddressSize]byte

// ZeroAddress is the null sentinel address.
var ZeroAddress = Address{}

// DeriveAddress computes a deterministic module address from a code hash
// and a caller-supplied salt. The address is a pure function of its
// inputs, so a deployment's address is predictable before submission.
func DeriveAddress(codeHash []byte, salt []byte) Address {
	payload := make([]byte, 0, len(codeHash)+1+len(salt))
	payload = append(payload, codeHash...)
	payload = append(payload, 0x00)
	payload = append(payload, salt...)
	sum := hashWithDomain(DomainModule, payload)
	var a Address
	copy(a[:], sum[:AddressSize])
	return a
}

// ParseAddress decodes an Address from hex, with or without a "0x" prefix.
func ParseAddress(s string) (Address, error) {
	var a Address
	trimmed := strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return a, fmt.Errorf("parse address %q: %w", s, err)
	}
	if len(b) != AddressSize {
		return a, fmt.Errorf("parse address %q: want %d bytes, got %d", s, AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// IsZero reports whether the address is the null sentinel.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String returns the "0x"-prefixed lowercase hex rendering.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
