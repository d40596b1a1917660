package opid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-derived identity.
// Version suffix enables future algorithm migration.
const (
	DomainOperation  = "tessera/operation/v1"
	DomainCapability = "tessera/capability/v1"
	DomainModule     = "tessera/module/v1"
	DomainNamespace  = "tessera/namespace/v1"
)

// OpIDSize is the width of an OperationID in bytes.
const OpIDSize = 8

// CapIDSize is the width of a CapabilityID in bytes.
const CapIDSize = 8

// OperationID is a fixed-width identifier for a callable operation,
// derived from the operation's signature string (e.g. "transfer(address,u64)").
// The zero value is never a valid operation identifier.
type OperationID [OpIDSize]byte

// CapabilityID identifies a composite capability advertised by a module,
// independent of the module's individual operation ids.
type CapabilityID [CapIDSize]byte

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// DeriveOp computes the OperationID for an operation signature.
// Stable across restarts: the same signature always yields the same id.
func DeriveOp(signature string) OperationID {
	sum := hashWithDomain(DomainOperation, []byte(signature))
	var id OperationID
	copy(id[:], sum[:OpIDSize])
	return id
}

// DeriveCapability computes the CapabilityID for a capability name.
func DeriveCapability(name string) CapabilityID {
	sum := hashWithDomain(DomainCapability, []byte(name))
	var id CapabilityID
	copy(id[:], sum[:CapIDSize])
	return id
}

// ParseOp decodes an OperationID from its 16-character hex rendering.
func ParseOp(s string) (OperationID, error) {
	var id OperationID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse operation id %q: %w", s, err)
	}
	if len(b) != OpIDSize {
		return id, fmt.Errorf("parse operation id %q: want %d bytes, got %d", s, OpIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// IsZero reports whether the id is the zero value.
func (id OperationID) IsZero() bool {
	return id == OperationID{}
}

// String returns the 16-character lowercase hex rendering.
func (id OperationID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText implements encoding.TextMarshaler so OperationIDs render
// as hex in JSON and YAML.
func (id OperationID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *OperationID) UnmarshalText(text []byte) error {
	parsed, err := ParseOp(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// String returns the 16-character lowercase hex rendering.
func (id CapabilityID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id CapabilityID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *CapabilityID) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("parse capability id %q: %w", text, err)
	}
	if len(b) != CapIDSize {
		return fmt.Errorf("parse capability id %q: want %d bytes, got %d", text, CapIDSize, len(b))
	}
	copy(id[:], b)
	return nil
}

// NamespacePrefix derives the 16-byte storage prefix reserved for a
// namespace name. Distinct names yield non-overlapping prefixes with
// cryptographically negligible collision probability; fixed names are
// verified collision-free by tests, not at runtime.
func NamespacePrefix(name string) [16]byte {
	sum := hashWithDomain(DomainNamespace, []byte(name))
	var p [16]byte
	copy(p[:], sum[:16])
	return p
}
