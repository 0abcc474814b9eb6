// Package id defines the prefix-qualified identifiers used by jobhost.
//
// An ID is a UUIDv7 (K-sortable, globally unique) rendered with a short
// prefix naming what it identifies, in the format "prefix_<32 hex digits>".
// Lease lock tokens, tick identifiers and instance identities all use it.
package id

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix identifies the entity type encoded in an ID.
type Prefix string

// Prefix constants for all jobhost entity types.
const (
	PrefixLease    Prefix = "lease"
	PrefixTick     Prefix = "tick"
	PrefixInstance Prefix = "inst"
)

// ID is a prefix-qualified, sortable identifier.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	prefix Prefix
	inner  uuid.UUID
	valid  bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix.
// It panics if prefix is not a valid prefix (programming error).
func New(prefix Prefix) ID {
	if err := validPrefix(string(prefix)); err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	u, err := uuid.NewV7()
	if err != nil {
		panic(fmt.Sprintf("id: generate uuidv7: %v", err))
	}

	return ID{prefix: prefix, inner: u, valid: true}
}

// Parse parses a string such as "lease_0192b3c4d5e67f00a1b2c3d4e5f60718".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	i := strings.LastIndexByte(s, '_')
	if i <= 0 {
		return Nil, fmt.Errorf("id: parse %q: missing prefix", s)
	}

	prefix, suffix := s[:i], s[i+1:]
	if err := validPrefix(prefix); err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	if len(suffix) != 32 {
		return Nil, fmt.Errorf("id: parse %q: suffix must be 32 hex digits", s)
	}

	u, err := uuid.Parse(suffix)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{prefix: Prefix(prefix), inner: u, valid: true}, nil
}

// ParseWithPrefix parses s and validates that its prefix matches expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewLeaseToken generates a new lock token (prefix: "lease").
func NewLeaseToken() ID { return New(PrefixLease) }

// NewTickID generates a new tick identifier (prefix: "tick").
func NewTickID() ID { return New(PrefixTick) }

// NewInstanceID generates a new process instance identifier (prefix: "inst").
func NewInstanceID() ID { return New(PrefixInstance) }

// ParseLeaseToken parses a string and validates the "lease" prefix.
func ParseLeaseToken(s string) (ID, error) { return ParseWithPrefix(s, PrefixLease) }

// ──────────────────────────────────────────────────
// Methods
// ──────────────────────────────────────────────────

// String returns the "prefix_suffix" form, or "" for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return string(i.prefix) + "_" + strings.ReplaceAll(i.inner.String(), "-", "")
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return i.prefix
}

// UUID returns the underlying UUIDv7.
func (i ID) UUID() uuid.UUID { return i.inner }

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil

		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

func validPrefix(p string) error {
	if p == "" || len(p) > 32 {
		return fmt.Errorf("prefix length must be 1-32")
	}
	for _, r := range p {
		if r < 'a' || r > 'z' {
			return fmt.Errorf("prefix must be lowercase ascii letters")
		}
	}
	return nil
}
