package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/jobhost/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"LeaseToken", id.NewLeaseToken, "lease_"},
		{"TickID", id.NewTickID, "tick_"},
		{"InstanceID", id.NewInstanceID, "inst_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
			if len(got) != len(tt.prefix)+32 {
				t.Errorf("unexpected length %d for %q", len(got), got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := id.NewLeaseToken()
	parsed, err := id.ParseLeaseToken(original.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
	}
	if parsed.UUID() != original.UUID() {
		t.Errorf("uuid mismatch")
	}
}

func TestParseWithPrefix_RejectsOtherPrefix(t *testing.T) {
	if _, err := id.ParseLeaseToken(id.NewTickID().String()); err == nil {
		t.Fatal("expected error for tick id parsed as lease token")
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"lease",
		"_0192b3c4d5e67f00a1b2c3d4e5f60718",
		"Lease_0192b3c4d5e67f00a1b2c3d4e5f60718",
		"lease_1234",
		"lease_zz92b3c4d5e67f00a1b2c3d4e5f60718",
	} {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}

func TestIDsAreSortable(t *testing.T) {
	a := id.NewTickID()
	b := id.NewTickID()
	if a.String() >= b.String() {
		t.Errorf("expected %q < %q", a.String(), b.String())
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Fatal("zero ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Errorf("Value() = %v, %v; want nil, nil", v, err)
	}
}

func TestTextAndScan(t *testing.T) {
	original := id.NewInstanceID()
	text, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var fromText id.ID
	if err := fromText.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if fromText != original {
		t.Errorf("text round-trip mismatch")
	}

	var scanned id.ID
	if err := scanned.Scan(original.String()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scanned != original {
		t.Errorf("scan mismatch")
	}

	if err := scanned.Scan(nil); err != nil || !scanned.IsNil() {
		t.Errorf("Scan(nil) should give Nil ID")
	}
	if err := scanned.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}
