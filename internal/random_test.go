package internal

import "testing"

func TestSessionIDRoundTrip(t *testing.T) {
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("new session id: %v", err)
	}
	encoded := sid.String()
	if len(encoded) != 22 {
		t.Fatalf("expected 22 char base64url id, got %d (%q)", len(encoded), encoded)
	}
	parsed, err := ParseSessionID(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != sid {
		t.Fatal("round trip mismatch")
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		sid, err := NewSessionID()
		if err != nil {
			t.Fatalf("new session id: %v", err)
		}
		if _, dup := seen[sid.String()]; dup {
			t.Fatalf("duplicate session id after %d draws", i)
		}
		seen[sid.String()] = struct{}{}
	}
}

func TestParseSessionIDRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "short", "!!!!!!!!!!!!!!!!!!!!!!", "AAAAAAAAAAAAAAAAAAAAAAAA"} {
		if _, err := ParseSessionID(in); err == nil {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}
