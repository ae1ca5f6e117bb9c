package utils

import (
	"strings"
	"testing"
	"time"
)

func TestSignerRoundTrip(t *testing.T) {
	s := NewSigner("secret-a")
	payload := "res:12,13,14:approve"

	tok := s.Sign(payload)
	got, err := s.Unsign(tok, time.Hour)
	if err != nil {
		t.Fatalf("Unsign: %v", err)
	}
	if got != payload {
		t.Errorf("payload = %q, want %q", got, payload)
	}
}

func TestSignerRejectsTampering(t *testing.T) {
	s := NewSigner("secret-a")
	tok := s.Sign("res:12:approve")

	// Flip a character in the body while keeping the structure intact.
	var tampered string
	if tok[0] != 'A' {
		tampered = "A" + tok[1:]
	} else {
		tampered = "B" + tok[1:]
	}
	if _, err := s.Unsign(tampered, time.Hour); err == nil {
		t.Error("tampered token accepted")
	}

	// A token signed with a different secret must not verify.
	other := NewSigner("secret-b").Sign("res:12:approve")
	if _, err := s.Unsign(other, time.Hour); err == nil {
		t.Error("cross-secret token accepted")
	}

	for _, junk := range []string{"", "abc", "a.b", "a.b.c.d!!"} {
		if _, err := s.Unsign(junk, time.Hour); err == nil {
			t.Errorf("junk token %q accepted", junk)
		}
	}
}

func TestSignerEnforcesMaxAge(t *testing.T) {
	s := NewSigner("secret-a")
	now := time.Now()

	tok := s.signAt("reset:7:newpass", now.Add(-11*time.Minute))
	if _, err := s.unsignAt(tok, 10*time.Minute, now); err == nil {
		t.Error("expired token accepted")
	}
	if _, err := s.unsignAt(tok, 12*time.Minute, now); err != nil {
		t.Errorf("fresh-enough token rejected: %v", err)
	}

	// Timestamps from the future are as suspect as stale ones.
	future := s.signAt("res:1:approve", now.Add(time.Hour))
	if _, err := s.unsignAt(future, 24*time.Hour, now); err == nil {
		t.Error("future-dated token accepted")
	}
}

func TestSignerTokenIsPathSafe(t *testing.T) {
	s := NewSigner("secret-a")
	tok := s.Sign("stu:42:promote")
	if strings.ContainsAny(tok, "/+=?&# ") {
		t.Errorf("token contains URL-unsafe characters: %q", tok)
	}
}

func TestParseActionPayload(t *testing.T) {
	kind, ids, action, err := ParseActionPayload("res:12,13:approve")
	if err != nil {
		t.Fatalf("ParseActionPayload: %v", err)
	}
	if kind != "res" || ids != "12,13" || action != "approve" {
		t.Errorf("got %q %q %q", kind, ids, action)
	}

	// Reset payloads carry the new password after the second colon; it may
	// itself contain colons.
	_, id, pass, err := ParseActionPayload("reset:7:p:ss:w0rd")
	if err != nil {
		t.Fatalf("ParseActionPayload: %v", err)
	}
	if id != "7" || pass != "p:ss:w0rd" {
		t.Errorf("got id=%q pass=%q", id, pass)
	}

	for _, bad := range []string{"", "res", "res:1", "::approve", "res::x"} {
		if _, _, _, err := ParseActionPayload(bad); err == nil {
			t.Errorf("payload %q accepted", bad)
		}
	}
}
