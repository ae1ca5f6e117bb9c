package handler

import (
	"strings"
	"testing"
	"time"

	"github.com/campushub/classroom-reservation/internal/utils"
)

func TestReservationActionRoundTrip(t *testing.T) {
	signer := utils.NewSigner("test-secret")
	links := NewLinkBuilder(signer, "https://seats.example.edu/")

	url := links.ReservationAction([]uint64{12, 13, 14}, actionApprove)
	if !strings.HasPrefix(url, "https://seats.example.edu/admin-action/") {
		t.Fatalf("unexpected url %q", url)
	}

	token := url[strings.LastIndex(url, "/")+1:]
	payload, err := signer.Unsign(token, time.Hour)
	if err != nil {
		t.Fatalf("unsign: %v", err)
	}
	kind, ids, action, err := utils.ParseActionPayload(payload)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if kind != kindReservation || action != actionApprove {
		t.Fatalf("kind/action = %q/%q", kind, action)
	}
	got, err := splitIDs(ids)
	if err != nil {
		t.Fatalf("split ids: %v", err)
	}
	if len(got) != 3 || got[0] != 12 || got[2] != 14 {
		t.Fatalf("ids = %v", got)
	}
}

func TestResetConfirmCarriesPassword(t *testing.T) {
	signer := utils.NewSigner("test-secret")
	links := NewLinkBuilder(signer, "https://seats.example.edu")

	// Passwords may contain colons; only the first two split the payload.
	url := links.ResetConfirm(7, "new:pass:word")
	if !strings.Contains(url, "/v1/auth/reset-confirm/") {
		t.Fatalf("unexpected url %q", url)
	}
	token := url[strings.LastIndex(url, "/")+1:]
	payload, err := signer.Unsign(token, 10*time.Minute)
	if err != nil {
		t.Fatalf("unsign: %v", err)
	}
	kind, id, pass, err := utils.ParseActionPayload(payload)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if kind != kindReset || id != "7" || pass != "new:pass:word" {
		t.Fatalf("payload = %q/%q/%q", kind, id, pass)
	}
}

func TestSplitIDsRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "0", "1,x", "1,,2", "-3"} {
		if _, err := splitIDs(bad); err == nil {
			t.Errorf("splitIDs(%q) accepted", bad)
		}
	}
}
