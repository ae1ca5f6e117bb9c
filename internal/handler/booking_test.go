package handler

import (
	"testing"
	"time"

	"github.com/campushub/classroom-reservation/internal/model"
)

func TestParseDate(t *testing.T) {
	d, err := parseDate("2026-03-09")
	if err != nil {
		t.Fatalf("parseDate: %v", err)
	}
	if d.Location() != time.Local {
		t.Fatalf("location = %v, want local", d.Location())
	}
	if d.Hour() != 0 || d.Day() != 9 {
		t.Fatalf("parsed %v", d)
	}
	if _, err := parseDate("03/09/2026"); err == nil {
		t.Fatal("accepted slash format")
	}
}

func TestDedupeSeats(t *testing.T) {
	room := model.Classroom{Layout: "11011\n11011"}

	seats, err := dedupeSeats([]seatReq{
		{Row: 0, Col: 0},
		{Row: 1, Col: 4},
		{Row: 0, Col: 0}, // repeat, dropped
	}, room)
	if err != nil {
		t.Fatalf("dedupeSeats: %v", err)
	}
	if len(seats) != 2 {
		t.Fatalf("got %d seats, want 2", len(seats))
	}

	// Aisle and out-of-range coordinates are rejected with the seat label.
	for _, bad := range []seatReq{{Row: 0, Col: 2}, {Row: 2, Col: 0}, {Row: 0, Col: 9}} {
		if _, err := dedupeSeats([]seatReq{bad}, room); err == nil {
			t.Errorf("accepted seat %+v", bad)
		}
	}
}

func TestHorizonDays(t *testing.T) {
	h := &BookingHandler{}
	h.Cfg.MaxDaysAhead = 2
	h.Cfg.MaxDaysAheadManager = 7

	if got := h.horizonDays(model.RoleUser); got != 2 {
		t.Fatalf("user horizon = %d", got)
	}
	if got := h.horizonDays(model.RoleManager); got != 7 {
		t.Fatalf("manager horizon = %d", got)
	}
	if got := h.horizonDays(model.RoleAdmin); got != 7 {
		t.Fatalf("admin horizon = %d", got)
	}
}
