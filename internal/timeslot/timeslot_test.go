package timeslot

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, spec string) *Table {
	t.Helper()
	tbl, err := Parse(spec)
	if err != nil {
		t.Fatalf("Parse(%q): %v", spec, err)
	}
	return tbl
}

func TestParseAssignsSequentialIDs(t *testing.T) {
	tbl := mustParse(t, "08:00-10:00, 10:10-12:10 ,19:00-21:00")
	slots := tbl.All()
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	for i, s := range slots {
		if s.ID != i+1 {
			t.Errorf("slot %d: expected id %d, got %d", i, i+1, s.ID)
		}
	}
	if slots[1].Label != "10:10 - 12:10" {
		t.Errorf("unexpected label %q", slots[1].Label)
	}
}

func TestParseRejectsMalformedSpecs(t *testing.T) {
	for _, spec := range []string{
		"",
		"08:00",
		"08:00-07:00",
		"8:99-10:00",
		"25:00-26:00",
	} {
		if _, err := Parse(spec); err == nil {
			t.Errorf("Parse(%q): expected error", spec)
		}
	}
}

func TestByIDBounds(t *testing.T) {
	tbl := mustParse(t, "08:00-10:00,10:10-12:10")
	if _, ok := tbl.ByID(0); ok {
		t.Error("id 0 should not resolve")
	}
	if _, ok := tbl.ByID(3); ok {
		t.Error("id past end should not resolve")
	}
	if s, ok := tbl.ByID(2); !ok || s.StartHour != 10 || s.StartMin != 10 {
		t.Errorf("id 2 resolved to %+v ok=%v", s, ok)
	}
	if tbl.Label(9) != "" {
		t.Error("unknown id should yield empty label")
	}
}

func TestDeadlineArithmetic(t *testing.T) {
	tbl := mustParse(t, "08:00-10:00")
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local)
	slot, _ := tbl.ByID(1)

	start := slot.StartAt(date)
	if start.Hour() != 8 || start.Minute() != 0 || start.Day() != 14 {
		t.Fatalf("unexpected start %v", start)
	}

	deadline := slot.Deadline(date, 30*time.Minute)
	want := time.Date(2026, 3, 14, 7, 30, 0, 0, time.Local)
	if !deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", deadline, want)
	}
}

func TestDefaultSlotID(t *testing.T) {
	tbl := mustParse(t, "08:00-10:00,14:00-16:00,19:00-21:00")
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local)

	cases := []struct {
		name string
		now  time.Time
		date time.Time
		want int
	}{
		{"future date picks first slot", day.Add(9 * time.Hour), day.AddDate(0, 0, 2), 1},
		{"today before all slots", time.Date(2026, 3, 14, 6, 0, 0, 0, time.Local), day, 1},
		{"today mid-day picks next unstarted", time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local), day, 2},
		{"today after all slots falls back to last", time.Date(2026, 3, 14, 22, 0, 0, 0, time.Local), day, 3},
	}
	for _, tc := range cases {
		if got := tbl.DefaultSlotID(tc.date, tc.now); got != tc.want {
			t.Errorf("%s: got slot %d, want %d", tc.name, got, tc.want)
		}
	}
}
