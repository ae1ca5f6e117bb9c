// Package timeslot parses the configured daily time slots and provides the
// deadline arithmetic every booking rule derives from: a slot's start time
// on a given date, the cutoff N minutes before it, and the default slot to
// show when a request names none.
package timeslot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Slot is one bookable window of a day.  IDs are 1-based positions in the
// configured list and are what reservations store in their time_slot column.
type Slot struct {
	ID         int
	Label      string // "08:00 - 10:00"
	StartHour  int
	StartMin   int
	EndHour    int
	EndMin     int
}

// Table holds the parsed slot list in configuration order.
type Table struct {
	slots []Slot
}

// Parse builds a Table from a comma-separated "HH:MM-HH:MM" list.  It fails
// on an empty list, a malformed window, or an end that does not follow its
// start.
func Parse(spec string) (*Table, error) {
	parts := strings.Split(spec, ",")
	slots := make([]Slot, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		bounds := strings.SplitN(p, "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("time slot %q: want HH:MM-HH:MM", p)
		}
		sh, sm, err := parseClock(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("time slot %q: %w", p, err)
		}
		eh, em, err := parseClock(bounds[1])
		if err != nil {
			return nil, fmt.Errorf("time slot %q: %w", p, err)
		}
		if eh*60+em <= sh*60+sm {
			return nil, fmt.Errorf("time slot %q: end not after start", p)
		}
		slots = append(slots, Slot{
			ID:        i + 1,
			Label:     fmt.Sprintf("%02d:%02d - %02d:%02d", sh, sm, eh, em),
			StartHour: sh,
			StartMin:  sm,
			EndHour:   eh,
			EndMin:    em,
		})
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("no time slots configured")
	}
	return &Table{slots: slots}, nil
}

func parseClock(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	hm := strings.SplitN(s, ":", 2)
	if len(hm) != 2 {
		return 0, 0, fmt.Errorf("bad clock %q", s)
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("bad hour %q", s)
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("bad minute %q", s)
	}
	return h, m, nil
}

// All returns the slots in order.
func (t *Table) All() []Slot { return t.slots }

// ByID returns the slot with the given id, or false when unknown.
func (t *Table) ByID(id int) (Slot, bool) {
	if id < 1 || id > len(t.slots) {
		return Slot{}, false
	}
	return t.slots[id-1], true
}

// Label returns the slot's display label, or "" for an unknown id.
func (t *Table) Label(id int) string {
	s, ok := t.ByID(id)
	if !ok {
		return ""
	}
	return s.Label
}

// StartAt returns the moment the slot opens on the given date, in date's
// location.
func (s Slot) StartAt(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), s.StartHour, s.StartMin, 0, 0, date.Location())
}

// Deadline returns the last moment an action (booking, cancellation,
// approval) on this slot/date is still allowed: slot start minus the
// configured window.
func (s Slot) Deadline(date time.Time, window time.Duration) time.Time {
	return s.StartAt(date).Add(-window)
}

// DefaultSlotID picks the slot to display when the request names none.
// For today it returns the earliest slot that has not started yet, falling
// back to the last slot once the day is over.  For any other date it
// returns the first slot.
func (t *Table) DefaultSlotID(date, now time.Time) int {
	if !sameDay(date, now) {
		return t.slots[0].ID
	}
	for _, s := range t.slots {
		if s.StartAt(date).After(now) {
			return s.ID
		}
	}
	return t.slots[len(t.slots)-1].ID
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
