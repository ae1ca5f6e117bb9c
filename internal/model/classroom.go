package model

import "strings"

// Classroom mirrors the 'classrooms' table.  The seating plan is stored as
// layout text: one line per row, '1' marking a seat and '0' an aisle.
//
// Fields:
//
//	ID       - primary key identifier.
//	Name     - display name, e.g. "D201".
//	Layout   - layout text ("11011\n11011").
//	IsActive - inactive rooms are hidden from booking.
type Classroom struct {
	ID       uint64
	Name     string
	Layout   string
	IsActive bool
}

// LayoutRows splits the layout text into trimmed row strings, dropping
// blank lines.
func (c Classroom) LayoutRows() []string {
	lines := strings.Split(strings.TrimSpace(c.Layout), "\n")
	rows := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			rows = append(rows, l)
		}
	}
	return rows
}

// HasSeat reports whether (row, col) addresses a seat cell in the layout.
func (c Classroom) HasSeat(row, col int) bool {
	rows := c.LayoutRows()
	if row < 0 || row >= len(rows) {
		return false
	}
	line := rows[row]
	if col < 0 || col >= len(line) {
		return false
	}
	return line[col] == '1'
}
