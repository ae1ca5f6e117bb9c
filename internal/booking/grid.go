// Package booking holds the seat-grid and batch-lifecycle logic that does
// not touch the database: building the grid a client renders, and folding a
// batch's rows into the single status shown on the "my reservations" page.
package booking

import (
	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/repository"
)

// Cell states as rendered on the seat grid.
const (
	CellAisle        = "aisle"
	CellFree         = "free"
	CellApproved     = "approved"
	CellPending      = "other_pending"
	CellMinePending  = "mine_pending"
	CellMineApproved = "mine_approved"
)

// Cell is one position of the rendered grid.  Coordinates are zero-based
// layout indices, matching what the submit endpoint accepts.  StudentNo is
// filled only on the admin view.
type Cell struct {
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	Status    string `json:"status"`
	StudentNo string `json:"student_no,omitempty"`
}

// BuildGrid turns a classroom layout plus the slot's reservation records
// into the matrix a client renders.  An approved seat outranks any pending
// claim, the viewer's own included; among pending claims the viewer's wins.
// Pass includeOccupants for the admin view only.
func BuildGrid(room model.Classroom, records []repository.GridRecord, viewerID uint64, includeOccupants bool) [][]Cell {
	layout := room.LayoutRows()
	grid := make([][]Cell, len(layout))
	for i, rowSpec := range layout {
		row := make([]Cell, len(rowSpec))
		for j, ch := range []byte(rowSpec) {
			status := CellAisle
			if ch == '1' {
				status = CellFree
			}
			row[j] = Cell{Row: i, Col: j, Status: status}
		}
		grid[i] = row
	}
	for _, rec := range records {
		i, j := rec.SeatRow, rec.SeatCol
		if i < 0 || i >= len(grid) || j < 0 || j >= len(grid[i]) {
			continue
		}
		cell := &grid[i][j]
		if cell.Status == CellAisle {
			continue
		}
		next := CellPending
		switch {
		case rec.StudentID == viewerID && rec.Status == model.StatusApproved:
			next = CellMineApproved
		case rec.StudentID == viewerID:
			next = CellMinePending
		case rec.Status == model.StatusApproved:
			next = CellApproved
		}
		if rank(next) <= rank(cell.Status) {
			continue
		}
		cell.Status = next
		if includeOccupants {
			cell.StudentNo = rec.StudentNo
		} else {
			cell.StudentNo = ""
		}
	}
	return grid
}

// rank orders cell states so a stronger claim overwrites a weaker one.
func rank(status string) int {
	switch status {
	case CellMineApproved:
		return 5
	case CellApproved:
		return 4
	case CellMinePending:
		return 3
	case CellPending:
		return 2
	case CellFree:
		return 1
	default:
		return 0
	}
}
