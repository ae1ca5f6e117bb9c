package booking

import (
	"testing"

	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/repository"
)

func testRoom() model.Classroom {
	return model.Classroom{ID: 1, Name: "D201", Layout: "1101\n1101"}
}

func TestBuildGridLayout(t *testing.T) {
	grid := BuildGrid(testRoom(), nil, 7, false)
	if len(grid) != 2 || len(grid[0]) != 4 {
		t.Fatalf("got %dx%d grid", len(grid), len(grid[0]))
	}
	if grid[0][2].Status != CellAisle {
		t.Errorf("layout '0' column = %q, want aisle", grid[0][2].Status)
	}
	if grid[1][3].Status != CellFree {
		t.Errorf("layout '1' column = %q, want free", grid[1][3].Status)
	}
	if grid[1][3].Row != 1 || grid[1][3].Col != 3 {
		t.Errorf("coordinates = (%d,%d), want (1,3)", grid[1][3].Row, grid[1][3].Col)
	}
}

func TestBuildGridOwnSeatsOutrankOthers(t *testing.T) {
	records := []repository.GridRecord{
		{SeatRow: 0, SeatCol: 0, Status: model.StatusPending, StudentID: 7, StudentNo: "U202301"},
		{SeatRow: 0, SeatCol: 0, Status: model.StatusPending, StudentID: 9, StudentNo: "U202302"},
		{SeatRow: 0, SeatCol: 1, Status: model.StatusApproved, StudentID: 9, StudentNo: "U202302"},
		{SeatRow: 1, SeatCol: 0, Status: model.StatusPending, StudentID: 9, StudentNo: "U202302"},
	}
	grid := BuildGrid(testRoom(), records, 7, false)

	if got := grid[0][0].Status; got != CellMinePending {
		t.Errorf("own pending seat = %q, want %q", got, CellMinePending)
	}
	if got := grid[0][1].Status; got != CellApproved {
		t.Errorf("stranger approved seat = %q, want %q", got, CellApproved)
	}
	if got := grid[1][0].Status; got != CellPending {
		t.Errorf("stranger pending seat = %q, want %q", got, CellPending)
	}
	if grid[0][1].StudentNo != "" {
		t.Errorf("student view leaked occupant %q", grid[0][1].StudentNo)
	}
}

func TestBuildGridApprovedOutranksOwnPending(t *testing.T) {
	// A stale pending row of the viewer must not mask the seat's real
	// holder once someone else's request was approved.
	records := []repository.GridRecord{
		{SeatRow: 0, SeatCol: 0, Status: model.StatusPending, StudentID: 7, StudentNo: "U202301"},
		{SeatRow: 0, SeatCol: 0, Status: model.StatusApproved, StudentID: 9, StudentNo: "U202302"},
	}
	grid := BuildGrid(testRoom(), records, 7, false)
	if got := grid[0][0].Status; got != CellApproved {
		t.Errorf("contested seat = %q, want %q", got, CellApproved)
	}
}

func TestBuildGridAdminSeesOccupants(t *testing.T) {
	records := []repository.GridRecord{
		{SeatRow: 0, SeatCol: 0, Status: model.StatusApproved, StudentID: 9, StudentNo: "U202302"},
	}
	grid := BuildGrid(testRoom(), records, 0, true)
	if grid[0][0].StudentNo != "U202302" {
		t.Errorf("occupant = %q, want U202302", grid[0][0].StudentNo)
	}
}

func TestBuildGridIgnoresOutOfRangeAndAisleRecords(t *testing.T) {
	records := []repository.GridRecord{
		{SeatRow: 9, SeatCol: 9, Status: model.StatusApproved, StudentID: 9},
		{SeatRow: 0, SeatCol: 2, Status: model.StatusApproved, StudentID: 9},
	}
	grid := BuildGrid(testRoom(), records, 0, true)
	if grid[0][2].Status != CellAisle {
		t.Errorf("aisle cell mutated to %q", grid[0][2].Status)
	}
}
