package model

import "fmt"

// SeatLabel renders zero-based layout coordinates as the 1-based "row N seat M"
// label shown to students and administrators.
func SeatLabel(row, col int) string {
	return fmt.Sprintf("row %d seat %d", row+1, col+1)
}
