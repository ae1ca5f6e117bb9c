package model

import "time"

// Reservation lifecycle states.  Pending requests compete for a seat until
// an approval hard-locks it; every other transition is terminal.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Reservation records one student's claim on one seat for a classroom,
// date and time slot.  Seats submitted together share a batch UUID so the
// admin decides, and the student cancels, whole submissions at once.
//
// Fields:
//
//	ID                 - primary key identifier.
//	BatchID            - UUID shared by the seats of one submission.
//	StudentID          - requesting student.
//	ClassroomID        - classroom being booked.
//	SeatRow, SeatCol   - zero-based layout coordinates.
//	Date               - day of the session (date only).
//	TimeSlot           - configured slot id.
//	Status             - lifecycle state, see constants above.
//	AdminAction        - row was created or cancelled by an administrator.
//	CancelledSeatsJSON - audit payload written by admin bulk cancellation.
type Reservation struct {
	ID                 uint64
	BatchID            string
	StudentID          uint64
	ClassroomID        uint64
	SeatRow            int
	SeatCol            int
	Date               time.Time
	TimeSlot           int
	Status             string
	AdminAction        bool
	CancelledSeatsJSON string
	CreatedAt          time.Time
}

// SeatLabel renders the 1-based human label used in email and listings.
func (r Reservation) SeatLabel() string {
	return SeatLabel(r.SeatRow, r.SeatCol)
}
