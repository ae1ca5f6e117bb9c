package model

import "time"

// AccessCode is the door code for one classroom session.  There is exactly
// one row per (classroom, date, slot); the notified flag guarantees the
// code is mailed out at most once.
//
// Fields:
//
//	ID          - primary key identifier.
//	ClassroomID - room the code opens.
//	Date        - session day (date only).
//	TimeSlot    - configured slot id.
//	Code        - digits punched into the door lock.
//	Notified    - true once holders of approved seats were mailed.
type AccessCode struct {
	ID          uint64
	ClassroomID uint64
	Date        time.Time
	TimeSlot    int
	Code        string
	Notified    bool
	CreatedAt   time.Time
}
