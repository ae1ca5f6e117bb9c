package booking

import (
	"time"

	"github.com/campushub/classroom-reservation/internal/model"
)

// Batch statuses shown on the reservation list.  A batch whose seats were
// decided differently (some approved, some rejected) surfaces as partial.
const (
	BatchPending          = "pending"
	BatchApproved         = "approved"
	BatchPartial          = "partially_approved"
	BatchRejected         = "rejected"
	BatchExpired          = "expired"
	BatchCancelled        = "cancelled"
	BatchCancelledByAdmin = "cancelled_by_admin"
)

// Batch is one submission folded from its per-seat rows.
type Batch struct {
	BatchID     string              `json:"batch_id"`
	ClassroomID uint64              `json:"classroom_id"`
	Date        time.Time           `json:"date"`
	TimeSlot    int                 `json:"time_slot"`
	Status      string              `json:"status"`
	Cancellable bool                `json:"cancellable"`
	Seats       []model.Reservation `json:"seats"`
	CreatedAt   time.Time           `json:"created_at"`
}

// GroupBatches folds a newest-first reservation list into batches,
// preserving order of first appearance.  Deadline is applied per batch to
// decide whether the student may still cancel: pending and approved batches
// alike lock once the booking window for their slot closes.
func GroupBatches(rows []model.Reservation, deadline func(date time.Time, slot int) time.Time, now time.Time) []Batch {
	var out []Batch
	index := make(map[string]int)
	for _, row := range rows {
		i, ok := index[row.BatchID]
		if !ok {
			index[row.BatchID] = len(out)
			out = append(out, Batch{
				BatchID:     row.BatchID,
				ClassroomID: row.ClassroomID,
				Date:        row.Date,
				TimeSlot:    row.TimeSlot,
				CreatedAt:   row.CreatedAt,
			})
			i = len(out) - 1
		}
		out[i].Seats = append(out[i].Seats, row)
	}
	for i := range out {
		b := &out[i]
		b.Status = aggregateStatus(b.Seats)
		switch b.Status {
		case BatchPending, BatchApproved, BatchPartial:
			b.Cancellable = now.Before(deadline(b.Date, b.TimeSlot))
		}
	}
	return out
}

// aggregateStatus folds per-seat statuses into the batch status.  Any
// approved seat makes the batch approved (partial if siblings landed
// elsewhere); otherwise a pending seat keeps the batch open; otherwise the
// terminal states are checked from most to least specific.
func aggregateStatus(seats []model.Reservation) string {
	var approved, pending, cancelled, adminCancelled, expired, total int
	for _, s := range seats {
		total++
		switch s.Status {
		case model.StatusApproved:
			approved++
		case model.StatusPending:
			pending++
		case model.StatusCancelled:
			cancelled++
			if s.AdminAction {
				adminCancelled++
			}
		case model.StatusExpired:
			expired++
		}
	}
	switch {
	case approved > 0 && approved == total:
		return BatchApproved
	case approved > 0:
		return BatchPartial
	case pending > 0:
		return BatchPending
	case cancelled == total && adminCancelled > 0:
		return BatchCancelledByAdmin
	case cancelled == total:
		return BatchCancelled
	case expired > 0:
		return BatchExpired
	default:
		return BatchRejected
	}
}
