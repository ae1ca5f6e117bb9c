package booking

import (
	"testing"
	"time"

	"github.com/campushub/classroom-reservation/internal/model"
)

func seat(batch, status string, admin bool) model.Reservation {
	return model.Reservation{BatchID: batch, Status: status, AdminAction: admin}
}

func TestAggregateStatus(t *testing.T) {
	cases := []struct {
		name  string
		seats []model.Reservation
		want  string
	}{
		{"all approved", []model.Reservation{seat("b", model.StatusApproved, false), seat("b", model.StatusApproved, false)}, BatchApproved},
		{"mixed approved and rejected", []model.Reservation{seat("b", model.StatusApproved, false), seat("b", model.StatusRejected, false)}, BatchPartial},
		{"still pending", []model.Reservation{seat("b", model.StatusPending, false), seat("b", model.StatusRejected, false)}, BatchPending},
		{"all cancelled by holder", []model.Reservation{seat("b", model.StatusCancelled, false)}, BatchCancelled},
		{"cancelled by admin", []model.Reservation{seat("b", model.StatusCancelled, true), seat("b", model.StatusCancelled, false)}, BatchCancelledByAdmin},
		{"expired", []model.Reservation{seat("b", model.StatusExpired, false), seat("b", model.StatusRejected, false)}, BatchExpired},
		{"all rejected", []model.Reservation{seat("b", model.StatusRejected, false)}, BatchRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := aggregateStatus(tc.seats); got != tc.want {
				t.Errorf("aggregateStatus = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGroupBatchesPreservesOrderAndCancellability(t *testing.T) {
	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)
	rows := []model.Reservation{
		{ID: 4, BatchID: "b2", Date: date, TimeSlot: 2, Status: model.StatusApproved},
		{ID: 3, BatchID: "b2", Date: date, TimeSlot: 2, Status: model.StatusApproved},
		{ID: 2, BatchID: "b1", Date: date, TimeSlot: 1, Status: model.StatusPending},
	}
	deadline := func(d time.Time, slot int) time.Time {
		return time.Date(d.Year(), d.Month(), d.Day(), 7+slot, 30, 0, 0, time.Local)
	}

	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.Local)
	batches := GroupBatches(rows, deadline, now)
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if batches[0].BatchID != "b2" || batches[1].BatchID != "b1" {
		t.Errorf("order = %s,%s, want b2,b1", batches[0].BatchID, batches[1].BatchID)
	}
	if len(batches[0].Seats) != 2 {
		t.Errorf("b2 has %d seats, want 2", len(batches[0].Seats))
	}

	// slot 2 deadline is 09:30, still open
	if !batches[0].Cancellable {
		t.Error("approved batch inside window should be cancellable")
	}
	// slot 1 deadline was 08:30, already closed at 09:00
	if batches[1].Cancellable {
		t.Error("pending batch past its window should not be cancellable")
	}

	early := time.Date(2026, 9, 1, 8, 0, 0, 0, time.Local)
	batches = GroupBatches(rows, deadline, early)
	if !batches[1].Cancellable {
		t.Error("pending batch inside window should be cancellable")
	}

	late := time.Date(2026, 9, 1, 10, 0, 0, 0, time.Local)
	batches = GroupBatches(rows, deadline, late)
	if batches[0].Cancellable {
		t.Error("approved batch past window should not be cancellable")
	}
	if batches[1].Cancellable {
		t.Error("pending batch past window should not be cancellable")
	}
}
