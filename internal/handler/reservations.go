package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/campushub/classroom-reservation/internal/booking"
	"github.com/campushub/classroom-reservation/internal/cache"
	"github.com/campushub/classroom-reservation/internal/config"
	"github.com/campushub/classroom-reservation/internal/middleware"
	"github.com/campushub/classroom-reservation/internal/timeslot"
)

// ReservationHandler serves the student's own reservation list and batch
// cancellation.
type ReservationHandler struct {
	Cfg          config.Config
	Slots        *timeslot.Table
	Reservations ReservationStore
	Classrooms   ClassroomStore
	Grid         *cache.GridCache
	Log          *zap.Logger
}

func (h *ReservationHandler) deadline(date time.Time, slot int) time.Time {
	s, _ := h.Slots.ByID(slot)
	return s.Deadline(date, time.Duration(h.Cfg.BookingWindowMin)*time.Minute)
}

// ListMine handles GET /v1/my-reservations?status=: the caller's batches
// newest first, each folded to a single status with per-seat detail.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	rows, err := h.Reservations.ListByStudent(ctx, middleware.StudentID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservations failed"})
	}
	batches := booking.GroupBatches(rows, h.deadline, time.Now())
	if want := c.QueryParam("status"); want != "" {
		filtered := batches[:0]
		for _, b := range batches {
			if b.Status == want {
				filtered = append(filtered, b)
			}
		}
		batches = filtered
	}

	names := make(map[uint64]string)
	items := make([]echo.Map, 0, len(batches))
	for _, b := range batches {
		name, ok := names[b.ClassroomID]
		if !ok {
			if room, err := h.Classrooms.GetByID(ctx, b.ClassroomID); err == nil {
				name = room.Name
			}
			names[b.ClassroomID] = name
		}
		seats := make([]echo.Map, 0, len(b.Seats))
		for _, s := range b.Seats {
			seats = append(seats, echo.Map{
				"id":     s.ID,
				"seat":   s.SeatLabel(),
				"status": s.Status,
			})
		}
		label := h.Slots.Label(b.TimeSlot)
		items = append(items, echo.Map{
			"batch_id":    b.BatchID,
			"classroom":   name,
			"date":        b.Date.Format("2006-01-02"),
			"time_slot":   b.TimeSlot,
			"slot_label":  label,
			"status":      b.Status,
			"cancellable": b.Cancellable,
			"seats":       seats,
			"created_at":  b.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CancelBatch handles POST /v1/my-reservations/:batch_id/cancel.  Pending
// and approved batches alike cancel only until the booking window closes,
// so a seat freed minutes before the session cannot be grabbed again.
func (h *ReservationHandler) CancelBatch(c echo.Context) error {
	batchID := c.Param("batch_id")
	if _, err := uuid.Parse(batchID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid batch id"})
	}
	studentID := middleware.StudentID(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := h.Reservations.BatchForStudentTx(ctx, tx, batchID, studentID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load batch failed"})
	}
	if len(rows) == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no cancellable reservation found"})
	}
	// BatchForStudentTx only returns pending and approved rows; both lock
	// once the window closes.
	now := time.Now()
	for _, r := range rows {
		if !now.Before(h.deadline(r.Date, r.TimeSlot)) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "cancellation window closed"})
		}
	}
	n, err := h.Reservations.CancelBatchTx(ctx, tx, batchID, studentID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	h.Grid.Invalidate(ctx, rows[0].ClassroomID, rows[0].Date, rows[0].TimeSlot)
	h.Log.Info("batch cancelled by holder",
		zap.String("batch_id", batchID),
		zap.Uint64("student_id", studentID),
		zap.Int64("seats", n))
	return c.JSON(http.StatusOK, echo.Map{"cancelled": n})
}
