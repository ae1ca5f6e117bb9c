package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/campushub/classroom-reservation/internal/booking"
	"github.com/campushub/classroom-reservation/internal/cache"
	"github.com/campushub/classroom-reservation/internal/config"
	"github.com/campushub/classroom-reservation/internal/mailer"
	"github.com/campushub/classroom-reservation/internal/middleware"
	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/timeslot"
)

// BookingHandler serves the seat grid and accepts reservation batches.
// Submissions run inside a transaction: the whole batch is inserted or
// nothing is, and an approved seat discovered mid-insert aborts everything.
type BookingHandler struct {
	Cfg          config.Config
	Slots        *timeslot.Table
	Students     StudentStore
	Classrooms   ClassroomStore
	Reservations ReservationStore
	Grid         *cache.GridCache
	Links        *LinkBuilder
	Mail         MailQueue
	Log          *zap.Logger
}

type seatReq struct {
	Row int `json:"row" validate:"min=0"`
	Col int `json:"col" validate:"min=0"`
}

type submitReq struct {
	ClassroomID uint64    `json:"classroom_id" validate:"required"`
	Date        string    `json:"date" validate:"required"`
	TimeSlot    int       `json:"time_slot" validate:"required,min=1"`
	Seats       []seatReq `json:"seats" validate:"required,min=1,max=20,dive"`
}

// parseDate interprets a YYYY-MM-DD string in local time, matching how
// slot deadlines are computed.
func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}

// horizonDays is how far ahead the role may book.
func (h *BookingHandler) horizonDays(role string) int {
	if role == model.RoleManager || role == model.RoleAdmin {
		return h.Cfg.MaxDaysAheadManager
	}
	return h.Cfg.MaxDaysAhead
}

// ListClassrooms returns the active rooms offered on the booking page.
func (h *BookingHandler) ListClassrooms(c echo.Context) error {
	rooms, err := h.Classrooms.ListActive(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load classrooms failed"})
	}
	items := make([]echo.Map, 0, len(rooms))
	for _, r := range rooms {
		items = append(items, echo.Map{"id": r.ID, "name": r.Name, "layout": r.LayoutRows()})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetGrid handles GET /v1/classrooms/:id/grid?date=&slot=.  Date defaults
// to today and the slot to the next one still open today.
func (h *BookingHandler) GetGrid(c echo.Context) error {
	classroomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || classroomID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid classroom id"})
	}

	date := today()
	if ds := c.QueryParam("date"); ds != "" {
		if date, err = parseDate(ds); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
		}
	}
	slot := h.Slots.DefaultSlotID(date, time.Now())
	if ss := c.QueryParam("slot"); ss != "" {
		if slot, err = strconv.Atoi(ss); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot"})
		}
	}
	if _, ok := h.Slots.ByID(slot); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown slot"})
	}

	ctx := c.Request().Context()
	room, err := h.Classrooms.GetByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "classroom not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load classroom failed"})
	}
	if !room.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "classroom not found"})
	}

	records, ok := h.Grid.Get(ctx, classroomID, date, slot)
	if !ok {
		records, err = h.Reservations.ListGrid(ctx, classroomID, date, slot)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservations failed"})
		}
		h.Grid.Set(ctx, classroomID, date, slot, records)
	}

	grid := booking.BuildGrid(room, records, middleware.StudentID(c), false)
	label := h.Slots.Label(slot)
	return c.JSON(http.StatusOK, echo.Map{
		"classroom": echo.Map{"id": room.ID, "name": room.Name},
		"date":      date.Format("2006-01-02"),
		"time_slot": slot,
		"slot_label": label,
		"deadline":  h.deadline(date, slot).Format(time.RFC3339),
		"grid":      grid,
	})
}

func (h *BookingHandler) deadline(date time.Time, slot int) time.Time {
	s, _ := h.Slots.ByID(slot)
	return s.Deadline(date, time.Duration(h.Cfg.BookingWindowMin)*time.Minute)
}

// Submit handles POST /v1/reservations.  It validates the session against
// the caller's role limits, then inserts the whole batch as pending inside
// one transaction and mails the administrator a signed decision link.
func (h *BookingHandler) Submit(c echo.Context) error {
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	student, err := h.Students.GetByID(ctx, middleware.StudentID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	if student.Status == model.StudentStatusBlacklist {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account blocked"})
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
	}
	if _, ok := h.Slots.ByID(req.TimeSlot); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown slot"})
	}

	// Horizon and deadline checks, both against local wall-clock time.
	first, last := today(), today().AddDate(0, 0, h.horizonDays(student.Role))
	if date.Before(first) || date.After(last) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "date outside booking horizon",
			"max_days_ahead": h.horizonDays(student.Role),
		})
	}
	if !time.Now().Before(h.deadline(date, req.TimeSlot)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking closed for this slot"})
	}

	// Regular students book one seat per session.
	if student.Role == model.RoleUser && len(req.Seats) > 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "only managers may book multiple seats"})
	}

	room, err := h.Classrooms.GetByID(ctx, req.ClassroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "classroom not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load classroom failed"})
	}
	if !room.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "classroom not found"})
	}

	seats, err := dedupeSeats(req.Seats, room)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	// Allowance checks outside the transaction; the race they leave open is
	// harmless since both only bound queue noise, not seat consistency.
	pending, err := h.Reservations.CountPendingBatches(ctx, student.ID, first)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if pending >= h.Cfg.MaxPendingBatches {
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "too many pending reservations",
			"max_pending": h.Cfg.MaxPendingBatches,
		})
	}
	if student.Role == model.RoleUser {
		active, err := h.Reservations.HasActiveForSlot(ctx, student.ID, date, req.TimeSlot)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if active {
			return c.JSON(http.StatusConflict, echo.Map{"error": "you already have a reservation for this slot"})
		}
	}

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

	batchID := uuid.NewString()
	inserted := make([]model.Reservation, 0, len(seats))
	for _, seat := range seats {
		locked, err := h.Reservations.ApprovedExistsTx(ctx, tx, room.ID, seat.Row, seat.Col, date, req.TimeSlot)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if locked {
			return c.JSON(http.StatusConflict, echo.Map{
				"error": "seat already taken",
				"seat":  model.SeatLabel(seat.Row, seat.Col),
			})
		}
		res := model.Reservation{
			BatchID:     batchID,
			StudentID:   student.ID,
			ClassroomID: room.ID,
			SeatRow:     seat.Row,
			SeatCol:     seat.Col,
			Date:        date,
			TimeSlot:    req.TimeSlot,
			Status:      model.StatusPending,
		}
		if err := h.Reservations.CreateTx(ctx, tx, &res); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create reservation failed"})
		}
		inserted = append(inserted, res)
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	h.Grid.Invalidate(ctx, room.ID, date, req.TimeSlot)
	h.notifyAdmin(ctx, student, room, date, req.TimeSlot, inserted)

	labels := make([]string, len(inserted))
	for i, r := range inserted {
		labels[i] = r.SeatLabel()
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"batch_id": batchID,
		"status":   model.StatusPending,
		"seats":    labels,
	})
}

// notifyAdmin mails the administrator a decision request with signed
// approve/reject links covering the whole batch.  Failures are logged, not
// surfaced: the cleanup job expires undecided requests anyway.
func (h *BookingHandler) notifyAdmin(ctx context.Context, student model.Student, room model.Classroom, date time.Time, slot int, seats []model.Reservation) {
	ids := make([]uint64, len(seats))
	for i, r := range seats {
		ids[i] = r.ID
	}
	label := h.Slots.Label(slot)
	sess := mailer.Session{Classroom: room.Name, Date: date, SlotLabel: label}
	msg := mailer.ApprovalRequest(h.Cfg.AdminEmail, student.StudentNo, sess, seats,
		h.Links.ReservationAction(ids, actionApprove),
		h.Links.ReservationAction(ids, actionReject))
	if err := h.Mail.Publish(ctx, msg); err != nil {
		h.Log.Warn("approval mail enqueue failed",
			zap.String("batch_id", seats[0].BatchID), zap.Error(err))
	}
}

// dedupeSeats validates coordinates against the layout and drops repeats.
func dedupeSeats(in []seatReq, room model.Classroom) ([]seatReq, error) {
	seen := make(map[[2]int]struct{}, len(in))
	out := make([]seatReq, 0, len(in))
	for _, s := range in {
		if !room.HasSeat(s.Row, s.Col) {
			return nil, errors.New("seat " + model.SeatLabel(s.Row, s.Col) + " does not exist")
		}
		key := [2]int{s.Row, s.Col}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
