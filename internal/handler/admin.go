package handler

import (
	"context"
	"database/sql"
	"encoding/json"
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
	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/timeslot"
)

// AdminHandler is the operator surface: occupant-visible grids, direct
// booking on behalf of a student number, bulk cancellation with audit rows
// and mail, plus classroom and account management.
type AdminHandler struct {
	Cfg          config.Config
	Slots        *timeslot.Table
	Students     StudentStore
	Classrooms   ClassroomStore
	Reservations ReservationStore
	Grid         *cache.GridCache
	Mail         MailQueue
	Log          *zap.Logger
}

func (h *AdminHandler) deadline(date time.Time, slot int) time.Time {
	s, _ := h.Slots.ByID(slot)
	return s.Deadline(date, time.Duration(h.Cfg.BookingWindowMin)*time.Minute)
}

// GetGrid handles GET /v1/admin/grid?classroom_id=&date=&slot=, the student
// grid with occupant student numbers visible.
func (h *AdminHandler) GetGrid(c echo.Context) error {
	classroomID, err := strconv.ParseUint(c.QueryParam("classroom_id"), 10, 64)
	if err != nil || classroomID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "classroom_id required"})
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

	records, ok := h.Grid.Get(ctx, classroomID, date, slot)
	if !ok {
		records, err = h.Reservations.ListGrid(ctx, classroomID, date, slot)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservations failed"})
		}
		h.Grid.Set(ctx, classroomID, date, slot, records)
	}

	grid := booking.BuildGrid(room, records, 0, true)
	return c.JSON(http.StatusOK, echo.Map{
		"classroom": echo.Map{"id": room.ID, "name": room.Name},
		"date":      date.Format("2006-01-02"),
		"time_slot": slot,
		"grid":      grid,
	})
}

type directBookReq struct {
	StudentNo   string    `json:"student_no" validate:"required,min=4,max=32"`
	ClassroomID uint64    `json:"classroom_id" validate:"required"`
	Date        string    `json:"date" validate:"required"`
	TimeSlot    int       `json:"time_slot" validate:"required,min=1"`
	Seats       []seatReq `json:"seats" validate:"required,min=1,max=50,dive"`
}

// DirectBook handles POST /v1/admin/reservations.  Seats land approved
// immediately; a hard-locked seat is skipped rather than aborting, and all
// pending competitors of a booked seat are auto-rejected.  An unknown
// student number gets a placeholder account activated at first login.
func (h *AdminHandler) DirectBook(c echo.Context) error {
	var req directBookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	date, err := parseDate(req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
	}
	if _, ok := h.Slots.ByID(req.TimeSlot); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown slot"})
	}
	if !time.Now().Before(h.deadline(date, req.TimeSlot)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking closed for this slot"})
	}

	room, err := h.Classrooms.GetByID(ctx, req.ClassroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "classroom not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load classroom failed"})
	}
	seats, err := dedupeSeats(req.Seats, room)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	student, err := h.Students.GetByStudentNo(ctx, req.StudentNo)
	if errors.Is(err, sql.ErrNoRows) {
		id, cerr := h.Students.CreatePlaceholder(ctx, req.StudentNo)
		if cerr != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create placeholder failed"})
		}
		student, err = h.Students.GetByID(ctx, id)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load student failed"})
	}
	if student.Status == model.StudentStatusBlacklist {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "student is blacklisted"})
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
	var booked, skipped []string
	for _, seat := range seats {
		locked, err := h.Reservations.ApprovedExistsTx(ctx, tx, room.ID, seat.Row, seat.Col, date, req.TimeSlot)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if locked {
			skipped = append(skipped, model.SeatLabel(seat.Row, seat.Col))
			continue
		}
		res := model.Reservation{
			BatchID:     batchID,
			StudentID:   student.ID,
			ClassroomID: room.ID,
			SeatRow:     seat.Row,
			SeatCol:     seat.Col,
			Date:        date,
			TimeSlot:    req.TimeSlot,
			Status:      model.StatusApproved,
			AdminAction: true,
		}
		if err := h.Reservations.CreateTx(ctx, tx, &res); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create reservation failed"})
		}
		if _, err := h.Reservations.RejectCompetitorsTx(ctx, tx, res); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reject competitors failed"})
		}
		booked = append(booked, res.SeatLabel())
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	h.Grid.Invalidate(ctx, room.ID, date, req.TimeSlot)
	h.Log.Info("admin direct booking",
		zap.String("student_no", student.StudentNo),
		zap.String("batch_id", batchID),
		zap.Int("booked", len(booked)), zap.Int("skipped", len(skipped)))

	status := http.StatusCreated
	if len(booked) == 0 {
		status = http.StatusConflict
	}
	return c.JSON(status, echo.Map{
		"batch_id": batchID,
		"booked":   booked,
		"skipped":  skipped,
	})
}

type bulkCancelReq struct {
	IDs []uint64 `json:"ids" validate:"required,min=1,max=200"`
}

// BulkCancel handles POST /v1/admin/reservations/cancel.  Pending rows are
// cancelled together with all their pending competitors; approved rows only
// inside the cancel window.  Each affected student gets one audit row
// listing the cancelled seats and a notification mail.
func (h *AdminHandler) BulkCancel(c echo.Context) error {
	var req bulkCancelReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	rows, err := h.Reservations.GetByIDs(ctx, req.IDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if len(rows) == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no matching reservations"})
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

	now := time.Now()
	cancelled := make(map[uint64][]model.Reservation) // studentID -> seats
	var pastWindow []string
	var total int64
	for _, r := range rows {
		switch r.Status {
		case model.StatusPending:
			n, err := h.Reservations.CancelCompetingPendingTx(ctx, tx, r)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
			}
			total += n
			cancelled[r.StudentID] = append(cancelled[r.StudentID], r)
		case model.StatusApproved:
			if !now.Before(h.deadline(r.Date, r.TimeSlot)) {
				pastWindow = append(pastWindow, r.SeatLabel())
				continue
			}
			ok, err := h.Reservations.CancelByAdminTx(ctx, tx, r.ID, model.StatusApproved)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
			}
			if ok {
				total++
				cancelled[r.StudentID] = append(cancelled[r.StudentID], r)
			}
		}
	}

	// One audit row per student, seats recorded as JSON.
	for studentID, seats := range cancelled {
		labels := make([]string, len(seats))
		for i, s := range seats {
			labels[i] = s.SeatLabel()
		}
		payload, _ := json.Marshal(labels)
		audit := model.Reservation{
			BatchID:            uuid.NewString(),
			StudentID:          studentID,
			ClassroomID:        seats[0].ClassroomID,
			SeatRow:            seats[0].SeatRow,
			SeatCol:            seats[0].SeatCol,
			Date:               seats[0].Date,
			TimeSlot:           seats[0].TimeSlot,
			Status:             model.StatusCancelled,
			AdminAction:        true,
			CancelledSeatsJSON: string(payload),
		}
		if err := h.Reservations.CreateTx(ctx, tx, &audit); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "write audit failed"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	h.invalidateSessions(ctx, rows)
	h.notifyCancelled(ctx, cancelled)

	return c.JSON(http.StatusOK, echo.Map{
		"cancelled":   total,
		"past_window": pastWindow,
	})
}

func (h *AdminHandler) invalidateSessions(ctx context.Context, rows []model.Reservation) {
	seen := make(map[string]struct{})
	for _, r := range rows {
		key := r.Date.Format("2006-01-02") + strconv.Itoa(r.TimeSlot) + strconv.FormatUint(r.ClassroomID, 10)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		h.Grid.Invalidate(ctx, r.ClassroomID, r.Date, r.TimeSlot)
	}
}

func (h *AdminHandler) notifyCancelled(ctx context.Context, cancelled map[uint64][]model.Reservation) {
	ids := make([]uint64, 0, len(cancelled))
	for id := range cancelled {
		ids = append(ids, id)
	}
	students, err := h.Students.ListByIDs(ctx, ids)
	if err != nil {
		h.Log.Warn("cancel notify: load students failed", zap.Error(err))
		return
	}
	for studentID, seats := range cancelled {
		student, ok := students[studentID]
		if !ok {
			continue
		}
		roomName := ""
		if room, err := h.Classrooms.GetByID(ctx, seats[0].ClassroomID); err == nil {
			roomName = room.Name
		}
		label := h.Slots.Label(seats[0].TimeSlot)
		sess := mailer.Session{Classroom: roomName, Date: seats[0].Date, SlotLabel: label}
		msg := mailer.CancellationNotice(student.Email(h.Cfg.EmailDomain), sess, seats)
		if err := h.Mail.Publish(ctx, msg); err != nil {
			h.Log.Warn("cancellation mail enqueue failed", zap.Uint64("student_id", studentID), zap.Error(err))
		}
	}
}

type classroomReq struct {
	Name   string `json:"name" validate:"required,min=1,max=64"`
	Layout string `json:"layout" validate:"required"`
}

// CreateClassroom handles POST /v1/admin/classrooms.
func (h *AdminHandler) CreateClassroom(c echo.Context) error {
	var req classroomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	room := model.Classroom{Name: req.Name, Layout: req.Layout}
	rowsSpec := room.LayoutRows()
	if len(rowsSpec) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "layout must contain at least one row"})
	}
	for _, line := range rowsSpec {
		for _, ch := range line {
			if ch != '0' && ch != '1' {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "layout rows may only contain '0' and '1'"})
			}
		}
	}
	id, err := h.Classrooms.Create(c.Request().Context(), req.Name, req.Layout)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create classroom failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

type activeReq struct {
	Active *bool `json:"active" validate:"required"`
}

// SetClassroomActive handles PATCH /v1/admin/classrooms/:id/active.
func (h *AdminHandler) SetClassroomActive(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid classroom id"})
	}
	var req activeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.Classrooms.SetActive(c.Request().Context(), id, *req.Active); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update classroom failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type statusReq struct {
	Status string `json:"status" validate:"required,oneof=normal blacklist whitelist"`
}

// SetStudentStatus handles PATCH /v1/admin/students/:id/status, moving an
// account between normal, blacklist and whitelist.
func (h *AdminHandler) SetStudentStatus(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid student id"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if _, err := h.Students.GetByID(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "student not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load student failed"})
	}
	if err := h.Students.SetStatus(c.Request().Context(), id, req.Status); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update student failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
