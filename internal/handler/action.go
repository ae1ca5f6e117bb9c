package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/campushub/classroom-reservation/internal/cache"
	"github.com/campushub/classroom-reservation/internal/config"
	"github.com/campushub/classroom-reservation/internal/mailer"
	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/timeslot"
	"github.com/campushub/classroom-reservation/internal/utils"
)

const resetLinkTTL = 10 * time.Minute

// ActionHandler executes the signed one-click links mailed to the
// administrator and to students.  The token in the path is the sole
// credential: whoever holds a valid link may perform exactly the decision
// it encodes, nothing else.
type ActionHandler struct {
	Cfg          config.Config
	Signer       *utils.Signer
	Slots        *timeslot.Table
	Students     StudentStore
	Tokens       TokenStore
	Classrooms   ClassroomStore
	Reservations ReservationStore
	Promotions   PromotionStore
	Grid         *cache.GridCache
	Mail         MailQueue
	Log          *zap.Logger
}

func (h *ActionHandler) deadline(date time.Time, slot int) time.Time {
	s, _ := h.Slots.ByID(slot)
	return s.Deadline(date, time.Duration(h.Cfg.BookingWindowMin)*time.Minute)
}

// Handle serves GET /admin-action/:token.  Responses are plain text because
// they are opened from a mail client, not by the API frontend.
func (h *ActionHandler) Handle(c echo.Context) error {
	maxAge := time.Duration(h.Cfg.TimeoutHours) * time.Hour
	payload, err := h.Signer.Unsign(c.Param("token"), maxAge)
	if err != nil {
		return c.String(http.StatusBadRequest, "This link is invalid or has expired.")
	}
	kind, ids, action, err := utils.ParseActionPayload(payload)
	if err != nil {
		return c.String(http.StatusBadRequest, "This link is invalid or has expired.")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	switch kind {
	case kindReservation:
		return h.decideReservations(c, ctx, ids, action)
	case kindStudent:
		return h.decidePromotion(c, ctx, ids, action)
	default:
		return c.String(http.StatusBadRequest, "This link is invalid or has expired.")
	}
}

// ResetConfirm serves GET /v1/auth/reset-confirm/:token with the shorter
// reset TTL.
func (h *ActionHandler) ResetConfirm(c echo.Context) error {
	payload, err := h.Signer.Unsign(c.Param("token"), resetLinkTTL)
	if err != nil {
		return c.String(http.StatusBadRequest, "This link is invalid or has expired.")
	}
	kind, id, newPassword, err := utils.ParseActionPayload(payload)
	if err != nil || kind != kindReset {
		return c.String(http.StatusBadRequest, "This link is invalid or has expired.")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	return h.confirmReset(c, ctx, id, newPassword)
}

// decideReservations applies an approve or reject decision to a batch.
// Approval re-checks every seat against the hard-lock rule: if a competing
// request won in the meantime the seat is rejected instead, and a decision
// arriving after the booking window expires the request.
func (h *ActionHandler) decideReservations(c echo.Context, ctx context.Context, idList, action string) error {
	if action != actionApprove && action != actionReject {
		return c.String(http.StatusBadRequest, "This link is invalid or has expired.")
	}
	ids, err := splitIDs(idList)
	if err != nil {
		return c.String(http.StatusBadRequest, "This link is invalid or has expired.")
	}

	rows, err := h.Reservations.GetByIDs(ctx, ids)
	if err != nil || len(rows) == 0 {
		return c.String(http.StatusNotFound, "These reservations no longer exist.")
	}

	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	var approved, rejected []model.Reservation
	var alreadyDecided int
	for _, r := range rows {
		if r.Status != model.StatusPending {
			alreadyDecided++
			continue
		}
		switch {
		case !now.Before(h.deadline(r.Date, r.TimeSlot)):
			// Too late for any decision; the request expires instead.
			if _, err := h.Reservations.UpdateStatusTx(ctx, tx, r.ID, model.StatusPending, model.StatusExpired); err != nil {
				return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
			}
		case action == actionReject:
			if ok, err := h.Reservations.UpdateStatusTx(ctx, tx, r.ID, model.StatusPending, model.StatusRejected); err != nil {
				return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
			} else if ok {
				rejected = append(rejected, r)
			}
		default:
			locked, err := h.Reservations.ApprovedExistsTx(ctx, tx, r.ClassroomID, r.SeatRow, r.SeatCol, r.Date, r.TimeSlot)
			if err != nil {
				return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
			}
			if locked {
				if _, err := h.Reservations.UpdateStatusTx(ctx, tx, r.ID, model.StatusPending, model.StatusRejected); err != nil {
					return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
				}
				rejected = append(rejected, r)
				continue
			}
			ok, err := h.Reservations.UpdateStatusTx(ctx, tx, r.ID, model.StatusPending, model.StatusApproved)
			if err != nil {
				return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
			}
			if !ok {
				continue
			}
			if _, err := h.Reservations.RejectCompetitorsTx(ctx, tx, r); err != nil {
				return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
			}
			approved = append(approved, r)
		}
	}
	if err := tx.Commit(); err != nil {
		return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
	}
	committed = true

	h.invalidateSessions(ctx, rows)
	if len(approved) > 0 || len(rejected) > 0 {
		h.notifyDecision(ctx, rows[0], approved, rejected)
	}

	if len(approved)+len(rejected) == 0 && alreadyDecided > 0 {
		return c.String(http.StatusOK, "This request was already decided.")
	}
	return c.String(http.StatusOK,
		"Decision recorded: "+strconv.Itoa(len(approved))+" approved, "+
			strconv.Itoa(len(rejected))+" rejected. The student has been notified.")
}

func (h *ActionHandler) invalidateSessions(ctx context.Context, rows []model.Reservation) {
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

func (h *ActionHandler) notifyDecision(ctx context.Context, sample model.Reservation, approved, rejected []model.Reservation) {
	student, err := h.Students.GetByID(ctx, sample.StudentID)
	if err != nil {
		h.Log.Warn("decision notify: load student failed", zap.Error(err))
		return
	}
	roomName := ""
	if room, err := h.Classrooms.GetByID(ctx, sample.ClassroomID); err == nil {
		roomName = room.Name
	}
	label := h.Slots.Label(sample.TimeSlot)
	sess := mailer.Session{Classroom: roomName, Date: sample.Date, SlotLabel: label}
	msg := mailer.ReservationDecision(student.Email(h.Cfg.EmailDomain), sess, approved, rejected)
	if err := h.Mail.Publish(ctx, msg); err != nil {
		h.Log.Warn("decision mail enqueue failed", zap.Error(err))
	}
}

// decidePromotion resolves every pending upgrade request of the student.
func (h *ActionHandler) decidePromotion(c echo.Context, ctx context.Context, idStr, action string) error {
	if action != actionPromote && action != actionReject {
		return c.String(http.StatusBadRequest, "This link is invalid or has expired.")
	}
	studentID, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || studentID == 0 {
		return c.String(http.StatusBadRequest, "This link is invalid or has expired.")
	}
	student, err := h.Students.GetByID(ctx, studentID)
	if err != nil {
		return c.String(http.StatusNotFound, "This student no longer exists.")
	}

	status := model.StatusRejected
	if action == actionPromote {
		status = model.StatusApproved
	}

	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	n, err := h.Promotions.ReviewAllPendingTx(ctx, tx, studentID, status, "admin-link")
	if err != nil {
		return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
	}
	if n == 0 {
		return c.String(http.StatusOK, "This request was already decided.")
	}
	if action == actionPromote {
		if _, err := h.Students.SetRoleTx(ctx, tx, studentID, model.RoleUser, model.RoleManager); err != nil {
			return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
		}
	}
	if err := tx.Commit(); err != nil {
		return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
	}
	committed = true

	msg := mailer.PromotionDecision(student.Email(h.Cfg.EmailDomain), action == actionPromote)
	if err := h.Mail.Publish(ctx, msg); err != nil {
		h.Log.Warn("promotion decision mail enqueue failed", zap.Error(err))
	}
	return c.String(http.StatusOK, "Decision recorded. The student has been notified.")
}

// confirmReset applies the password carried in the signed link and revokes
// every live session of the account.
func (h *ActionHandler) confirmReset(c echo.Context, ctx context.Context, idStr, newPassword string) error {
	studentID, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || studentID == 0 || newPassword == "" {
		return c.String(http.StatusBadRequest, "This link is invalid or has expired.")
	}
	student, err := h.Students.GetByID(ctx, studentID)
	if err != nil {
		return c.String(http.StatusNotFound, "This account no longer exists.")
	}
	if student.Status == model.StudentStatusBlacklist {
		return c.String(http.StatusForbidden, "This account is blocked.")
	}
	if err := h.Students.SetPassword(ctx, studentID, newPassword, h.Cfg.BcryptCost, false); err != nil {
		return c.String(http.StatusInternalServerError, "Something went wrong, please retry.")
	}
	if err := h.Tokens.RevokeAllForStudent(ctx, studentID); err != nil {
		h.Log.Warn("reset: revoking sessions failed", zap.Uint64("student_id", studentID), zap.Error(err))
	}
	h.Log.Info("password reset applied", zap.Uint64("student_id", studentID))
	return c.String(http.StatusOK, "Your new password is active. You can log in now.")
}
