// Package scheduler runs the periodic maintenance work: expiring stale
// pending reservations and mailing door access codes shortly before each
// session starts.  Both jobs share one ticker and are safe to run on
// several instances at once; every state change is a conditional UPDATE.
package scheduler

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/classroom-reservation/internal/cache"
	"github.com/campushub/classroom-reservation/internal/config"
	"github.com/campushub/classroom-reservation/internal/mailer"
	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/queue"
	"github.com/campushub/classroom-reservation/internal/repository"
	"github.com/campushub/classroom-reservation/internal/timeslot"
)

// The jobs reach the database and the mail queue through these interfaces;
// the repository and queue types satisfy them, and tests substitute
// func-field fakes.

type ReservationStore interface {
	ListPendingFrom(ctx context.Context, from time.Time) ([]model.Reservation, error)
	MarkExpired(ctx context.Context, ids []uint64) (int64, error)
	ExpireCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ExpireDatedOnOrBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListApprovedForSlot(ctx context.Context, classroomID uint64, date time.Time, slot int) ([]repository.ApprovedSeat, error)
}

type ClassroomStore interface {
	ListActive(ctx context.Context) ([]model.Classroom, error)
}

type AccessCodeStore interface {
	GetOrCreate(ctx context.Context, classroomID uint64, date time.Time, slot int, code string) (*model.AccessCode, error)
	MarkNotified(ctx context.Context, id uint64) (bool, error)
}

type StudentDirectory interface {
	ListByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Student, error)
}

type MailQueue interface {
	Publish(ctx context.Context, msg queue.MailMessage) error
}

var (
	_ ReservationStore = (*repository.ReservationRepo)(nil)
	_ ClassroomStore   = (*repository.ClassroomRepo)(nil)
	_ AccessCodeStore  = (*repository.AccessCodeRepo)(nil)
	_ StudentDirectory = (*repository.StudentRepo)(nil)
	_ MailQueue        = (*queue.MailPublisher)(nil)
)

type Scheduler struct {
	Cfg          config.Config
	Slots        *timeslot.Table
	Reservations ReservationStore
	Classrooms   ClassroomStore
	AccessCodes  AccessCodeStore
	Students     StudentDirectory
	Grid         *cache.GridCache
	Mail         MailQueue
	Log          *zap.Logger
}

// Run ticks until the context is cancelled.  The first pass runs
// immediately so a restart does not delay overdue expirations.
func (s *Scheduler) Run(ctx context.Context) {
	interval := time.Duration(s.Cfg.CleanupIntervalMin) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.expireStale(ctx)
	s.sendAccessCodes(ctx)
}

// expireStale applies the three expiry rules to pending reservations:
// past the slot's decision deadline, older than the decision timeout, or
// dated in the past.
func (s *Scheduler) expireStale(ctx context.Context) {
	now := time.Now()
	window := time.Duration(s.Cfg.BookingWindowMin) * time.Minute

	rows, err := s.Reservations.ListPendingFrom(ctx, startOfDay(now))
	if err != nil {
		s.Log.Warn("cleanup: list pending failed", zap.Error(err))
		return
	}
	due := pastDeadline(rows, s.Slots, window, now)
	expired, err := s.Reservations.MarkExpired(ctx, due)
	if err != nil {
		s.Log.Warn("cleanup: expire past-deadline failed", zap.Error(err))
	}

	cutoff := now.Add(-time.Duration(s.Cfg.TimeoutHours) * time.Hour)
	timedOut, err := s.Reservations.ExpireCreatedBefore(ctx, cutoff)
	if err != nil {
		s.Log.Warn("cleanup: expire timed-out failed", zap.Error(err))
	}

	pastDate, err := s.Reservations.ExpireDatedOnOrBefore(ctx,
		startOfDay(now).AddDate(0, 0, -s.Cfg.ExpireDays))
	if err != nil {
		s.Log.Warn("cleanup: expire past-date failed", zap.Error(err))
	}

	// Drop the cached grids of the sessions that just lost rows.  Past-date
	// expiry only touches days nobody renders anymore, so those are skipped.
	for _, key := range staleSessions(rows, due, cutoff) {
		s.Grid.Invalidate(ctx, key.ClassroomID, key.Date, key.Slot)
	}

	if expired+timedOut+pastDate > 0 {
		s.Log.Info("cleanup pass",
			zap.Int64("past_deadline", expired),
			zap.Int64("timed_out", timedOut),
			zap.Int64("past_date", pastDate))
	}
}

type sessionKey struct {
	ClassroomID uint64
	Date        time.Time
	Slot        int
}

// staleSessions collects the distinct sessions whose pending rows were
// expired this pass: rows picked by the deadline rule plus rows created
// before the timeout cutoff.
func staleSessions(rows []model.Reservation, due []uint64, cutoff time.Time) []sessionKey {
	dueSet := make(map[uint64]struct{}, len(due))
	for _, id := range due {
		dueSet[id] = struct{}{}
	}
	seen := make(map[sessionKey]struct{})
	var out []sessionKey
	for _, r := range rows {
		if _, isDue := dueSet[r.ID]; !isDue && !r.CreatedAt.Before(cutoff) {
			continue
		}
		key := sessionKey{r.ClassroomID, startOfDay(r.Date), r.TimeSlot}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// pastDeadline picks the pending rows whose decision deadline has passed.
func pastDeadline(rows []model.Reservation, slots *timeslot.Table, window time.Duration, now time.Time) []uint64 {
	var due []uint64
	for _, r := range rows {
		slot, ok := slots.ByID(r.TimeSlot)
		if !ok {
			continue
		}
		if !now.Before(slot.Deadline(r.Date, window)) {
			due = append(due, r.ID)
		}
	}
	return due
}

// dueSlots returns the slots of the given day whose start falls within
// (now, now+lead].
func dueSlots(slots []timeslot.Slot, date time.Time, now time.Time, lead time.Duration) []timeslot.Slot {
	var due []timeslot.Slot
	for _, s := range slots {
		start := s.StartAt(date)
		if start.After(now) && !start.After(now.Add(lead)) {
			due = append(due, s)
		}
	}
	return due
}

// sendAccessCodes issues and mails the door code for every session starting
// within the notify window.  The notified flag on the code row stops the
// fan-out from repeating; it flips only after mail went out, so a failed
// pass is retried on the next tick instead of being lost.
func (s *Scheduler) sendAccessCodes(ctx context.Context) {
	now := time.Now()
	date := startOfDay(now)
	lead := time.Duration(s.Cfg.AccessCodeNotifyMin) * time.Minute

	slots := dueSlots(s.Slots.All(), date, now, lead)
	if len(slots) == 0 {
		return
	}
	rooms, err := s.Classrooms.ListActive(ctx)
	if err != nil {
		s.Log.Warn("access codes: list classrooms failed", zap.Error(err))
		return
	}
	for _, slot := range slots {
		for _, room := range rooms {
			s.notifySession(ctx, room, date, slot)
		}
	}
}

func (s *Scheduler) notifySession(ctx context.Context, room model.Classroom, date time.Time, slot timeslot.Slot) {
	code := s.Cfg.AccessCodeFixed
	if code == "" {
		var err error
		if code, err = randomDigits(6); err != nil {
			s.Log.Error("access codes: generate failed", zap.Error(err))
			return
		}
	}
	ac, err := s.AccessCodes.GetOrCreate(ctx, room.ID, date, slot.ID, code)
	if err != nil || ac == nil {
		s.Log.Warn("access codes: get-or-create failed",
			zap.Uint64("classroom_id", room.ID), zap.Error(err))
		return
	}
	if ac.Notified {
		return
	}

	seats, err := s.Reservations.ListApprovedForSlot(ctx, room.ID, date, slot.ID)
	if err != nil {
		s.Log.Warn("access codes: list approved failed", zap.Error(err))
		return
	}
	if len(seats) == 0 {
		if _, err := s.AccessCodes.MarkNotified(ctx, ac.ID); err != nil {
			s.Log.Warn("access codes: mark notified failed", zap.Uint64("id", ac.ID), zap.Error(err))
		}
		return
	}

	byStudent := make(map[uint64][]model.Reservation)
	for _, seat := range seats {
		byStudent[seat.StudentID] = append(byStudent[seat.StudentID],
			model.Reservation{SeatRow: seat.SeatRow, SeatCol: seat.SeatCol})
	}
	ids := make([]uint64, 0, len(byStudent))
	for id := range byStudent {
		ids = append(ids, id)
	}
	students, err := s.Students.ListByIDs(ctx, ids)
	if err != nil {
		s.Log.Warn("access codes: load students failed", zap.Error(err))
		return
	}

	// Mail goes out before the notified flag flips: a crash in between
	// re-sends on the next tick rather than dropping the fan-out.
	sent := 0
	sess := mailer.Session{Classroom: room.Name, Date: date, SlotLabel: slot.Label}
	for id, held := range byStudent {
		student, ok := students[id]
		if !ok {
			continue
		}
		msg := mailer.AccessCodeNotice(student.Email(s.Cfg.EmailDomain), sess, ac.Code, held)
		if err := s.Mail.Publish(ctx, msg); err != nil {
			s.Log.Warn("access codes: mail enqueue failed",
				zap.Uint64("student_id", id), zap.Error(err))
			continue
		}
		sent++
	}
	if sent == 0 {
		return
	}
	if _, err := s.AccessCodes.MarkNotified(ctx, ac.ID); err != nil {
		s.Log.Warn("access codes: mark notified failed", zap.Uint64("id", ac.ID), zap.Error(err))
	}
	s.Log.Info("access code sent",
		zap.String("classroom", room.Name),
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("slot", slot.ID),
		zap.Int("recipients", sent))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

func randomDigits(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("random digit: %w", err)
		}
		out[i] = byte('0' + v.Int64())
	}
	return string(out), nil
}
