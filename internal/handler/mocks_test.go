package handler

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campushub/classroom-reservation/internal/middleware"
	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/queue"
	"github.com/campushub/classroom-reservation/internal/timeslot"
	"github.com/campushub/classroom-reservation/internal/validator"
)

// nopDriver backs the *sql.DB handed to handlers under test.  Transactions
// begin and commit without a server; every statement runs through the
// fake store methods instead.
type nopDriver struct{}

func (nopDriver) Open(string) (driver.Conn, error) { return nopConn{}, nil }

type nopConn struct{}

func (nopConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("statements go through the fake stores")
}
func (nopConn) Close() error              { return nil }
func (nopConn) Begin() (driver.Tx, error) { return nopTx{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

var registerNopDriver sync.Once

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	registerNopDriver.Do(func() { sql.Register("handler-test", nopDriver{}) })
	db, err := sql.Open("handler-test", "")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testSlots(t *testing.T) *timeslot.Table {
	t.Helper()
	tbl, err := timeslot.Parse("08:00-10:00,10:00-12:00,14:00-16:00")
	if err != nil {
		t.Fatalf("parse slots: %v", err)
	}
	return tbl
}

type statusUpdate struct {
	ID       uint64
	From, To string
}

// fakeReservations records the mutating calls a handler makes.  Unused
// methods come from the embedded interface and panic if reached.
type fakeReservations struct {
	ReservationStore

	db *sql.DB

	approvedExists  func(classroomID uint64, row, col int) (bool, error)
	getByIDs        func(ids []uint64) ([]model.Reservation, error)
	batchForStudent func(batchID string, studentID uint64) ([]model.Reservation, error)

	pendingBatches int
	activeForSlot  bool

	created           []model.Reservation
	updates           []statusUpdate
	competitorsOf     []model.Reservation
	cancelledBatches  []string
	cancelledRowCount int64
}

func (f *fakeReservations) DB() *sql.DB { return f.db }

func (f *fakeReservations) ApprovedExistsTx(ctx context.Context, tx *sql.Tx, classroomID uint64, row, col int, date time.Time, slot int) (bool, error) {
	if f.approvedExists != nil {
		return f.approvedExists(classroomID, row, col)
	}
	return false, nil
}

func (f *fakeReservations) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	res.ID = uint64(len(f.created) + 1)
	f.created = append(f.created, *res)
	return nil
}

func (f *fakeReservations) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) (bool, error) {
	f.updates = append(f.updates, statusUpdate{ID: id, From: from, To: to})
	return true, nil
}

func (f *fakeReservations) RejectCompetitorsTx(ctx context.Context, tx *sql.Tx, won model.Reservation) (int64, error) {
	f.competitorsOf = append(f.competitorsOf, won)
	return 1, nil
}

func (f *fakeReservations) GetByIDs(ctx context.Context, ids []uint64) ([]model.Reservation, error) {
	return f.getByIDs(ids)
}

func (f *fakeReservations) BatchForStudentTx(ctx context.Context, tx *sql.Tx, batchID string, studentID uint64) ([]model.Reservation, error) {
	return f.batchForStudent(batchID, studentID)
}

func (f *fakeReservations) CancelBatchTx(ctx context.Context, tx *sql.Tx, batchID string, studentID uint64) (int64, error) {
	f.cancelledBatches = append(f.cancelledBatches, batchID)
	return f.cancelledRowCount, nil
}

func (f *fakeReservations) CountPendingBatches(ctx context.Context, studentID uint64, from time.Time) (int, error) {
	return f.pendingBatches, nil
}

func (f *fakeReservations) HasActiveForSlot(ctx context.Context, studentID uint64, date time.Time, slot int) (bool, error) {
	return f.activeForSlot, nil
}

type fakeStudents struct {
	StudentStore
	byID map[uint64]model.Student
}

func (f *fakeStudents) GetByID(ctx context.Context, id uint64) (model.Student, error) {
	s, ok := f.byID[id]
	if !ok {
		return model.Student{}, sql.ErrNoRows
	}
	return s, nil
}

type fakeClassrooms struct {
	ClassroomStore
	rooms map[uint64]model.Classroom
}

func (f *fakeClassrooms) GetByID(ctx context.Context, id uint64) (model.Classroom, error) {
	r, ok := f.rooms[id]
	if !ok {
		return model.Classroom{}, sql.ErrNoRows
	}
	return r, nil
}

type fakeMail struct {
	sent []queue.MailMessage
	err  error
}

func (f *fakeMail) Publish(ctx context.Context, msg queue.MailMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// newJSONContext builds an echo context for a handler call, with the
// claims the JWT middleware would have stored.
func newJSONContext(t *testing.T, method, target, body string, studentID uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = validator.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if studentID != 0 {
		c.Set(middleware.CtxStudentID, studentID)
		c.Set(middleware.CtxRole, role)
	}
	return c, rec
}
