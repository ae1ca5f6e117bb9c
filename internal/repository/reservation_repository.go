package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/campushub/classroom-reservation/internal/model"
)

// ReservationRepo provides data access for the reservations table, the one
// shared table every lifecycle rule manipulates.  Seat-conflict sections
// (batch submission, approval, admin direct booking, cancellation) run
// inside transactions supplied by the caller; the *Tx methods never commit
// or roll back themselves.  Status transitions are conditional UPDATEs
// guarded on the current status so that concurrent deciders cannot clobber
// each other's outcome.
type ReservationRepo struct {
	db *sql.DB
}

func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the handle so handlers can open transactions spanning
// several repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const dateLayout = "2006-01-02"

const reservationCols = "id,batch_id,student_id,classroom_id,seat_row,seat_col,date,time_slot,status,admin_action,cancelled_seats_info,created_at"

func scanReservation(scan func(dest ...interface{}) error) (model.Reservation, error) {
	var res model.Reservation
	err := scan(&res.ID, &res.BatchID, &res.StudentID, &res.ClassroomID,
		&res.SeatRow, &res.SeatCol, &res.Date, &res.TimeSlot, &res.Status,
		&res.AdminAction, &res.CancelledSeatsJSON, &res.CreatedAt)
	return res, err
}

// CreateTx inserts a reservation row within the given transaction and
// populates the generated ID.  Date is stored as a DATE column.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
		(batch_id, student_id, classroom_id, seat_row, seat_col, date, time_slot, status, admin_action, cancelled_seats_info)
		VALUES (?,?,?,?,?,?,?,?,?,?)`
	result, err := tx.ExecContext(ctx, q,
		res.BatchID, res.StudentID, res.ClassroomID, res.SeatRow, res.SeatCol,
		res.Date.Format(dateLayout), res.TimeSlot, res.Status, res.AdminAction, res.CancelledSeatsJSON)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// ApprovedExistsTx reports whether the seat already carries an approved
// reservation for the date and slot.  This is the hard-lock check run
// before inserting a pending row and double-checked again at approval time.
func (r *ReservationRepo) ApprovedExistsTx(ctx context.Context, tx *sql.Tx, classroomID uint64, seatRow, seatCol int, date time.Time, slot int) (bool, error) {
	const q = `SELECT EXISTS(
		SELECT 1 FROM reservations
		WHERE classroom_id=? AND seat_row=? AND seat_col=? AND date=? AND time_slot=? AND status=?)`
	var exists bool
	err := tx.QueryRowContext(ctx, q, classroomID, seatRow, seatCol,
		date.Format(dateLayout), slot, model.StatusApproved).Scan(&exists)
	return exists, err
}

// UpdateStatusTx performs the conditional transition from -> to on a single
// row and reports whether the row actually changed.  A false return means a
// concurrent decision got there first (or the row was never in `from`).
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE reservations SET status=? WHERE id=? AND status=?", to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RejectCompetitorsTx rejects every pending reservation competing for the
// same seat/date/slot as the given row, excluding the row itself.  Called
// right after an approval to resolve the competition in one statement.
func (r *ReservationRepo) RejectCompetitorsTx(ctx context.Context, tx *sql.Tx, won model.Reservation) (int64, error) {
	return r.retirePendingCompetitorsTx(ctx, tx, won, model.StatusRejected)
}

// CancelCompetingPendingTx cancels every pending reservation for the given
// seat cell including the row itself, flagged as an admin action.  The
// bulk-cancel flow uses this so a cancelled pending seat does not silently
// leave rivals in the queue.
func (r *ReservationRepo) CancelCompetingPendingTx(ctx context.Context, tx *sql.Tx, res model.Reservation) (int64, error) {
	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status=?, admin_action=TRUE
		 WHERE classroom_id=? AND seat_row=? AND seat_col=? AND date=? AND time_slot=? AND status=?`,
		model.StatusCancelled, res.ClassroomID, res.SeatRow, res.SeatCol,
		res.Date.Format(dateLayout), res.TimeSlot, model.StatusPending)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CancelByAdminTx cancels a single row still in the given status, marking
// it as an admin action.  Reports whether the row changed.
func (r *ReservationRepo) CancelByAdminTx(ctx context.Context, tx *sql.Tx, id uint64, from string) (bool, error) {
	result, err := tx.ExecContext(ctx,
		"UPDATE reservations SET status=?, admin_action=TRUE WHERE id=? AND status=?",
		model.StatusCancelled, id, from)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *ReservationRepo) retirePendingCompetitorsTx(ctx context.Context, tx *sql.Tx, won model.Reservation, to string) (int64, error) {
	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status=?
		 WHERE classroom_id=? AND seat_row=? AND seat_col=? AND date=? AND time_slot=? AND status=? AND id<>?`,
		to, won.ClassroomID, won.SeatRow, won.SeatCol,
		won.Date.Format(dateLayout), won.TimeSlot, model.StatusPending, won.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountPendingBatches counts the distinct pending batches a student holds
// for the given date or later.  Batches, not seats: a manager booking ten
// seats in one submission spends one slot of the allowance.
func (r *ReservationRepo) CountPendingBatches(ctx context.Context, studentID uint64, from time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT batch_id) FROM reservations WHERE student_id=? AND status=? AND date>=?",
		studentID, model.StatusPending, from.Format(dateLayout)).Scan(&n)
	return n, err
}

// HasActiveForSlot reports whether the student already has a pending or
// approved reservation in the given date and slot.
func (r *ReservationRepo) HasActiveForSlot(ctx context.Context, studentID uint64, date time.Time, slot int) (bool, error) {
	const q = `SELECT EXISTS(
		SELECT 1 FROM reservations
		WHERE student_id=? AND date=? AND time_slot=? AND status IN (?,?))`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, studentID, date.Format(dateLayout), slot,
		model.StatusPending, model.StatusApproved).Scan(&exists)
	return exists, err
}

// GridRecord is one occupied cell of the seat grid for a classroom/date/slot.
type GridRecord struct {
	ID        uint64
	SeatRow   int
	SeatCol   int
	Status    string
	StudentID uint64
	StudentNo string
}

// ListGrid returns the pending and approved reservations for one
// classroom/date/slot together with the occupant's student number.
func (r *ReservationRepo) ListGrid(ctx context.Context, classroomID uint64, date time.Time, slot int) ([]GridRecord, error) {
	const q = `SELECT r.id, r.seat_row, r.seat_col, r.status, r.student_id, s.student_no
		FROM reservations r JOIN students s ON s.id = r.student_id
		WHERE r.classroom_id=? AND r.date=? AND r.time_slot=? AND r.status IN (?,?)`
	rows, err := r.db.QueryContext(ctx, q, classroomID, date.Format(dateLayout), slot,
		model.StatusApproved, model.StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GridRecord
	for rows.Next() {
		var g GridRecord
		if err := rows.Scan(&g.ID, &g.SeatRow, &g.SeatCol, &g.Status, &g.StudentID, &g.StudentNo); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetByIDs loads reservations by id, preserving no particular order.
func (r *ReservationRepo) GetByIDs(ctx context.Context, ids []uint64) ([]model.Reservation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := "SELECT " + reservationCols + " FROM reservations WHERE id IN (?" + strings.Repeat(",?", len(ids)-1) + ")"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// ListByStudent returns all of a student's reservations, newest first.
// Grouping into batches happens in the booking package.
func (r *ReservationRepo) ListByStudent(ctx context.Context, studentID uint64) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+reservationCols+" FROM reservations WHERE student_id=? ORDER BY created_at DESC, id DESC",
		studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// BatchForStudentTx loads the rows of one batch owned by the student that
// are still cancellable (pending or approved).
func (r *ReservationRepo) BatchForStudentTx(ctx context.Context, tx *sql.Tx, batchID string, studentID uint64) ([]model.Reservation, error) {
	const q = "SELECT " + reservationCols + ` FROM reservations
		WHERE batch_id=? AND student_id=? AND status IN (?,?)`
	rows, err := tx.QueryContext(ctx, q, batchID, studentID, model.StatusPending, model.StatusApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// CancelBatchTx cancels every pending or approved row of the batch.  The
// admin_action flag is cleared: a student cancelling an admin-created
// booking must not be displayed as "cancelled by administrator".
func (r *ReservationRepo) CancelBatchTx(ctx context.Context, tx *sql.Tx, batchID string, studentID uint64) (int64, error) {
	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status=?, admin_action=FALSE
		 WHERE batch_id=? AND student_id=? AND status IN (?,?)`,
		model.StatusCancelled, batchID, studentID, model.StatusPending, model.StatusApproved)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListPendingFrom returns the pending reservations dated from the given day
// onward.  The cleanup job walks these to apply the per-slot decision
// deadline, which needs slot arithmetic the database does not know about.
func (r *ReservationRepo) ListPendingFrom(ctx context.Context, from time.Time) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+reservationCols+" FROM reservations WHERE status=? AND date>=?",
		model.StatusPending, from.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// MarkExpired flips still-pending rows with the given ids to expired and
// returns how many actually changed.
func (r *ReservationRepo) MarkExpired(ctx context.Context, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := "UPDATE reservations SET status=? WHERE status=? AND id IN (?" + strings.Repeat(",?", len(ids)-1) + ")"
	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, model.StatusExpired, model.StatusPending)
	for _, id := range ids {
		args = append(args, id)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ExpireCreatedBefore expires pending rows submitted before the cutoff,
// regardless of their session date.  Covers requests nobody ever decided.
func (r *ReservationRepo) ExpireCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE reservations SET status=? WHERE status=? AND created_at<?",
		model.StatusExpired, model.StatusPending, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ExpireDatedOnOrBefore expires pending rows whose session day has passed.
func (r *ReservationRepo) ExpireDatedOnOrBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE reservations SET status=? WHERE status=? AND date<=?",
		model.StatusExpired, model.StatusPending, cutoff.Format(dateLayout))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ApprovedSeat pairs an approved seat with its holder, for access-code mail.
type ApprovedSeat struct {
	StudentID uint64
	StudentNo string
	SeatRow   int
	SeatCol   int
}

// ListApprovedForSlot returns every approved seat of a classroom session.
func (r *ReservationRepo) ListApprovedForSlot(ctx context.Context, classroomID uint64, date time.Time, slot int) ([]ApprovedSeat, error) {
	const q = `SELECT r.student_id, s.student_no, r.seat_row, r.seat_col
		FROM reservations r JOIN students s ON s.id = r.student_id
		WHERE r.classroom_id=? AND r.date=? AND r.time_slot=? AND r.status=?
		ORDER BY r.seat_row, r.seat_col`
	rows, err := r.db.QueryContext(ctx, q, classroomID, date.Format(dateLayout), slot, model.StatusApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ApprovedSeat
	for rows.Next() {
		var a ApprovedSeat
		if err := rows.Scan(&a.StudentID, &a.StudentNo, &a.SeatRow, &a.SeatCol); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ExportRow is one reservation joined with its student and classroom names
// for the admin xlsx export.
type ExportRow struct {
	ID          uint64
	BatchID     string
	StudentNo   string
	Classroom   string
	SeatRow     int
	SeatCol     int
	Date        time.Time
	TimeSlot    int
	Status      string
	AdminAction bool
	CreatedAt   time.Time
}

// ListRange returns all reservations dated within [from, to] for export.
func (r *ReservationRepo) ListRange(ctx context.Context, from, to time.Time) ([]ExportRow, error) {
	const q = `SELECT r.id, r.batch_id, s.student_no, c.name, r.seat_row, r.seat_col,
			r.date, r.time_slot, r.status, r.admin_action, r.created_at
		FROM reservations r
		JOIN students s ON s.id = r.student_id
		JOIN classrooms c ON c.id = r.classroom_id
		WHERE r.date BETWEEN ? AND ?
		ORDER BY r.date, r.time_slot, c.name, r.seat_row, r.seat_col`
	rows, err := r.db.QueryContext(ctx, q, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExportRow
	for rows.Next() {
		var e ExportRow
		if err := rows.Scan(&e.ID, &e.BatchID, &e.StudentNo, &e.Classroom, &e.SeatRow,
			&e.SeatCol, &e.Date, &e.TimeSlot, &e.Status, &e.AdminAction, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
