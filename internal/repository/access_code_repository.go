package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/campushub/classroom-reservation/internal/model"
)

// AccessCodeRepo stores the door codes handed out per classroom session.
// A session is identified by (classroom_id, date, time_slot) and carries a
// unique key so two notifier runs cannot mint two codes for the same room.
type AccessCodeRepo struct {
	db *sql.DB
}

func NewAccessCodeRepo(db *sql.DB) *AccessCodeRepo { return &AccessCodeRepo{db: db} }

// GetOrCreate returns the existing code for the session or inserts the
// given one.  On a duplicate-key race it re-reads the winner's row.
func (r *AccessCodeRepo) GetOrCreate(ctx context.Context, classroomID uint64, date time.Time, slot int, code string) (*model.AccessCode, error) {
	if ac, err := r.get(ctx, classroomID, date, slot); err != nil || ac != nil {
		return ac, err
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO access_codes (classroom_id, date, time_slot, code, notified) VALUES (?,?,?,?,FALSE)",
		classroomID, date.Format(dateLayout), slot, code)
	if err != nil {
		if isDuplicateKey(err) {
			return r.get(ctx, classroomID, date, slot)
		}
		return nil, err
	}
	return r.get(ctx, classroomID, date, slot)
}

func (r *AccessCodeRepo) get(ctx context.Context, classroomID uint64, date time.Time, slot int) (*model.AccessCode, error) {
	const q = `SELECT id, classroom_id, date, time_slot, code, notified, created_at
		FROM access_codes WHERE classroom_id=? AND date=? AND time_slot=?`
	var ac model.AccessCode
	err := r.db.QueryRowContext(ctx, q, classroomID, date.Format(dateLayout), slot).Scan(
		&ac.ID, &ac.ClassroomID, &ac.Date, &ac.TimeSlot, &ac.Code, &ac.Notified, &ac.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

// MarkNotified flips the notified flag and reports whether this call won.
// Only the winner sends the mails, so holders never get the code twice.
func (r *AccessCodeRepo) MarkNotified(ctx context.Context, id uint64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE access_codes SET notified=TRUE WHERE id=? AND notified=FALSE", id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}
