package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/campushub/classroom-reservation/internal/model"
)

// PromotionRepo stores role-upgrade requests (user -> manager).
type PromotionRepo struct {
	db *sql.DB
}

func NewPromotionRepo(db *sql.DB) *PromotionRepo { return &PromotionRepo{db: db} }

// Create files a new pending request for the student.
func (r *PromotionRepo) Create(ctx context.Context, studentID uint64, reason string) (*model.PromotionRequest, error) {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO promotion_requests (student_id, reason, status) VALUES (?,?,?)",
		studentID, reason, model.StatusPending)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.PromotionRequest{
		ID:        uint64(id),
		StudentID: studentID,
		Reason:    reason,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}, nil
}

// HasPending reports whether the student already has an undecided request.
func (r *PromotionRepo) HasPending(ctx context.Context, studentID uint64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM promotion_requests WHERE student_id=? AND status=?)",
		studentID, model.StatusPending).Scan(&exists)
	return exists, err
}

// HasRejected reports whether the student was ever turned down.  A rejected
// applicant may not apply again.
func (r *PromotionRepo) HasRejected(ctx context.Context, studentID uint64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM promotion_requests WHERE student_id=? AND status=?)",
		studentID, model.StatusRejected).Scan(&exists)
	return exists, err
}

// ReviewAllPendingTx decides every pending request of the student at once.
// An approval link may arrive days after a second request was filed;
// deciding them together keeps the queue consistent with the role change.
func (r *PromotionRepo) ReviewAllPendingTx(ctx context.Context, tx *sql.Tx, studentID uint64, status, reviewer string) (int64, error) {
	result, err := tx.ExecContext(ctx,
		`UPDATE promotion_requests SET status=?, reviewer=?, reviewed_at=?
		 WHERE student_id=? AND status=?`,
		status, reviewer, time.Now(), studentID, model.StatusPending)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
