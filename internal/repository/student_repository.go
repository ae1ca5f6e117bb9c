package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/utils"
)

func isDuplicateKey(err error) bool {
	me, ok := err.(*mysql.MySQLError)
	return ok && me.Number == 1062
}

type StudentRepo struct{ DB *sql.DB }

func NewStudentRepo(db *sql.DB) *StudentRepo { return &StudentRepo{DB: db} }

const studentCols = "id,student_no,password_hash,status,role,violation_count,auto_created,created_at,updated_at"

func scanStudent(row *sql.Row) (model.Student, error) {
	var s model.Student
	err := row.Scan(&s.ID, &s.StudentNo, &s.PasswordHash, &s.Status, &s.Role,
		&s.ViolationCount, &s.AutoCreated, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Create inserts a student with a hashed password and returns its ID.
func (r *StudentRepo) Create(ctx context.Context, studentNo, password string, cost int) (uint64, error) {
	studentNo = strings.TrimSpace(studentNo)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO students (student_no, password_hash, status, role) VALUES (?,?,?,?)",
		studentNo, hash, model.StudentStatusNormal, model.RoleUser)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrStudentExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// CreatePlaceholder inserts an auto-created account with no password.  The
// student activates it by setting a password on first login.  Used by the
// admin direct-booking flow.
func (r *StudentRepo) CreatePlaceholder(ctx context.Context, studentNo string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO students (student_no, password_hash, status, role, auto_created) VALUES (?,'',?,?,TRUE)",
		strings.TrimSpace(studentNo), model.StudentStatusNormal, model.RoleUser)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrStudentExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByStudentNo fetches a student by student number.
func (r *StudentRepo) GetByStudentNo(ctx context.Context, studentNo string) (model.Student, error) {
	return scanStudent(r.DB.QueryRowContext(ctx,
		"SELECT "+studentCols+" FROM students WHERE student_no=? LIMIT 1",
		strings.TrimSpace(studentNo)))
}

// GetByID fetches a student by id.
func (r *StudentRepo) GetByID(ctx context.Context, id uint64) (model.Student, error) {
	return scanStudent(r.DB.QueryRowContext(ctx,
		"SELECT "+studentCols+" FROM students WHERE id=? LIMIT 1", id))
}

// SetPassword replaces the password hash.  When clearAuto is set the
// auto_created flag is dropped as well, activating a placeholder account.
func (r *StudentRepo) SetPassword(ctx context.Context, id uint64, password string, cost int, clearAuto bool) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	if clearAuto {
		_, err = r.DB.ExecContext(ctx,
			"UPDATE students SET password_hash=?, auto_created=FALSE WHERE id=?", hash, id)
	} else {
		_, err = r.DB.ExecContext(ctx,
			"UPDATE students SET password_hash=? WHERE id=?", hash, id)
	}
	return err
}

// SetStatus moves a student between normal, blacklist and whitelist.
func (r *StudentRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE students SET status=? WHERE id=?", status, id)
	return err
}

// SetRoleTx changes the student's role only when it still has the expected
// value, so two concurrent promotion decisions cannot both apply.
func (r *StudentRepo) SetRoleTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE students SET role=? WHERE id=? AND role=?", to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListByIDs loads students keyed by id.  Used when fanning out cancellation
// and access-code mail.
func (r *StudentRepo) ListByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Student, error) {
	out := make(map[uint64]model.Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := "SELECT " + studentCols + " FROM students WHERE id IN (?" + strings.Repeat(",?", len(ids)-1) + ")"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.Student
		if err := rows.Scan(&s.ID, &s.StudentNo, &s.PasswordHash, &s.Status, &s.Role,
			&s.ViolationCount, &s.AutoCreated, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}
