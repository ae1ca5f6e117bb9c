package repository

import (
	"context"
	"database/sql"

	"github.com/campushub/classroom-reservation/internal/model"
)

// ClassroomRepo encapsulates database operations for classrooms.  Rooms are
// created and retired by administrators; the booking surface only ever sees
// active rooms.
type ClassroomRepo struct{ DB *sql.DB }

func NewClassroomRepo(db *sql.DB) *ClassroomRepo { return &ClassroomRepo{DB: db} }

// ListActive returns all active classrooms in name order.
func (r *ClassroomRepo) ListActive(ctx context.Context) ([]model.Classroom, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,name,layout,is_active FROM classrooms WHERE is_active=TRUE ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Classroom
	for rows.Next() {
		var c model.Classroom
		if err := rows.Scan(&c.ID, &c.Name, &c.Layout, &c.IsActive); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetByID fetches a classroom by id.
func (r *ClassroomRepo) GetByID(ctx context.Context, id uint64) (model.Classroom, error) {
	var c model.Classroom
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,layout,is_active FROM classrooms WHERE id=? LIMIT 1", id).
		Scan(&c.ID, &c.Name, &c.Layout, &c.IsActive)
	return c, err
}

// Create inserts a classroom and returns its ID.
func (r *ClassroomRepo) Create(ctx context.Context, name, layout string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO classrooms (name, layout, is_active) VALUES (?,?,TRUE)", name, layout)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// SetActive toggles whether a classroom appears on the booking surface.
func (r *ClassroomRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE classrooms SET is_active=? WHERE id=?", active, id)
	return err
}
