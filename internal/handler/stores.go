package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/queue"
	"github.com/campushub/classroom-reservation/internal/repository"
)

// Handlers reach the database and the mail queue through these interfaces;
// the repository and queue types satisfy them, and tests substitute
// func-field fakes.

type StudentStore interface {
	Create(ctx context.Context, studentNo, password string, cost int) (uint64, error)
	CreatePlaceholder(ctx context.Context, studentNo string) (uint64, error)
	GetByStudentNo(ctx context.Context, studentNo string) (model.Student, error)
	GetByID(ctx context.Context, id uint64) (model.Student, error)
	SetPassword(ctx context.Context, id uint64, password string, cost int, clearAuto bool) error
	SetStatus(ctx context.Context, id uint64, status string) error
	SetRoleTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) (bool, error)
	ListByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Student, error)
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, studentID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForStudent(ctx context.Context, studentID uint64) error
}

type ClassroomStore interface {
	ListActive(ctx context.Context) ([]model.Classroom, error)
	GetByID(ctx context.Context, id uint64) (model.Classroom, error)
	Create(ctx context.Context, name, layout string) (uint64, error)
	SetActive(ctx context.Context, id uint64, active bool) error
}

// ReservationStore exposes DB so handlers can open the transaction the
// *Tx methods run in; the handler owns commit and rollback.
type ReservationStore interface {
	DB() *sql.DB
	CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error
	ApprovedExistsTx(ctx context.Context, tx *sql.Tx, classroomID uint64, seatRow, seatCol int, date time.Time, slot int) (bool, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) (bool, error)
	RejectCompetitorsTx(ctx context.Context, tx *sql.Tx, won model.Reservation) (int64, error)
	CancelCompetingPendingTx(ctx context.Context, tx *sql.Tx, res model.Reservation) (int64, error)
	CancelByAdminTx(ctx context.Context, tx *sql.Tx, id uint64, from string) (bool, error)
	BatchForStudentTx(ctx context.Context, tx *sql.Tx, batchID string, studentID uint64) ([]model.Reservation, error)
	CancelBatchTx(ctx context.Context, tx *sql.Tx, batchID string, studentID uint64) (int64, error)
	CountPendingBatches(ctx context.Context, studentID uint64, from time.Time) (int, error)
	HasActiveForSlot(ctx context.Context, studentID uint64, date time.Time, slot int) (bool, error)
	ListGrid(ctx context.Context, classroomID uint64, date time.Time, slot int) ([]repository.GridRecord, error)
	GetByIDs(ctx context.Context, ids []uint64) ([]model.Reservation, error)
	ListByStudent(ctx context.Context, studentID uint64) ([]model.Reservation, error)
	ListRange(ctx context.Context, from, to time.Time) ([]repository.ExportRow, error)
}

type PromotionStore interface {
	Create(ctx context.Context, studentID uint64, reason string) (*model.PromotionRequest, error)
	HasPending(ctx context.Context, studentID uint64) (bool, error)
	HasRejected(ctx context.Context, studentID uint64) (bool, error)
	ReviewAllPendingTx(ctx context.Context, tx *sql.Tx, studentID uint64, status, reviewer string) (int64, error)
}

type MailQueue interface {
	Publish(ctx context.Context, msg queue.MailMessage) error
}

var (
	_ StudentStore     = (*repository.StudentRepo)(nil)
	_ TokenStore       = (*repository.TokenRepo)(nil)
	_ ClassroomStore   = (*repository.ClassroomRepo)(nil)
	_ ReservationStore = (*repository.ReservationRepo)(nil)
	_ PromotionStore   = (*repository.PromotionRepo)(nil)
	_ MailQueue        = (*queue.MailPublisher)(nil)
)
