package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/coach"
	"github.com/kitabu/kitabu/core/enrollment"
)

type enrollmentRow struct {
	ID           string      `db:"id"`
	CallID       string      `db:"call_id"`
	LeadID       null.String `db:"lead_id"`
	CoachID      string      `db:"coach_id"`
	ParentName   null.String `db:"parent_name"`
	ChildName    null.String `db:"child_name"`
	Phone        null.String `db:"phone"`
	Amount       int         `db:"amount"`
	CoachSourced bool        `db:"coach_sourced"`
	CoachGets    int         `db:"coach_gets"`
	LeadCost     int         `db:"lead_cost"`
	PlatformGets int         `db:"platform_gets"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
}

type paymentRow struct {
	ID           string      `db:"id"`
	GatewayRef   string      `db:"gateway_ref"`
	Amount       int         `db:"amount"`
	Phone        null.String `db:"phone"`
	Email        null.String `db:"email"`
	Status       string      `db:"status"`
	EnrollmentID null.String `db:"enrollment_id"`
	CapturedAt   null.Time   `db:"captured_at"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo enrollmentRepository) pack(enr enrollment.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:           enr.ID,
		CallID:       enr.CallID,
		LeadID:       null.NewString(enr.LeadID, enr.LeadID != ""),
		CoachID:      enr.CoachID,
		ParentName:   null.NewString(enr.ParentName, enr.ParentName != ""),
		ChildName:    null.NewString(enr.ChildName, enr.ChildName != ""),
		Phone:        null.NewString(enr.Phone, enr.Phone != ""),
		Amount:       enr.Amount,
		CoachSourced: enr.CoachSourced,
		CoachGets:    enr.Split.CoachGets,
		LeadCost:     enr.Split.LeadCost,
		PlatformGets: enr.Split.PlatformGets,
		CreatedAt:    null.NewTime(enr.CreatedAt.UTC(), !enr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(enr.UpdatedAt.UTC(), !enr.UpdatedAt.IsZero()),
	}
}

func (repo enrollmentRepository) unpack(row enrollmentRow) enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:           row.ID,
		CallID:       row.CallID,
		LeadID:       row.LeadID.String,
		CoachID:      row.CoachID,
		ParentName:   row.ParentName.String,
		ChildName:    row.ChildName.String,
		Phone:        row.Phone.String,
		Amount:       row.Amount,
		CoachSourced: row.CoachSourced,
		Split: coach.RevenueSplit{
			CoachGets:    row.CoachGets,
			LeadCost:     row.LeadCost,
			PlatformGets: row.PlatformGets,
		},
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

func (repo enrollmentRepository) packPayment(pmt enrollment.Payment) paymentRow {
	return paymentRow{
		ID:           pmt.ID,
		GatewayRef:   pmt.GatewayRef,
		Amount:       pmt.Amount,
		Phone:        null.NewString(pmt.Phone, pmt.Phone != ""),
		Email:        null.NewString(pmt.Email, pmt.Email != ""),
		Status:       pmt.Status,
		EnrollmentID: null.NewString(pmt.EnrollmentID, pmt.EnrollmentID != ""),
		CapturedAt:   null.NewTime(pmt.CapturedAt.UTC(), !pmt.CapturedAt.IsZero()),
		CreatedAt:    null.NewTime(pmt.CreatedAt.UTC(), !pmt.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(pmt.UpdatedAt.UTC(), !pmt.UpdatedAt.IsZero()),
	}
}

func (repo enrollmentRepository) unpackPayment(row paymentRow) enrollment.Payment {
	return enrollment.Payment{
		ID:           row.ID,
		GatewayRef:   row.GatewayRef,
		Amount:       row.Amount,
		Phone:        row.Phone.String,
		Email:        row.Email.String,
		Status:       row.Status,
		EnrollmentID: row.EnrollmentID.String,
		CapturedAt:   row.CapturedAt.Time,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	enr.ID = uuid.New().String()
	row := repo.pack(enr)
	q := `INSERT INTO enrollment (
			id, call_id, lead_id, coach_id, parent_name, child_name, phone, amount, coach_sourced,
			coach_gets, lead_cost, platform_gets, created_at, updated_at)
		VALUES (
			:id, :call_id, :lead_id, :coach_id, :parent_name, :child_name, :phone, :amount, :coach_sourced,
			:coach_gets, :lead_cost, :platform_gets, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, id string) (enrollment.Enrollment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	var row enrollmentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM enrollment WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return enrollment.Enrollment{}, enrollment.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "finding enrollment by ID")
	}
	return repo.unpack(row), nil
}

func (repo enrollmentRepository) QueryEnrollments(ctx context.Context, page core.Pagination) ([]enrollment.Enrollment, int, error) {
	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollment"); err != nil {
		return nil, 0, errors.Wrap(err, "counting enrollments")
	}

	qb := new(queryBuilder)
	q := "SELECT * FROM enrollment ORDER BY created_at DESC" + qb.paginate(page)
	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, qb.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying enrollments")
	}

	enrs := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, repo.unpack(row))
	}
	return enrs, total, nil
}

func (repo enrollmentRepository) FindEnrollmentByPhone(ctx context.Context, phone string) (enrollment.Enrollment, error) {
	var row enrollmentRow
	q := "SELECT * FROM enrollment WHERE phone = $1 ORDER BY created_at DESC LIMIT 1"
	if err := repo.db.GetContext(ctx, &row, q, phone); err != nil {
		if err == sql.ErrNoRows {
			return enrollment.Enrollment{}, enrollment.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "finding enrollment by phone")
	}
	return repo.unpack(row), nil
}

func (repo enrollmentRepository) CreatePayment(ctx context.Context, pmt enrollment.Payment) (enrollment.Payment, error) {
	pmt.ID = uuid.New().String()
	row := repo.packPayment(pmt)
	q := `INSERT INTO payment (id, gateway_ref, amount, phone, email, status, enrollment_id, captured_at, created_at, updated_at)
		VALUES (:id, :gateway_ref, :amount, :phone, :email, :status, :enrollment_id, :captured_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return enrollment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return pmt, nil
}

func (repo enrollmentRepository) GetPayment(ctx context.Context, id string) (enrollment.Payment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return enrollment.Payment{}, enrollment.ErrPaymentNotFound
	}
	var row paymentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM payment WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return enrollment.Payment{}, enrollment.ErrPaymentNotFound
		}
		return enrollment.Payment{}, errors.Wrap(err, "finding payment by ID")
	}
	return repo.unpackPayment(row), nil
}

func (repo enrollmentRepository) GetPaymentByRef(ctx context.Context, gatewayRef string) (enrollment.Payment, error) {
	var row paymentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM payment WHERE gateway_ref = $1", gatewayRef); err != nil {
		if err == sql.ErrNoRows {
			return enrollment.Payment{}, enrollment.ErrPaymentNotFound
		}
		return enrollment.Payment{}, errors.Wrap(err, "finding payment by reference")
	}
	return repo.unpackPayment(row), nil
}

func (repo enrollmentRepository) QueryPayments(
	ctx context.Context,
	filter *enrollment.PaymentFilter,
	page core.Pagination,
) ([]enrollment.Payment, int, error) {
	qb := new(queryBuilder)

	if filter != nil {
		if filter.OrphansOnly {
			qb.where("enrollment_id IS NULL")
		}
		if filter.Phone != "" {
			qb.where("phone = ?", filter.Phone)
		}
		if !filter.CapturedFrom.IsZero() {
			qb.where("captured_at >= ?", filter.CapturedFrom.UTC())
		}
		if !filter.CapturedTo.IsZero() {
			qb.where("captured_at <= ?", filter.CapturedTo.UTC())
		}
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payment"+qb.clause(), qb.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting payments")
	}

	q := "SELECT * FROM payment" + qb.clause() + " ORDER BY captured_at DESC" + qb.paginate(page)
	var rows []paymentRow
	if err := repo.db.SelectContext(ctx, &rows, q, qb.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying payments")
	}

	pmts := make([]enrollment.Payment, 0, len(rows))
	for _, row := range rows {
		pmts = append(pmts, repo.unpackPayment(row))
	}
	return pmts, total, nil
}

func (repo enrollmentRepository) UpdatePayment(ctx context.Context, pmt enrollment.Payment) (enrollment.Payment, error) {
	row := repo.packPayment(pmt)
	q := `UPDATE payment SET
			gateway_ref = :gateway_ref, amount = :amount, phone = :phone, email = :email,
			status = :status, enrollment_id = :enrollment_id, captured_at = :captured_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return enrollment.Payment{}, errors.Wrap(err, "updating payment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return enrollment.Payment{}, enrollment.ErrPaymentNotFound
	}
	return pmt, nil
}
