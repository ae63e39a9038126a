package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/enrollment"
)

type enrollmentRepository struct {
	enrollments *enrollmentTable
	payments    *paymentTable
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{enrollments: db.enrollment, payments: db.payment}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.enrollments.Lock()
	defer repo.enrollments.Unlock()

	enr.ID = uuid.New().String()
	repo.enrollments.table[enr.ID] = &enr
	return enr, nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, id string) (enrollment.Enrollment, error) {
	repo.enrollments.RLock()
	defer repo.enrollments.RUnlock()

	if enr, ok := repo.enrollments.table[id]; ok {
		return *enr, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, page core.Pagination) ([]enrollment.Enrollment, int, error) {
	repo.enrollments.RLock()
	defer repo.enrollments.RUnlock()

	enrs := make([]enrollment.Enrollment, 0, len(repo.enrollments.table))
	for _, enr := range repo.enrollments.table {
		enrs = append(enrs, *enr)
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].CreatedAt.After(enrs[j].CreatedAt) })

	paged, total := paginate(enrs, page)
	return paged, total, nil
}

func (repo *enrollmentRepository) FindEnrollmentByPhone(ctx context.Context, phone string) (enrollment.Enrollment, error) {
	repo.enrollments.RLock()
	defer repo.enrollments.RUnlock()

	var found *enrollment.Enrollment
	for _, enr := range repo.enrollments.table {
		if enr.Phone != phone {
			continue
		}
		if found == nil || enr.CreatedAt.After(found.CreatedAt) {
			found = enr
		}
	}
	if found == nil {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return *found, nil
}

func (repo *enrollmentRepository) CreatePayment(ctx context.Context, pmt enrollment.Payment) (enrollment.Payment, error) {
	repo.payments.Lock()
	defer repo.payments.Unlock()

	pmt.ID = uuid.New().String()
	repo.payments.table[pmt.ID] = &pmt
	return pmt, nil
}

func (repo *enrollmentRepository) GetPayment(ctx context.Context, id string) (enrollment.Payment, error) {
	repo.payments.RLock()
	defer repo.payments.RUnlock()

	if pmt, ok := repo.payments.table[id]; ok {
		return *pmt, nil
	}
	return enrollment.Payment{}, enrollment.ErrPaymentNotFound
}

func (repo *enrollmentRepository) GetPaymentByRef(ctx context.Context, gatewayRef string) (enrollment.Payment, error) {
	repo.payments.RLock()
	defer repo.payments.RUnlock()

	for _, pmt := range repo.payments.table {
		if pmt.GatewayRef == gatewayRef {
			return *pmt, nil
		}
	}
	return enrollment.Payment{}, enrollment.ErrPaymentNotFound
}

func (repo *enrollmentRepository) QueryPayments(
	ctx context.Context,
	filter *enrollment.PaymentFilter,
	page core.Pagination,
) ([]enrollment.Payment, int, error) {
	repo.payments.RLock()
	defer repo.payments.RUnlock()

	pmts := make([]enrollment.Payment, 0, len(repo.payments.table))
	for _, pmt := range repo.payments.table {
		pmts = append(pmts, *pmt)
	}

	if filter != nil {
		var filtered []enrollment.Payment
		for _, pmt := range pmts {
			if filter.OrphansOnly && !pmt.IsOrphaned() {
				continue
			}
			if filter.Phone != "" && pmt.Phone != filter.Phone {
				continue
			}
			if !filter.CapturedFrom.IsZero() && pmt.CapturedAt.Before(filter.CapturedFrom) {
				continue
			}
			if !filter.CapturedTo.IsZero() && pmt.CapturedAt.After(filter.CapturedTo) {
				continue
			}
			filtered = append(filtered, pmt)
		}
		pmts = filtered
	}

	sort.Slice(pmts, func(i, j int) bool { return pmts[i].CapturedAt.After(pmts[j].CapturedAt) })

	paged, total := paginate(pmts, page)
	return paged, total, nil
}

func (repo *enrollmentRepository) UpdatePayment(ctx context.Context, pmt enrollment.Payment) (enrollment.Payment, error) {
	repo.payments.Lock()
	defer repo.payments.Unlock()

	if _, ok := repo.payments.table[pmt.ID]; !ok {
		return enrollment.Payment{}, enrollment.ErrPaymentNotFound
	}
	repo.payments.table[pmt.ID] = &pmt
	return pmt, nil
}
