package enrollment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/booking"
	"github.com/kitabu/kitabu/core/coach"
)

var (
	// errors
	ErrNotFound        = errors.New("enrollment not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrPaymentExists   = errors.New("a payment with this gateway reference was already recorded")
	ErrCallNotReady    = errors.New("only a completed discovery call can be enrolled")
)

type (
	Repository interface {
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, page core.Pagination) ([]Enrollment, int, error)
		// FindEnrollmentByPhone returns the most recent enrollment for a
		// normalized phone number, or ErrNotFound.
		FindEnrollmentByPhone(ctx context.Context, phone string) (Enrollment, error)

		CreatePayment(ctx context.Context, pmt Payment) (Payment, error)
		GetPayment(ctx context.Context, id string) (Payment, error)
		GetPaymentByRef(ctx context.Context, gatewayRef string) (Payment, error)
		QueryPayments(ctx context.Context, filter *PaymentFilter, page core.Pagination) ([]Payment, int, error)
		UpdatePayment(ctx context.Context, pmt Payment) (Payment, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, ne NewEnrollment) (Enrollment, error)
		GetByID(ctx context.Context, id string) (Enrollment, error)
		Query(ctx context.Context, page core.Pagination) ([]Enrollment, int, error)

		IngestPayment(ctx context.Context, np NewPayment) (Payment, error)
		GetPayment(ctx context.Context, id string) (Payment, error)
		QueryPayments(ctx context.Context, filter *PaymentFilter, page core.Pagination) ([]Payment, int, error)
		LinkPayment(ctx context.Context, orig Payment, lp LinkPayment) (Payment, error)
	}

	Service struct {
		repo       Repository
		bookingSvc booking.ServiceInterface
		coachSvc   coach.ServiceInterface
		conf       *core.Config
		logger     core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, bookingSvc booking.ServiceInterface, coachSvc coach.ServiceInterface, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:       repo,
		bookingSvc: bookingSvc,
		coachSvc:   coachSvc,
		conf:       conf,
		logger:     logger,
	}
}

// Create converts a completed discovery call into an enrollment. The revenue
// split is computed once here, from the coach's current tier, and stored with
// the enrollment. The call moves to its terminal "converted" status.
func (svc *Service) Create(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	cll, err := svc.bookingSvc.GetByID(ctx, ne.CallID)
	if err != nil {
		if errors.Cause(err) == booking.ErrNotFound {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "call_id", Error: err.Error()})
		}
		return Enrollment{}, errors.Wrap(err, "finding call")
	}
	if cll.Status != booking.StatusCompleted {
		return Enrollment{}, core.NewValidationError(ErrCallNotReady,
			core.FieldError{Field: "call_id", Error: ErrCallNotReady.Error()})
	}

	cch, err := svc.coachSvc.GetByID(ctx, cll.CoachID)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "finding coach")
	}
	grp, err := svc.coachSvc.GetGroup(ctx, cch.GroupID)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "finding coach group")
	}

	now := time.Now().UTC()
	enr := Enrollment{
		CallID:       cll.ID,
		LeadID:       cll.LeadID,
		CoachID:      cch.ID,
		ParentName:   cll.ParentName,
		ChildName:    cll.ChildName,
		Phone:        cll.Phone,
		Amount:       ne.Amount,
		CoachSourced: ne.CoachSourced,
		Split:        grp.Split(ne.Amount, ne.CoachSourced, cch.IsInternal),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	enr, err = svc.repo.CreateEnrollment(ctx, enr)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}

	if _, err = svc.bookingSvc.MarkConverted(ctx, cll); err != nil {
		// the enrollment exists; a stale call status is an admin-visible
		// inconsistency, not a reason to fail the conversion
		svc.logger.Error("marking call converted", err)
	}
	return enr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, id)
}

func (svc *Service) Query(ctx context.Context, page core.Pagination) ([]Enrollment, int, error) {
	return svc.repo.QueryEnrollments(ctx, page)
}

// IngestPayment records a gateway-captured payment. Replays of the same
// gateway reference return the already-recorded payment. A fresh payment is
// auto-linked to the most recent enrollment sharing its phone number; when
// none matches it stays orphaned for manual reconciliation.
func (svc *Service) IngestPayment(ctx context.Context, np NewPayment) (Payment, error) {
	if existing, err := svc.repo.GetPaymentByRef(ctx, np.GatewayRef); err == nil {
		return existing, nil
	} else if errors.Cause(err) != ErrPaymentNotFound {
		return Payment{}, errors.Wrap(err, "checking payment reference")
	}

	capturedAt := np.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	now := time.Now().UTC()
	pmt := Payment{
		GatewayRef: np.GatewayRef,
		Amount:     np.Amount,
		Phone:      np.Phone,
		Email:      np.Email,
		Status:     np.Status,
		CapturedAt: capturedAt.UTC(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if pmt.Phone != "" {
		if enr, err := svc.repo.FindEnrollmentByPhone(ctx, pmt.Phone); err == nil {
			pmt.EnrollmentID = enr.ID
		} else if errors.Cause(err) != ErrNotFound {
			return Payment{}, errors.Wrap(err, "matching payment to enrollment")
		}
	}

	return svc.repo.CreatePayment(ctx, pmt)
}

func (svc *Service) GetPayment(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, id)
}

func (svc *Service) QueryPayments(ctx context.Context, filter *PaymentFilter, page core.Pagination) ([]Payment, int, error) {
	return svc.repo.QueryPayments(ctx, filter, page)
}

func (svc *Service) LinkPayment(ctx context.Context, orig Payment, lp LinkPayment) (Payment, error) {
	if _, err := svc.repo.GetEnrollment(ctx, lp.EnrollmentID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Payment{}, core.NewValidationError(err, core.FieldError{Field: "enrollment_id", Error: err.Error()})
		}
		return Payment{}, errors.Wrap(err, "finding enrollment")
	}

	orig.EnrollmentID = lp.EnrollmentID
	orig.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdatePayment(ctx, orig)
}
