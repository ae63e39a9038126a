package lead

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/kitabu/kitabu/core"
)

var (
	// errors
	ErrNotFound      = errors.New("lead not found")
	ErrPhoneExists   = errors.New("a lead with this phone number already exists")
	ErrInvalidStatus = errors.New("unknown status")
	ErrDerivedStatus = errors.New("qualification is derived from the assessment score and cannot be set directly")
)

type (
	Repository interface {
		CheckPhoneUniqueness(ctx context.Context, phone string, excludedLeads ...Lead) error
		CreateLead(ctx context.Context, led Lead) (Lead, error)
		GetLead(ctx context.Context, id string) (Lead, error)
		// QueryLeads applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// Lead.ParentName, Lead.ChildName, Lead.Email or Lead.Phone.
		QueryLeads(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Lead, int, error)
		UpdateLead(ctx context.Context, led Lead) (Lead, error)
	}

	ServiceInterface interface {
		CheckPhoneUniqueness(phone string, excludedLeads ...Lead) error
		Create(ctx context.Context, nl NewLead) (Lead, error)
		GetByID(ctx context.Context, id string) (Lead, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Lead, int, error)
		Update(ctx context.Context, orig Lead, ul UpdateLead) (Lead, error)
		ChangeStatus(ctx context.Context, orig Lead, sc StatusChange) (Lead, error)
		RecordAssessment(ctx context.Context, orig Lead, a Assessment) (Lead, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		smsSvc  core.SMSService
		conf    *core.Config
		logger  core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, smsSvc core.SMSService, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		smsSvc:  smsSvc,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *Service) CheckPhoneUniqueness(phone string, excludedLeads ...Lead) error {
	if err := svc.repo.CheckPhoneUniqueness(context.Background(), phone, excludedLeads...); err != nil {
		if errors.Cause(err) == ErrPhoneExists {
			return core.NewValidationError(err, core.FieldError{Field: "phone", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nl NewLead) (Lead, error) {
	now := time.Now().UTC()
	led := Lead{
		ParentName: nl.ParentName,
		Email:      nl.Email,
		Phone:      nl.Phone,
		ChildName:  nl.ChildName,
		ChildAge:   nl.ChildAge,
		Source:     nl.Source,
		Status:     StatusStarted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateLead(ctx, led)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Lead, error) {
	return svc.repo.GetLead(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]Lead, int, error) {
	return svc.repo.QueryLeads(ctx, filter, ordering, page)
}

func (svc *Service) Update(ctx context.Context, orig Lead, ul UpdateLead) (Lead, error) {
	orig.ParentName = ul.ParentName
	orig.Email = ul.Email
	orig.Phone = ul.Phone
	orig.ChildName = ul.ChildName
	orig.ChildAge = ul.ChildAge
	if ul.Notes != "" {
		orig.Notes = ul.Notes
	}
	orig.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateLead(ctx, orig)
}

// ChangeStatus applies an admin-triggered lifecycle move. Transitions are
// deliberately unconstrained (any admin status to any other); milestone
// timestamps are recorded as a side effect. On approved/rejected/on_hold the
// parent is notified best-effort: a failed send is logged, never rolled back.
func (svc *Service) ChangeStatus(ctx context.Context, orig Lead, sc StatusChange) (Lead, error) {
	now := time.Now().UTC()

	orig.Status = sc.Status
	if sc.Notes != "" {
		orig.Notes = sc.Notes
	}
	switch sc.Status {
	case StatusApplied:
		orig.AppliedAt = &now
	case StatusInterviewScheduled:
		orig.InterviewAt = sc.InterviewAt
	case StatusApproved, StatusRejected:
		orig.ClosedAt = &now
	}
	orig.UpdatedAt = now

	led, err := svc.repo.UpdateLead(ctx, orig)
	if err != nil {
		return Lead{}, errors.Wrap(err, "updating lead status")
	}

	if isNotifiedStatus(led.Status) {
		svc.notifyStatus(led)
	}
	return led, nil
}

// RecordAssessment stores the AI score and derives the qualification status
// from it. The score is the only source of truth for "qualified".
func (svc *Service) RecordAssessment(ctx context.Context, orig Lead, a Assessment) (Lead, error) {
	now := time.Now().UTC()

	score := a.Score
	orig.Score = &score
	orig.AssessedAt = &now
	orig.UpdatedAt = now
	if orig.Qualified(svc.conf.QualifyingScore) {
		orig.Status = StatusQualified
	} else {
		orig.Status = StatusNotQualified
	}

	led, err := svc.repo.UpdateLead(ctx, orig)
	if err != nil {
		return Lead{}, errors.Wrap(err, "recording assessment")
	}
	return led, nil
}

var statusSubjects = map[string]string{
	StatusApproved: "Welcome aboard!",
	StatusRejected: "Your application update",
	StatusOnHold:   "Your application is on hold",
}

func (svc *Service) notifyStatus(led Lead) {
	if led.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: led.ParentName, Address: led.Email}},
			Subject:      statusSubjects[led.Status],
			TemplateName: "lead-status",
			TemplateData: struct {
				ParentName string
				ChildName  string
				Status     string
			}{led.ParentName, led.ChildName, led.Status},
		})
	}
	if led.Phone != "" {
		svc.smsSvc.SendMessages(&core.TextMessage{
			Phone: led.Phone,
			Body: fmt.Sprintf("Hi %s, there is an update on %s's reading-coaching application: %s. Check your email for details.",
				led.ParentName, led.ChildName, led.Status),
		})
	}
}
