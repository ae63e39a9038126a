package lead

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kitabu/kitabu/core"
)

// Lifecycle statuses. Created by the marketing funnel as "started"; every
// later move is admin-triggered, except "qualified"/"not_qualified" which are
// derived from the AI assessment score and can never be set directly.
const (
	StatusStarted            = "started"
	StatusApplied            = "applied"
	StatusAssessmentComplete = "ai_assessment_complete"
	StatusQualified          = "qualified"
	StatusNotQualified       = "not_qualified"
	StatusInterviewScheduled = "interview_scheduled"
	StatusApproved           = "approved"
	StatusRejected           = "rejected"
	StatusOnHold             = "on_hold"
)

var (
	AllStatuses = []string{
		StatusStarted, StatusApplied, StatusAssessmentComplete, StatusQualified, StatusNotQualified,
		StatusInterviewScheduled, StatusApproved, StatusRejected, StatusOnHold,
	}

	// AdminStatuses are the targets an admin may PATCH to.
	AdminStatuses = []string{
		StatusStarted, StatusApplied, StatusAssessmentComplete,
		StatusInterviewScheduled, StatusApproved, StatusRejected, StatusOnHold,
	}

	// notifiedStatuses trigger a best-effort parent notification on transition.
	notifiedStatuses = []string{StatusApproved, StatusRejected, StatusOnHold}
)

func IsValidStatus(s string) bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

func isAdminStatus(s string) bool {
	for _, st := range AdminStatuses {
		if s == st {
			return true
		}
	}
	return false
}

func isNotifiedStatus(s string) bool {
	for _, st := range notifiedStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Lead is a prospective customer captured from the marketing funnel.
// Leads are never deleted; "rejected" is the soft terminus.
type Lead struct {
	ID          string     `json:"id"`
	ParentName  string     `json:"parent_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"` // normalized 10-digit
	ChildName   string     `json:"child_name"`
	ChildAge    int        `json:"child_age"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	Score       *int       `json:"ai_total_score"` // 0-10; nil until assessed
	Notes       string     `json:"notes"`
	AppliedAt   *time.Time `json:"applied_at"`
	AssessedAt  *time.Time `json:"assessed_at"`
	InterviewAt *time.Time `json:"interview_at"`
	ClosedAt    *time.Time `json:"closed_at"`  // approved or rejected
	CreatedAt   time.Time  `json:"created_at"` // UTC
	UpdatedAt   time.Time  `json:"updated_at"` // UTC
}

// Qualified derives qualification from the stored score only; the score is
// the single source of truth, never a separately stored flag.
func (l *Lead) Qualified(threshold int) bool {
	return l.Score != nil && *l.Score >= threshold
}

func (l *Lead) IsClosed() bool {
	return l.Status == StatusApproved || l.Status == StatusRejected
}

// NewLead contains information needed to capture a new Lead.
type NewLead struct {
	ParentName string `json:"parent_name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"required,inphone"`
	ChildName  string `json:"child_name" validate:"required"`
	ChildAge   int    `json:"child_age" validate:"required,gte=3,lte=15"`
	Source     string `json:"source"`
}

func (nl *NewLead) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nl.ParentName = core.CleanString(nl.ParentName)
	nl.Email = core.CleanString(nl.Email, true /* lower */)
	nl.Phone = core.NormalizePhone(nl.Phone)
	nl.ChildName = core.CleanString(nl.ChildName)
	nl.Source = core.CleanString(nl.Source, true /* lower */)

	if err := validate.Struct(nl); err != nil {
		return err
	}
	return svc.CheckPhoneUniqueness(nl.Phone)
}

// UpdateLead defines what profile information may be modified on an existing Lead.
type UpdateLead struct {
	ParentName string `json:"parent_name"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"omitempty,inphone"`
	ChildName  string `json:"child_name"`
	ChildAge   int    `json:"child_age" validate:"omitempty,gte=3,lte=15"`
	Notes      string `json:"notes"`
}

func (ul *UpdateLead) Validate(validate *validator.Validate, orig Lead, svc ServiceInterface) error {
	if name := core.CleanString(ul.ParentName); name != "" {
		ul.ParentName = name
	} else {
		ul.ParentName = orig.ParentName
	}
	if email := core.CleanString(ul.Email, true /* lower */); email != "" {
		ul.Email = email
	} else {
		ul.Email = orig.Email
	}
	if phone := core.NormalizePhone(ul.Phone); phone != "" {
		ul.Phone = phone
	} else {
		ul.Phone = orig.Phone
	}
	if child := core.CleanString(ul.ChildName); child != "" {
		ul.ChildName = child
	} else {
		ul.ChildName = orig.ChildName
	}
	if ul.ChildAge == 0 {
		ul.ChildAge = orig.ChildAge
	}

	if err := validate.Struct(ul); err != nil {
		return err
	}
	if ul.Phone != orig.Phone {
		return svc.CheckPhoneUniqueness(ul.Phone, orig)
	}
	return nil
}

// StatusChange is an admin-triggered lifecycle move with its status-specific
// side fields.
type StatusChange struct {
	Status      string     `json:"status" validate:"required"`
	InterviewAt *time.Time `json:"interview_at" validate:"required_if=Status interview_scheduled"`
	Notes       string     `json:"notes"`
}

func (sc *StatusChange) Validate(validate *validator.Validate) error {
	sc.Status = core.CleanString(sc.Status, true /* lower */)
	if err := validate.Struct(sc); err != nil {
		return err
	}
	if !isAdminStatus(sc.Status) {
		if sc.Status == StatusQualified || sc.Status == StatusNotQualified {
			return core.NewValidationError(ErrDerivedStatus,
				core.FieldError{Field: "status", Error: ErrDerivedStatus.Error()})
		}
		return core.NewValidationError(ErrInvalidStatus,
			core.FieldError{Field: "status", Error: ErrInvalidStatus.Error()})
	}
	return nil
}

// Assessment records the AI reading-assessment outcome for a lead.
type Assessment struct {
	Score int `json:"score" validate:"gte=0,lte=10"`
}

func (a *Assessment) Validate(validate *validator.Validate) error {
	return validate.Struct(a)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Status      string    `query:"status"`
	ScoreFilter string    `query:"score_filter"` // "qualified" | "not_qualified"
	Source      string    `query:"source"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.ScoreFilter == "" && qf.Source == "" &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.ScoreFilter = core.CleanString(qf.ScoreFilter, true /* lower */)
	qf.Source = core.CleanString(qf.Source, true /* lower */)
}
