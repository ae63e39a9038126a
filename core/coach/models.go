package coach

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kitabu/kitabu/core"
)

// AvailabilityWindow is a weekly recurring window a coach takes discovery
// calls in. Times are minutes since midnight, business timezone (IST).
type AvailabilityWindow struct {
	Weekday     time.Weekday `json:"weekday" validate:"gte=0,lte=6"`
	StartMinute int          `json:"start_minute" validate:"gte=0,lt=1440"`
	EndMinute   int          `json:"end_minute" validate:"gt=0,lte=1440,gtfield=StartMinute"`
}

// Coach is a reading coach taking discovery calls and enrollments.
type Coach struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Email       string               `json:"email"`
	Phone       string               `json:"phone"` // normalized 10-digit
	GroupID     string               `json:"group_id"`
	IsInternal  bool                 `json:"is_internal"` // salaried; takes no revenue share
	IsAvailable bool                 `json:"is_available"`
	Windows     []AvailabilityWindow `json:"windows"`
	CreatedAt   time.Time            `json:"created_at"` // UTC
	UpdatedAt   time.Time            `json:"updated_at"` // UTC
}

// Group is a revenue-split tier. The three percentages always sum to 100;
// this is enforced both here and by a DB CHECK constraint.
type Group struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	LeadCostPercent    int       `json:"lead_cost_percent"`
	CoachCostPercent   int       `json:"coach_cost_percent"`
	PlatformFeePercent int       `json:"platform_fee_percent"`
	CreatedAt          time.Time `json:"created_at"` // UTC
	UpdatedAt          time.Time `json:"updated_at"` // UTC
}

// NewCoach contains information needed to register a new Coach.
type NewCoach struct {
	Name        string               `json:"name" validate:"required"`
	Email       string               `json:"email" validate:"required,email"`
	Phone       string               `json:"phone" validate:"required,inphone"`
	GroupID     string               `json:"group_id" validate:"required"`
	IsInternal  bool                 `json:"is_internal"`
	IsAvailable *bool                `json:"is_available"`
	Windows     []AvailabilityWindow `json:"windows" validate:"omitempty,dive"`
}

func (nc *NewCoach) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Email = core.CleanString(nc.Email, true /* lower */)
	nc.Phone = core.NormalizePhone(nc.Phone)
	return validate.Struct(nc)
}

// UpdateCoach defines what information may be provided to modify an existing Coach.
// A changed GroupID triggers a best-effort notification to the coach.
type UpdateCoach struct {
	Name        string               `json:"name"`
	Email       string               `json:"email" validate:"omitempty,email"`
	Phone       string               `json:"phone" validate:"omitempty,inphone"`
	GroupID     string               `json:"group_id"`
	IsInternal  *bool                `json:"is_internal"`
	IsAvailable *bool                `json:"is_available"`
	Windows     []AvailabilityWindow `json:"windows" validate:"omitempty,dive"`
}

func (uc *UpdateCoach) Validate(validate *validator.Validate, orig Coach) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if email := core.CleanString(uc.Email, true /* lower */); email != "" {
		uc.Email = email
	} else {
		uc.Email = orig.Email
	}
	if phone := core.NormalizePhone(uc.Phone); phone != "" {
		uc.Phone = phone
	} else {
		uc.Phone = orig.Phone
	}
	if uc.GroupID == "" {
		uc.GroupID = orig.GroupID
	}
	return validate.Struct(uc)
}

// NewGroup contains information needed to create a revenue-split tier.
type NewGroup struct {
	Name               string `json:"name" validate:"required"`
	LeadCostPercent    int    `json:"lead_cost_percent" validate:"gte=0,lte=100"`
	CoachCostPercent   int    `json:"coach_cost_percent" validate:"gte=0,lte=100"`
	PlatformFeePercent int    `json:"platform_fee_percent" validate:"gte=0,lte=100"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	if err := validate.Struct(ng); err != nil {
		return err
	}
	return validatePercentSum(ng.LeadCostPercent, ng.CoachCostPercent, ng.PlatformFeePercent)
}

// UpdateGroup defines what information may be provided to modify a tier.
// Percentages are always submitted together; a partial edit that breaks the
// sum invariant is rejected.
type UpdateGroup struct {
	Name               string `json:"name"`
	LeadCostPercent    *int   `json:"lead_cost_percent" validate:"omitempty,gte=0,lte=100"`
	CoachCostPercent   *int   `json:"coach_cost_percent" validate:"omitempty,gte=0,lte=100"`
	PlatformFeePercent *int   `json:"platform_fee_percent" validate:"omitempty,gte=0,lte=100"`
}

func (ug *UpdateGroup) Validate(validate *validator.Validate, orig Group) error {
	if name := core.CleanString(ug.Name); name != "" {
		ug.Name = name
	} else {
		ug.Name = orig.Name
	}
	if ug.LeadCostPercent == nil {
		ug.LeadCostPercent = &orig.LeadCostPercent
	}
	if ug.CoachCostPercent == nil {
		ug.CoachCostPercent = &orig.CoachCostPercent
	}
	if ug.PlatformFeePercent == nil {
		ug.PlatformFeePercent = &orig.PlatformFeePercent
	}
	if err := validate.Struct(ug); err != nil {
		return err
	}
	return validatePercentSum(*ug.LeadCostPercent, *ug.CoachCostPercent, *ug.PlatformFeePercent)
}

func validatePercentSum(leadPct, coachPct, platformPct int) error {
	if leadPct+coachPct+platformPct != 100 {
		return core.NewValidationError(ErrPercentSum,
			core.FieldError{Field: "platform_fee_percent", Error: ErrPercentSum.Error()})
	}
	return nil
}

type QueryFilter struct {
	Search      string `query:"search"`
	GroupID     string `query:"group_id"`
	IsAvailable *bool  `query:"is_available"`
	IsInternal  *bool  `query:"is_internal"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.GroupID == "" && qf.IsAvailable == nil && qf.IsInternal == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
