package booking

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kitabu/kitabu/core"
)

// Discovery-call statuses.
const (
	StatusPending   = "pending"
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
	StatusCancelled = "cancelled"
	StatusConverted = "converted" // enrolled; terminal
)

// How the coach on a call was chosen.
const (
	AssignmentAuto    = "auto"
	AssignmentManual  = "manual"
	AssignmentPending = "pending"
)

// Slot statuses.
const (
	SlotFree      = "free"
	SlotBooked    = "booked"
	SlotCancelled = "cancelled"
)

var (
	AllStatuses = []string{StatusPending, StatusScheduled, StatusCompleted, StatusNoShow, StatusCancelled, StatusConverted}

	// AdminStatuses are the targets an admin may PATCH a call to.
	// "converted" only happens through enrollment creation.
	AdminStatuses = []string{StatusPending, StatusScheduled, StatusCompleted, StatusNoShow, StatusCancelled}
)

func isAdminStatus(s string) bool {
	for _, st := range AdminStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Slot is a concrete bookable interval owned by a coach. Slots are generated
// from the coach's weekly availability windows and claimed transactionally at
// booking time.
type Slot struct {
	ID        string    `json:"id"`
	CoachID   string    `json:"coach_id"`
	StartsAt  time.Time `json:"starts_at"` // UTC
	EndsAt    time.Time `json:"ends_at"`   // UTC
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// SlotView is the ephemeral shape the booking wizard consumes.
type SlotView struct {
	SlotID    string `json:"slot_id"`
	Date      string `json:"date"` // 2006-01-02, business timezone
	Time      string `json:"time"` // 15:04
	Datetime  string `json:"datetime"` // RFC3339
	Available bool   `json:"available"`
}

// DaySlots groups a day's slots for the wizard's schedule step.
type DaySlots struct {
	Date  string     `json:"date"`
	Slots []SlotView `json:"slots"`
}

// Call is a scheduled introductory call between a prospective parent and a coach.
type Call struct {
	ID             string     `json:"id"`
	ParentName     string     `json:"parent_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"` // normalized 10-digit
	ChildName      string     `json:"child_name"`
	ChildAge       int        `json:"child_age"`
	Goals          string     `json:"goals"`
	Status         string     `json:"status"`
	AssignmentType string     `json:"assignment_type"`
	CoachID        string     `json:"coach_id"`
	CoachName      string     `json:"coach_name"` // denormalized for the success screen
	SlotID         string     `json:"slot_id"`
	ScheduledAt    *time.Time `json:"scheduled_at"` // UTC
	MeetingLink    string     `json:"meeting_link"`
	LeadID         string     `json:"lead_id,omitempty"`
	Notes          string     `json:"notes"`
	CreatedAt      time.Time  `json:"created_at"` // UTC
	UpdatedAt      time.Time  `json:"updated_at"` // UTC
}

func (c *Call) IsTerminal() bool {
	return c.Status == StatusCancelled || c.Status == StatusConverted
}

// BookingRequest is the full wizard payload: details + goals steps plus the
// chosen slot from the schedule step. Field gates mirror the wizard's.
type BookingRequest struct {
	ParentName string `json:"parent_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,inphone"`
	ChildName  string `json:"child_name" validate:"required"`
	ChildAge   int    `json:"child_age" validate:"required,gte=3,lte=15"`
	Goals      string `json:"goals"`
	SlotID     string `json:"slot_id" validate:"required"`
	LeadID     string `json:"lead_id"`
}

func (br *BookingRequest) Validate(validate *validator.Validate) error {
	br.ParentName = core.CleanString(br.ParentName)
	br.Email = core.CleanString(br.Email, true /* lower */)
	br.Phone = core.NormalizePhone(br.Phone)
	br.ChildName = core.CleanString(br.ChildName)
	br.Goals = core.CleanString(br.Goals)
	return validate.Struct(br)
}

// StatusChange is an admin-triggered call-lifecycle move.
type StatusChange struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

func (sc *StatusChange) Validate(validate *validator.Validate) error {
	sc.Status = core.CleanString(sc.Status, true /* lower */)
	if err := validate.Struct(sc); err != nil {
		return err
	}
	if !isAdminStatus(sc.Status) {
		return core.NewValidationError(ErrInvalidStatus,
			core.FieldError{Field: "status", Error: ErrInvalidStatus.Error()})
	}
	return nil
}

// Reassign moves a call to another coach.
type Reassign struct {
	CoachID string `json:"coach_id" validate:"required"`
}

func (r *Reassign) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

type QueryFilter struct {
	Search         string    `query:"search"`
	Status         string    `query:"status"`
	AssignmentType string    `query:"assignment_type"`
	CoachID        string    `query:"coach_id"`
	ScheduledFrom  time.Time `query:"scheduled_from"`
	ScheduledTo    time.Time `query:"scheduled_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.AssignmentType == "" && qf.CoachID == "" &&
		qf.ScheduledFrom.IsZero() && qf.ScheduledTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.AssignmentType = core.CleanString(qf.AssignmentType, true /* lower */)
}
