package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/coach"
)

// Enrollment is the conversion of a completed discovery call into a paying
// engagement. The revenue split is snapshotted at creation time from the
// coach's tier so later tier edits never rewrite history.
type Enrollment struct {
	ID           string             `json:"id"`
	CallID       string             `json:"call_id"`
	LeadID       string             `json:"lead_id,omitempty"`
	CoachID      string             `json:"coach_id"`
	ParentName   string             `json:"parent_name"`
	ChildName    string             `json:"child_name"`
	Phone        string             `json:"phone"` // normalized 10-digit
	Amount       int                `json:"amount"`
	CoachSourced bool               `json:"coach_sourced"`
	Split        coach.RevenueSplit `json:"split"`
	CreatedAt    time.Time          `json:"created_at"` // UTC
	UpdatedAt    time.Time          `json:"updated_at"` // UTC
}

// Payment statuses, as reported by the gateway webhook.
const (
	PaymentCaptured = "captured"
	PaymentRefunded = "refunded"
)

// Payment is a gateway-captured payment. One without an enrollment link is an
// orphaned payment: a reconciliation gap an admin has to resolve.
type Payment struct {
	ID           string    `json:"id"`
	GatewayRef   string    `json:"gateway_ref"`
	Amount       int       `json:"amount"`
	Phone        string    `json:"phone"` // normalized 10-digit
	Email        string    `json:"email"`
	Status       string    `json:"status"`
	EnrollmentID string    `json:"enrollment_id,omitempty"`
	CapturedAt   time.Time `json:"captured_at"` // UTC
	CreatedAt    time.Time `json:"created_at"`  // UTC
	UpdatedAt    time.Time `json:"updated_at"`  // UTC
}

func (p *Payment) IsOrphaned() bool { return p.EnrollmentID == "" }

// NewEnrollment contains information needed to convert a discovery call.
type NewEnrollment struct {
	CallID       string `json:"call_id" validate:"required"`
	Amount       int    `json:"amount" validate:"required,gt=0"`
	CoachSourced bool   `json:"coach_sourced"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	return validate.Struct(ne)
}

// NewPayment is the gateway webhook payload.
type NewPayment struct {
	GatewayRef string    `json:"gateway_ref" validate:"required"`
	Amount     int       `json:"amount" validate:"required,gt=0"`
	Phone      string    `json:"phone" validate:"omitempty,inphone"`
	Email      string    `json:"email" validate:"omitempty,email"`
	Status     string    `json:"status"`
	CapturedAt time.Time `json:"captured_at"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.GatewayRef = core.CleanString(np.GatewayRef)
	np.Phone = core.NormalizePhone(np.Phone)
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.Status = core.CleanString(np.Status, true /* lower */)
	if np.Status == "" {
		np.Status = PaymentCaptured
	}
	return validate.Struct(np)
}

// LinkPayment ties an orphaned payment to an enrollment.
type LinkPayment struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
}

func (lp *LinkPayment) Validate(validate *validator.Validate) error {
	return validate.Struct(lp)
}

type PaymentFilter struct {
	OrphansOnly  bool      `query:"orphans_only"`
	Phone        string    `query:"phone"`
	CapturedFrom time.Time `query:"captured_from"`
	CapturedTo   time.Time `query:"captured_to"`
}

func (pf *PaymentFilter) Clean() {
	pf.Phone = core.NormalizePhone(pf.Phone)
}
