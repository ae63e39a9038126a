package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kitabu/kitabu/core/booking"
	"github.com/kitabu/kitabu/core/enrollment"
)

// completedCall books a call and marks it completed so it can be enrolled.
func (app *testApp) completedCall(t *testing.T, phone string) booking.Call {
	t.Helper()
	ctx := context.Background()

	app.createCoach(t)
	slotID := app.firstAvailableSlot(t)

	cll, err := app.bookingSvc.Book(ctx, wizardBooking(slotID, phone))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	cll, err = app.bookingSvc.ChangeStatus(ctx, cll, booking.StatusChange{Status: booking.StatusCompleted})
	if err != nil {
		t.Fatalf("completing call failed: %v", err)
	}
	return cll
}

func TestEnrollmentAPI(t *testing.T) {
	app := setup(t)
	token := app.opsToken(t)
	cll := app.completedCall(t, "9876543210")

	tests := []httpTest{
		{
			name:     "auth required",
			body:     marshallObj(t, enrollment.NewEnrollment{CallID: cll.ID, Amount: 5999}),
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "amount required",
			token:    token,
			body:     marshallObj(t, enrollment.NewEnrollment{CallID: cll.ID}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "created with split snapshot",
			token:    token,
			body:     marshallObj(t, enrollment.NewEnrollment{CallID: cll.ID, Amount: 5999}),
			wantCode: http.StatusCreated,
		},
		{
			name:     "converted call cannot be enrolled twice",
			token:    token,
			body:     marshallObj(t, enrollment.NewEnrollment{CallID: cll.ID, Amount: 5999}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/enrollments", tt.token, tt.body)
			app.server.ServeHTTP(rec, req)

			tt.path = "/v1/enrollments"
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var enr enrollment.Enrollment
				if err := json.Unmarshal(rec.Body.Bytes(), &enr); err != nil {
					t.Fatalf("unmarshalling Enrollment failed: %v", err)
				}
				if enr.Split.CoachGets != 3000 || enr.Split.LeadCost != 1200 || enr.Split.PlatformGets != 1799 {
					t.Errorf("Split = %+v, want {3000 1200 1799}", enr.Split)
				}
			}
		})
	}
}

func TestPaymentWebhook(t *testing.T) {
	app := setup(t)
	token := app.opsToken(t)

	webhook := enrollment.NewPayment{
		GatewayRef: "pay_xyz_001",
		Amount:     5999,
		Phone:      "+91 91111-22222",
	}

	// the gateway needs no console account
	req, rec := newRequest(http.MethodPost, "/v1/payments/webhook", marshallObj(t, webhook))
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want %d; body = %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var pmt enrollment.Payment
	if err := json.Unmarshal(rec.Body.Bytes(), &pmt); err != nil {
		t.Fatalf("unmarshalling Payment failed: %v", err)
	}
	if pmt.Phone != "9111122222" {
		t.Errorf("Phone = %q, want normalized %q", pmt.Phone, "9111122222")
	}
	if pmt.Status != enrollment.PaymentCaptured {
		t.Errorf("Status = %q, want default %q", pmt.Status, enrollment.PaymentCaptured)
	}
	if !pmt.IsOrphaned() {
		t.Error("payment with no matching enrollment should be orphaned")
	}

	// replays do not duplicate
	req, rec = newRequest(http.MethodPost, "/v1/payments/webhook", marshallObj(t, webhook))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want %d; body = %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/payments?orphans_only=true", token)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var envelope struct {
		Items []enrollment.Payment `json:"items"`
		Total int                  `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshalling page failed: %v", err)
	}
	if envelope.Total != 1 {
		t.Errorf("total = %d, want 1", envelope.Total)
	}
}

func TestPaymentLink(t *testing.T) {
	app := setup(t)
	token := app.opsToken(t)
	ctx := context.Background()

	cll := app.completedCall(t, "9876543210")
	enr, err := app.enrollSvc.Create(ctx, enrollment.NewEnrollment{CallID: cll.ID, Amount: 5999})
	if err != nil {
		t.Fatalf("creating enrollment failed: %v", err)
	}

	// paid from an unknown number; lands orphaned
	pmt, err := app.enrollSvc.IngestPayment(ctx, enrollment.NewPayment{
		GatewayRef: "pay_xyz_002",
		Amount:     5999,
		Phone:      "9222233333",
	})
	if err != nil {
		t.Fatalf("ingesting payment failed: %v", err)
	}

	req, rec := newAuthRequest(
		http.MethodPatch, "/v1/payments/"+pmt.ID+"/link", token,
		marshallObj(t, enrollment.LinkPayment{EnrollmentID: enr.ID}),
	)
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pmt); err != nil {
		t.Fatalf("unmarshalling Payment failed: %v", err)
	}
	if pmt.EnrollmentID != enr.ID {
		t.Errorf("EnrollmentID = %q, want %q", pmt.EnrollmentID, enr.ID)
	}
}
