package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kitabu/kitabu/core/booking"
)

func (app *testApp) firstAvailableSlot(t *testing.T) string {
	t.Helper()
	schedule, err := app.bookingSvc.Availability(context.Background(), 2)
	if err != nil {
		t.Fatalf("listing availability failed: %v", err)
	}
	for _, day := range schedule {
		for _, sv := range day.Slots {
			if sv.Available {
				return sv.SlotID
			}
		}
	}
	t.Fatal("no available slot")
	return ""
}

func wizardBooking(slotID, phone string) booking.BookingRequest {
	return booking.BookingRequest{
		ParentName: "Asha Rao",
		Email:      "asha@test.in",
		Phone:      phone,
		ChildName:  "Kiran",
		ChildAge:   7,
		Goals:      "wants to enjoy reading",
		SlotID:     slotID,
	}
}

func TestFunnelSlots(t *testing.T) {
	app := setup(t)
	app.createCoach(t)

	req, rec := newRequest(http.MethodGet, "/v1/funnel/slots?days=2")
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var schedule []booking.DaySlots
	if err := json.Unmarshal(rec.Body.Bytes(), &schedule); err != nil {
		t.Fatalf("unmarshalling schedule failed: %v", err)
	}
	if len(schedule) == 0 {
		t.Fatal("schedule is empty")
	}
	for _, day := range schedule {
		if len(day.Slots) == 0 {
			t.Errorf("day %s has no slots", day.Date)
		}
	}
}

func TestFunnelBooking(t *testing.T) {
	app := setup(t)
	app.createCoach(t)
	slotID := app.firstAvailableSlot(t)

	// first booking wins the slot
	req, rec := newRequest(http.MethodPost, "/v1/funnel/bookings", marshallObj(t, wizardBooking(slotID, "9876543210")))
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want %d; body = %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var cll booking.Call
	if err := json.Unmarshal(rec.Body.Bytes(), &cll); err != nil {
		t.Fatalf("unmarshalling Call failed: %v", err)
	}
	if cll.Status != booking.StatusScheduled {
		t.Errorf("Status = %q, want %q", cll.Status, booking.StatusScheduled)
	}
	if cll.CoachName == "" {
		t.Error("CoachName is empty; the success screen needs it")
	}
	if cll.MeetingLink == "" {
		t.Error("MeetingLink is empty")
	}

	// the loser gets a machine-readable conflict
	req, rec = newRequest(http.MethodPost, "/v1/funnel/bookings", marshallObj(t, wizardBooking(slotID, "9876543211")))
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want %d; body = %s", rec.Code, http.StatusConflict, rec.Body.String())
	}
	var conflict struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &conflict); err != nil {
		t.Fatalf("unmarshalling conflict failed: %v", err)
	}
	if conflict.Code != errCodeAlreadyBooked {
		t.Errorf("code = %q, want %q", conflict.Code, errCodeAlreadyBooked)
	}
}

func TestCallConsole(t *testing.T) {
	app := setup(t)
	app.createCoach(t)
	token := app.opsToken(t)

	slotID := app.firstAvailableSlot(t)
	cll, err := app.bookingSvc.Book(context.Background(), wizardBooking(slotID, "9876543212"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	tests := []httpTest{
		{
			name:     "auth required",
			method:   http.MethodGet,
			path:     "/v1/calls",
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "list calls",
			method:   http.MethodGet,
			path:     "/v1/calls",
			token:    token,
			wantCode: http.StatusOK,
		},
		{
			name:     "retrieve call",
			method:   http.MethodGet,
			path:     "/v1/calls/" + cll.ID,
			token:    token,
			wantCode: http.StatusOK,
		},
		{
			name:     "complete call",
			method:   http.MethodPatch,
			path:     "/v1/calls/" + cll.ID + "/status",
			body:     marshallObj(t, booking.StatusChange{Status: booking.StatusCompleted}),
			token:    token,
			wantCode: http.StatusOK,
		},
		{
			name:     "converted is not an admin target",
			method:   http.MethodPatch,
			path:     "/v1/calls/" + cll.ID + "/status",
			body:     marshallObj(t, booking.StatusChange{Status: booking.StatusConverted}),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown call",
			method:   http.MethodGet,
			path:     "/v1/calls/f47ac10b-58cc-4372-a567-0e02b2c3d479",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
