package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kitabu/kitabu/core/lead"
)

func TestFunnelLeadCapture(t *testing.T) {
	app := setup(t)

	valid := lead.NewLead{
		ParentName: "Asha Rao",
		Email:      "asha@test.in",
		Phone:      "+91 98765-43210",
		ChildName:  "Kiran",
		ChildAge:   7,
		Source:     "instagram",
	}
	tooYoung := valid
	tooYoung.Phone = "9876543211"
	tooYoung.ChildAge = 2
	badPhone := valid
	badPhone.Phone = "12345"

	tests := []httpTest{
		{
			name:     "captures without auth",
			body:     marshallObj(t, valid),
			wantCode: http.StatusCreated,
		},
		{
			name:     "duplicate phone",
			body:     marshallObj(t, valid),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid phone",
			body:     marshallObj(t, badPhone),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "child age out of range",
			body:     marshallObj(t, tooYoung),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/funnel/leads", tt.body)
			app.server.ServeHTTP(rec, req)

			tt.path = "/v1/funnel/leads"
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var led lead.Lead
				if err := json.Unmarshal(rec.Body.Bytes(), &led); err != nil {
					t.Fatalf("unmarshalling Lead failed: %v", err)
				}
				if led.Status != lead.StatusStarted {
					t.Errorf("Status = %q, want %q", led.Status, lead.StatusStarted)
				}
				if led.Phone != "9876543210" {
					t.Errorf("Phone = %q, want normalized %q", led.Phone, "9876543210")
				}
			} else {
				// field errors come back as a field -> message map
				var fldErrs map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &fldErrs); err != nil {
					t.Fatalf("unmarshalling field errors failed: %v; body = %s", err, rec.Body.String())
				}
				if len(fldErrs) == 0 {
					t.Errorf("body = %s, want at least one field error", rec.Body.String())
				}
			}
		})
	}
}

func TestLeadListPagination(t *testing.T) {
	app := setup(t)
	token := app.opsToken(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := app.leadSvc.Create(ctx, lead.NewLead{
			ParentName: "Parent",
			Phone:      "987650001" + string(rune('0'+i)),
			ChildName:  "Child",
			ChildAge:   8,
		})
		if err != nil {
			t.Fatalf("creating lead failed: %v", err)
		}
	}

	req, rec := newAuthRequest(http.MethodGet, "/v1/leads?page=1&page_size=2", token)
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var envelope struct {
		Items      []lead.Lead `json:"items"`
		Total      int         `json:"total"`
		TotalPages int         `json:"total_pages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshalling page failed: %v", err)
	}
	if len(envelope.Items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(envelope.Items))
	}
	if envelope.Total != 3 {
		t.Errorf("total = %d, want 3", envelope.Total)
	}
	if envelope.TotalPages != 2 {
		t.Errorf("total_pages = %d, want 2", envelope.TotalPages)
	}
}

func TestLeadStatusAndAssessment(t *testing.T) {
	app := setup(t)
	token := app.opsToken(t)
	ctx := context.Background()

	led, err := app.leadSvc.Create(ctx, lead.NewLead{
		ParentName: "Asha Rao",
		Phone:      "9876543219",
		ChildName:  "Kiran",
		ChildAge:   7,
	})
	if err != nil {
		t.Fatalf("creating lead failed: %v", err)
	}

	statusPath := "/v1/leads/" + led.ID + "/status"
	assessmentPath := "/v1/leads/" + led.ID + "/assessment"

	tests := []httpTest{
		{
			name:     "auth required",
			method:   http.MethodPatch,
			path:     statusPath,
			body:     marshallObj(t, lead.StatusChange{Status: lead.StatusApplied}),
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "derived status cannot be set directly",
			method:   http.MethodPatch,
			path:     statusPath,
			body:     marshallObj(t, lead.StatusChange{Status: lead.StatusQualified}),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "applied",
			method:   http.MethodPatch,
			path:     statusPath,
			body:     marshallObj(t, lead.StatusChange{Status: lead.StatusApplied}),
			token:    token,
			wantCode: http.StatusOK,
		},
		{
			name:     "score above the cap",
			method:   http.MethodPost,
			path:     assessmentPath,
			body:     []byte(`{"score": 11}`),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "qualifying assessment",
			method:   http.MethodPost,
			path:     assessmentPath,
			body:     []byte(`{"score": 8}`),
			token:    token,
			wantCode: http.StatusOK,
		},
		{
			name:     "unknown lead",
			method:   http.MethodPatch,
			path:     "/v1/leads/f47ac10b-58cc-4372-a567-0e02b2c3d479/status",
			body:     marshallObj(t, lead.StatusChange{Status: lead.StatusApplied}),
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

	led, err = app.leadSvc.GetByID(ctx, led.ID)
	if err != nil {
		t.Fatalf("reloading lead failed: %v", err)
	}
	if led.Status != lead.StatusQualified {
		t.Errorf("Status = %q, want %q", led.Status, lead.StatusQualified)
	}
	if !led.Qualified(app.conf.QualifyingScore) {
		t.Error("lead should be qualified after scoring 8")
	}
}
