package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kitabu/kitabu/core/coach"
)

func TestCoachGroupAPI(t *testing.T) {
	app := setup(t)
	adminToken := app.adminToken(t)
	opsToken := app.opsToken(t)

	valid := coach.NewGroup{
		Name:               "Standard",
		LeadCostPercent:    20,
		CoachCostPercent:   50,
		PlatformFeePercent: 30,
	}
	brokenSum := valid
	brokenSum.Name = "Broken"
	brokenSum.PlatformFeePercent = 40

	tests := []httpTest{
		{
			name:     "auth required",
			body:     marshallObj(t, valid),
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "ops cannot manage tiers",
			token:    opsToken,
			body:     marshallObj(t, valid),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "percentages must sum to 100",
			token:    adminToken,
			body:     marshallObj(t, brokenSum),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "created",
			token:    adminToken,
			body:     marshallObj(t, valid),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/coach-groups", tt.token, tt.body)
			app.server.ServeHTTP(rec, req)

			tt.path = "/v1/coach-groups"
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestCoachAPI(t *testing.T) {
	app := setup(t)
	adminToken := app.adminToken(t)
	ctx := context.Background()

	grp, err := app.coachSvc.CreateGroup(ctx, coach.NewGroup{
		Name:               "Standard",
		LeadCostPercent:    20,
		CoachCostPercent:   50,
		PlatformFeePercent: 30,
	})
	if err != nil {
		t.Fatalf("creating group failed: %v", err)
	}

	valid := coach.NewCoach{
		Name:    "Coach A",
		Email:   "coach.a@test.in",
		Phone:   "9876500001",
		GroupID: grp.ID,
	}
	badGroup := valid
	badGroup.Email = "coach.b@test.in"
	badGroup.GroupID = "f47ac10b-58cc-4372-a567-0e02b2c3d479"

	tests := []httpTest{
		{
			name:     "created",
			body:     marshallObj(t, valid),
			wantCode: http.StatusCreated,
		},
		{
			name:     "duplicate email",
			body:     marshallObj(t, valid),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown group",
			body:     marshallObj(t, badGroup),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/coaches", adminToken, tt.body)
			app.server.ServeHTTP(rec, req)

			tt.path = "/v1/coaches"
			checkCodeAndData(t, tt, rec)
		})
	}

	// listing returns a plain array, no envelope
	req, rec := newAuthRequest(http.MethodGet, "/v1/coaches", adminToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var coaches []coach.Coach
	if err := json.Unmarshal(rec.Body.Bytes(), &coaches); err != nil {
		t.Fatalf("unmarshalling coaches failed: %v", err)
	}
	if len(coaches) != 1 {
		t.Errorf("len(coaches) = %d, want 1", len(coaches))
	}
}

func TestCoachGroupDeleteInUse(t *testing.T) {
	app := setup(t)
	token := app.adminToken(t)
	ctx := context.Background()

	grp, err := app.coachSvc.CreateGroup(ctx, coach.NewGroup{
		Name:               "Standard",
		LeadCostPercent:    20,
		CoachCostPercent:   50,
		PlatformFeePercent: 30,
	})
	if err != nil {
		t.Fatalf("creating group failed: %v", err)
	}
	if _, err = app.coachSvc.Create(ctx, coach.NewCoach{
		Name:    "Coach A",
		Email:   "coach.a@test.in",
		Phone:   "9876500001",
		GroupID: grp.ID,
	}); err != nil {
		t.Fatalf("creating coach failed: %v", err)
	}

	req, rec := newAuthRequest(http.MethodDelete, "/v1/coach-groups/"+grp.ID, token)
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want %d; body = %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}

	empty, err := app.coachSvc.CreateGroup(ctx, coach.NewGroup{
		Name:               "Empty",
		LeadCostPercent:    10,
		CoachCostPercent:   60,
		PlatformFeePercent: 30,
	})
	if err != nil {
		t.Fatalf("creating group failed: %v", err)
	}

	req, rec = newAuthRequest(http.MethodDelete, "/v1/coach-groups/"+empty.ID, token)
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("code = %d, want %d; body = %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
}
