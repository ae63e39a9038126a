package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kitabu/kitabu/core/settings"
)

func TestSettingsAPI(t *testing.T) {
	app := setup(t)
	adminToken := app.adminToken(t)
	opsToken := app.opsToken(t)

	tests := []httpTest{
		{
			name:     "auth required",
			method:   http.MethodPut,
			path:     "/v1/settings/banner_text",
			body:     marshallObj(t, settings.PutSetting{Value: "Enrolments open!"}),
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "ops cannot write settings",
			method:   http.MethodPut,
			path:     "/v1/settings/banner_text",
			body:     marshallObj(t, settings.PutSetting{Value: "Enrolments open!"}),
			token:    opsToken,
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "empty value rejected",
			method:   http.MethodPut,
			path:     "/v1/settings/banner_text",
			body:     marshallObj(t, settings.PutSetting{}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "upserted",
			method:   http.MethodPut,
			path:     "/v1/settings/Banner_Text",
			body:     marshallObj(t, settings.PutSetting{Value: "Enrolments open!"}),
			token:    adminToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "delete unknown key",
			method:   http.MethodDelete,
			path:     "/v1/settings/no_such_key",
			token:    adminToken,
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

	// keys are case-insensitive and the writer is recorded
	stg, err := app.settingsSvc.Get(context.Background(), "banner_text")
	if err != nil {
		t.Fatalf("getting setting failed: %v", err)
	}
	if stg.Value != "Enrolments open!" {
		t.Errorf("Value = %q, want %q", stg.Value, "Enrolments open!")
	}
	if stg.UpdatedBy != "admin" {
		t.Errorf("UpdatedBy = %q, want %q", stg.UpdatedBy, "admin")
	}
}

func TestPublicSiteSettings(t *testing.T) {
	app := setup(t)

	if _, err := app.settingsSvc.Put(context.Background(), "banner_text", "Enrolments open!", "admin"); err != nil {
		t.Fatalf("saving setting failed: %v", err)
	}

	req, rec := newRequest(http.MethodGet, "/v1/site-settings/banner_text")
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var stg settings.Setting
	if err := json.Unmarshal(rec.Body.Bytes(), &stg); err != nil {
		t.Fatalf("unmarshalling Setting failed: %v", err)
	}
	if stg.Value != "Enrolments open!" {
		t.Errorf("Value = %q, want %q", stg.Value, "Enrolments open!")
	}

	req, rec = newRequest(http.MethodGet, "/v1/site-settings/missing")
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d, want %d; body = %s", rec.Code, http.StatusNotFound, rec.Body.String())
	}
}
