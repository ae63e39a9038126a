package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kitabu/kitabu/core/content"
)

func TestContentAPI(t *testing.T) {
	app := setup(t)
	adminToken := app.adminToken(t)
	opsToken := app.opsToken(t)

	valid := content.NewItem{
		Title:   "The Hungry Bookworm",
		Kind:    "story",
		URL:     "https://cdn.test.in/stories/bookworm.pdf",
		AgeBand: "6-8",
	}
	badKind := valid
	badKind.Kind = "podcast"

	tests := []httpTest{
		{
			name:     "auth required",
			body:     marshallObj(t, valid),
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "ops cannot manage content",
			token:    opsToken,
			body:     marshallObj(t, valid),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "unknown kind",
			token:    adminToken,
			body:     marshallObj(t, badKind),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "created unpublished by default",
			token:    adminToken,
			body:     marshallObj(t, valid),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/content", tt.token, tt.body)
			app.server.ServeHTTP(rec, req)

			tt.path = "/v1/content"
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var itm content.Item
				if err := json.Unmarshal(rec.Body.Bytes(), &itm); err != nil {
					t.Fatalf("unmarshalling Item failed: %v", err)
				}
				if itm.Published {
					t.Error("new items must stay unpublished until reviewed")
				}
			}
		})
	}
}

func TestLibraryOnlyServesPublished(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	published := true
	if _, err := app.contentSvc.Create(ctx, content.NewItem{
		Title:     "Published Story",
		Kind:      "story",
		URL:       "https://cdn.test.in/stories/published.pdf",
		AgeBand:   "6-8",
		Published: &published,
	}); err != nil {
		t.Fatalf("creating item failed: %v", err)
	}
	if _, err := app.contentSvc.Create(ctx, content.NewItem{
		Title:   "Draft Story",
		Kind:    "story",
		URL:     "https://cdn.test.in/stories/draft.pdf",
		AgeBand: "6-8",
	}); err != nil {
		t.Fatalf("creating item failed: %v", err)
	}

	// the family-facing library needs no auth and hides drafts, even when the
	// visitor asks for them
	req, rec := newRequest(http.MethodGet, "/v1/library?published=false")
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var envelope struct {
		Items []content.Item `json:"items"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshalling page failed: %v", err)
	}
	if envelope.Total != 1 {
		t.Errorf("total = %d, want 1", envelope.Total)
	}
	for _, itm := range envelope.Items {
		if !itm.Published {
			t.Errorf("library leaked unpublished item %q", itm.Title)
		}
	}
}
