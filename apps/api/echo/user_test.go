package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kitabu/kitabu/core/user"
)

func TestUserLogin(t *testing.T) {
	app := setup(t)
	app.createUser(t, "admin", []string{user.RoleAdmin})

	inactive := app.createUser(t, "gone", []string{user.RoleOps})
	deactivate := user.UpdateUser{Name: inactive.Name, Username: inactive.Username, Email: inactive.Email}
	deactivate.IsActive = new(bool)
	if _, err := app.userSvc.Update(context.Background(), inactive, deactivate); err != nil {
		t.Fatalf("deactivating user failed: %v", err)
	}

	tests := []httpTest{
		{
			name:     "empty credentials",
			body:     marshallObj(t, LoginRequest{}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown user",
			body:     marshallObj(t, LoginRequest{Username: "nobody", Password: "LeMot2Passe"}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     marshallObj(t, LoginRequest{Username: "admin", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     marshallObj(t, LoginRequest{Username: "gone", Password: "LeMot2Passe"}),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name:     "success",
			body:     marshallObj(t, LoginRequest{Username: "admin", Password: "LeMot2Passe"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "success with mixed case",
			body:     marshallObj(t, LoginRequest{Username: "AdMiN", Password: "LeMot2Passe"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.server.ServeHTTP(rec, req)

			tt.path = "/v1/users/login"
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshalling LoginResponse failed: %v", err)
				}
				if resp.Token == "" {
					t.Error("login returned an empty token")
				}
			}
		})
	}
}

func TestUserListPermissions(t *testing.T) {
	app := setup(t)
	adminToken := app.adminToken(t)
	opsToken := app.opsToken(t)

	tests := []httpTest{
		{
			name:     "auth required",
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name:     "ops cannot list users",
			token:    opsToken,
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "admin can list users",
			token:    adminToken,
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users", tt.token)
			app.server.ServeHTTP(rec, req)

			tt.path = "/v1/users"
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var users []user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
					t.Fatalf("unmarshalling users failed: %v", err)
				}
				if len(users) != 2 {
					t.Errorf("len(users) = %d, want 2", len(users))
				}
			}
		})
	}
}

func TestUserRegister(t *testing.T) {
	app := setup(t)
	adminToken := app.adminToken(t)
	opsToken := app.opsToken(t)

	newUsr := user.NewUser{
		Name:            "New Staff",
		Username:        "newstaff",
		Email:           "newstaff@test.in",
		Password:        "LeMot2Passe",
		PasswordConfirm: "LeMot2Passe",
		Roles:           []string{user.RoleOps},
	}
	ownerUsr := newUsr
	ownerUsr.Username = "wannabe"
	ownerUsr.Email = "wannabe@test.in"
	ownerUsr.Roles = []string{user.RoleAdminOwner}

	tests := []httpTest{
		{
			name:     "ops cannot register",
			token:    opsToken,
			body:     marshallObj(t, newUsr),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "cannot grant a role above your own",
			token:    adminToken,
			body:     marshallObj(t, ownerUsr),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"roles": errNoPermsToSetRoles}),
		},
		{
			name:     "admin registers ops staff",
			token:    adminToken,
			body:     marshallObj(t, newUsr),
			wantCode: http.StatusCreated,
		},
		{
			name:     "duplicate username",
			token:    adminToken,
			body:     marshallObj(t, newUsr),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, tt.body)
			app.server.ServeHTTP(rec, req)

			tt.path = "/v1/users/register"
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestUserTokenRefresh(t *testing.T) {
	app := setup(t)
	token := app.adminToken(t)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshalling LoginResponse failed: %v", err)
	}
	if resp.Token == "" {
		t.Error("refresh returned an empty token")
	}
}
