package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/booking"
	"github.com/kitabu/kitabu/core/coach"
	"github.com/kitabu/kitabu/core/content"
	"github.com/kitabu/kitabu/core/enrollment"
	"github.com/kitabu/kitabu/core/lead"
	"github.com/kitabu/kitabu/core/settings"
	"github.com/kitabu/kitabu/core/user"
	emailsvc "github.com/kitabu/kitabu/services/email"
	meetingsvc "github.com/kitabu/kitabu/services/meeting"
	smssvc "github.com/kitabu/kitabu/services/sms"
	rediscache "github.com/kitabu/kitabu/storage/cache"
	inmemdb "github.com/kitabu/kitabu/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	server Server
	conf   *core.Config

	leadSvc     lead.ServiceInterface
	coachSvc    coach.ServiceInterface
	bookingSvc  booking.ServiceInterface
	enrollSvc   enrollment.ServiceInterface
	contentSvc  content.ServiceInterface
	settingsSvc settings.ServiceInterface
	userSvc     user.ServiceInterface
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	smsSvc := smssvc.NewConsoleServiceMock()
	emailsvc.ClearSentMessages()
	smssvc.ClearSentMessages()
	core.ParseEmailTemplates(conf, core.NopLogger{})

	leadSvc := lead.NewService(inmemdb.NewLeadRepository(db, conf.QualifyingScore), mailSvc, smsSvc, conf, core.NopLogger{})
	coachSvc := coach.NewService(inmemdb.NewCoachRepository(db), mailSvc, conf, core.NopLogger{})
	bookingSvc := booking.NewService(
		inmemdb.NewBookingRepository(db), coachSvc, rediscache.NewMemory(),
		mailSvc, smsSvc, meetingsvc.NewJitsiService(conf), conf, core.NopLogger{},
	)
	enrollSvc := enrollment.NewService(inmemdb.NewEnrollmentRepository(db), bookingSvc, coachSvc, conf, core.NopLogger{})
	contentSvc := content.NewService(inmemdb.NewContentRepository(db))
	settingsSvc := settings.NewService(inmemdb.NewSettingsRepository(db))
	userSvc := user.NewService(inmemdb.NewUserRepository(db), mailSvc, conf)

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	server := NewServer(&Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         core.NopLogger{},
		Validate:       validate,
		Translator:     translator,
		LeadSvc:        leadSvc,
		CoachSvc:       coachSvc,
		BookingSvc:     bookingSvc,
		EnrollmentSvc:  enrollSvc,
		ContentSvc:     contentSvc,
		SettingsSvc:    settingsSvc,
		UserSvc:        userSvc,
	})

	return &testApp{
		server:      server,
		conf:        conf,
		leadSvc:     leadSvc,
		coachSvc:    coachSvc,
		bookingSvc:  bookingSvc,
		enrollSvc:   enrollSvc,
		contentSvc:  contentSvc,
		settingsSvc: settingsSvc,
		userSvc:     userSvc,
	}
}

func (app *testApp) createUser(t *testing.T, uname string, roles []string) user.User {
	t.Helper()
	usr, err := app.userSvc.Create(context.Background(), user.NewUser{
		Name:     "Test " + uname,
		Username: uname,
		Email:    uname + "@test.in",
		Password: "LeMot2Passe",
		Roles:    roles,
	})
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func (app *testApp) adminToken(t *testing.T) string {
	return getToken(t, app.createUser(t, "admin", []string{user.RoleAdmin}))
}

func (app *testApp) opsToken(t *testing.T) string {
	return getToken(t, app.createUser(t, "ops", []string{user.RoleOps}))
}

// createCoach sets up a tier and a coach available around the clock so slot
// generation works no matter when the tests run.
func (app *testApp) createCoach(t *testing.T) coach.Coach {
	t.Helper()
	ctx := context.Background()

	grp, err := app.coachSvc.CreateGroup(ctx, coach.NewGroup{
		Name:               "Standard",
		LeadCostPercent:    20,
		CoachCostPercent:   50,
		PlatformFeePercent: 30,
	})
	if err != nil {
		t.Fatalf("createCoach() failed: %v", err)
	}

	windows := make([]coach.AvailabilityWindow, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		windows = append(windows, coach.AvailabilityWindow{Weekday: wd, StartMinute: 0, EndMinute: 1440})
	}
	cch, err := app.coachSvc.Create(ctx, coach.NewCoach{
		Name:    "Coach A",
		Email:   "coach.a@test.in",
		Phone:   "9876500001",
		GroupID: grp.ID,
		Windows: windows,
	})
	if err != nil {
		t.Fatalf("createCoach() failed: %v", err)
	}
	return cch
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("%s: code = %d, want %d; body = %s", tt.path, rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	equal, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Fatalf("jsonBytesEqual() failed: %v", err)
	}
	if !equal {
		t.Errorf("%s: body = %s, want %s", tt.path, rec.Body.String(), tt.wantData)
	}
}
