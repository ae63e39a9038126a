package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/booking"
	"github.com/kitabu/kitabu/core/coach"
	"github.com/kitabu/kitabu/core/content"
	"github.com/kitabu/kitabu/core/enrollment"
	"github.com/kitabu/kitabu/core/lead"
	"github.com/kitabu/kitabu/core/settings"
	"github.com/kitabu/kitabu/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		LeadSvc       lead.ServiceInterface
		CoachSvc      coach.ServiceInterface
		BookingSvc    booking.ServiceInterface
		EnrollmentSvc enrollment.ServiceInterface
		ContentSvc    content.ServiceInterface
		SettingsSvc   settings.ServiceInterface
		UserSvc       user.ServiceInterface
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
		ShutdownSignal() chan os.Signal
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metricsMiddleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/healthz", healthz)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	jwt := ConfigureAuth(conf)

	registerLeadAPI(v1, jwt, s.opts.LeadSvc, s.opts.Validate)
	registerCoachAPI(v1, jwt, s.opts.CoachSvc, s.opts.Validate)
	registerBookingAPI(v1, jwt, s.opts.BookingSvc, s.opts.Validate)
	registerEnrollmentAPI(v1, jwt, s.opts.EnrollmentSvc, s.opts.Validate)
	registerContentAPI(v1, jwt, s.opts.ContentSvc, s.opts.Validate)
	registerSettingsAPI(v1, jwt, s.opts.SettingsSvc, s.opts.Validate)
	registerUserAPI(v1, jwt, s.opts.UserSvc, s.opts.Validate)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

// ShutdownSignal is the channel main listens on for graceful shutdown;
// OS signals and unrecoverable in-flight errors both land here.
func (s *server) ShutdownSignal() chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Kitabu API!")
}

func healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
