package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/kitabu/kitabu/apps/api/echo"
	"github.com/kitabu/kitabu/core"
	"github.com/kitabu/kitabu/core/booking"
	"github.com/kitabu/kitabu/core/coach"
	"github.com/kitabu/kitabu/core/content"
	"github.com/kitabu/kitabu/core/enrollment"
	"github.com/kitabu/kitabu/core/lead"
	"github.com/kitabu/kitabu/core/settings"
	"github.com/kitabu/kitabu/core/user"
	emailsvc "github.com/kitabu/kitabu/services/email"
	logsvc "github.com/kitabu/kitabu/services/logger"
	meetingsvc "github.com/kitabu/kitabu/services/meeting"
	smssvc "github.com/kitabu/kitabu/services/sms"
	rediscache "github.com/kitabu/kitabu/storage/cache"
	"github.com/kitabu/kitabu/storage/database"
	sqlxrepos "github.com/kitabu/kitabu/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()
	sdb := sqlx.NewDb(db, "postgres")

	// set up cache
	cache := rediscache.New(conf.Redis)
	if err = cache.Ping(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("pinging redis: %v", err), err)
	}
	defer func() {
		if err = cache.Close(); err != nil {
			logger.Error("closing redis", err)
		}
	}()

	// set up notification services
	var mailSvc core.EmailService
	var smsSvc core.SMSService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
		smsSvc = smssvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
		smsSvc, err = smssvc.NewSNSService(conf, logger)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up SNS: %v", err), err)
		}
	}
	meetSvc := meetingsvc.NewJitsiService(conf)

	// set up domain services
	coachSvc := coach.NewService(sqlxrepos.NewCoachRepository(sdb), mailSvc, conf, logger)
	leadSvc := lead.NewService(sqlxrepos.NewLeadRepository(sdb, conf.QualifyingScore), mailSvc, smsSvc, conf, logger)
	bookingSvc := booking.NewService(sqlxrepos.NewBookingRepository(sdb), coachSvc, cache, mailSvc, smsSvc, meetSvc, conf, logger)
	enrollmentSvc := enrollment.NewService(sqlxrepos.NewEnrollmentRepository(sdb), bookingSvc, coachSvc, conf, logger)
	contentSvc := content.NewService(sqlxrepos.NewContentRepository(sdb))
	settingsSvc := settings.NewService(sqlxrepos.NewSettingsRepository(sdb))
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(sdb), mailSvc, conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		&echoapi.Options{
			Address:       conf.Server.Host,
			Conf:          conf,
			Logger:        logger,
			Validate:      validate,
			Translator:    translator,
			LeadSvc:       leadSvc,
			CoachSvc:      coachSvc,
			BookingSvc:    bookingSvc,
			EnrollmentSvc: enrollmentSvc,
			ContentSvc:    contentSvc,
			SettingsSvc:   settingsSvc,
			UserSvc:       usrSvc,
		},
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	signal.Notify(server.ShutdownSignal(), os.Interrupt, syscall.SIGTERM)

	select {
	case err = <-serverErrors:
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Stop(ctx); err != nil {
			logger.Fatal(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
