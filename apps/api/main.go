package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/evasensorial/eva/apps/api/echo"
	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/answer"
	"github.com/evasensorial/eva/core/form"
	"github.com/evasensorial/eva/core/notify"
	"github.com/evasensorial/eva/core/registration"
	"github.com/evasensorial/eva/core/student"
	"github.com/evasensorial/eva/core/therapist"
	emailsvc "github.com/evasensorial/eva/services/email"
	logsvc "github.com/evasensorial/eva/services/logger"
	"github.com/evasensorial/eva/storage/database"
	inmemdb "github.com/evasensorial/eva/storage/database/inmem"
	"github.com/evasensorial/eva/storage/database/sqlxrepos"
)

const memoryEngine = "memory"

type repositories struct {
	tx           core.Transactor
	therapists   therapist.Repository
	students     student.Repository
	registration registration.Repository
	forms        form.Repository
	answers      answer.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(os.Stdout, conf)

	repos, closeDB, err := setUpRepositories(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err := closeDB(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, os.Stdout)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
	}
	dispatcher := notify.NewDispatcher(conf, mailSvc, logger)

	therapistSvc := therapist.NewService(repos.therapists)
	studentSvc := student.NewService(repos.students, repos.tx, dispatcher, conf.AccessCodeLength)
	registrationSvc := registration.NewService(conf, repos.registration, repos.students, repos.answers, repos.tx)
	formSvc := form.NewService(repos.forms, repos.tx)
	answerSvc := answer.NewService(conf, repos.answers, repos.students)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	therapist.InitValidators(validate, translator)

	if err = core.ParseEmailTemplates(conf); err != nil {
		logger.Fatal("parsing email templates", err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		SignalShutdown:  func() { shutdown <- syscall.SIGTERM },
		TherapistSvc:    therapistSvc,
		StudentSvc:      studentSvc,
		RegistrationSvc: registrationSvc,
		FormSvc:         formSvc,
		AnswerSvc:       answerSvc,
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}

	// let detached access code e-mails finish
	dispatcher.Wait()
}

// setUpRepositories returns PostgreSQL repositories, or in-memory ones when database.engine is "memory".
func setUpRepositories(conf *core.Config) (repositories, func() error, error) {
	if conf.Database.Engine == memoryEngine {
		db := inmemdb.Open()
		return repositories{
			tx:           db,
			therapists:   inmemdb.NewTherapistRepository(db),
			students:     inmemdb.NewStudentRepository(db),
			registration: inmemdb.NewRegistrationRepository(db),
			forms:        inmemdb.NewFormRepository(db),
			answers:      inmemdb.NewAnswerRepository(db),
		}, func() error { return nil }, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return repositories{}, nil, err
	}
	return repositories{
		tx:           database.NewTransactor(db),
		therapists:   sqlxrepos.NewTherapistRepository(db),
		students:     sqlxrepos.NewStudentRepository(db),
		registration: sqlxrepos.NewRegistrationRepository(db),
		forms:        sqlxrepos.NewFormRepository(db),
		answers:      sqlxrepos.NewAnswerRepository(db),
	}, db.Close, nil
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
