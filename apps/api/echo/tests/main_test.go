package tests

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

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
	inmemdb "github.com/evasensorial/eva/storage/database/inmem"
)

type testApp struct {
	server     echoapi.Server
	conf       *core.Config
	db         *inmemdb.DB
	mail       *emailsvc.ConsoleServiceMock
	dispatcher *notify.Dispatcher

	therapistRepo    therapist.Repository
	studentRepo      student.Repository
	registrationRepo registration.Repository
	answerRepo       answer.Repository
	formRepo         form.Repository
}

func newTestConfig() *core.Config {
	conf := &core.Config{
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		AppName:          "EVA",
		SecretKey:        "test-secret-key",
		FrontendBaseURL:  "http://localhost:5173",
		PortalBaseURL:    "http://localhost:5173/register",
		AccessCodeLength: 8,
	}
	conf.Database.Engine = "memory"
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Registration.TokenTTL = 24 * time.Hour
	conf.Reports.DefaultLimit = 50
	conf.Reports.MaxLimit = 200
	conf.Mail.Timeout = 5 * time.Second
	conf.Mail.Concurrency = 2
	return conf
}

func setup(t *testing.T) *testApp {
	conf := newTestConfig()
	logger := logsvc.NewRollbarLogger(io.Discard, conf)

	// set up DB & repos
	db := inmemdb.Open()
	app := &testApp{
		conf:             conf,
		db:               db,
		mail:             emailsvc.NewConsoleServiceMock(conf),
		therapistRepo:    inmemdb.NewTherapistRepository(db),
		studentRepo:      inmemdb.NewStudentRepository(db),
		registrationRepo: inmemdb.NewRegistrationRepository(db),
		answerRepo:       inmemdb.NewAnswerRepository(db),
		formRepo:         inmemdb.NewFormRepository(db),
	}
	app.dispatcher = notify.NewDispatcher(conf, app.mail, logger)
	t.Cleanup(app.dispatcher.Wait)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	therapist.InitValidators(validate, translator)
	if err := core.ParseEmailTemplates(conf); err != nil {
		t.Fatalf("ParseEmailTemplates() failed: %v", err)
	}

	// set up server
	app.server = echoapi.NewServer(&echoapi.Options{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		DisableReqLogs:  true,
		TherapistSvc:    therapist.NewService(app.therapistRepo),
		StudentSvc:      student.NewService(app.studentRepo, db, app.dispatcher, conf.AccessCodeLength),
		RegistrationSvc: registration.NewService(conf, app.registrationRepo, app.studentRepo, app.answerRepo, db),
		FormSvc:         form.NewService(app.formRepo, db),
		AnswerSvc:       answer.NewService(conf, app.answerRepo, app.studentRepo),
	})
	return app
}

// do sends body (marshalled unless it already is []byte or string) and returns the recorded response.
func (app *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var data []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		data = b
	case string:
		data = []byte(b)
	default:
		data = marshalObj(t, b)
	}
	req, rec := newAuthRequest(method, path, token, data)
	app.server.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) createTherapist(t *testing.T, name, email, pwd string) therapist.Therapist {
	th := therapist.Therapist{Name: name, Email: email, CreatedAt: time.Now().UTC()}
	if err := th.SetPassword(pwd); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	th, err := app.therapistRepo.CreateTherapist(context.Background(), th)
	if err != nil {
		t.Fatalf("CreateTherapist() failed: %v", err)
	}
	return th
}

func (app *testApp) createStudent(t *testing.T, name string, therapistID int) student.Student {
	code, err := student.GenerateAccessCode(app.conf.AccessCodeLength)
	if err != nil {
		t.Fatalf("GenerateAccessCode() failed: %v", err)
	}
	s := student.Student{Name: name, AccessCode: code, CreatedAt: time.Now().UTC()}
	if therapistID > 0 {
		s.TherapistID = null.IntFrom(therapistID)
	}
	s, err = app.studentRepo.CreateStudent(context.Background(), s)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

func (app *testApp) getToken(t *testing.T, th therapist.Therapist) string {
	token, err := echoapi.GenerateToken(echoapi.GetTherapistClaims(th, app.conf), app.conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}
