package student_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/notify"
	"github.com/evasensorial/eva/core/student"
	"github.com/evasensorial/eva/core/therapist"
	inmemdb "github.com/evasensorial/eva/storage/database/inmem"
)

type notifierMock struct {
	mu      sync.Mutex
	queued  []notify.AccessCodeNotice
	waited  []notify.AccessCodeNotice
	failing map[string]bool
}

func (n *notifierMock) Dispatch(_ context.Context, notice notify.AccessCodeNotice) notify.Report {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waited = append(n.waited, notice)

	report := notify.Report{Sent: []string{}, Failed: []notify.Failure{}}
	for _, r := range notice.Recipients {
		if n.failing[r.Email] {
			report.Failed = append(report.Failed, notify.Failure{To: r.Email, Error: "rejected"})
			continue
		}
		report.Sent = append(report.Sent, r.Email)
	}
	return report
}

func (n *notifierMock) DispatchAsync(notice notify.AccessCodeNotice) {
	n.mu.Lock()
	n.queued = append(n.queued, notice)
	n.mu.Unlock()
}

type fixture struct {
	db       *inmemdb.DB
	repo     student.Repository
	notifier *notifierMock
	svc      *student.Service
	ana      therapist.Therapist
}

func newFixture(t *testing.T) fixture {
	db := inmemdb.Open()
	f := fixture{
		db:       db,
		repo:     inmemdb.NewStudentRepository(db),
		notifier: &notifierMock{failing: make(map[string]bool)},
	}
	f.svc = student.NewService(f.repo, db, f.notifier, 8)

	ana, err := inmemdb.NewTherapistRepository(db).CreateTherapist(context.Background(), therapist.Therapist{
		Name: "Ana Ruiz", Email: "ana@eva.co", CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateTherapist() failed: %v", err)
	}
	f.ana = ana
	return f
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, student.NewStudent{
		Name:      "Sofía",
		LastName:  null.StringFrom("Gómez"),
		Guardians: student.EmailList{"mama@x.co", "papa@x.co"},
		Teachers:  student.EmailList{"profe@x.co"},
	}, f.ana.ID)
	if !assert.NoError(t, err) {
		return
	}
	s := created.Student
	assert.NotZero(t, s.ID)
	assert.Len(t, s.AccessCode, 8)
	assert.Equal(t, f.ana.ID, s.TherapistID.Int)
	assert.Equal(t, []string{"mama@x.co", "papa@x.co", "profe@x.co"}, created.Notified)

	if assert.Len(t, f.notifier.queued, 1) {
		notice := f.notifier.queued[0]
		assert.Equal(t, "Sofía Gómez", notice.StudentName)
		assert.Equal(t, s.AccessCode, notice.Code)
		if assert.Len(t, notice.Recipients, 3) {
			assert.Equal(t, notify.RoleGuardian, notice.Recipients[0].Role)
			assert.Equal(t, notify.RoleTeacher, notice.Recipients[2].Role)
		}
	}

	got, err := f.svc.GetByCode(ctx, " "+s.AccessCode+" ")
	if assert.NoError(t, err) {
		assert.Equal(t, s.ID, got.ID)
	}

	// nobody to notify
	created, err = f.svc.Create(ctx, student.NewStudent{Name: "Tomás"}, 0)
	if assert.NoError(t, err) {
		assert.Empty(t, created.Notified)
		assert.False(t, created.Student.TherapistID.Valid)
		assert.NotEqual(t, s.AccessCode, created.Student.AccessCode)
	}
	assert.Len(t, f.notifier.queued, 1)

	// an explicit therapist wins over the caller
	_, err = f.svc.Create(ctx, student.NewStudent{Name: "Otra", TherapistID: null.IntFrom(999)}, f.ana.ID)
	assert.Equal(t, student.ErrTherapistNotFound, err)
}

func TestService_GetByCode_blank(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetByCode(context.Background(), "  ")
	assert.Equal(t, student.ErrNotFound, err)
}

func TestService_ResendCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.failing["rebota@x.co"] = true

	created, err := f.svc.Create(ctx, student.NewStudent{Name: "Sofía"}, f.ana.ID)
	if !assert.NoError(t, err) {
		return
	}
	id, code := created.Student.ID, created.Student.AccessCode

	res, err := f.svc.ResendCode(ctx, id, student.ResendCode{Recipients: student.EmailList{"mama@x.co", "rebota@x.co"}})
	if assert.NoError(t, err) {
		assert.Equal(t, code, res.AccessCode)
		assert.Equal(t, []string{"mama@x.co"}, res.Sent)
		if assert.Len(t, res.Failed, 1) {
			assert.Equal(t, "rebota@x.co", res.Failed[0].To)
		}
	}

	res, err = f.svc.ResendCode(ctx, id, student.ResendCode{Recipients: student.EmailList{"mama@x.co"}, Regenerate: true})
	if assert.NoError(t, err) {
		assert.NotEqual(t, code, res.AccessCode)
		s, err := f.svc.GetByID(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, res.AccessCode, s.AccessCode)
		if assert.Len(t, f.notifier.waited, 2) {
			assert.Equal(t, res.AccessCode, f.notifier.waited[1].Code)
		}
	}
	_, err = f.svc.GetByCode(ctx, code)
	assert.True(t, core.IsNotFound(err))

	_, err = f.svc.ResendCode(ctx, 999, student.ResendCode{Recipients: student.EmailList{"mama@x.co"}})
	assert.Equal(t, student.ErrNotFound, err)
}

func TestService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, student.NewStudent{Name: "Sofía"}, 0)
	if !assert.NoError(t, err) {
		return
	}
	id := created.Student.ID

	grade := "3B"
	s, err := f.svc.Update(ctx, id, student.UpdateStudent{Grade: &grade})
	if assert.NoError(t, err) {
		assert.Equal(t, "3B", s.Grade.String)
		assert.Equal(t, "Sofía", s.Name)
	}

	s, err = f.svc.AssignTherapist(ctx, id, student.AssignTherapist{TherapistID: f.ana.ID})
	if assert.NoError(t, err) {
		assert.Equal(t, f.ana.ID, s.TherapistID.Int)
	}
	mine, err := f.svc.QueryByTherapist(ctx, f.ana.ID)
	if assert.NoError(t, err) {
		assert.Len(t, mine, 1)
	}

	_, err = f.svc.Update(ctx, 999, student.UpdateStudent{Grade: &grade})
	assert.Equal(t, student.ErrNotFound, err)

	assert.NoError(t, f.svc.Delete(ctx, id))
	_, err = f.svc.GetByID(ctx, id)
	assert.Equal(t, student.ErrNotFound, err)
	assert.True(t, core.IsNotFound(f.svc.Delete(ctx, id)))

	all, err := f.svc.QueryAll(ctx)
	if assert.NoError(t, err) {
		assert.Empty(t, all)
	}
}
