package student

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/notify"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("Estudiante no encontrado")
	ErrTherapistNotFound = core.NewNotFoundError("terapeuta no encontrado")
	ErrAccessCodeTaken   = errors.New("el código de acceso generado ya está en uso")
	ErrNothingToUpdate   = errors.New("Nada para actualizar")
)

type (
	Repository interface {
		// CreateStudent returns ErrAccessCodeTaken when the code collides with an existing one
		// and ErrTherapistNotFound when TherapistID references no therapist.
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Student, error)
		// GetStudent looks a student up by GetFilter.ID, or by GetFilter.AccessCode when ID is zero.
		GetStudent(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudentLinks(ctx context.Context, id int, exec ...core.DBExecutor) error
		DeleteStudent(ctx context.Context, id int, exec ...core.DBExecutor) error
	}

	Notifier interface {
		Dispatch(ctx context.Context, notice notify.AccessCodeNotice) notify.Report
		DispatchAsync(notice notify.AccessCodeNotice)
	}

	QueryFilter struct {
		TherapistID int // zero means any
		Ordering    []core.DBOrdering
	}

	GetFilter struct {
		ID         int
		AccessCode string
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		notifier Notifier
		codeLen  int
	}
)

func NewService(repo Repository, tx core.Transactor, notifier Notifier, codeLen int) *Service {
	return &Service{repo: repo, tx: tx, notifier: notifier, codeLen: codeLen}
}

// Create stores a new student with a fresh access code and queues the code for the listed guardians & teachers.
// therapistID is used when the payload names no therapist.
func (svc *Service) Create(ctx context.Context, ns NewStudent, therapistID int) (Created, error) {
	code, err := GenerateAccessCode(svc.codeLen)
	if err != nil {
		return Created{}, errors.Wrap(err, "generating access code")
	}
	if !ns.TherapistID.Valid && therapistID > 0 {
		ns.TherapistID = null.IntFrom(therapistID)
	}

	s, err := svc.repo.CreateStudent(ctx, Student{
		Name:        ns.Name,
		LastName:    ns.LastName,
		Email:       ns.Email,
		AccessCode:  code,
		TherapistID: ns.TherapistID,
		Document:    ns.Document,
		BirthDate:   ns.BirthDate,
		Age:         ns.Age,
		Grade:       ns.Grade,
		School:      ns.School,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Created{}, err
	}

	notice := notify.AccessCodeNotice{
		Recipients:  append(ns.Guardians.recipients(notify.RoleGuardian), ns.Teachers.recipients(notify.RoleTeacher)...),
		StudentName: s.FullName(),
		Code:        s.AccessCode,
	}
	notified := make([]string, 0, len(notice.Recipients))
	for _, r := range notice.Recipients {
		notified = append(notified, r.Email)
	}
	if len(notified) > 0 {
		svc.notifier.DispatchAsync(notice)
	}
	return Created{Student: s, Notified: notified}, nil
}

func (svc *Service) QueryAll(ctx context.Context, ordering ...core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, QueryFilter{Ordering: ordering})
}

func (svc *Service) QueryByTherapist(ctx context.Context, therapistID int, ordering ...core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, QueryFilter{TherapistID: therapistID, Ordering: ordering})
}

func (svc *Service) GetByID(ctx context.Context, id int) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByCode(ctx context.Context, code string) (Student, error) {
	code = core.CleanString(code)
	if code == "" {
		return Student{}, ErrNotFound
	}
	return svc.repo.GetStudent(ctx, GetFilter{AccessCode: code})
}

func (svc *Service) Update(ctx context.Context, id int, us UpdateStudent) (Student, error) {
	s, err := svc.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	us.apply(&s)
	return svc.repo.UpdateStudent(ctx, s)
}

func (svc *Service) AssignTherapist(ctx context.Context, id int, at AssignTherapist) (Student, error) {
	s, err := svc.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	s.TherapistID = null.IntFrom(at.TherapistID)
	return svc.repo.UpdateStudent(ctx, s)
}

// Delete removes the student together with its guardian & teacher links.
func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.DeleteStudentLinks(ctx, id, exec); err != nil {
			return errors.Wrap(err, "deleting student links")
		}
		return svc.repo.DeleteStudent(ctx, id, exec)
	})
}

// ResendCode e-mails the access code to rc.Recipients and waits for every delivery.
func (svc *Service) ResendCode(ctx context.Context, id int, rc ResendCode) (Resent, error) {
	s, err := svc.GetByID(ctx, id)
	if err != nil {
		return Resent{}, err
	}
	if rc.Regenerate {
		code, err := GenerateAccessCode(svc.codeLen)
		if err != nil {
			return Resent{}, errors.Wrap(err, "generating access code")
		}
		s.AccessCode = code
		if s, err = svc.repo.UpdateStudent(ctx, s); err != nil {
			return Resent{}, err
		}
	}

	report := svc.notifier.Dispatch(ctx, notify.AccessCodeNotice{
		Recipients:  rc.Recipients.recipients(notify.RoleGuardian),
		StudentName: s.FullName(),
		Code:        s.AccessCode,
	})
	return Resent{StudentID: s.ID, AccessCode: s.AccessCode, Report: report}, nil
}
