// Package answer reports committed answers joined back to their form structure.
package answer

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/student"
)

var (
	// errors
	ErrStudentNotFound = core.NewNotFoundError("Estudiante no encontrado por codigo_acceso")
)

type (
	Repository interface {
		CreateAnswers(ctx context.Context, answers []Answer, exec ...core.DBExecutor) (int, error)
		// QueryAnswers returns one page of rows matching filter and the total number of matching rows.
		// Rows are ordered by form id (nulls last), section, module and question order (nulls last),
		// then answer date and id.
		QueryAnswers(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Row, int, error)
		QueryTherapistAnswers(ctx context.Context, therapistID int, exec ...core.DBExecutor) ([]TherapistRow, error)
	}

	StudentFinder interface {
		GetStudent(ctx context.Context, filter student.GetFilter, exec ...core.DBExecutor) (student.Student, error)
	}

	Service struct {
		repo         Repository
		students     StudentFinder
		defaultLimit int
		maxLimit     int
	}
)

func NewService(conf *core.Config, repo Repository, students StudentFinder) *Service {
	svc := &Service{
		repo:         repo,
		students:     students,
		defaultLimit: conf.Reports.DefaultLimit,
		maxLimit:     conf.Reports.MaxLimit,
	}
	if svc.maxLimit < 1 {
		svc.maxLimit = 200
	}
	if svc.defaultLimit < 1 || svc.defaultLimit > svc.maxLimit {
		svc.defaultLimit = svc.maxLimit
	}
	return svc
}

// paginate clamps page to >= 1 and limit to [1, maxLimit], defaulting limit when unset.
func (svc *Service) paginate(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit == 0:
		limit = svc.defaultLimit
	case limit < 1:
		limit = 1
	case limit > svc.maxLimit:
		limit = svc.maxLimit
	}
	return page, limit, (page - 1) * limit
}

func (svc *Service) ListByStudent(ctx context.Context, studentID int, q Query) (Page, error) {
	page, limit, offset := svc.paginate(q.Page, q.Limit)
	filter := Filter{
		StudentID:  studentID,
		AnsweredBy: q.AnsweredBy,
		FormID:     q.FormID,
		SectionID:  q.SectionID,
		ModuleID:   q.ModuleID,
		Limit:      limit,
		Offset:     offset,
	}
	// day bounds are inclusive
	if q.From != "" {
		from, err := core.ParseDate(q.From)
		if err != nil {
			return Page{}, core.NewValidationError(err, core.FieldError{Field: "desde", Error: err.Error()})
		}
		filter.From = null.TimeFrom(from)
	}
	if q.To != "" {
		to, err := core.ParseDate(q.To)
		if err != nil {
			return Page{}, core.NewValidationError(err, core.FieldError{Field: "hasta", Error: err.Error()})
		}
		filter.Before = null.TimeFrom(to.Add(24 * time.Hour))
	}

	rows, total, err := svc.repo.QueryAnswers(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	if rows == nil {
		rows = make([]Row, 0)
	}
	return Page{StudentID: studentID, Page: page, Limit: limit, Total: total, Rows: rows}, nil
}

func (svc *Service) ListByCode(ctx context.Context, code string, q Query) (Page, error) {
	s, err := svc.students.GetStudent(ctx, student.GetFilter{AccessCode: core.CleanString(code)})
	if err != nil {
		if core.IsNotFound(err) {
			return Page{}, ErrStudentNotFound
		}
		return Page{}, err
	}
	return svc.ListByStudent(ctx, s.ID, q)
}

func (svc *Service) ListByTherapist(ctx context.Context, therapistID int) ([]TherapistRow, error) {
	rows, err := svc.repo.QueryTherapistAnswers(ctx, therapistID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = make([]TherapistRow, 0)
	}
	return rows, nil
}
