// Package form stores questionnaires: Form → Section → Module → Question.
package form

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("Formulario no encontrado")
	ErrNothingToUpdate = errors.New("Nada para actualizar")
)

type (
	Repository interface {
		CreateForm(ctx context.Context, f Form, exec ...core.DBExecutor) (Form, error)
		CreateSection(ctx context.Context, s Section, exec ...core.DBExecutor) (Section, error)
		CreateModule(ctx context.Context, m Module, exec ...core.DBExecutor) (Module, error)
		// FindOrCreateQuestion reuses the question with the exact same text.
		FindOrCreateQuestion(ctx context.Context, q Question, exec ...core.DBExecutor) (Question, error)
		CreateFormQuestion(ctx context.Context, fq FormQuestion, exec ...core.DBExecutor) (FormQuestion, error)

		// QueryForms returns form headers, newest first.
		QueryForms(ctx context.Context, exec ...core.DBExecutor) ([]Form, error)
		GetForm(ctx context.Context, id int, exec ...core.DBExecutor) (Form, error)
		// QuerySections, QueryModules and QueryFormQuestions return rows ordered by `orden`.
		QuerySections(ctx context.Context, formID int, exec ...core.DBExecutor) ([]Section, error)
		QueryModules(ctx context.Context, sectionIDs []int, exec ...core.DBExecutor) ([]Module, error)
		QueryFormQuestions(ctx context.Context, moduleIDs []int, exec ...core.DBExecutor) ([]FormQuestion, error)

		UpdateForm(ctx context.Context, f Form, exec ...core.DBExecutor) (Form, error)
		// DeleteFormStructure removes the form's questions placements, modules and sections, keeping the form row.
		DeleteFormStructure(ctx context.Context, formID int, exec ...core.DBExecutor) error
		DeleteForm(ctx context.Context, id int, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
		tx   core.Transactor
	}
)

func NewService(repo Repository, tx core.Transactor) *Service {
	return &Service{repo: repo, tx: tx}
}

// Create stores the form and its nested structure in one transaction.
func (svc *Service) Create(ctx context.Context, nf NewForm) (Form, error) {
	var f Form
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		now := time.Now().UTC()
		f, err = svc.repo.CreateForm(ctx, Form{
			Name:        nf.Name,
			Description: nf.Description,
			Category:    nf.Category,
			Audience:    nf.Audience,
			Status:      nf.Status,
			Version:     nf.Version,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating form")
		}

		for _, ns := range nf.Sections {
			if !ns.complete() {
				continue
			}
			sec, err := svc.repo.CreateSection(ctx, Section{FormID: f.ID, Title: core.CleanString(ns.Title), Order: ns.Order}, exec)
			if err != nil {
				return errors.Wrap(err, "creating section")
			}

			for _, nm := range ns.Modules {
				if !nm.complete() {
					continue
				}
				mod, err := svc.repo.CreateModule(ctx, Module{SectionID: sec.ID, Title: core.CleanString(nm.Title), Order: nm.Order}, exec)
				if err != nil {
					return errors.Wrap(err, "creating module")
				}

				for _, nq := range nm.Questions {
					if !nq.complete() {
						continue
					}
					q, err := svc.repo.FindOrCreateQuestion(ctx, Question{Text: core.CleanString(nq.Text), Category: nq.Category}, exec)
					if err != nil {
						return errors.Wrap(err, "finding question")
					}
					fq := FormQuestion{
						SectionID:  sec.ID,
						QuestionID: q.ID,
						Text:       q.Text,
						Category:   q.Category,
						Type:       nq.Type,
						Order:      nq.Order,
						Options:    nq.Options,
					}
					fq.ModuleID.SetValid(mod.ID)
					if _, err = svc.repo.CreateFormQuestion(ctx, fq, exec); err != nil {
						return errors.Wrap(err, "placing question")
					}
				}
			}
		}
		return nil
	})
	return f, err
}

func (svc *Service) QueryAll(ctx context.Context) ([]Form, error) {
	return svc.repo.QueryForms(ctx)
}

// GetDetail returns the form with its sections, modules and questions, each level ordered by `orden`.
func (svc *Service) GetDetail(ctx context.Context, id int) (Detail, error) {
	f, err := svc.repo.GetForm(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	detail := Detail{Form: f, Sections: make([]SectionDetail, 0)}

	sections, err := svc.repo.QuerySections(ctx, id)
	if err != nil || len(sections) == 0 {
		return detail, err
	}
	sectionIDs := make([]int, 0, len(sections))
	for _, s := range sections {
		sectionIDs = append(sectionIDs, s.ID)
	}

	modules, err := svc.repo.QueryModules(ctx, sectionIDs)
	if err != nil {
		return Detail{}, err
	}
	moduleIDs := make([]int, 0, len(modules))
	for _, m := range modules {
		moduleIDs = append(moduleIDs, m.ID)
	}

	questionsByModule := make(map[int][]FormQuestion)
	if len(moduleIDs) > 0 {
		questions, err := svc.repo.QueryFormQuestions(ctx, moduleIDs)
		if err != nil {
			return Detail{}, err
		}
		for _, q := range questions {
			mid := int(q.ModuleID.Int)
			questionsByModule[mid] = append(questionsByModule[mid], q)
		}
	}

	modulesBySection := make(map[int][]ModuleDetail)
	for _, m := range modules {
		qs := questionsByModule[m.ID]
		if qs == nil {
			qs = make([]FormQuestion, 0)
		}
		modulesBySection[m.SectionID] = append(modulesBySection[m.SectionID], ModuleDetail{Module: m, Questions: qs})
	}

	for _, s := range sections {
		mods := modulesBySection[s.ID]
		if mods == nil {
			mods = make([]ModuleDetail, 0)
		}
		detail.Sections = append(detail.Sections, SectionDetail{Section: s, Modules: mods})
	}
	return detail, nil
}

func (svc *Service) Update(ctx context.Context, id int, uf UpdateForm) (Form, error) {
	f, err := svc.repo.GetForm(ctx, id)
	if err != nil {
		return Form{}, err
	}
	uf.apply(&f)
	f.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateForm(ctx, f)
}

// Delete removes the form and its whole structure in one transaction.
// Questions stay, they may be used by other forms and by committed answers.
func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetForm(ctx, id, exec); err != nil {
			return err
		}
		if err := svc.repo.DeleteFormStructure(ctx, id, exec); err != nil {
			return errors.Wrap(err, "deleting form structure")
		}
		return svc.repo.DeleteForm(ctx, id, exec)
	})
}
