package inmemdb

import (
	"context"
	"sort"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/form"
)

type formRepository struct {
	db *DB
}

var _ form.Repository = (*formRepository)(nil)

func NewFormRepository(db *DB) form.Repository {
	return &formRepository{db: db}
}

func (repo *formRepository) CreateForm(_ context.Context, f form.Form, _ ...core.DBExecutor) (form.Form, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	f.ID = repo.db.data.nextID("formularios")
	repo.db.data.forms[f.ID] = f
	return f, nil
}

func (repo *formRepository) CreateSection(_ context.Context, s form.Section, _ ...core.DBExecutor) (form.Section, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s.ID = repo.db.data.nextID("formulario_secciones")
	repo.db.data.sections[s.ID] = s
	return s, nil
}

func (repo *formRepository) CreateModule(_ context.Context, m form.Module, _ ...core.DBExecutor) (form.Module, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	m.ID = repo.db.data.nextID("formulario_modulos")
	repo.db.data.modules[m.ID] = m
	return m, nil
}

func (repo *formRepository) FindOrCreateQuestion(_ context.Context, q form.Question, _ ...core.DBExecutor) (form.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, stored := range repo.db.data.questions {
		if stored.Text == q.Text {
			return stored, nil
		}
	}
	q.ID = repo.db.data.nextID("preguntas")
	repo.db.data.questions[q.ID] = q
	return q, nil
}

func (repo *formRepository) CreateFormQuestion(_ context.Context, fq form.FormQuestion, _ ...core.DBExecutor) (form.FormQuestion, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	fq.ID = repo.db.data.nextID("formulario_preguntas")
	repo.db.data.formQuestions[fq.ID] = fq
	return fq, nil
}

func (repo *formRepository) QueryForms(_ context.Context, _ ...core.DBExecutor) ([]form.Form, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	forms := make([]form.Form, 0, len(repo.db.data.forms))
	for _, f := range repo.db.data.forms {
		forms = append(forms, f)
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].ID > forms[j].ID })
	return forms, nil
}

func (repo *formRepository) GetForm(_ context.Context, id int, _ ...core.DBExecutor) (form.Form, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if f, ok := repo.db.data.forms[id]; ok {
		return f, nil
	}
	return form.Form{}, form.ErrNotFound
}

func (repo *formRepository) QuerySections(_ context.Context, formID int, _ ...core.DBExecutor) ([]form.Section, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sections := make([]form.Section, 0)
	for _, s := range repo.db.data.sections {
		if s.FormID == formID {
			sections = append(sections, s)
		}
	}
	sort.Slice(sections, func(i, j int) bool {
		if sections[i].Order != sections[j].Order {
			return sections[i].Order < sections[j].Order
		}
		return sections[i].ID < sections[j].ID
	})
	return sections, nil
}

func idSet(ids []int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (repo *formRepository) QueryModules(_ context.Context, sectionIDs []int, _ ...core.DBExecutor) ([]form.Module, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := idSet(sectionIDs)
	modules := make([]form.Module, 0)
	for _, m := range repo.db.data.modules {
		if wanted[m.SectionID] {
			modules = append(modules, m)
		}
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Order != modules[j].Order {
			return modules[i].Order < modules[j].Order
		}
		return modules[i].ID < modules[j].ID
	})
	return modules, nil
}

func (repo *formRepository) QueryFormQuestions(_ context.Context, moduleIDs []int, _ ...core.DBExecutor) ([]form.FormQuestion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := idSet(moduleIDs)
	questions := make([]form.FormQuestion, 0)
	for _, fq := range repo.db.data.formQuestions {
		if fq.ModuleID.Valid && wanted[int(fq.ModuleID.Int)] {
			q := repo.db.data.questions[fq.QuestionID]
			fq.Text, fq.Category = q.Text, q.Category
			questions = append(questions, fq)
		}
	}
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].Order != questions[j].Order {
			return questions[i].Order < questions[j].Order
		}
		return questions[i].ID < questions[j].ID
	})
	return questions, nil
}

func (repo *formRepository) UpdateForm(_ context.Context, f form.Form, _ ...core.DBExecutor) (form.Form, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.data.forms[f.ID]
	if !ok {
		return form.Form{}, form.ErrNotFound
	}
	f.CreatedAt = stored.CreatedAt
	repo.db.data.forms[f.ID] = f
	return f, nil
}

func (repo *formRepository) DeleteFormStructure(_ context.Context, formID int, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	data := repo.db.data
	for sid, s := range data.sections {
		if s.FormID != formID {
			continue
		}
		for id, fq := range data.formQuestions {
			if fq.SectionID == sid {
				delete(data.formQuestions, id)
			}
		}
		for id, m := range data.modules {
			if m.SectionID == sid {
				delete(data.modules, id)
			}
		}
		delete(data.sections, sid)
	}
	return nil
}

func (repo *formRepository) DeleteForm(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.data.forms[id]; !ok {
		return form.ErrNotFound
	}
	delete(repo.db.data.forms, id)
	return nil
}
