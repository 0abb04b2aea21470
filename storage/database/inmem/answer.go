package inmemdb

import (
	"context"
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/answer"
	"github.com/evasensorial/eva/core/form"
)

const unplacedFormID = 999999

type answerRepository struct {
	db *DB
}

var _ answer.Repository = (*answerRepository)(nil)

func NewAnswerRepository(db *DB) answer.Repository {
	return &answerRepository{db: db}
}

func (repo *answerRepository) CreateAnswers(_ context.Context, answers []answer.Answer, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, a := range answers {
		a.ID = repo.db.data.nextID("respuestas")
		repo.db.data.answers[a.ID] = a
	}
	return len(answers), nil
}

// rows joins a to every placement of its question, or returns one row without context when there is none.
func (repo *answerRepository) rows(a answer.Answer) []answer.Row {
	data := repo.db.data
	base := answer.Row{Answer: a, QuestionText: data.questions[a.QuestionID].Text}

	placements := make([]form.FormQuestion, 0)
	for _, fq := range data.formQuestions {
		if fq.QuestionID == a.QuestionID {
			placements = append(placements, fq)
		}
	}
	if len(placements) == 0 {
		return []answer.Row{base}
	}
	sort.Slice(placements, func(i, j int) bool { return placements[i].ID < placements[j].ID })

	rows := make([]answer.Row, 0, len(placements))
	for _, fq := range placements {
		row := base
		row.QuestionType = null.StringFrom(fq.Type)
		row.QuestionOrder = null.IntFrom(fq.Order)
		if m, ok := data.modules[int(fq.ModuleID.Int)]; ok && fq.ModuleID.Valid {
			row.ModuleID = null.IntFrom(m.ID)
			row.ModuleTitle = null.StringFrom(m.Title)
			row.ModuleOrder = null.IntFrom(m.Order)
		}
		if s, ok := data.sections[fq.SectionID]; ok {
			row.SectionID = null.IntFrom(s.ID)
			row.SectionTitle = null.StringFrom(s.Title)
			row.SectionOrder = null.IntFrom(s.Order)
			if f, ok := data.forms[s.FormID]; ok {
				row.FormID = null.IntFrom(f.ID)
				row.FormName = null.StringFrom(f.Name)
				row.FormCategory = f.Category
				row.FormVersion = null.IntFrom(f.Version)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func matchesAnswer(row answer.Row, filter answer.Filter) bool {
	switch {
	case row.StudentID != filter.StudentID:
		return false
	case filter.AnsweredBy != "" && row.AnsweredBy != filter.AnsweredBy:
		return false
	case filter.FormID > 0 && int(row.FormID.Int) != filter.FormID:
		return false
	case filter.SectionID > 0 && int(row.SectionID.Int) != filter.SectionID:
		return false
	case filter.ModuleID > 0 && int(row.ModuleID.Int) != filter.ModuleID:
		return false
	case filter.From.Valid && row.Date.Before(filter.From.Time):
		return false
	case filter.Before.Valid && !row.Date.Before(filter.Before.Time):
		return false
	}
	return true
}

// lessNullsLast orders valid values ascending before null ones; ok is false on a tie.
func lessNullsLast(a, b null.Int) (less, ok bool) {
	switch {
	case a.Valid && b.Valid && a.Int != b.Int:
		return a.Int < b.Int, true
	case a.Valid != b.Valid:
		return a.Valid, true
	}
	return false, false
}

func lessRow(a, b answer.Row) bool {
	fa, fb := unplacedFormID, unplacedFormID
	if a.FormID.Valid {
		fa = int(a.FormID.Int)
	}
	if b.FormID.Valid {
		fb = int(b.FormID.Int)
	}
	if fa != fb {
		return fa < fb
	}
	for _, pair := range [][2]null.Int{
		{a.SectionOrder, b.SectionOrder},
		{a.ModuleOrder, b.ModuleOrder},
		{a.QuestionOrder, b.QuestionOrder},
	} {
		if less, ok := lessNullsLast(pair[0], pair[1]); ok {
			return less
		}
	}
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.ID < b.ID
}

func (repo *answerRepository) QueryAnswers(_ context.Context, filter answer.Filter, _ ...core.DBExecutor) ([]answer.Row, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matched := make([]answer.Row, 0)
	for _, a := range repo.db.data.answers {
		if a.StudentID != filter.StudentID {
			continue
		}
		for _, row := range repo.rows(a) {
			if matchesAnswer(row, filter) {
				matched = append(matched, row)
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return lessRow(matched[i], matched[j]) })

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < total {
		end = start + filter.Limit
	}
	return matched[start:end], total, nil
}

func (repo *answerRepository) QueryTherapistAnswers(_ context.Context, therapistID int, _ ...core.DBExecutor) ([]answer.TherapistRow, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	data := repo.db.data
	studentIDs := make([]int, 0)
	for id, s := range data.students {
		if s.TherapistID.Valid && int(s.TherapistID.Int) == therapistID {
			studentIDs = append(studentIDs, id)
		}
	}
	sort.Ints(studentIDs)

	rows := make([]answer.TherapistRow, 0)
	for _, id := range studentIDs {
		s := data.students[id]
		base := answer.TherapistRow{StudentID: s.ID, Name: s.Name, LastName: s.LastName, AccessCode: s.AccessCode}

		answers := make([]answer.Answer, 0)
		for _, a := range data.answers {
			if a.StudentID == id {
				answers = append(answers, a)
			}
		}
		if len(answers) == 0 {
			rows = append(rows, base)
			continue
		}
		sort.Slice(answers, func(i, j int) bool {
			if !answers[i].Date.Equal(answers[j].Date) {
				return answers[i].Date.Before(answers[j].Date)
			}
			return answers[i].ID < answers[j].ID
		})
		for _, a := range answers {
			row := base
			row.AnswerID = null.IntFrom(a.ID)
			row.QuestionID = null.IntFrom(a.QuestionID)
			row.Answer = null.StringFrom(a.Answer)
			row.Date = null.TimeFrom(a.Date)
			if q, ok := data.questions[a.QuestionID]; ok {
				row.QuestionText = null.StringFrom(q.Text)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}
