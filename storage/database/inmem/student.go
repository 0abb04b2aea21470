package inmemdb

import (
	"context"
	"sort"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/student"
)

var studentOrderKeys = map[string]func(student.Student) interface{}{
	"estudiante_id": func(s student.Student) interface{} { return s.ID },
	"nombre":        func(s student.Student) interface{} { return s.Name },
	"apellidos":     func(s student.Student) interface{} { return s.LastName.String },
	"creado_en":     func(s student.Student) interface{} { return s.CreatedAt },
}

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

// checkConstraints mirrors the access code unique key and the therapist foreign key.
func (repo *studentRepository) checkConstraints(s student.Student) error {
	for _, other := range repo.db.data.students {
		if other.ID != s.ID && other.AccessCode == s.AccessCode {
			return student.ErrAccessCodeTaken
		}
	}
	if s.TherapistID.Valid {
		if _, ok := repo.db.data.therapists[int(s.TherapistID.Int)]; !ok {
			return student.ErrTherapistNotFound
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkConstraints(s); err != nil {
		return student.Student{}, err
	}
	s.ID = repo.db.data.nextID("estudiantes")
	repo.db.data.students[s.ID] = s
	return s, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter student.QueryFilter, _ ...core.DBExecutor) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]student.Student, 0)
	for _, s := range repo.db.data.students {
		if filter.TherapistID > 0 && (!s.TherapistID.Valid || int(s.TherapistID.Int) != filter.TherapistID) {
			continue
		}
		students = append(students, s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID > students[j].ID })
	applyOrdering(students, filter.Ordering, studentOrderKeys)
	return students, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, filter student.GetFilter, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != 0 {
		if s, ok := repo.db.data.students[filter.ID]; ok {
			return s, nil
		}
		return student.Student{}, student.ErrNotFound
	}
	for _, s := range repo.db.data.students {
		if filter.AccessCode != "" && s.AccessCode == filter.AccessCode {
			return s, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.data.students[s.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	if err := repo.checkConstraints(s); err != nil {
		return student.Student{}, err
	}
	repo.db.data.students[s.ID] = s
	return s, nil
}

func (repo *studentRepository) DeleteStudentLinks(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, links := range repo.db.data.links {
		for l := range links {
			if l.studentID == id {
				delete(links, l)
			}
		}
	}
	return nil
}

// DeleteStudent also drops the student's tokens and answers, like the cascading foreign keys do.
func (repo *studentRepository) DeleteStudent(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.data.students[id]; !ok {
		return student.ErrNotFound
	}
	delete(repo.db.data.students, id)
	for token, tk := range repo.db.data.tokens {
		if tk.StudentID == id {
			delete(repo.db.data.tokens, token)
		}
	}
	for aid, a := range repo.db.data.answers {
		if a.StudentID == id {
			delete(repo.db.data.answers, aid)
		}
	}
	return nil
}
