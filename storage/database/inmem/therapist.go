package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/therapist"
)

var therapistOrderKeys = map[string]func(therapist.Therapist) interface{}{
	"terapeuta_id": func(t therapist.Therapist) interface{} { return t.ID },
	"nombre":       func(t therapist.Therapist) interface{} { return t.Name },
	"email":        func(t therapist.Therapist) interface{} { return t.Email },
	"creado_en":    func(t therapist.Therapist) interface{} { return t.CreatedAt },
}

type therapistRepository struct {
	db *DB
}

var _ therapist.Repository = (*therapistRepository)(nil)

func NewTherapistRepository(db *DB) therapist.Repository {
	return &therapistRepository{db: db}
}

func (repo *therapistRepository) EmailExists(_ context.Context, email string, excludeID int, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, t := range repo.db.data.therapists {
		if t.ID != excludeID && strings.EqualFold(t.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *therapistRepository) CreateTherapist(_ context.Context, t therapist.Therapist, _ ...core.DBExecutor) (therapist.Therapist, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.data.therapists {
		if strings.EqualFold(other.Email, t.Email) {
			return therapist.Therapist{}, therapist.ErrEmailExists
		}
	}
	t.ID = repo.db.data.nextID("terapeutas")
	repo.db.data.therapists[t.ID] = t
	return t, nil
}

func (repo *therapistRepository) QueryTherapists(_ context.Context, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]therapist.Therapist, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	therapists := make([]therapist.Therapist, 0, len(repo.db.data.therapists))
	for _, t := range repo.db.data.therapists {
		therapists = append(therapists, t)
	}
	sort.Slice(therapists, func(i, j int) bool { return therapists[i].ID > therapists[j].ID })
	applyOrdering(therapists, ordering, therapistOrderKeys)
	return therapists, nil
}

func (repo *therapistRepository) GetTherapist(_ context.Context, filter therapist.GetFilter, _ ...core.DBExecutor) (therapist.Therapist, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != 0 {
		if t, ok := repo.db.data.therapists[filter.ID]; ok {
			return t, nil
		}
		return therapist.Therapist{}, therapist.ErrNotFound
	}
	for _, t := range repo.db.data.therapists {
		if strings.EqualFold(t.Email, filter.Email) {
			return t, nil
		}
	}
	return therapist.Therapist{}, therapist.ErrNotFound
}

func (repo *therapistRepository) UpdateTherapist(_ context.Context, t therapist.Therapist, _ ...core.DBExecutor) (therapist.Therapist, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.data.therapists[t.ID]; !ok {
		return therapist.Therapist{}, therapist.ErrNotFound
	}
	for _, other := range repo.db.data.therapists {
		if other.ID != t.ID && strings.EqualFold(other.Email, t.Email) {
			return therapist.Therapist{}, therapist.ErrEmailExists
		}
	}
	repo.db.data.therapists[t.ID] = t
	return t, nil
}

// DeleteTherapist unassigns the therapist's students, like the foreign key does.
func (repo *therapistRepository) DeleteTherapist(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.data.therapists[id]; !ok {
		return therapist.ErrNotFound
	}
	delete(repo.db.data.therapists, id)
	for sid, s := range repo.db.data.students {
		if s.TherapistID.Valid && int(s.TherapistID.Int) == id {
			s.TherapistID = null.Int{}
			repo.db.data.students[sid] = s
		}
	}
	return nil
}
