package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/registration"
)

type registrationRepository struct {
	db *DB
}

var _ registration.Repository = (*registrationRepository)(nil)

func NewRegistrationRepository(db *DB) registration.Repository {
	return &registrationRepository{db: db}
}

func nullIfEmpty(s null.String) null.String {
	if !s.Valid || s.String == "" {
		return null.String{}
	}
	return s
}

// merge copies the non-empty fields of p over stored.
func merge(stored, p registration.Participant) registration.Participant {
	if p.Name != "" {
		stored.Name = p.Name
	}
	if p.Email != "" {
		stored.Email = p.Email
	}
	if rv := nullIfEmpty(p.RoleValue); rv.Valid {
		stored.RoleValue = rv
	}
	return stored
}

func (repo *registrationRepository) insertParticipant(p registration.Participant) registration.Participant {
	p.ID = repo.db.data.nextID(p.Type)
	p.RoleValue = nullIfEmpty(p.RoleValue)
	repo.db.data.participants[p.Type][p.ID] = p
	return p
}

func (repo *registrationRepository) UpsertParticipant(_ context.Context, p registration.Participant, _ ...core.DBExecutor) (registration.Participant, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if p.Document.Valid {
		for id, stored := range repo.db.data.participants[p.Type] {
			if stored.Document.Valid && stored.Document.String == p.Document.String {
				stored = merge(stored, p)
				repo.db.data.participants[p.Type][id] = stored
				return stored, nil
			}
		}
	}
	return repo.insertParticipant(p), nil
}

func (repo *registrationRepository) UpsertParticipantByEmail(_ context.Context, p registration.Participant, _ ...core.DBExecutor) (registration.Participant, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ids := make([]int, 0, len(repo.db.data.participants[p.Type]))
	for id := range repo.db.data.participants[p.Type] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		stored := repo.db.data.participants[p.Type][id]
		if strings.EqualFold(stored.Email, p.Email) {
			p.Email = ""
			stored = merge(stored, p)
			repo.db.data.participants[p.Type][id] = stored
			return stored, nil
		}
	}
	return repo.insertParticipant(p), nil
}

func (repo *registrationRepository) GetParticipant(_ context.Context, typ string, id int, _ ...core.DBExecutor) (registration.Participant, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.data.participants[typ][id]; ok {
		return p, nil
	}
	return registration.Participant{}, core.NewNotFoundError(typ + " no encontrado")
}

func (repo *registrationRepository) PatchParticipant(_ context.Context, typ string, id int, patch registration.ParticipantPatch, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.data.participants[typ][id]
	if !ok {
		return nil
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.RoleValue != nil {
		p.RoleValue = *patch.RoleValue
	}
	repo.db.data.participants[typ][id] = p
	return nil
}

func (repo *registrationRepository) LinkParticipant(_ context.Context, studentID int, p registration.Participant, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.data.links[p.Type][link{studentID: studentID, participantID: p.ID}] = true
	return nil
}

func (repo *registrationRepository) CreateToken(_ context.Context, t registration.AccessToken, metadata map[string]interface{}, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.data.tokens[t.Token] = storedToken{AccessToken: t, metadata: metadata}
	return nil
}

func (repo *registrationRepository) GetActiveToken(_ context.Context, token string, _ ...core.DBExecutor) (registration.AccessToken, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tk, ok := repo.db.data.tokens[token]; ok && tk.IsOpen(repo.db.now()) {
		return tk.AccessToken, nil
	}
	return registration.AccessToken{}, registration.ErrTokenNotFound
}

// GetActiveTokenForUpdate relies on DB.InTx serializing transactions.
func (repo *registrationRepository) GetActiveTokenForUpdate(ctx context.Context, token string, exec ...core.DBExecutor) (registration.AccessToken, error) {
	return repo.GetActiveToken(ctx, token, exec...)
}

func matchesToken(tk registration.AccessToken, filter registration.TokenFilter) bool {
	return tk.Active && tk.Document == filter.Document && (filter.StudentID == 0 || tk.StudentID == filter.StudentID)
}

func (repo *registrationRepository) LatestActiveToken(_ context.Context, filter registration.TokenFilter, _ ...core.DBExecutor) (registration.AccessToken, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var (
		latest registration.AccessToken
		found  bool
		now    = repo.db.now()
	)
	for _, tk := range repo.db.data.tokens {
		if !matchesToken(tk.AccessToken, filter) || !tk.IsOpen(now) {
			continue
		}
		if !found || tk.ExpiresAt.After(latest.ExpiresAt) {
			latest, found = tk.AccessToken, true
		}
	}
	if !found {
		return registration.AccessToken{}, registration.ErrNoActiveToken
	}
	return latest, nil
}

func (repo *registrationRepository) DeactivateTokens(_ context.Context, filter registration.TokenFilter, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for token, tk := range repo.db.data.tokens {
		if matchesToken(tk.AccessToken, filter) {
			tk.Active = false
			repo.db.data.tokens[token] = tk
		}
	}
	return nil
}

func (repo *registrationRepository) DeactivateToken(_ context.Context, token string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if tk, ok := repo.db.data.tokens[token]; ok {
		tk.Active = false
		repo.db.data.tokens[token] = tk
	}
	return nil
}

func (repo *registrationRepository) MergeDraftProfile(_ context.Context, token string, data map[string]interface{}, _ ...core.DBExecutor) (map[string]interface{}, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	profile := copyMap(repo.db.data.draftProfiles[token])
	for k, v := range data {
		profile[k] = v
	}
	repo.db.data.draftProfiles[token] = profile
	return copyMap(profile), nil
}

func (repo *registrationRepository) GetDraftProfile(_ context.Context, token string, _ ...core.DBExecutor) (map[string]interface{}, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return copyMap(repo.db.data.draftProfiles[token]), nil
}

func (repo *registrationRepository) UpsertDraftAnswer(_ context.Context, a registration.DraftAnswer, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.data.draftAnswers[draftKey{token: a.Token, questionID: a.QuestionID}] = a
	return nil
}

func (repo *registrationRepository) QueryDraftAnswers(_ context.Context, token string, _ ...core.DBExecutor) ([]registration.DraftAnswer, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	drafts := make([]registration.DraftAnswer, 0)
	for key, a := range repo.db.data.draftAnswers {
		if key.token == token {
			drafts = append(drafts, a)
		}
	}
	sort.Slice(drafts, func(i, j int) bool {
		if !drafts[i].UpdatedAt.Equal(drafts[j].UpdatedAt) {
			return drafts[i].UpdatedAt.After(drafts[j].UpdatedAt)
		}
		return drafts[i].QuestionID < drafts[j].QuestionID
	})
	return drafts, nil
}

func (repo *registrationRepository) DeleteDrafts(_ context.Context, token string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for key := range repo.db.data.draftAnswers {
		if key.token == token {
			delete(repo.db.data.draftAnswers, key)
		}
	}
	delete(repo.db.data.draftProfiles, token)
	return nil
}

// Links returns the ids of the participants of type typ linked to studentID, sorted.
func (db *DB) Links(typ string, studentID int) []int {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	ids := make([]int, 0)
	for l := range db.data.links[typ] {
		if l.studentID == studentID {
			ids = append(ids, l.participantID)
		}
	}
	sort.Ints(ids)
	return ids
}
