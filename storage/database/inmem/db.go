// Package inmemdb implements the domain repositories in memory, for tests and local runs without PostgreSQL.
package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/answer"
	"github.com/evasensorial/eva/core/form"
	"github.com/evasensorial/eva/core/registration"
	"github.com/evasensorial/eva/core/student"
	"github.com/evasensorial/eva/core/therapist"
)

type (
	DB struct {
		mutex   sync.RWMutex
		txMutex sync.Mutex
		data    *tables

		// Now is the clock used to expire tokens.
		Now func() time.Time
	}

	link struct {
		studentID     int
		participantID int
	}

	draftKey struct {
		token      string
		questionID int
	}

	storedToken struct {
		registration.AccessToken
		metadata map[string]interface{}
	}

	tables struct {
		seq map[string]int

		therapists map[int]therapist.Therapist
		students   map[int]student.Student

		participants map[string]map[int]registration.Participant // by type
		links        map[string]map[link]bool                    // by type

		tokens        map[string]storedToken
		draftProfiles map[string]map[string]interface{}
		draftAnswers  map[draftKey]registration.DraftAnswer
		answers       map[int]answer.Answer

		forms         map[int]form.Form
		sections      map[int]form.Section
		modules       map[int]form.Module
		questions     map[int]form.Question
		formQuestions map[int]form.FormQuestion
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{data: newTables(), Now: time.Now}
}

func newTables() *tables {
	return &tables{
		seq:        make(map[string]int),
		therapists: make(map[int]therapist.Therapist),
		students:   make(map[int]student.Student),
		participants: map[string]map[int]registration.Participant{
			registration.TypeGuardian: make(map[int]registration.Participant),
			registration.TypeTeacher:  make(map[int]registration.Participant),
		},
		links: map[string]map[link]bool{
			registration.TypeGuardian: make(map[link]bool),
			registration.TypeTeacher:  make(map[link]bool),
		},
		tokens:        make(map[string]storedToken),
		draftProfiles: make(map[string]map[string]interface{}),
		draftAnswers:  make(map[draftKey]registration.DraftAnswer),
		answers:       make(map[int]answer.Answer),
		forms:         make(map[int]form.Form),
		sections:      make(map[int]form.Section),
		modules:       make(map[int]form.Module),
		questions:     make(map[int]form.Question),
		formQuestions: make(map[int]form.FormQuestion),
	}
}

// nextID returns the next primary key of table.
func (t *tables) nextID(table string) int {
	t.seq[table]++
	return t.seq[table]
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (t *tables) clone() *tables {
	c := &tables{
		seq:           copyMap(t.seq),
		therapists:    copyMap(t.therapists),
		students:      copyMap(t.students),
		participants:  make(map[string]map[int]registration.Participant, len(t.participants)),
		links:         make(map[string]map[link]bool, len(t.links)),
		tokens:        copyMap(t.tokens),
		draftProfiles: make(map[string]map[string]interface{}, len(t.draftProfiles)),
		draftAnswers:  copyMap(t.draftAnswers),
		answers:       copyMap(t.answers),
		forms:         copyMap(t.forms),
		sections:      copyMap(t.sections),
		modules:       copyMap(t.modules),
		questions:     copyMap(t.questions),
		formQuestions: copyMap(t.formQuestions),
	}
	for typ, m := range t.participants {
		c.participants[typ] = copyMap(m)
	}
	for typ, m := range t.links {
		c.links[typ] = copyMap(m)
	}
	for token, m := range t.draftProfiles {
		c.draftProfiles[token] = copyMap(m)
	}
	return c
}

// InTx runs fn with transactions serialized; the tables are restored when fn fails.
// exec is always nil, repositories fall back to the shared tables.
// The restore is a whole snapshot, so services route every write that may race a transaction through InTx:
// a write made outside it while fn runs is lost on rollback.
func (db *DB) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.txMutex.Lock()
	defer db.txMutex.Unlock()

	db.mutex.RLock()
	snapshot := db.data.clone()
	db.mutex.RUnlock()

	restore := func() {
		db.mutex.Lock()
		db.data = snapshot
		db.mutex.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()

	if err = fn(nil); err != nil {
		restore()
	}
	return err
}

func (db *DB) now() time.Time {
	if db.Now == nil {
		return time.Now()
	}
	return db.Now()
}

// applyOrdering stable-sorts records by orderings, the first ordering being the primary one.
// Fields missing from keys are ignored.
func applyOrdering[T any](records []T, orderings []core.DBOrdering, keys map[string]func(T) interface{}) {
	for k := len(orderings) - 1; k >= 0; k-- {
		ord := orderings[k]
		key, ok := keys[ord.Field]
		if !ok {
			continue
		}
		sort.SliceStable(records, func(i, j int) bool {
			c := compare(key(records[i]), key(records[j]))
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		})
	}
}

func compare(a, b interface{}) int {
	switch x := a.(type) {
	case int:
		y := b.(int)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	case string:
		return strings.Compare(x, b.(string))
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	return 0
}
