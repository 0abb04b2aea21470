// Package sqlxrepos implements the domain repositories over PostgreSQL with jmoiron/sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type baseRepository struct {
	exec core.DBExecutor
}

// getExec returns the executor passed by the service (usually a transaction) or the repository's default one.
func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

// trapNoRowsErr maps "no rows" to notFound and wraps anything else with msg.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if isNoRows(err) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func pqError(err error, code string) (*pq.Error, bool) {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || string(pqErr.Code) != code {
		return nil, false
	}
	return pqErr, true
}

// isUniqueViolation reports whether err violates constraint (any unique constraint when empty).
func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := pqError(err, uniqueViolation)
	return ok && (constraint == "" || pqErr.Constraint == constraint)
}

func isForeignKeyViolation(err error) bool {
	_, ok := pqError(err, foreignKeyViolation)
	return ok
}

// checkAffected returns notFound when res touched no row.
func checkAffected(res sql.Result, notFound error, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// orderBy renders an ORDER BY clause from orderings whose field is in columns ({json field: column}).
// Unknown fields are ignored; dflt is used when nothing is left.
func orderBy(orderings []core.DBOrdering, columns map[string]string, dflt string) string {
	clauses := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(clauses) == 0 {
		return " ORDER BY " + dflt
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}
