package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/therapist"
)

const (
	therapistColumns = `terapeuta_id, nombre, email, contrasena, es_superadmin, cargo, identificacion,
		especialidad, telefono, ubicacion, estado, creado_en`
	therapistEmailKey = "terapeutas_email_key"
)

var therapistOrderColumns = map[string]string{
	"terapeuta_id": "terapeuta_id",
	"nombre":       "nombre",
	"email":        "email",
	"creado_en":    "creado_en",
}

type therapistRepository struct {
	baseRepository
}

var _ therapist.Repository = (*therapistRepository)(nil) // interface compliance check

func NewTherapistRepository(exec core.DBExecutor) *therapistRepository {
	return &therapistRepository{baseRepository{exec: exec}}
}

func (repo therapistRepository) trapEmailErr(err error, msg string) error {
	if isUniqueViolation(err, therapistEmailKey) {
		return therapist.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func (repo therapistRepository) EmailExists(ctx context.Context, email string, excludeID int, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM terapeutas WHERE lower(email) = lower($1) AND terapeuta_id <> $2)`
	if err := repo.getExec(exec).GetContext(ctx, &exists, q, email, excludeID); err != nil {
		return false, errors.Wrap(err, "checking therapist email")
	}
	return exists, nil
}

func (repo therapistRepository) CreateTherapist(ctx context.Context, t therapist.Therapist, exec ...core.DBExecutor) (therapist.Therapist, error) {
	q := `INSERT INTO terapeutas (nombre, email, contrasena, es_superadmin, cargo, identificacion,
			especialidad, telefono, ubicacion, estado, creado_en)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING terapeuta_id`
	err := repo.getExec(exec).QueryRowxContext(ctx, q,
		t.Name, t.Email, t.PasswordHash, t.IsSuperAdmin, t.Position, t.Identification,
		t.Specialty, t.Phone, t.Location, t.Status, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return therapist.Therapist{}, repo.trapEmailErr(err, "inserting therapist")
	}
	return t, nil
}

func (repo therapistRepository) QueryTherapists(ctx context.Context, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]therapist.Therapist, error) {
	therapists := make([]therapist.Therapist, 0)
	q := "SELECT " + therapistColumns + " FROM terapeutas" + orderBy(ordering, therapistOrderColumns, "terapeuta_id DESC")
	if err := repo.getExec(exec).SelectContext(ctx, &therapists, q); err != nil {
		return nil, errors.Wrap(err, "selecting therapists")
	}
	return therapists, nil
}

func (repo therapistRepository) GetTherapist(ctx context.Context, filter therapist.GetFilter, exec ...core.DBExecutor) (therapist.Therapist, error) {
	var (
		t   therapist.Therapist
		q   = "SELECT " + therapistColumns + " FROM terapeutas WHERE terapeuta_id = $1"
		arg interface{}
	)
	arg = filter.ID
	if filter.ID == 0 {
		q = "SELECT " + therapistColumns + " FROM terapeutas WHERE lower(email) = lower($1)"
		arg = filter.Email
	}
	if err := repo.getExec(exec).GetContext(ctx, &t, q, arg); err != nil {
		return therapist.Therapist{}, trapNoRowsErr(err, therapist.ErrNotFound, "selecting therapist")
	}
	return t, nil
}

func (repo therapistRepository) UpdateTherapist(ctx context.Context, t therapist.Therapist, exec ...core.DBExecutor) (therapist.Therapist, error) {
	q := `UPDATE terapeutas SET nombre = $1, email = $2, contrasena = $3, es_superadmin = $4, cargo = $5,
			identificacion = $6, especialidad = $7, telefono = $8, ubicacion = $9, estado = $10
		WHERE terapeuta_id = $11`
	res, err := repo.getExec(exec).ExecContext(ctx, q,
		t.Name, t.Email, t.PasswordHash, t.IsSuperAdmin, t.Position,
		t.Identification, t.Specialty, t.Phone, t.Location, t.Status, t.ID,
	)
	if err != nil {
		return therapist.Therapist{}, repo.trapEmailErr(err, "updating therapist")
	}
	if err = checkAffected(res, therapist.ErrNotFound, "updating therapist"); err != nil {
		return therapist.Therapist{}, err
	}
	return t, nil
}

func (repo therapistRepository) DeleteTherapist(ctx context.Context, id int, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM terapeutas WHERE terapeuta_id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting therapist")
	}
	return checkAffected(res, therapist.ErrNotFound, "deleting therapist")
}
