package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/student"
)

const (
	studentColumns = `estudiante_id, nombre, apellidos, email, codigo_acceso, terapeuta_id,
		documento_identificacion, fecha_nacimiento, edad, grado, colegio, creado_en`
	studentCodeKey = "estudiantes_codigo_acceso_key"
)

var studentOrderColumns = map[string]string{
	"estudiante_id": "estudiante_id",
	"nombre":        "nombre",
	"apellidos":     "apellidos",
	"creado_en":     "creado_en",
}

type studentRepository struct {
	baseRepository
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{baseRepository{exec: exec}}
}

func (repo studentRepository) trapWriteErr(err error, msg string) error {
	switch {
	case isUniqueViolation(err, studentCodeKey):
		return student.ErrAccessCodeTaken
	case isForeignKeyViolation(err):
		return student.ErrTherapistNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	q := `INSERT INTO estudiantes (nombre, apellidos, email, codigo_acceso, terapeuta_id,
			documento_identificacion, fecha_nacimiento, edad, grado, colegio, creado_en)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING estudiante_id`
	err := repo.getExec(exec).QueryRowxContext(ctx, q,
		s.Name, s.LastName, s.Email, s.AccessCode, s.TherapistID,
		s.Document, s.BirthDate, s.Age, s.Grade, s.School, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		return student.Student{}, repo.trapWriteErr(err, "inserting student")
	}
	return s, nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter, exec ...core.DBExecutor) ([]student.Student, error) {
	var (
		students = make([]student.Student, 0)
		q        = "SELECT " + studentColumns + " FROM estudiantes"
		args     []interface{}
	)
	if filter.TherapistID > 0 {
		q += " WHERE terapeuta_id = $1"
		args = append(args, filter.TherapistID)
	}
	q += orderBy(filter.Ordering, studentOrderColumns, "estudiante_id DESC")

	if err := repo.getExec(exec).SelectContext(ctx, &students, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	return students, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, filter student.GetFilter, exec ...core.DBExecutor) (student.Student, error) {
	var (
		s   student.Student
		q   = "SELECT " + studentColumns + " FROM estudiantes WHERE estudiante_id = $1"
		arg interface{} = filter.ID
	)
	if filter.ID == 0 {
		q = "SELECT " + studentColumns + " FROM estudiantes WHERE codigo_acceso = $1"
		arg = filter.AccessCode
	}
	if err := repo.getExec(exec).GetContext(ctx, &s, q, arg); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "selecting student")
	}
	return s, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	q := `UPDATE estudiantes SET nombre = $1, apellidos = $2, email = $3, codigo_acceso = $4, terapeuta_id = $5,
			documento_identificacion = $6, fecha_nacimiento = $7, edad = $8, grado = $9, colegio = $10
		WHERE estudiante_id = $11`
	res, err := repo.getExec(exec).ExecContext(ctx, q,
		s.Name, s.LastName, s.Email, s.AccessCode, s.TherapistID,
		s.Document, s.BirthDate, s.Age, s.Grade, s.School, s.ID,
	)
	if err != nil {
		return student.Student{}, repo.trapWriteErr(err, "updating student")
	}
	if err = checkAffected(res, student.ErrNotFound, "updating student"); err != nil {
		return student.Student{}, err
	}
	return s, nil
}

func (repo studentRepository) DeleteStudentLinks(ctx context.Context, id int, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	for _, q := range []string{
		"DELETE FROM estudiante_familiar WHERE estudiante_id = $1",
		"DELETE FROM estudiante_profesor WHERE estudiante_id = $1",
	} {
		if _, err := ex.ExecContext(ctx, q, id); err != nil {
			return errors.Wrap(err, "deleting student links")
		}
	}
	return nil
}

func (repo studentRepository) DeleteStudent(ctx context.Context, id int, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM estudiantes WHERE estudiante_id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return checkAffected(res, student.ErrNotFound, "deleting student")
}
