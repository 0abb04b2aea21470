package sqlxrepos

import (
	"context"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/form"
)

const formColumns = "formulario_id, nombre, descripcion, categoria, destinatario, estado, version, creado_en, actualizado_en"

type formRepository struct {
	baseRepository
}

var _ form.Repository = (*formRepository)(nil)

func NewFormRepository(exec core.DBExecutor) *formRepository {
	return &formRepository{baseRepository{exec: exec}}
}

func (repo formRepository) CreateForm(ctx context.Context, f form.Form, exec ...core.DBExecutor) (form.Form, error) {
	q := `INSERT INTO formularios (nombre, descripcion, categoria, destinatario, estado, version, creado_en, actualizado_en)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING formulario_id`
	err := repo.getExec(exec).QueryRowxContext(ctx, q,
		f.Name, f.Description, f.Category, f.Audience, f.Status, f.Version, f.CreatedAt, f.UpdatedAt,
	).Scan(&f.ID)
	if err != nil {
		return form.Form{}, errors.Wrap(err, "inserting form")
	}
	return f, nil
}

func (repo formRepository) CreateSection(ctx context.Context, s form.Section, exec ...core.DBExecutor) (form.Section, error) {
	q := "INSERT INTO formulario_secciones (formulario_id, titulo, orden) VALUES ($1, $2, $3) RETURNING seccion_id"
	if err := repo.getExec(exec).QueryRowxContext(ctx, q, s.FormID, s.Title, s.Order).Scan(&s.ID); err != nil {
		return form.Section{}, errors.Wrap(err, "inserting section")
	}
	return s, nil
}

func (repo formRepository) CreateModule(ctx context.Context, m form.Module, exec ...core.DBExecutor) (form.Module, error) {
	q := "INSERT INTO formulario_modulos (seccion_id, titulo, orden) VALUES ($1, $2, $3) RETURNING modulo_id"
	if err := repo.getExec(exec).QueryRowxContext(ctx, q, m.SectionID, m.Title, m.Order).Scan(&m.ID); err != nil {
		return form.Module{}, errors.Wrap(err, "inserting module")
	}
	return m, nil
}

func (repo formRepository) FindOrCreateQuestion(ctx context.Context, question form.Question, exec ...core.DBExecutor) (form.Question, error) {
	ex := repo.getExec(exec)
	var found form.Question
	err := ex.GetContext(ctx, &found, "SELECT pregunta_id, texto, categoria FROM preguntas WHERE texto = $1 LIMIT 1", question.Text)
	if err == nil {
		return found, nil
	}
	if !isNoRows(err) {
		return form.Question{}, errors.Wrap(err, "selecting question")
	}

	q := "INSERT INTO preguntas (texto, categoria) VALUES ($1, $2) RETURNING pregunta_id"
	if err = ex.QueryRowxContext(ctx, q, question.Text, question.Category).Scan(&question.ID); err != nil {
		return form.Question{}, errors.Wrap(err, "inserting question")
	}
	return question, nil
}

func (repo formRepository) CreateFormQuestion(ctx context.Context, fq form.FormQuestion, exec ...core.DBExecutor) (form.FormQuestion, error) {
	q := `INSERT INTO formulario_preguntas (seccion_id, modulo_id, pregunta_id, tipo, orden, opciones)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING formulario_pregunta_id`
	err := repo.getExec(exec).QueryRowxContext(ctx, q,
		fq.SectionID, fq.ModuleID, fq.QuestionID, fq.Type, fq.Order, fq.Options,
	).Scan(&fq.ID)
	if err != nil {
		return form.FormQuestion{}, errors.Wrap(err, "inserting form question")
	}
	return fq, nil
}

func (repo formRepository) QueryForms(ctx context.Context, exec ...core.DBExecutor) ([]form.Form, error) {
	forms := make([]form.Form, 0)
	q := "SELECT " + formColumns + " FROM formularios ORDER BY formulario_id DESC"
	if err := repo.getExec(exec).SelectContext(ctx, &forms, q); err != nil {
		return nil, errors.Wrap(err, "selecting forms")
	}
	return forms, nil
}

func (repo formRepository) GetForm(ctx context.Context, id int, exec ...core.DBExecutor) (form.Form, error) {
	var f form.Form
	q := "SELECT " + formColumns + " FROM formularios WHERE formulario_id = $1"
	if err := repo.getExec(exec).GetContext(ctx, &f, q, id); err != nil {
		return form.Form{}, trapNoRowsErr(err, form.ErrNotFound, "selecting form")
	}
	return f, nil
}

func (repo formRepository) QuerySections(ctx context.Context, formID int, exec ...core.DBExecutor) ([]form.Section, error) {
	sections := make([]form.Section, 0)
	q := `SELECT seccion_id, formulario_id, titulo, orden FROM formulario_secciones
		WHERE formulario_id = $1 ORDER BY orden, seccion_id`
	if err := repo.getExec(exec).SelectContext(ctx, &sections, q, formID); err != nil {
		return nil, errors.Wrap(err, "selecting sections")
	}
	return sections, nil
}

func (repo formRepository) QueryModules(ctx context.Context, sectionIDs []int, exec ...core.DBExecutor) ([]form.Module, error) {
	modules := make([]form.Module, 0)
	if len(sectionIDs) == 0 {
		return modules, nil
	}
	q := `SELECT modulo_id, seccion_id, titulo, orden FROM formulario_modulos
		WHERE seccion_id = ANY($1::int[]) ORDER BY orden, modulo_id`
	if err := repo.getExec(exec).SelectContext(ctx, &modules, q, pq.Array(sectionIDs)); err != nil {
		return nil, errors.Wrap(err, "selecting modules")
	}
	return modules, nil
}

func (repo formRepository) QueryFormQuestions(ctx context.Context, moduleIDs []int, exec ...core.DBExecutor) ([]form.FormQuestion, error) {
	questions := make([]form.FormQuestion, 0)
	if len(moduleIDs) == 0 {
		return questions, nil
	}
	q := `SELECT fp.formulario_pregunta_id, fp.seccion_id, fp.modulo_id, fp.pregunta_id, p.texto, p.categoria,
			fp.tipo, fp.orden, fp.opciones
		FROM formulario_preguntas fp
		JOIN preguntas p ON p.pregunta_id = fp.pregunta_id
		WHERE fp.modulo_id = ANY($1::int[])
		ORDER BY fp.orden, fp.formulario_pregunta_id`
	if err := repo.getExec(exec).SelectContext(ctx, &questions, q, pq.Array(moduleIDs)); err != nil {
		return nil, errors.Wrap(err, "selecting form questions")
	}
	return questions, nil
}

func (repo formRepository) UpdateForm(ctx context.Context, f form.Form, exec ...core.DBExecutor) (form.Form, error) {
	q := `UPDATE formularios SET nombre = $1, descripcion = $2, categoria = $3, destinatario = $4,
			estado = $5, version = $6, actualizado_en = $7
		WHERE formulario_id = $8`
	res, err := repo.getExec(exec).ExecContext(ctx, q,
		f.Name, f.Description, f.Category, f.Audience, f.Status, f.Version, f.UpdatedAt, f.ID,
	)
	if err != nil {
		return form.Form{}, errors.Wrap(err, "updating form")
	}
	if err = checkAffected(res, form.ErrNotFound, "updating form"); err != nil {
		return form.Form{}, err
	}
	return f, nil
}

func (repo formRepository) DeleteFormStructure(ctx context.Context, formID int, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	for _, q := range []string{
		`DELETE FROM formulario_preguntas WHERE seccion_id IN
			(SELECT seccion_id FROM formulario_secciones WHERE formulario_id = $1)`,
		`DELETE FROM formulario_modulos WHERE seccion_id IN
			(SELECT seccion_id FROM formulario_secciones WHERE formulario_id = $1)`,
		"DELETE FROM formulario_secciones WHERE formulario_id = $1",
	} {
		if _, err := ex.ExecContext(ctx, q, formID); err != nil {
			return errors.Wrap(err, "deleting form structure")
		}
	}
	return nil
}

func (repo formRepository) DeleteForm(ctx context.Context, id int, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM formularios WHERE formulario_id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting form")
	}
	return checkAffected(res, form.ErrNotFound, "deleting form")
}
