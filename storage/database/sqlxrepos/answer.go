package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/answer"
)

const (
	answerJoins = `
		FROM respuestas r
		JOIN preguntas p ON p.pregunta_id = r.pregunta_id
		LEFT JOIN formulario_preguntas fp ON fp.pregunta_id = r.pregunta_id
		LEFT JOIN formulario_secciones s ON s.seccion_id = fp.seccion_id
		LEFT JOIN formularios f ON f.formulario_id = s.formulario_id
		LEFT JOIN formulario_modulos m ON m.modulo_id = fp.modulo_id`

	answerSelect = `SELECT
			r.respuesta_id, r.estudiante_id, r.pregunta_id, r.respondido_por, r.usuario_id, r.respuesta, r.fecha,
			p.texto AS pregunta_texto, fp.tipo AS pregunta_tipo, fp.orden AS pregunta_orden,
			m.modulo_id, m.titulo AS modulo_titulo, m.orden AS modulo_orden,
			s.seccion_id, s.titulo AS seccion_titulo, s.orden AS seccion_orden,
			f.formulario_id, f.nombre AS formulario_nombre, f.categoria AS formulario_categoria,
			f.version AS formulario_version` + answerJoins

	// form > section > module > question, unplaced answers last
	answerOrder = `
		ORDER BY COALESCE(f.formulario_id, 999999), s.orden NULLS LAST, m.orden NULLS LAST,
			fp.orden NULLS LAST, r.fecha ASC, r.respuesta_id ASC`
)

type answerRepository struct {
	baseRepository
}

var _ answer.Repository = (*answerRepository)(nil)

func NewAnswerRepository(exec core.DBExecutor) *answerRepository {
	return &answerRepository{baseRepository{exec: exec}}
}

func (repo answerRepository) CreateAnswers(ctx context.Context, answers []answer.Answer, exec ...core.DBExecutor) (int, error) {
	if len(answers) == 0 {
		return 0, nil
	}
	q := `INSERT INTO respuestas (estudiante_id, pregunta_id, respondido_por, usuario_id, respuesta, fecha)
		VALUES (:estudiante_id, :pregunta_id, :respondido_por, :usuario_id, :respuesta, :fecha)`
	res, err := repo.getExec(exec).NamedExecContext(ctx, q, answers)
	if err != nil {
		return 0, errors.Wrap(err, "inserting answers")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "inserting answers")
	}
	return int(n), nil
}

// answerWhere renders the WHERE clause of filter, the student always coming first.
func answerWhere(filter answer.Filter) (string, []interface{}) {
	clauses := []string{"r.estudiante_id = $1"}
	args := []interface{}{filter.StudentID}
	push := func(clause string, val interface{}) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf("%s $%d", clause, len(args)))
	}

	if filter.AnsweredBy != "" {
		push("r.respondido_por =", filter.AnsweredBy)
	}
	if filter.FormID > 0 {
		push("f.formulario_id =", filter.FormID)
	}
	if filter.SectionID > 0 {
		push("s.seccion_id =", filter.SectionID)
	}
	if filter.ModuleID > 0 {
		push("m.modulo_id =", filter.ModuleID)
	}
	if filter.From.Valid {
		push("r.fecha >=", filter.From.Time)
	}
	if filter.Before.Valid {
		push("r.fecha <", filter.Before.Time)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (repo answerRepository) QueryAnswers(ctx context.Context, filter answer.Filter, exec ...core.DBExecutor) ([]answer.Row, int, error) {
	ex := repo.getExec(exec)
	where, args := answerWhere(filter)

	var total int
	if err := ex.GetContext(ctx, &total, "SELECT COUNT(*)"+answerJoins+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting answers")
	}

	rows := make([]answer.Row, 0)
	q := fmt.Sprintf("%s%s%s LIMIT $%d OFFSET $%d", answerSelect, where, answerOrder, len(args)+1, len(args)+2)
	if err := ex.SelectContext(ctx, &rows, q, append(args, filter.Limit, filter.Offset)...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting answers")
	}
	return rows, total, nil
}

func (repo answerRepository) QueryTherapistAnswers(ctx context.Context, therapistID int, exec ...core.DBExecutor) ([]answer.TherapistRow, error) {
	rows := make([]answer.TherapistRow, 0)
	q := `SELECT e.estudiante_id, e.nombre, e.apellidos, e.codigo_acceso,
			r.respuesta_id, r.pregunta_id, r.respuesta, r.fecha, p.texto AS pregunta_texto
		FROM estudiantes e
		LEFT JOIN respuestas r ON r.estudiante_id = e.estudiante_id
		LEFT JOIN preguntas p ON p.pregunta_id = r.pregunta_id
		WHERE e.terapeuta_id = $1
		ORDER BY e.estudiante_id, r.fecha ASC`
	if err := repo.getExec(exec).SelectContext(ctx, &rows, q, therapistID); err != nil {
		return nil, errors.Wrap(err, "selecting therapist answers")
	}
	return rows, nil
}
