package answer

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/evasensorial/eva/core"
)

// Answer is a committed answer; it is only ever created by a registration finalize.
type Answer struct {
	ID         int       `json:"respuesta_id" db:"respuesta_id"`
	StudentID  int       `json:"estudiante_id" db:"estudiante_id"`
	QuestionID int       `json:"pregunta_id" db:"pregunta_id"`
	AnsweredBy string    `json:"respondido_por" db:"respondido_por"` // familiar | profesor
	UserID     null.Int  `json:"usuario_id" db:"usuario_id"`
	Answer     string    `json:"respuesta" db:"respuesta"`
	Date       time.Time `json:"fecha" db:"fecha"` // UTC
}

// Row is an Answer in the context of the form, section and module its question belongs to.
// Questions not (or no longer) placed in any form have null context columns.
type Row struct {
	Answer

	QuestionText  string      `json:"pregunta_texto" db:"pregunta_texto"`
	QuestionType  null.String `json:"pregunta_tipo" db:"pregunta_tipo"`
	QuestionOrder null.Int    `json:"pregunta_orden" db:"pregunta_orden"`

	ModuleID    null.Int    `json:"modulo_id" db:"modulo_id"`
	ModuleTitle null.String `json:"modulo_titulo" db:"modulo_titulo"`
	ModuleOrder null.Int    `json:"modulo_orden" db:"modulo_orden"`

	SectionID    null.Int    `json:"seccion_id" db:"seccion_id"`
	SectionTitle null.String `json:"seccion_titulo" db:"seccion_titulo"`
	SectionOrder null.Int    `json:"seccion_orden" db:"seccion_orden"`

	FormID       null.Int    `json:"formulario_id" db:"formulario_id"`
	FormName     null.String `json:"formulario_nombre" db:"formulario_nombre"`
	FormCategory null.String `json:"formulario_categoria" db:"formulario_categoria"`
	FormVersion  null.Int    `json:"formulario_version" db:"formulario_version"`
}

// TherapistRow is one student × answer pair of a therapist's students; students without answers appear once with null answer columns.
type TherapistRow struct {
	StudentID    int         `json:"estudiante_id" db:"estudiante_id"`
	Name         string      `json:"nombre" db:"nombre"`
	LastName     null.String `json:"apellidos" db:"apellidos"`
	AccessCode   string      `json:"codigo_acceso" db:"codigo_acceso"`
	AnswerID     null.Int    `json:"respuesta_id" db:"respuesta_id"`
	QuestionID   null.Int    `json:"pregunta_id" db:"pregunta_id"`
	Answer       null.String `json:"respuesta" db:"respuesta"`
	Date         null.Time   `json:"fecha" db:"fecha"`
	QuestionText null.String `json:"pregunta_texto" db:"pregunta_texto"`
}

// Query holds the report filters & pagination as sent by clients.
type Query struct {
	AnsweredBy string `query:"respondido_por" json:"respondido_por" validate:"omitempty,oneof=familiar profesor"`
	FormID     int    `query:"formulario_id" json:"formulario_id" validate:"omitempty,min=1"`
	SectionID  int    `query:"seccion_id" json:"seccion_id" validate:"omitempty,min=1"`
	ModuleID   int    `query:"modulo_id" json:"modulo_id" validate:"omitempty,min=1"`
	From       string `query:"desde" json:"desde" validate:"omitempty,datetime=2006-01-02"`
	To         string `query:"hasta" json:"hasta" validate:"omitempty,datetime=2006-01-02"`
	Page       int    `query:"page" json:"page"`
	Limit      int    `query:"limit" json:"limit"`
}

func (q *Query) Validate(validate *validator.Validate) error {
	q.AnsweredBy = core.CleanString(q.AnsweredBy, true /* lower */)
	q.From = core.CleanString(q.From)
	q.To = core.CleanString(q.To)
	return validate.Struct(q)
}

// Filter is what repositories filter answers on. Zero values match everything.
type Filter struct {
	StudentID  int
	AnsweredBy string
	FormID     int
	SectionID  int
	ModuleID   int
	From       null.Time // inclusive
	Before     null.Time // exclusive
	Limit      int
	Offset     int
}

// Page is one page of a student's answers.
type Page struct {
	StudentID int   `json:"estudiante_id"`
	Page      int   `json:"page"`
	Limit     int   `json:"limit"`
	Total     int   `json:"total"`
	Rows      []Row `json:"rows"`
}
