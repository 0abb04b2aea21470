package form

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/evasensorial/eva/core"
)

const (
	DefaultStatus  = "Borrador"
	DefaultVersion = 1
)

type Form struct {
	ID          int         `json:"formulario_id" db:"formulario_id"`
	Name        string      `json:"nombre" db:"nombre"`
	Description null.String `json:"descripcion" db:"descripcion"`
	Category    null.String `json:"categoria" db:"categoria"`
	Audience    null.String `json:"destinatario" db:"destinatario"`
	Status      string      `json:"estado" db:"estado"`
	Version     int         `json:"version" db:"version"`
	CreatedAt   time.Time   `json:"creado_en" db:"creado_en"`           // UTC
	UpdatedAt   time.Time   `json:"actualizado_en" db:"actualizado_en"` // UTC
}

type Section struct {
	ID     int    `json:"seccion_id" db:"seccion_id"`
	FormID int    `json:"-" db:"formulario_id"`
	Title  string `json:"titulo" db:"titulo"`
	Order  int    `json:"orden" db:"orden"`
}

type Module struct {
	ID        int    `json:"modulo_id" db:"modulo_id"`
	SectionID int    `json:"seccion_id" db:"seccion_id"`
	Title     string `json:"titulo" db:"titulo"`
	Order     int    `json:"orden" db:"orden"`
}

// Question is shared by every form using the same text.
type Question struct {
	ID       int         `json:"pregunta_id" db:"pregunta_id"`
	Text     string      `json:"texto" db:"texto"`
	Category null.String `json:"categoria" db:"categoria"`
}

// FormQuestion places a Question in a module, with its per-form type, order and options.
type FormQuestion struct {
	ID         int         `json:"formulario_pregunta_id" db:"formulario_pregunta_id"`
	SectionID  int         `json:"-" db:"seccion_id"`
	ModuleID   null.Int    `json:"-" db:"modulo_id"`
	QuestionID int         `json:"pregunta_id" db:"pregunta_id"`
	Text       string      `json:"texto" db:"texto"`
	Category   null.String `json:"categoria" db:"categoria"`
	Type       string      `json:"tipo" db:"tipo"`
	Order      int         `json:"orden" db:"orden"`
	Options    null.JSON   `json:"opciones" db:"opciones"`
}

type (
	Detail struct {
		Form
		Sections []SectionDetail `json:"secciones"`
	}

	SectionDetail struct {
		Section
		Modules []ModuleDetail `json:"modulos"`
	}

	ModuleDetail struct {
		Module
		Questions []FormQuestion `json:"preguntas"`
	}
)

// NewForm contains information needed to create a Form with its whole structure.
// Sections, modules and questions missing a title/text, type or order are skipped.
type NewForm struct {
	Name        string       `json:"nombre" validate:"required"`
	Description null.String  `json:"descripcion"`
	Category    null.String  `json:"categoria"`
	Audience    null.String  `json:"destinatario"`
	Status      string       `json:"estado"`
	Version     int          `json:"version" validate:"omitempty,min=1"`
	Sections    []NewSection `json:"secciones"`
}

type NewSection struct {
	Title   string      `json:"titulo"`
	Order   int         `json:"orden"`
	Modules []NewModule `json:"modulos"`
}

type NewModule struct {
	Title     string        `json:"titulo"`
	Order     int           `json:"orden"`
	Questions []NewQuestion `json:"preguntas"`
}

type NewQuestion struct {
	Text     string      `json:"texto"`
	Type     string      `json:"tipo"`
	Order    int         `json:"orden"`
	Options  null.JSON   `json:"opciones"`
	Category null.String `json:"categoria"`
}

func (nf *NewForm) Validate(validate *validator.Validate) error {
	nf.Name = core.CleanString(nf.Name)
	if nf.Status = core.CleanString(nf.Status); nf.Status == "" {
		nf.Status = DefaultStatus
	}
	if nf.Version == 0 {
		nf.Version = DefaultVersion
	}
	return validate.Struct(nf)
}

func (s NewSection) complete() bool  { return core.CleanString(s.Title) != "" && s.Order != 0 }
func (m NewModule) complete() bool   { return core.CleanString(m.Title) != "" && m.Order != 0 }
func (q NewQuestion) complete() bool { return core.CleanString(q.Text) != "" && q.Type != "" && q.Order != 0 }

// UpdateForm modifies the form header only, never its structure. Nil fields are left untouched.
type UpdateForm struct {
	Name        *string `json:"nombre" validate:"omitempty,min=1"`
	Description *string `json:"descripcion"`
	Category    *string `json:"categoria"`
	Audience    *string `json:"destinatario"`
	Status      *string `json:"estado" validate:"omitempty,min=1"`
	Version     *int    `json:"version" validate:"omitempty,min=1"`
}

func (uf *UpdateForm) IsEmpty() bool {
	return uf.Name == nil && uf.Description == nil && uf.Category == nil &&
		uf.Audience == nil && uf.Status == nil && uf.Version == nil
}

func (uf *UpdateForm) Validate(validate *validator.Validate) error {
	if uf.IsEmpty() {
		return core.NewValidationError(ErrNothingToUpdate)
	}
	if uf.Name != nil {
		name := core.CleanString(*uf.Name)
		uf.Name = &name
	}
	return validate.Struct(uf)
}

func (uf *UpdateForm) apply(f *Form) {
	if uf.Name != nil {
		f.Name = *uf.Name
	}
	if uf.Description != nil {
		f.Description = null.StringFrom(*uf.Description)
	}
	if uf.Category != nil {
		f.Category = null.StringFrom(*uf.Category)
	}
	if uf.Audience != nil {
		f.Audience = null.StringFrom(*uf.Audience)
	}
	if uf.Status != nil {
		f.Status = *uf.Status
	}
	if uf.Version != nil {
		f.Version = *uf.Version
	}
}
