package student

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/notify"
)

type Student struct {
	ID          int           `json:"estudiante_id" db:"estudiante_id"`
	Name        string        `json:"nombre" db:"nombre"`
	LastName    null.String   `json:"apellidos" db:"apellidos"`
	Email       null.String   `json:"email" db:"email"`
	AccessCode  string        `json:"codigo_acceso" db:"codigo_acceso"`
	TherapistID null.Int      `json:"terapeuta_id" db:"terapeuta_id"`
	Document    null.String   `json:"documento_identificacion" db:"documento_identificacion"`
	BirthDate   core.NullDate `json:"fecha_nacimiento" db:"fecha_nacimiento"`
	Age         null.Int      `json:"edad" db:"edad"`
	Grade       null.String   `json:"grado" db:"grado"`
	School      null.String   `json:"colegio" db:"colegio"`
	CreatedAt   time.Time     `json:"creado_en" db:"creado_en"` // UTC
}

// FullName joins name and last name.
func (s Student) FullName() string {
	if s.LastName.Valid && s.LastName.String != "" {
		return s.Name + " " + s.LastName.String
	}
	return s.Name
}

// EmailList accepts both `["a@x.com"]` and `[{"email": "a@x.com"}]`.
type EmailList []string

func (l *EmailList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	emails := make(EmailList, 0, len(raw))
	for _, item := range raw {
		var email string
		if err := json.Unmarshal(item, &email); err != nil {
			var obj struct {
				Email string `json:"email"`
			}
			if err := json.Unmarshal(item, &obj); err != nil {
				return err
			}
			email = obj.Email
		}
		if email = core.CleanString(email, true /* lower */); email != "" {
			emails = append(emails, email)
		}
	}
	*l = emails
	return nil
}

func (l EmailList) recipients(role string) []notify.Recipient {
	rcpts := make([]notify.Recipient, 0, len(l))
	for _, email := range l {
		rcpts = append(rcpts, notify.Recipient{Email: email, Role: role})
	}
	return rcpts
}

// NewStudent contains information needed to create a new Student.
// Guardians and Teachers are only notified, they are not stored.
type NewStudent struct {
	Name        string        `json:"nombre" validate:"required"`
	LastName    null.String   `json:"apellidos"`
	Email       null.String   `json:"email"`
	TherapistID null.Int      `json:"terapeuta_id"`
	Document    null.String   `json:"documento_identificacion"`
	BirthDate   core.NullDate `json:"fecha_nacimiento"`
	Age         null.Int      `json:"edad"`
	Grade       null.String   `json:"grado"`
	School      null.String   `json:"colegio"`
	Guardians   EmailList     `json:"familiares" validate:"omitempty,dive,email"`
	Teachers    EmailList     `json:"profesores" validate:"omitempty,dive,email"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Nil fields are left untouched.
type UpdateStudent struct {
	Name        *string        `json:"nombre" validate:"omitempty,min=1"`
	LastName    *string        `json:"apellidos"`
	Email       *string        `json:"email"`
	TherapistID *int           `json:"terapeuta_id"`
	Document    *string        `json:"documento_identificacion"`
	BirthDate   *core.NullDate `json:"fecha_nacimiento"`
	Age         *int           `json:"edad" validate:"omitempty,min=0"`
	Grade       *string        `json:"grado"`
	School      *string        `json:"colegio"`
}

func (us *UpdateStudent) IsEmpty() bool {
	return us.Name == nil && us.LastName == nil && us.Email == nil && us.TherapistID == nil &&
		us.Document == nil && us.BirthDate == nil && us.Age == nil && us.Grade == nil && us.School == nil
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	if us.IsEmpty() {
		return core.NewValidationError(ErrNothingToUpdate)
	}
	if us.Name != nil {
		name := core.CleanString(*us.Name)
		us.Name = &name
	}
	return validate.Struct(us)
}

func (us *UpdateStudent) apply(s *Student) {
	if us.Name != nil {
		s.Name = *us.Name
	}
	if us.LastName != nil {
		s.LastName = null.StringFrom(*us.LastName)
	}
	if us.Email != nil {
		s.Email = null.StringFrom(*us.Email)
	}
	if us.TherapistID != nil {
		s.TherapistID = null.IntFrom(*us.TherapistID)
	}
	if us.Document != nil {
		s.Document = null.StringFrom(*us.Document)
	}
	if us.BirthDate != nil {
		s.BirthDate = *us.BirthDate
	}
	if us.Age != nil {
		s.Age = null.IntFrom(*us.Age)
	}
	if us.Grade != nil {
		s.Grade = null.StringFrom(*us.Grade)
	}
	if us.School != nil {
		s.School = null.StringFrom(*us.School)
	}
}

// ResendCode asks for the access code to be e-mailed again, optionally regenerating it first.
type ResendCode struct {
	Recipients EmailList `json:"destinatarios" validate:"required,min=1,dive,email"`
	Regenerate bool      `json:"regenerate"`
}

func (rc *ResendCode) Validate(validate *validator.Validate) error {
	return validate.Struct(rc)
}

type AssignTherapist struct {
	TherapistID int `json:"terapeuta_id" validate:"required,min=1"`
}

func (at *AssignTherapist) Validate(validate *validator.Validate) error {
	return validate.Struct(at)
}

// Created is the outcome of Service.Create.
type Created struct {
	Student  Student  `json:"estudiante"`
	Notified []string `json:"notificando"` // e-mails queued for the access code
}

// Resent is the outcome of Service.ResendCode.
type Resent struct {
	StudentID  int    `json:"estudiante_id"`
	AccessCode string `json:"codigo_acceso"`
	notify.Report
}
