package therapist

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/evasensorial/eva/core"
)

type Therapist struct {
	ID             int         `json:"terapeuta_id" db:"terapeuta_id"`
	Name           string      `json:"nombre" db:"nombre"`
	Email          string      `json:"email" db:"email"`
	PasswordHash   []byte      `json:"-" db:"contrasena"`
	IsSuperAdmin   bool        `json:"es_superadmin" db:"es_superadmin"`
	Position       null.String `json:"cargo" db:"cargo"`
	Identification null.String `json:"identificacion" db:"identificacion"`
	Specialty      null.String `json:"especialidad" db:"especialidad"`
	Phone          null.String `json:"telefono" db:"telefono"`
	Location       null.String `json:"ubicacion" db:"ubicacion"`
	Status         null.String `json:"estado" db:"estado"`
	CreatedAt      time.Time   `json:"creado_en" db:"creado_en"` // UTC
}

func (t *Therapist) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	t.PasswordHash = hash
	return nil
}

func (t *Therapist) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(t.PasswordHash, []byte(pwd))
}

// NewTherapist contains information needed to create a new Therapist.
type NewTherapist struct {
	Name           string      `json:"nombre" validate:"required"`
	Email          string      `json:"email" validate:"required,email"`
	Password       string      `json:"password" validate:"required"`
	Contrasena     string      `json:"contrasena"` // legacy alias of password
	ContrasenaN    string      `json:"contraseña"` // legacy alias of password
	IsSuperAdmin   bool        `json:"es_superadmin"`
	Position       null.String `json:"cargo"`
	Identification null.String `json:"identificacion"`
	Specialty      null.String `json:"especialidad"`
	Phone          null.String `json:"telefono"`
	Location       null.String `json:"ubicacion"`
	Status         null.String `json:"estado"`
}

func (nt *NewTherapist) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Password = firstNonEmpty(nt.Password, nt.Contrasena, nt.ContrasenaN)
	nt.Contrasena, nt.ContrasenaN = "", ""
	return validate.Struct(nt)
}

// UpdateTherapist defines what information may be provided to modify an existing Therapist.
// Nil fields are left untouched.
type UpdateTherapist struct {
	Name           *string `json:"nombre" validate:"omitempty,min=1"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Password       *string `json:"password"`
	Contrasena     *string `json:"contrasena"`
	ContrasenaN    *string `json:"contraseña"`
	IsSuperAdmin   *bool   `json:"es_superadmin"`
	Position       *string `json:"cargo"`
	Identification *string `json:"identificacion"`
	Specialty      *string `json:"especialidad"`
	Phone          *string `json:"telefono"`
	Location       *string `json:"ubicacion"`
	Status         *string `json:"estado"`
}

func (ut *UpdateTherapist) IsEmpty() bool {
	return ut.Name == nil && ut.Email == nil && ut.Password == nil && ut.Contrasena == nil && ut.ContrasenaN == nil &&
		ut.IsSuperAdmin == nil && ut.Position == nil && ut.Identification == nil && ut.Specialty == nil &&
		ut.Phone == nil && ut.Location == nil && ut.Status == nil
}

func (ut *UpdateTherapist) Validate(validate *validator.Validate) error {
	if ut.IsEmpty() {
		return core.NewValidationError(ErrNothingToUpdate)
	}
	if ut.Name != nil {
		name := core.CleanString(*ut.Name)
		ut.Name = &name
	}
	if ut.Email != nil {
		email := core.CleanString(*ut.Email, true /* lower */)
		ut.Email = &email
	}
	if ut.Password == nil {
		ut.Password = ut.Contrasena
	}
	if ut.Password == nil {
		ut.Password = ut.ContrasenaN
	}
	ut.Contrasena, ut.ContrasenaN = nil, nil
	return validate.Struct(ut)
}

// apply copies the provided fields onto t.
func (ut *UpdateTherapist) apply(t *Therapist) error {
	if ut.Name != nil {
		t.Name = *ut.Name
	}
	if ut.Email != nil {
		t.Email = *ut.Email
	}
	if ut.IsSuperAdmin != nil {
		t.IsSuperAdmin = *ut.IsSuperAdmin
	}
	setNullString(&t.Position, ut.Position)
	setNullString(&t.Identification, ut.Identification)
	setNullString(&t.Specialty, ut.Specialty)
	setNullString(&t.Phone, ut.Phone)
	setNullString(&t.Location, ut.Location)
	setNullString(&t.Status, ut.Status)
	if ut.Password != nil {
		return t.SetPassword(*ut.Password)
	}
	return nil
}

func setNullString(dst *null.String, val *string) {
	if val != nil {
		*dst = null.StringFrom(*val)
	}
}

type LoginRequest struct {
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password" validate:"required"`
	Contrasena  string `json:"contrasena"` // legacy alias of password
	ContrasenaN string `json:"contraseña"` // legacy alias of password
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	lr.Password = firstNonEmpty(lr.Password, lr.Contrasena, lr.ContrasenaN)
	lr.Contrasena, lr.ContrasenaN = "", ""
	return validate.Struct(lr)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

type GetFilter struct {
	ID    int
	Email string
}
