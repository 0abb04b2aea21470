package registration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/evasensorial/eva/core"
)

// Participant types
const (
	TypeGuardian = "familiar"
	TypeTeacher  = "profesor"
)

var (
	fieldName  = "nombre"
	fieldEmail = "email"
)

// RoleField is the participant attribute specific to typ: "parentesco" for guardians, "materia" for teachers.
func RoleField(typ string) string {
	if typ == TypeTeacher {
		return "materia"
	}
	return "parentesco"
}

func idField(typ string) string {
	if typ == TypeTeacher {
		return "profesor_id"
	}
	return "familiar_id"
}

// Participant is a guardian ("familiar") or a teacher ("profesor").
type Participant struct {
	Type      string
	ID        int
	Document  null.String
	Name      string
	Email     string
	RoleValue null.String // parentesco | materia
}

func (p Participant) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"tipo":                     p.Type,
		idField(p.Type):            p.ID,
		"documento_identificacion": p.Document,
		fieldName:                  p.Name,
		fieldEmail:                 p.Email,
		RoleField(p.Type):          p.RoleValue,
	})
}

// Missing lists the canonical profile fields that are still empty.
func (p Participant) Missing() []string {
	missing := make([]string, 0, 3)
	if p.Name == "" {
		missing = append(missing, fieldName)
	}
	if p.Email == "" {
		missing = append(missing, fieldEmail)
	}
	if !p.RoleValue.Valid || p.RoleValue.String == "" {
		missing = append(missing, RoleField(p.Type))
	}
	return missing
}

// ParticipantPatch holds the permanent profile fields to overwrite. Nil fields are left untouched.
type ParticipantPatch struct {
	Name      *string
	Email     *string
	RoleValue *null.String
}

func (pp ParticipantPatch) IsEmpty() bool {
	return pp.Name == nil && pp.Email == nil && pp.RoleValue == nil
}

// patchFromDraft picks the recognized keys out of a draft profile.
func patchFromDraft(typ string, data map[string]interface{}) ParticipantPatch {
	var patch ParticipantPatch
	if v, ok := data[fieldName]; ok {
		s := draftString(v)
		patch.Name = &s
	}
	if v, ok := data[fieldEmail]; ok {
		s := draftString(v)
		patch.Email = &s
	}
	if v, ok := data[RoleField(typ)]; ok {
		ns := null.NewString(draftString(v), v != nil)
		patch.RoleValue = &ns
	}
	return patch
}

func draftString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

type AccessToken struct {
	Token      string    `json:"token" db:"token"`
	Type       string    `json:"tipo_usuario" db:"tipo_usuario"`
	GuardianID null.Int  `json:"-" db:"familiar_id"`
	TeacherID  null.Int  `json:"-" db:"profesor_id"`
	StudentID  int       `json:"estudiante_id" db:"estudiante_id"`
	Document   string    `json:"-" db:"documento_identificacion"`
	ExpiresAt  time.Time `json:"expira_en" db:"expira_en"`
	Active     bool      `json:"-" db:"activo"`
	CreatedAt  time.Time `json:"-" db:"creado_en"`
}

func (t AccessToken) ParticipantID() int {
	if t.Type == TypeTeacher {
		return int(t.TeacherID.Int)
	}
	return int(t.GuardianID.Int)
}

// IsOpen reports whether the token still accepts drafts at now.
func (t AccessToken) IsOpen(now time.Time) bool {
	return t.Active && t.ExpiresAt.After(now)
}

type DraftAnswer struct {
	Token      string    `json:"-" db:"token"`
	StudentID  int       `json:"-" db:"estudiante_id"`
	QuestionID int       `json:"pregunta_id" db:"pregunta_id"`
	Answer     string    `json:"respuesta" db:"respuesta"`
	UpdatedAt  time.Time `json:"actualizado_en" db:"actualizado_en"`
}

type StudentSummary struct {
	ID         int         `json:"estudiante_id"`
	Name       string      `json:"nombre"`
	LastName   null.String `json:"apellidos"`
	AccessCode string      `json:"codigo_acceso"`
}

// NewRegistration is what a guardian or teacher sends to register against a student's access code.
type NewRegistration struct {
	Type         string      `json:"tipo_usuario" validate:"required,oneof=familiar profesor"`
	AccessCode   string      `json:"codigo_acceso" validate:"required"`
	Document     string      `json:"documento_identificacion" validate:"required"`
	Name         string      `json:"nombre"`
	Email        string      `json:"email" validate:"omitempty,email"`
	Relationship null.String `json:"parentesco"`
	Subject      null.String `json:"materia"`
	ExpiresIn    int         `json:"expira_min" validate:"omitempty,min=1,max=525600"` // minutes
}

func (nr *NewRegistration) Validate(validate *validator.Validate) error {
	nr.Type = core.CleanString(nr.Type, true /* lower */)
	nr.AccessCode = core.CleanString(nr.AccessCode)
	nr.Document = core.CleanString(nr.Document)
	nr.Name = core.CleanString(nr.Name)
	nr.Email = core.CleanString(nr.Email, true /* lower */)
	return validate.Struct(nr)
}

func (nr NewRegistration) roleValue() null.String {
	val := nr.Relationship
	if nr.Type == TypeTeacher {
		val = nr.Subject
	}
	if val.Valid && core.CleanString(val.String) == "" {
		return null.String{}
	}
	return val
}

// Issued is the outcome of Service.Register.
type Issued struct {
	Token       string      `json:"token"`
	ExpiresAt   time.Time   `json:"expira_en"`
	StudentID   int         `json:"estudiante_id"`
	Participant Participant `json:"participante"`
}

// State is everything a client needs to resume a registration.
type State struct {
	Token        string                 `json:"token"`
	Type         string                 `json:"tipo_usuario"`
	Participant  *Participant           `json:"participante"`
	Student      *StudentSummary        `json:"estudiante"`
	Missing      []string               `json:"faltantes"`
	DraftProfile map[string]interface{} `json:"participante_temp"`
	DraftAnswers []DraftAnswer          `json:"respuestas_temporales"`
}

type PatchDraft struct {
	Data map[string]interface{} `json:"data"`
}

// SaveAnswers accepts either one answer (`pregunta_id` + `respuesta`) or a batch in `respuestas`.
type SaveAnswers struct {
	QuestionID json.RawMessage   `json:"pregunta_id"`
	Answer     json.RawMessage   `json:"respuesta"`
	Answers    []json.RawMessage `json:"respuestas"`
}

type AnswerInput struct {
	QuestionID int
	Answer     string
}

// Skipped reports a batch item that was not saved.
type Skipped struct {
	Index  int    `json:"indice"`
	Reason string `json:"motivo"`
}

// Items normalizes the payload. Malformed items are left out and reported in skipped.
func (sa SaveAnswers) Items() (items []AnswerInput, skipped []Skipped, err error) {
	raw := sa.Answers
	if raw == nil {
		if isBlank(sa.QuestionID) {
			return nil, nil, core.NewValidationError(ErrNoAnswers)
		}
		single, _ := json.Marshal(map[string]json.RawMessage{"pregunta_id": sa.QuestionID, "respuesta": sa.Answer})
		raw = []json.RawMessage{single}
	}
	if len(raw) == 0 {
		return nil, nil, core.NewValidationError(ErrNoAnswers)
	}

	items = make([]AnswerInput, 0, len(raw))
	skipped = make([]Skipped, 0)
	for i, r := range raw {
		item, reason := parseAnswerItem(r)
		if reason != "" {
			skipped = append(skipped, Skipped{Index: i, Reason: reason})
			continue
		}
		items = append(items, item)
	}
	return items, skipped, nil
}

func parseAnswerItem(raw json.RawMessage) (AnswerInput, string) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return AnswerInput{}, "item inválido"
	}
	qid, ok := obj["pregunta_id"]
	if !ok || isBlank(qid) {
		return AnswerInput{}, "falta pregunta_id"
	}
	id, err := parseQuestionID(qid)
	if err != nil {
		return AnswerInput{}, "pregunta_id inválido"
	}
	ans, ok := obj["respuesta"]
	if !ok || isNull(ans) {
		return AnswerInput{}, "falta respuesta"
	}
	return AnswerInput{QuestionID: id, Answer: answerText(ans)}, ""
}

func parseQuestionID(raw json.RawMessage) (int, error) {
	var id int
	if err := json.Unmarshal(raw, &id); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		if id, err = strconv.Atoi(strings.TrimSpace(s)); err != nil {
			return 0, err
		}
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid question id %d", id)
	}
	return id, nil
}

// answerText stores strings as-is and any other JSON value as its compact literal.
func answerText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// isBlank mirrors a falsy check: absent, null, 0 and "" are blank.
func isBlank(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "0", `""`, "false":
		return true
	}
	return false
}

// Saved is the outcome of Service.SaveAnswers.
type Saved struct {
	Message string    `json:"message"`
	Saved   int       `json:"guardados"`
	Skipped []Skipped `json:"omitidos"`
}

// Finalized is the outcome of Service.Finalize.
type Finalized struct {
	Message  string `json:"message"`
	Inserted int    `json:"insertados"`
}

// LinkByEmail links a guardian or teacher, found or created by e-mail, to the student owning AccessCode.
// Type is set from the route, not the body.
type LinkByEmail struct {
	Type         string      `json:"-"`
	Email        string      `json:"email" validate:"required,email"`
	Name         string      `json:"nombre"`
	Relationship null.String `json:"parentesco"`
	Subject      null.String `json:"materia"`
	AccessCode   string      `json:"codigo_acceso" validate:"required"`
}

func (l *LinkByEmail) Validate(validate *validator.Validate) error {
	l.Email = core.CleanString(l.Email, true /* lower */)
	l.Name = core.CleanString(l.Name)
	l.AccessCode = core.CleanString(l.AccessCode)
	return validate.Struct(l)
}

func (l LinkByEmail) roleValue() null.String {
	return NewRegistration{Type: l.Type, Relationship: l.Relationship, Subject: l.Subject}.roleValue()
}
