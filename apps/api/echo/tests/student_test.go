package tests

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/evasensorial/eva/apps/api/echo"
	"github.com/evasensorial/eva/core"
	"github.com/evasensorial/eva/core/registration"
	"github.com/evasensorial/eva/core/student"
)

func Test_studentApi_create(t *testing.T) {
	app := setup(t)
	ana := app.createTherapist(t, "Ana Ruiz", "ana@eva.co", "s3cretPass!")
	token := app.getToken(t, ana)

	rec := app.do(t, http.MethodPost, "/api/estudiantes", token, `{
		"nombre": " Sofía ",
		"apellidos": "Gómez",
		"fecha_nacimiento": "2016-03-09",
		"familiares": ["Mama@x.co", {"email": "papa@x.co"}, "mama@x.co"],
		"profesores": [{"email": "profe@colegio.co"}]
	}`)
	if !checkCode(t, rec, http.StatusCreated) {
		return
	}
	var created echoapi.StudentCreatedResponse
	unmarshalBody(t, rec, &created)
	assert.Len(t, created.AccessCode, app.conf.AccessCodeLength)
	assert.Equal(t, []string{"mama@x.co", "papa@x.co", "mama@x.co", "profe@colegio.co"}, created.Notified)

	// the code is e-mailed in the background, once per address
	app.dispatcher.Wait()
	sent := app.mail.SentMessages()
	if assert.Len(t, sent, 3) {
		to := make([]string, 0, len(sent))
		for _, msg := range sent {
			to = append(to, msg.To[0].Address)
			assert.Contains(t, msg.TextContent, created.AccessCode)
			assert.Contains(t, msg.TextContent, "Sofía Gómez")
			assert.Contains(t, msg.Subject, "Sofía Gómez")
		}
		assert.ElementsMatch(t, []string{"mama@x.co", "papa@x.co", "profe@colegio.co"}, to)
	}

	rec = app.do(t, http.MethodGet, "/api/estudiantes/"+strconv.Itoa(created.StudentID), token, nil)
	if checkCode(t, rec, http.StatusOK) {
		var s student.Student
		unmarshalBody(t, rec, &s)
		assert.Equal(t, "Sofía", s.Name)
		assert.Equal(t, created.AccessCode, s.AccessCode)
		assert.Equal(t, ana.ID, s.TherapistID.Int, "defaults to the authenticated therapist")
		assert.Equal(t, "2016-03-09", s.BirthDate.Time.Time.Format(core.DateLayout))
	}

	tests := []httpTest{
		{name: "missing name", body: []byte(`{"apellidos": "Gómez"}`), wantCode: http.StatusBadRequest},
		{name: "invalid guardian email", body: []byte(`{"nombre": "Tomás", "familiares": ["lol"]}`), wantCode: http.StatusBadRequest},
		{name: "invalid birth date", body: []byte(`{"nombre": "Tomás", "fecha_nacimiento": "09/03/2016"}`), wantCode: http.StatusBadRequest},
		{
			name: "unknown therapist", body: []byte(`{"nombre": "Tomás", "terapeuta_id": 999}`),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Message: student.ErrTherapistNotFound.Error()}),
		},
		{name: "no recipients", body: []byte(`{"nombre": "Tomás"}`), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodPost, "/api/estudiantes", token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_studentApi_query(t *testing.T) {
	app := setup(t)
	ana := app.createTherapist(t, "Ana Ruiz", "ana@eva.co", "s3cretPass!")
	luis := app.createTherapist(t, "Luis Pardo", "luis@eva.co", "an0therPass!")
	token := app.getToken(t, ana)

	bruno := app.createStudent(t, "Bruno", ana.ID)
	camila := app.createStudent(t, "Camila", luis.ID)
	andres := app.createStudent(t, "Andrés", ana.ID)
	orphan := app.createStudent(t, "Zoe", 0)

	names := func(rec []student.Student) []string {
		nn := make([]string, 0, len(rec))
		for _, s := range rec {
			nn = append(nn, s.Name)
		}
		return nn
	}

	tests := []struct {
		name string
		path string
		want []string
	}{
		{name: "all, newest first", path: "/api/estudiantes", want: []string{orphan.Name, andres.Name, camila.Name, bruno.Name}},
		{name: "all by name", path: "/api/estudiantes?ordering=nombre", want: []string{andres.Name, bruno.Name, camila.Name, orphan.Name}},
		{name: "by therapist", path: "/api/estudiantes/por-terapeuta/" + strconv.Itoa(ana.ID), want: []string{andres.Name, bruno.Name}},
		{name: "by therapist by name desc", path: "/api/estudiantes/por-terapeuta/" + strconv.Itoa(ana.ID) + "?ordering=-nombre", want: []string{bruno.Name, andres.Name}},
		{name: "by therapist without students", path: "/api/estudiantes/por-terapeuta/999", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodGet, tt.path, token, nil)
			if !checkCode(t, rec, http.StatusOK) {
				return
			}
			var students []student.Student
			unmarshalBody(t, rec, &students)
			assert.Equal(t, tt.want, names(students))
		})
	}
}

func Test_studentApi_update(t *testing.T) {
	app := setup(t)
	ana := app.createTherapist(t, "Ana Ruiz", "ana@eva.co", "s3cretPass!")
	luis := app.createTherapist(t, "Luis Pardo", "luis@eva.co", "an0therPass!")
	token := app.getToken(t, ana)

	s := app.createStudent(t, "Bruno", ana.ID)
	path := "/api/estudiantes/" + strconv.Itoa(s.ID)

	tests := []httpTest{
		{
			name: "nothing to update", method: http.MethodPut, path: path, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Message: student.ErrNothingToUpdate.Error()}),
		},
		{name: "unknown field", method: http.MethodPut, path: path, body: []byte(`{"lol": true}`), wantCode: http.StatusBadRequest},
		{name: "not found", method: http.MethodPut, path: "/api/estudiantes/999", body: []byte(`{"grado": "3"}`), wantCode: http.StatusNotFound},
		{name: "ok", method: http.MethodPut, path: path, body: []byte(`{"grado": "3B", "colegio": "San José", "edad": 8}`), wantCode: http.StatusOK},
		{
			name: "assign: unknown therapist", method: http.MethodPost, path: path + "/asignar-terapeuta",
			body: []byte(`{"terapeuta_id": 999}`), wantCode: http.StatusNotFound,
		},
		{
			name: "assign: missing therapist", method: http.MethodPost, path: path + "/asignar-terapeuta",
			body: []byte(`{}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "assign: ok", method: http.MethodPost, path: path + "/asignar-terapeuta",
			body:     marshalObj(t, map[string]int{"terapeuta_id": luis.ID}),
			wantCode: http.StatusOK, wantData: []byte(`{"message": "Estudiante asignado a un terapeuta de manera correcta"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, tt.method, tt.path, token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec := app.do(t, http.MethodGet, path, token, nil)
	if checkCode(t, rec, http.StatusOK) {
		var got student.Student
		unmarshalBody(t, rec, &got)
		assert.Equal(t, "Bruno", got.Name)
		assert.Equal(t, "3B", got.Grade.String)
		assert.Equal(t, "San José", got.School.String)
		assert.Equal(t, 8, got.Age.Int)
		assert.Equal(t, luis.ID, got.TherapistID.Int)
		assert.Equal(t, s.AccessCode, got.AccessCode)
	}
}

func Test_studentApi_resendCode(t *testing.T) {
	app := setup(t)
	ana := app.createTherapist(t, "Ana Ruiz", "ana@eva.co", "s3cretPass!")
	token := app.getToken(t, ana)

	s := app.createStudent(t, "Bruno", ana.ID)
	path := "/api/estudiantes/" + strconv.Itoa(s.ID) + "/reenviar-codigo"
	app.mail.Fail["rebota@x.co"] = errors.New("buzón inexistente")

	rec := app.do(t, http.MethodPost, path, token, `{"destinatarios": []}`)
	checkCode(t, rec, http.StatusBadRequest)
	rec = app.do(t, http.MethodPost, "/api/estudiantes/999/reenviar-codigo", token, `{"destinatarios": ["mama@x.co"]}`)
	checkCode(t, rec, http.StatusNotFound)

	// partial failures are reported, not raised
	rec = app.do(t, http.MethodPost, path, token, `{"destinatarios": ["mama@x.co", "REBOTA@x.co", {"email": "papa@x.co"}]}`)
	if checkCode(t, rec, http.StatusOK) {
		var res student.Resent
		unmarshalBody(t, rec, &res)
		assert.Equal(t, s.ID, res.StudentID)
		assert.Equal(t, s.AccessCode, res.AccessCode)
		assert.Equal(t, []string{"mama@x.co", "papa@x.co"}, res.Sent)
		if assert.Len(t, res.Failed, 1) {
			assert.Equal(t, "rebota@x.co", res.Failed[0].To)
			assert.Equal(t, "buzón inexistente", res.Failed[0].Error)
		}
	}
	assert.Len(t, app.mail.SentMessages(), 2)

	// regenerate
	app.mail.Reset()
	rec = app.do(t, http.MethodPost, path, token, `{"destinatarios": ["mama@x.co"], "regenerate": true}`)
	if checkCode(t, rec, http.StatusOK) {
		var res student.Resent
		unmarshalBody(t, rec, &res)
		assert.NotEqual(t, s.AccessCode, res.AccessCode)
		assert.Len(t, res.AccessCode, app.conf.AccessCodeLength)
		assert.Equal(t, []string{"mama@x.co"}, res.Sent)

		sent := app.mail.SentMessages()
		if assert.Len(t, sent, 1) {
			assert.True(t, strings.Contains(sent[0].TextContent, res.AccessCode))
		}
		refreshed, err := app.studentRepo.GetStudent(context.Background(), student.GetFilter{ID: s.ID})
		if assert.NoError(t, err) {
			assert.Equal(t, res.AccessCode, refreshed.AccessCode)
		}
	}
}

func Test_studentApi_delete(t *testing.T) {
	app := setup(t)
	ana := app.createTherapist(t, "Ana Ruiz", "ana@eva.co", "s3cretPass!")
	token := app.getToken(t, ana)

	s := app.createStudent(t, "Bruno", ana.ID)
	rec := app.do(t, http.MethodPost, "/api/registro/participante", "", map[string]string{
		"tipo_usuario":             registration.TypeGuardian,
		"codigo_acceso":            s.AccessCode,
		"documento_identificacion": "1010",
	})
	checkCode(t, rec, http.StatusCreated)
	assert.Len(t, app.db.Links(registration.TypeGuardian, s.ID), 1)

	path := "/api/estudiantes/" + strconv.Itoa(s.ID)
	rec = app.do(t, http.MethodDelete, path, token, nil)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"message": "Eliminado"}`)}, rec)

	assert.Empty(t, app.db.Links(registration.TypeGuardian, s.ID))
	rec = app.do(t, http.MethodGet, path, token, nil)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Message: "Estudiante no encontrado"})}, rec)
	rec = app.do(t, http.MethodDelete, path, token, nil)
	checkCode(t, rec, http.StatusNotFound)
}

func Test_studentApi_link(t *testing.T) {
	app := setup(t)
	ana := app.createTherapist(t, "Ana Ruiz", "ana@eva.co", "s3cretPass!")
	s := app.createStudent(t, "Bruno", ana.ID)

	linked := marshalObj(t, echoapi.LinkedResponse{Message: "Vinculado", StudentID: s.ID})

	tests := []httpTest{
		{
			name: "guardian", path: "/api/estudiantes/link/familiar",
			body:     marshalObj(t, map[string]string{"email": "Mama@x.co", "nombre": "Marta", "parentesco": "madre", "codigo_acceso": s.AccessCode}),
			wantCode: http.StatusOK, wantData: linked,
		},
		{
			name: "same guardian again", path: "/api/estudiantes/link/familiar",
			body:     marshalObj(t, map[string]string{"email": "mama@x.co", "codigo_acceso": s.AccessCode}),
			wantCode: http.StatusOK, wantData: linked,
		},
		{
			name: "teacher", path: "/api/estudiantes/link/profesor",
			body:     marshalObj(t, map[string]string{"email": "profe@colegio.co", "materia": "Matemáticas", "codigo_acceso": s.AccessCode}),
			wantCode: http.StatusOK, wantData: linked,
		},
		{
			name: "invalid code", path: "/api/estudiantes/link/profesor",
			body:     marshalObj(t, map[string]string{"email": "profe@colegio.co", "codigo_acceso": "LOL"}),
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Message: registration.ErrInvalidCode.Error()}),
		},
		{
			name: "invalid email", path: "/api/estudiantes/link/familiar",
			body:     marshalObj(t, map[string]string{"email": "lol", "codigo_acceso": s.AccessCode}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "tipo is taken from the route", path: "/api/estudiantes/link/familiar",
			body:     marshalObj(t, map[string]string{"email": "tia@x.co", "tipo_usuario": "profesor", "codigo_acceso": s.AccessCode}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodPost, tt.path, "", tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	assert.Len(t, app.db.Links(registration.TypeGuardian, s.ID), 1)
	assert.Len(t, app.db.Links(registration.TypeTeacher, s.ID), 1)
}
