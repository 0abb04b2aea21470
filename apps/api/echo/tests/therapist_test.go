package tests

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/evasensorial/eva/apps/api/echo"
	"github.com/evasensorial/eva/core/therapist"
)

func Test_home(t *testing.T) {
	app := setup(t)

	rec := app.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "API EVA funcionando", rec.Body.String())
}

func Test_therapistApi_login(t *testing.T) {
	app := setup(t)
	ana := app.createTherapist(t, "Ana Ruiz", "ana@eva.co", "s3cretPass!")

	badCredentials := marshalObj(t, httpErr{Message: "Credenciales inválidas"})

	tests := []httpTest{
		{name: "valid", body: []byte(`{"email": "ana@eva.co", "password": "s3cretPass!"}`), wantCode: http.StatusOK},
		{name: "upper-cased email", body: []byte(`{"email": " ANA@eva.co", "password": "s3cretPass!"}`), wantCode: http.StatusOK},
		{name: "contrasena alias", body: []byte(`{"email": "ana@eva.co", "contrasena": "s3cretPass!"}`), wantCode: http.StatusOK},
		{name: "contraseña alias", body: []byte(`{"email": "ana@eva.co", "contraseña": "s3cretPass!"}`), wantCode: http.StatusOK},
		{
			name: "wrong password", body: []byte(`{"email": "ana@eva.co", "password": "lolPass123"}`),
			wantCode: http.StatusUnauthorized, wantData: badCredentials,
		},
		{
			name: "unknown email", body: []byte(`{"email": "lol@eva.co", "password": "s3cretPass!"}`),
			wantCode: http.StatusUnauthorized, wantData: badCredentials,
		},
		{name: "missing password", body: []byte(`{"email": "ana@eva.co"}`), wantCode: http.StatusBadRequest},
		{name: "unknown field", body: []byte(`{"email": "ana@eva.co", "password": "s3cretPass!", "lol": 1}`), wantCode: http.StatusBadRequest},
		{name: "malformed json", body: []byte(`{"email": "ana@eva.co",`), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodPost, "/api/auth/login", "", tt.body)
			if tt.wantCode != http.StatusOK {
				checkCodeAndData(t, tt, rec)
				return
			}
			if !checkCode(t, rec, http.StatusOK) {
				return
			}
			var res echoapi.LoginResponse
			unmarshalBody(t, rec, &res)
			assert.Equal(t, ana.ID, res.User.ID)
			assert.Equal(t, ana.Email, res.User.Email)
			assert.NotContains(t, rec.Body.String(), "contrasena")

			// the token opens the authed endpoints
			rec = app.do(t, http.MethodGet, "/api/terapeutas/"+strconv.Itoa(ana.ID), res.Token, nil)
			checkCode(t, rec, http.StatusOK)
		})
	}
}

func Test_therapistApi_auth(t *testing.T) {
	app := setup(t)
	ana := app.createTherapist(t, "Ana Ruiz", "ana@eva.co", "s3cretPass!")
	gone := app.createTherapist(t, "Luis Pardo", "luis@eva.co", "an0therPass!")
	goneToken := app.getToken(t, gone)
	rec := app.do(t, http.MethodDelete, "/api/terapeutas/"+strconv.Itoa(gone.ID), app.getToken(t, ana), nil)
	checkCode(t, rec, http.StatusOK)

	expiredClaims := echoapi.GetTherapistClaims(ana, app.conf)
	expiredClaims.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	expired, err := echoapi.GenerateToken(expiredClaims, app.conf)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	otherConf := newTestConfig()
	otherConf.SecretKey = "another-secret"
	forged, err := echoapi.GenerateToken(echoapi.GetTherapistClaims(ana, app.conf), otherConf)
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	invalid := marshalObj(t, httpErr{Message: "Token inválido"})

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Message: "Token requerido"})},
		{name: "garbage token", token: "lol", wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "expired token", token: expired, wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "forged token", token: forged, wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "deleted therapist", token: goneToken, wantCode: http.StatusUnauthorized, wantData: invalid},
		{name: "valid token", token: app.getToken(t, ana), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/api/terapeutas", "/api/estudiantes", "/api/formularios", "/api/respuestas/por-terapeuta/1"} {
				rec := app.do(t, http.MethodGet, path, tt.token, nil)
				checkCodeAndData(t, tt, rec)
			}
		})
	}
}

func Test_therapistApi_crud(t *testing.T) {
	app := setup(t)
	ana := app.createTherapist(t, "Ana Ruiz", "ana@eva.co", "s3cretPass!")
	token := app.getToken(t, ana)

	// create
	rec := app.do(t, http.MethodPost, "/api/terapeutas", token, map[string]interface{}{
		"nombre":       "Luis Pardo",
		"email":        " Luis@EVA.co",
		"password":     "otraClave9",
		"especialidad": "Terapia ocupacional",
	})
	if !checkCode(t, rec, http.StatusCreated) {
		return
	}
	var luis therapist.Therapist
	unmarshalBody(t, rec, &luis)
	assert.NotZero(t, luis.ID)
	assert.Equal(t, "luis@eva.co", luis.Email)
	assert.Equal(t, "Terapia ocupacional", luis.Specialty.String)
	assert.NotContains(t, rec.Body.String(), "otraClave9")
	luisPath := "/api/terapeutas/" + strconv.Itoa(luis.ID)

	tests := []httpTest{
		{
			name: "create: duplicate email", method: http.MethodPost, path: "/api/terapeutas",
			body:     []byte(`{"nombre": "Luis P", "email": "LUIS@eva.co", "password": "otraClave9"}`),
			wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Message: therapist.ErrEmailExists.Error()}),
		},
		{
			name: "create: numeric password", method: http.MethodPost, path: "/api/terapeutas",
			body:     []byte(`{"nombre": "Eva Gil", "email": "eva@eva.co", "password": "12345678"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "create: missing name", method: http.MethodPost, path: "/api/terapeutas",
			body:     []byte(`{"email": "eva@eva.co", "password": "otraClave9"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "retrieve: not found", method: http.MethodGet, path: "/api/terapeutas/999",
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Message: "terapeuta no encontrado"}),
		},
		{name: "retrieve: invalid id", method: http.MethodGet, path: "/api/terapeutas/lol", wantCode: http.StatusBadRequest},
		{
			name: "update: nothing", method: http.MethodPut, path: luisPath, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Message: therapist.ErrNothingToUpdate.Error()}),
		},
		{
			name: "update: email taken", method: http.MethodPut, path: luisPath, body: []byte(`{"email": "ana@eva.co"}`),
			wantCode: http.StatusConflict,
		},
		{
			name: "update: not found", method: http.MethodPut, path: "/api/terapeutas/999", body: []byte(`{"cargo": "Jefe"}`),
			wantCode: http.StatusNotFound,
		},
		{name: "update: ok", method: http.MethodPut, path: luisPath, body: []byte(`{"cargo": "Coordinador", "contraseña": "nuevaClave77"}`), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, tt.method, tt.path, token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	// the updated password is the one that logs in
	rec = app.do(t, http.MethodPost, "/api/auth/login", "", `{"email": "luis@eva.co", "password": "nuevaClave77"}`)
	checkCode(t, rec, http.StatusOK)
	rec = app.do(t, http.MethodPost, "/api/auth/login", "", `{"email": "luis@eva.co", "password": "otraClave9"}`)
	checkCode(t, rec, http.StatusUnauthorized)

	// query & ordering
	rec = app.do(t, http.MethodGet, "/api/terapeutas?ordering=-nombre", token, nil)
	if checkCode(t, rec, http.StatusOK) {
		var therapists []therapist.Therapist
		unmarshalBody(t, rec, &therapists)
		if assert.Len(t, therapists, 2) {
			assert.Equal(t, "Luis Pardo", therapists[0].Name)
			assert.Equal(t, "Coordinador", therapists[0].Position.String)
			assert.Equal(t, "Ana Ruiz", therapists[1].Name)
		}
	}

	// delete
	rec = app.do(t, http.MethodDelete, luisPath, token, nil)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"message": "Eliminado"}`)}, rec)
	rec = app.do(t, http.MethodDelete, luisPath, token, nil)
	checkCode(t, rec, http.StatusNotFound)
}
