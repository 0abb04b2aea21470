package echoapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/evasensorial/eva/core"
	logsvc "github.com/evasensorial/eva/services/logger"
)

func Test_appHTTPErrorHandler(t *testing.T) {
	conf := &core.Config{Env: "TEST", TestMode: true}
	logger := logsvc.NewRollbarLogger(io.Discard, conf)

	tests := []struct {
		name         string
		err          error
		wantCode     int
		wantData     string
		wantShutdown bool
	}{
		{
			name:     "not found",
			err:      errors.Wrap(core.NewNotFoundError("Estudiante no encontrado"), "getting student"),
			wantCode: http.StatusNotFound,
			wantData: `{"message": "Estudiante no encontrado"}`,
		},
		{
			name:     "unexpected",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantData: `{"message": "boom"}`,
		},
		{
			name:         "shutdown",
			err:          errors.Wrap(core.NewShutdownError("rolling back after boom: connection reset"), "finalizing"),
			wantCode:     http.StatusInternalServerError,
			wantData:     `{"message": "finalizing: rolling back after boom: connection reset"}`,
			wantShutdown: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var signalled bool
			handler := newAppHTTPErrorHandler(logger, core.NewTranslator(), func() { signalled = true })

			rec := httptest.NewRecorder()
			ctx := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			handler(tt.err, ctx)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantData, rec.Body.String())
			assert.Equal(t, tt.wantShutdown, signalled)
		})
	}
}
