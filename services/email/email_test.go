package emailsvc

import (
	"bytes"
	"context"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evasensorial/eva/core"
)

func testConfig() *core.Config {
	return &core.Config{TestMode: true, AppName: "EVA", FrontendBaseURL: "http://localhost:5173"}
}

func Test_consoleService_Send(t *testing.T) {
	tests := []struct {
		name       string
		msg        core.EmailMessage
		wantErr    bool
		wantOutput []string
	}{
		{
			name: "plain text",
			msg: core.EmailMessage{
				To:      []mail.Address{{Name: "Marta", Address: "mama@x.co"}},
				Cc:      []mail.Address{{Address: "papa@x.co"}},
				Subject: "Hola",
				BodyStr: "Bienvenida",
			},
			wantOutput: []string{
				"Subject: [EVA] Hola", `To: "Marta" <mama@x.co>`, "CC: <papa@x.co>",
				"text/plain; charset=utf-8", "Bienvenida",
			},
		},
		{
			name: "templated",
			msg: core.EmailMessage{
				To:           []mail.Address{{Address: "profe@x.co"}},
				Subject:      "Código",
				TemplateName: "access_code",
				TemplateData: map[string]interface{}{
					"Heading": "Invitación", "RecipientName": "", "Intro": "Hola",
					"StudentName": "Sofía", "Code": "AB3D7K2Q", "PortalURL": "http://x/?code=AB3D7K2Q", "ButtonText": "Abrir",
				},
			},
			wantOutput: []string{"text/html; charset=utf-8", "AB3D7K2Q", "http://localhost:5173"},
		},
		{name: "no recipients", msg: core.EmailMessage{Subject: "Hola", BodyStr: "x"}},
		{
			name:    "unknown template",
			msg:     core.EmailMessage{To: []mail.Address{{Address: "mama@x.co"}}, TemplateName: "lol"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			svc := NewConsoleService(testConfig(), &out)
			err := svc.Send(context.Background(), &tt.msg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			if len(tt.wantOutput) == 0 {
				assert.Empty(t, out.String())
			}
			for _, want := range tt.wantOutput {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func Test_consoleService_Send_canceled(t *testing.T) {
	var out bytes.Buffer
	svc := NewConsoleService(testConfig(), &out)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Send(ctx, &core.EmailMessage{To: []mail.Address{{Address: "mama@x.co"}}, BodyStr: "x"})
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, out.String())
}

func TestConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock(testConfig())
	svc.Fail["rebota@x.co"] = assert.AnError

	err := svc.Send(context.Background(), &core.EmailMessage{To: []mail.Address{{Address: "Rebota@x.co"}}, BodyStr: "x"})
	assert.Equal(t, assert.AnError, err)

	err = svc.Send(context.Background(), &core.EmailMessage{To: []mail.Address{{Address: "mama@x.co"}}, BodyStr: "x"})
	assert.NoError(t, err)
	if sent := svc.SentMessages(); assert.Len(t, sent, 1) {
		assert.Equal(t, "x", sent[0].TextContent)
	}

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func Test_sendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(testConfig()).(*sendgridService)
	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Marta", Address: "mama@x.co"}},
		Cc:          []mail.Address{{Address: "papa@x.co"}},
		Bcc:         []mail.Address{{Address: "archivo@x.co"}},
		Subject:     "Código",
		TextContent: "texto",
		HTMLContent: "<p>html</p>",
	})

	assert.Equal(t, "noreply@localhost", m.From.Address)
	if assert.Len(t, m.Personalizations, 1) {
		p := m.Personalizations[0]
		assert.Equal(t, "[EVA] Código", p.Subject)
		if assert.Len(t, p.To, 1) {
			assert.Equal(t, "Marta", p.To[0].Name)
			assert.Equal(t, "mama@x.co", p.To[0].Address)
		}
		assert.Len(t, p.CC, 1)
		assert.Len(t, p.BCC, 1)
	}
	if assert.Len(t, m.Content, 2) {
		assert.Equal(t, "text/plain", m.Content[0].Type)
		assert.Equal(t, "texto", m.Content[0].Value)
		assert.Equal(t, "text/html", m.Content[1].Type)
	}

	// no html part without html content
	m = svc.prepare(core.EmailMessage{To: []mail.Address{{Address: "mama@x.co"}}, TextContent: "texto"})
	assert.Len(t, m.Content, 1)
}
