package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailMessage_Render(t *testing.T) {
	conf := &Config{AppName: "EVA", FrontendBaseURL: "http://eva.test", TestMode: true}
	if err := ParseEmailTemplates(conf); err != nil {
		t.Fatalf("ParseEmailTemplates() failed: %v", err)
	}

	data := map[string]interface{}{
		"Heading": "Código de acceso", "RecipientName": "Marta", "Intro": "Bienvenida",
		"StudentName": "Sofía", "Code": "AB3D7K2Q", "PortalURL": "http://eva.test/?code=AB3D7K2Q", "ButtonText": "Abrir",
	}
	tests := []struct {
		name     string
		msg      EmailMessage
		wantErr  bool
		wantText []string
		wantHTML bool
	}{
		{name: "plain body", msg: EmailMessage{BodyStr: "hola"}, wantText: []string{"hola"}},
		{
			name:     "access code",
			msg:      EmailMessage{TemplateName: "access_code", TemplateData: data},
			wantText: []string{"AB3D7K2Q", "Sofía", "EVA", "http://eva.test"},
			wantHTML: true,
		},
		{name: "unknown template", msg: EmailMessage{TemplateName: "lol"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Render(conf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			for _, s := range tt.wantText {
				assert.Contains(t, tt.msg.TextContent, s)
			}
			if tt.wantHTML {
				assert.Contains(t, tt.msg.HTMLContent, "AB3D7K2Q")
			} else {
				assert.Empty(t, tt.msg.HTMLContent)
			}
		})
	}
}
