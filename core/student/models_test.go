package student

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    EmailList
		wantErr bool
	}{
		{name: "strings", data: `["a@x.co", "B@X.co"]`, want: EmailList{"a@x.co", "b@x.co"}},
		{name: "objects", data: `[{"email": "a@x.co", "nombre": "Ana"}, {"email": " c@x.co "}]`, want: EmailList{"a@x.co", "c@x.co"}},
		{name: "mixed & blanks", data: `["a@x.co", {"email": ""}, "", {"email": "d@x.co"}]`, want: EmailList{"a@x.co", "d@x.co"}},
		{name: "empty", data: `[]`, want: EmailList{}},
		{name: "not a list", data: `"a@x.co"`, wantErr: true},
		{name: "invalid item", data: `[1]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got EmailList
			err := json.Unmarshal([]byte(tt.data), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStudent_FullName(t *testing.T) {
	s := Student{Name: "Sofía"}
	assert.Equal(t, "Sofía", s.FullName())
	s.LastName.SetValid("Gómez")
	assert.Equal(t, "Sofía Gómez", s.FullName())
}
