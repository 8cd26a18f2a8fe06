package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type namedThing struct {
	Name string `validate:"displayname"`
}

func TestIsValidDisplayName(t *testing.T) {
	v := NewCustomValidator()

	tests := []struct {
		name  string
		in    string
		valid bool
	}{
		{"simple", "Sales", true},
		{"unicode", "Café Ñandú #2", true},
		{"blank", "   ", false},
		{"empty", "", false},
		{"control char", "bad\x07name", false},
		{"too long", strings.Repeat("a", MaxDisplayNameLength+1), false},
		{"at limit", strings.Repeat("a", MaxDisplayNameLength), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validator.Struct(namedThing{Name: tt.in})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
