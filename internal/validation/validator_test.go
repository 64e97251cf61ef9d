package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequired(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"empty", "", false},
		{"whitespace only", "  \t ", false},
		{"value", "Acme LLC", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Required("dba_name", tt.value)
			assert.Equal(t, tt.valid, v.Valid())
			if !tt.valid {
				assert.Equal(t, MsgRequired, v.Errors["dba_name"])
			}
		})
	}
}

func TestAddErrorKeepsFirstMessage(t *testing.T) {
	v := New()
	v.AddError("password", "first")
	v.AddError("password", "second")
	assert.Equal(t, "first", v.Errors["password"])
}

func TestPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"too short", "a1", false},
		{"no digit", "abcdefghij", false},
		{"no letter", "1234567890", false},
		{"ok", "onboard2024", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Password("password", tt.password)
			assert.Equal(t, tt.valid, v.Valid())
		})
	}
}

func TestEmail(t *testing.T) {
	v := New()
	v.Email("email", "jane@acme.com")
	assert.True(t, v.Valid())

	v.Email("email", "not-an-email")
	assert.Equal(t, "must be a valid email address", v.Errors["email"])
}
