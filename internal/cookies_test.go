package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeCookieValue(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "abc123", "abc123"},
		{"percent escaped", "abc%20123", "abc 123"},
		{"plus is literal", "a+b", "a+b"},
		{"malformed escape", "abc%zz", "abc%zz"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeCookieValue(tt.in))
		})
	}
}

func TestParseCookieString(t *testing.T) {
	got := ParseCookieString(" sessionid=s1;csrftoken=abc%3D123 ; flag; =orphan; csrftoken=second")

	assert.Equal(t, map[string]string{
		"sessionid": "s1",
		"csrftoken": "abc=123",
		"flag":      "",
	}, got)
}

func TestParseCookieString_Empty(t *testing.T) {
	assert.Empty(t, ParseCookieString(""))
	assert.Empty(t, ParseCookieString(" ; ;"))
}
