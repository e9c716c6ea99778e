package adminclient

import (
	"net/http"
	"net/url"

	"github.com/skykeenentreprise/admin-client/internal"
)

// CookieReader is the only view the client has of the cookie store.
// Implementations return the decoded cookie value and whether it was found.
type CookieReader interface {
	Cookie(name string) (string, bool)
}

// JarCookies reads cookies that the jar would send to BaseURL.
type JarCookies struct {
	Jar     http.CookieJar
	BaseURL *url.URL
}

func (j JarCookies) Cookie(name string) (string, bool) {
	if j.Jar == nil || j.BaseURL == nil {
		return "", false
	}
	for _, c := range j.Jar.Cookies(j.BaseURL) {
		if c.Name == name {
			return internal.DecodeCookieValue(c.Value), true
		}
	}
	return "", false
}

// StaticCookies is a fixed cookie set, typically parsed from a Cookie header
// or a document.cookie string with ParseCookies.
type StaticCookies map[string]string

func (s StaticCookies) Cookie(name string) (string, bool) {
	v, ok := s[name]
	return v, ok
}

// ParseCookies builds a StaticCookies from a string such as
// "sessionid=x; csrftoken=abc123". Values are URL-decoded.
func ParseCookies(raw string) StaticCookies {
	return StaticCookies(internal.ParseCookieString(raw))
}
