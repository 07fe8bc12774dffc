package vault

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// jarKey namespaces a cookie under the vault's flat entry map, keeping the
// web-fetch tool's session cookies subject to the same encryption and
// access-policy machinery as any other secret (§4.I: web fetch "persists
// cookies through the vault rather than a bare in-memory jar").
func jarKey(domain, path, name string) string {
	return fmt.Sprintf("jar:%s:%s:%s", domain, path, name)
}

// Jar adapts Vault to net/http.CookieJar, scoping every cookie to a
// PolicyAlways vault entry under the jar: namespace. It never blocks on
// with-approval or reauth policies: cookies set by SetCookies always use
// PolicyAlways, since an HTTP round trip has no caller to prompt.
type Jar struct {
	v *Vault
}

// NewJar wraps an unlocked Vault as an http.CookieJar.
func NewJar(v *Vault) *Jar {
	return &Jar{v: v}
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if !j.v.IsUnlocked() {
		return
	}
	domain := u.Hostname()
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		value := encodeCookie(c)
		_ = j.v.Store(jarKey(domain, path, c.Name), KindToken, value, Policy{Kind: PolicyAlways}, Metadata{Description: "cookie jar: " + domain})
	}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	if !j.v.IsUnlocked() {
		return nil
	}
	domain := u.Hostname()
	prefix := fmt.Sprintf("jar:%s:", domain)
	var out []*http.Cookie
	for _, summary := range j.v.List(prefix) {
		value, err := j.v.Get(summary.Name, AccessContext{})
		if err != nil {
			continue
		}
		c, ok := decodeCookie(summary.Name, value)
		if !ok {
			continue
		}
		if c.Expires.IsZero() || c.Expires.After(time.Now()) {
			out = append(out, c)
		}
	}
	return out
}

// encodeCookie flattens the fields net/http.CookieJar callers rely on into
// a single stored string: value and expiry, separated by a delimiter chosen
// to never collide with a cookie value (cookie octets exclude whitespace
// and control characters per RFC 6265).
func encodeCookie(c *http.Cookie) string {
	exp := ""
	if !c.Expires.IsZero() {
		exp = c.Expires.UTC().Format(time.RFC3339)
	}
	return c.Value + "\x1f" + exp
}

func decodeCookie(entryName, stored string) (*http.Cookie, bool) {
	parts := strings.SplitN(entryName, ":", 4)
	if len(parts) != 4 {
		return nil, false
	}
	name := parts[3]

	fields := strings.SplitN(stored, "\x1f", 2)
	value := fields[0]
	var expires time.Time
	if len(fields) == 2 && fields[1] != "" {
		if t, err := time.Parse(time.RFC3339, fields[1]); err == nil {
			expires = t
		}
	}
	return &http.Cookie{Name: name, Value: value, Expires: expires}, true
}
