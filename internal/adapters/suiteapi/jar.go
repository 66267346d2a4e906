package suiteapi

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// sessionJar is an http.CookieJar that can be emptied in place, so clients
// holding it keep working after a logout.
type sessionJar struct {
	mu    sync.RWMutex
	inner *cookiejar.Jar
}

func newSessionJar() *sessionJar {
	return &sessionJar{inner: newCookieJar()}
}

func newCookieJar() *cookiejar.Jar {
	// cookiejar.New always returns a nil error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.inner.SetCookies(u, cookies)
}

func (j *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.inner.Cookies(u)
}

// Reset drops every cookie.
func (j *sessionJar) Reset() {
	j.mu.Lock()
	j.inner = newCookieJar()
	j.mu.Unlock()
}

// value returns the named cookie visible at u.
func (j *sessionJar) value(u *url.URL, name string) string {
	for _, c := range j.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// drop expires the named cookie at u.
func (j *sessionJar) drop(u *url.URL, name string) {
	j.SetCookies(u, []*http.Cookie{{Name: name, Value: "", Path: "/", MaxAge: -1}})
}

// storedCookie is the persisted form of a cookie. The jar only exposes name
// and value, so restored cookies are scoped to the API origin's root path.
type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (j *sessionJar) export(u *url.URL) (string, bool) {
	cookies := j.Cookies(u)
	if len(cookies) == 0 {
		return "", false
	}
	out := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, storedCookie{Name: c.Name, Value: c.Value})
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (j *sessionJar) restore(u *url.URL, raw string) error {
	var stored []storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return err
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, s := range stored {
		cookies = append(cookies, &http.Cookie{Name: s.Name, Value: s.Value, Path: "/"})
	}
	j.SetCookies(u, cookies)
	return nil
}
