// Package cookies provides a persistent cookie jar shared across sends.
package cookies

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"
)

// Jar wraps http.CookieJar with locked access and JSON persistence. The
// transport reads it through GetJar; everything else goes through the
// wrapper methods.
type Jar struct {
	mu   sync.RWMutex
	jar  http.CookieJar
	urls map[string]*url.URL // hosts with cookies, for persistence
}

// New creates an empty cookie jar.
func New() *Jar {
	j, _ := cookiejar.New(nil)
	return &Jar{
		jar:  j,
		urls: make(map[string]*url.URL),
	}
}

// GetJar returns the underlying http.CookieJar for use with http.Client.
func (j *Jar) GetJar() http.CookieJar {
	return j.jar
}

// Cookies returns the cookies that would be sent to u.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// SetCookies stores cookies for u.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.urls[u.Host] = u
	j.jar.SetCookies(u, cookies)
}

// Clear drops all cookies by replacing the underlying jar.
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	newJar, _ := cookiejar.New(nil)
	j.jar = newJar
	j.urls = make(map[string]*url.URL)
}

type persistedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

type persistedJar struct {
	Cookies map[string][]persistedCookie `json:"cookies"`
}

// SaveToFile writes all cookies to a JSON file. The write is atomic.
func (j *Jar) SaveToFile(path string) error {
	j.mu.RLock()
	data := persistedJar{Cookies: make(map[string][]persistedCookie)}
	for host, u := range j.urls {
		for _, c := range j.jar.Cookies(u) {
			data.Cookies[host] = append(data.Cookies[host], persistedCookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HTTPOnly: c.HttpOnly,
			})
		}
	}
	j.mu.RUnlock()

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadFromFile merges cookies from a JSON file into the jar. A missing
// file is a no-op.
func (j *Jar) LoadFromFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var data persistedJar
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for host, cookies := range data.Cookies {
		u := &url.URL{Scheme: "https", Host: host}
		j.urls[host] = u
		restored := make([]*http.Cookie, 0, len(cookies))
		for _, c := range cookies {
			restored = append(restored, &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HttpOnly: c.HTTPOnly,
			})
		}
		if len(restored) > 0 {
			j.jar.SetCookies(u, restored)
		}
	}
	return nil
}
