package runner

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/serdar/zest/internal/core/collection"
	"github.com/serdar/zest/internal/protocol"
)

func TestBuildWireRequestBasic(t *testing.T) {
	req := &collection.Request{
		ID:     "r1",
		Name:   "Get user",
		Method: "GET",
		URL:    "https://{{host}}/users/{{id}}",
	}
	vars := map[string]string{"host": "api.example.com", "id": "42"}

	wire, err := BuildWireRequest(req, vars, Overrides{})
	if err != nil {
		t.Fatalf("BuildWireRequest() error = %v", err)
	}
	if wire.URL != "https://api.example.com/users/42" {
		t.Errorf("URL = %q", wire.URL)
	}
	if wire.Method != "GET" {
		t.Errorf("Method = %q", wire.Method)
	}
	if wire.RequestID != "r1" {
		t.Errorf("RequestID = %q", wire.RequestID)
	}
}

func TestBuildWireRequestInvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"no scheme", "example.com/path"},
		{"empty", ""},
		{"unresolved garbage", "ht tp://bad url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &collection.Request{Method: "GET", URL: tt.url}
			_, err := BuildWireRequest(req, nil, Overrides{})
			if !errors.Is(err, protocol.ErrInvalidURL) {
				t.Errorf("error = %v, want ErrInvalidURL", err)
			}
		})
	}
}

func TestBuildWireRequestUnresolvedPlaceholderSurvives(t *testing.T) {
	// An unknown placeholder passes through verbatim; the URL still parses
	// and the literal braces reach the wire.
	req := &collection.Request{Method: "GET", URL: "https://example.com/{{missing}}"}
	wire, err := BuildWireRequest(req, map[string]string{}, Overrides{})
	if err != nil {
		t.Fatalf("BuildWireRequest() error = %v", err)
	}
	if !strings.Contains(wire.URL, "%7B%7Bmissing%7D%7D") && !strings.Contains(wire.URL, "{{missing}}") {
		t.Errorf("URL = %q, want placeholder preserved", wire.URL)
	}
}

func TestBuildWireRequestQueryParams(t *testing.T) {
	req := &collection.Request{
		Method: "GET",
		URL:    "https://example.com/search",
		Params: []collection.KVPair{
			{Key: "q", Value: "{{term}}", Enabled: true},
			{Key: "limit", Value: "10", Enabled: true},
			{Key: "skipped", Value: "x", Enabled: false},
		},
	}
	wire, err := BuildWireRequest(req, map[string]string{"term": "golang"}, Overrides{})
	if err != nil {
		t.Fatalf("BuildWireRequest() error = %v", err)
	}
	if !strings.Contains(wire.URL, "q=golang") {
		t.Errorf("URL = %q, want q=golang", wire.URL)
	}
	if !strings.Contains(wire.URL, "limit=10") {
		t.Errorf("URL = %q, want limit=10", wire.URL)
	}
	if strings.Contains(wire.URL, "skipped") {
		t.Errorf("URL = %q, disabled param leaked", wire.URL)
	}
}

func TestBuildWireRequestPathVars(t *testing.T) {
	req := &collection.Request{
		Method: "GET",
		URL:    "https://example.com/users/:userId/posts/:postId",
		PathVars: []collection.KVPair{
			{Key: "userId", Value: "7", Enabled: true},
			{Key: "postId", Value: "{{post}}", Enabled: true},
		},
	}
	wire, err := BuildWireRequest(req, map[string]string{"post": "99"}, Overrides{})
	if err != nil {
		t.Fatalf("BuildWireRequest() error = %v", err)
	}
	if wire.URL != "https://example.com/users/7/posts/99" {
		t.Errorf("URL = %q", wire.URL)
	}
}

func TestBuildWireRequestHeaders(t *testing.T) {
	req := &collection.Request{
		Method: "GET",
		URL:    "https://example.com",
		Headers: []collection.KVPair{
			{Key: "X-Trace", Value: "{{trace}}", Enabled: true},
			{Key: "X-Off", Value: "nope", Enabled: false},
		},
	}
	wire, err := BuildWireRequest(req, map[string]string{"trace": "abc"}, Overrides{})
	if err != nil {
		t.Fatalf("BuildWireRequest() error = %v", err)
	}
	if wire.Headers["X-Trace"] != "abc" {
		t.Errorf("X-Trace = %q", wire.Headers["X-Trace"])
	}
	if _, ok := wire.Headers["X-Off"]; ok {
		t.Error("disabled header leaked")
	}
}

func TestBuildWireRequestOverrides(t *testing.T) {
	body := `{"patched":true}`
	req := &collection.Request{
		Method: "POST",
		URL:    "https://example.com/original",
		Headers: []collection.KVPair{
			{Key: "X-Mode", Value: "stored", Enabled: true},
		},
		Body: &collection.Body{Type: collection.BodyJSON, Content: `{"stored":true}`},
	}
	ov := Overrides{
		URL:     "https://{{host}}/patched",
		Body:    &body,
		Headers: map[string]string{"x-mode": "scripted"},
	}
	wire, err := BuildWireRequest(req, map[string]string{"host": "example.com"}, ov)
	if err != nil {
		t.Fatalf("BuildWireRequest() error = %v", err)
	}
	if wire.URL != "https://example.com/patched" {
		t.Errorf("URL = %q, override not applied before interpolation", wire.URL)
	}
	if string(wire.Body) != body {
		t.Errorf("Body = %q", wire.Body)
	}
	// Override wins over the stored header under canonical naming.
	if wire.Headers["X-Mode"] != "scripted" {
		t.Errorf("X-Mode = %q, want scripted", wire.Headers["X-Mode"])
	}
}

func TestBuildWireRequestBodyOverrideWithoutStoredBody(t *testing.T) {
	body := "raw payload"
	req := &collection.Request{Method: "POST", URL: "https://example.com"}
	wire, err := BuildWireRequest(req, nil, Overrides{Body: &body})
	if err != nil {
		t.Fatalf("BuildWireRequest() error = %v", err)
	}
	if string(wire.Body) != body {
		t.Errorf("Body = %q", wire.Body)
	}
	if wire.Headers["Content-Type"] != "text/plain" {
		t.Errorf("Content-Type = %q", wire.Headers["Content-Type"])
	}
}

func TestBuildWireRequestBodyTypes(t *testing.T) {
	tests := []struct {
		bodyType collection.BodyType
		wantCT   string
		wantBody bool
	}{
		{collection.BodyJSON, "application/json", true},
		{collection.BodyXML, "application/xml", true},
		{collection.BodyText, "text/plain", true},
		{collection.BodyForm, "application/x-www-form-urlencoded", true},
		{collection.BodyNone, "", false},
		{collection.BodyMultipart, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.bodyType), func(t *testing.T) {
			req := &collection.Request{
				Method: "POST",
				URL:    "https://example.com",
				Body:   &collection.Body{Type: tt.bodyType, Content: "payload={{v}}"},
			}
			wire, err := BuildWireRequest(req, map[string]string{"v": "1"}, Overrides{})
			if err != nil {
				t.Fatalf("BuildWireRequest() error = %v", err)
			}
			if wire.Headers["Content-Type"] != tt.wantCT {
				t.Errorf("Content-Type = %q, want %q", wire.Headers["Content-Type"], tt.wantCT)
			}
			if tt.wantBody && string(wire.Body) != "payload=1" {
				t.Errorf("Body = %q", wire.Body)
			}
			if !tt.wantBody && wire.Body != nil {
				t.Errorf("Body = %q, want none", wire.Body)
			}
		})
	}
}

func TestBuildWireRequestAuthWinsOverStoredHeader(t *testing.T) {
	// Auth is applied last, so it overwrites a stored Authorization header.
	req := &collection.Request{
		Method: "POST",
		URL:    "https://example.com",
		Headers: []collection.KVPair{
			{Key: "Authorization", Value: "stored", Enabled: true},
		},
		Auth: &collection.Auth{
			Type:   collection.AuthBearer,
			Bearer: &collection.BearerAuth{Token: "tok"},
		},
	}
	wire, err := BuildWireRequest(req, nil, Overrides{})
	if err != nil {
		t.Fatalf("BuildWireRequest() error = %v", err)
	}
	if wire.Headers["Authorization"] != "Bearer tok" {
		t.Errorf("Authorization = %q, auth must win", wire.Headers["Authorization"])
	}
}

func TestBuildWireRequestAuth(t *testing.T) {
	vars := map[string]string{"user": "alice", "pass": "s3cret", "token": "tok123", "key": "k9"}

	t.Run("basic", func(t *testing.T) {
		req := &collection.Request{
			Method: "GET", URL: "https://example.com",
			Auth: &collection.Auth{
				Type:  collection.AuthBasic,
				Basic: &collection.BasicAuth{Username: "{{user}}", Password: "{{pass}}"},
			},
		}
		wire, err := BuildWireRequest(req, vars, Overrides{})
		if err != nil {
			t.Fatalf("BuildWireRequest() error = %v", err)
		}
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:s3cret"))
		if wire.Headers["Authorization"] != want {
			t.Errorf("Authorization = %q, want %q", wire.Headers["Authorization"], want)
		}
	})

	t.Run("bearer", func(t *testing.T) {
		req := &collection.Request{
			Method: "GET", URL: "https://example.com",
			Auth: &collection.Auth{
				Type:   collection.AuthBearer,
				Bearer: &collection.BearerAuth{Token: "{{token}}"},
			},
		}
		wire, err := BuildWireRequest(req, vars, Overrides{})
		if err != nil {
			t.Fatalf("BuildWireRequest() error = %v", err)
		}
		if wire.Headers["Authorization"] != "Bearer tok123" {
			t.Errorf("Authorization = %q", wire.Headers["Authorization"])
		}
	})

	t.Run("apikey header", func(t *testing.T) {
		req := &collection.Request{
			Method: "GET", URL: "https://example.com",
			Auth: &collection.Auth{
				Type:   collection.AuthAPIKey,
				APIKey: &collection.APIKeyAuth{Key: "X-Api-Key", Value: "{{key}}", In: "header"},
			},
		}
		wire, err := BuildWireRequest(req, vars, Overrides{})
		if err != nil {
			t.Fatalf("BuildWireRequest() error = %v", err)
		}
		if wire.Headers["X-Api-Key"] != "k9" {
			t.Errorf("X-Api-Key = %q", wire.Headers["X-Api-Key"])
		}
	})

	t.Run("apikey query", func(t *testing.T) {
		req := &collection.Request{
			Method: "GET", URL: "https://example.com",
			Auth: &collection.Auth{
				Type:   collection.AuthAPIKey,
				APIKey: &collection.APIKeyAuth{Key: "api_key", Value: "{{key}}", In: "query"},
			},
		}
		wire, err := BuildWireRequest(req, vars, Overrides{})
		if err != nil {
			t.Fatalf("BuildWireRequest() error = %v", err)
		}
		if !strings.Contains(wire.URL, "api_key=k9") {
			t.Errorf("URL = %q, want api_key in query", wire.URL)
		}
		if _, ok := wire.Headers["Api_key"]; ok {
			t.Error("query api key leaked into headers")
		}
	})

	t.Run("none", func(t *testing.T) {
		req := &collection.Request{
			Method: "GET", URL: "https://example.com",
			Auth:   &collection.Auth{Type: collection.AuthNone},
		}
		wire, err := BuildWireRequest(req, vars, Overrides{})
		if err != nil {
			t.Fatalf("BuildWireRequest() error = %v", err)
		}
		if _, ok := wire.Headers["Authorization"]; ok {
			t.Error("Authorization set for auth none")
		}
	})
}
