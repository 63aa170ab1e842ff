package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/users/42", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":42,"name":"alice"}`))
	})
	mux.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fixtureCollection(t *testing.T, dir, baseURL string) string {
	t.Helper()
	col := `name: Test API
version: "1.0"
items:
  - request:
      name: Ping
      method: GET
      url: "{{base}}/ping"
      post_script: |
        zest.test("is ok", function() {
          zest.assert(zest.response.statusCode === 200);
        });
  - folder:
      name: Users
      items:
        - request:
            name: Get User
            method: GET
            url: "{{base}}/users/{{userId}}"
  - request:
      name: Broken
      method: GET
      url: "{{base}}/fail"
      post_script: |
        zest.test("should be ok", function() {
          zest.assert(zest.response.statusCode === 200, "wanted 200");
        });
`
	envs := `environments:
  - name: local
    variables:
      base:
        value: "` + baseURL + `"
      userId:
        value: "42"
`
	path := writeFixture(t, dir, "api.zest.yaml", col)
	writeFixture(t, dir, "environments.yaml", envs)
	return path
}

func TestRunnerRunAll(t *testing.T) {
	srv := testServer(t)
	dir := t.TempDir()
	colPath := fixtureCollection(t, dir, srv.URL)

	cfg := Config{CollectionPath: colPath, Environment: "local"}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close()

	results, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}

	ping := results[0]
	if ping.Name != "Ping" || ping.StatusCode != 200 {
		t.Errorf("ping = %+v", ping)
	}
	if !ping.TestsPassed {
		t.Errorf("ping tests failed: %+v", ping.TestResults)
	}
	if ping.Size != 11 {
		t.Errorf("ping Size = %d, want 11", ping.Size)
	}
	if ping.Duration <= 0 {
		t.Error("ping Duration not measured")
	}

	user := results[1]
	if user.Name != "Get User" || user.StatusCode != 200 {
		t.Errorf("user = %+v", user)
	}
	if !strings.HasSuffix(user.URL, "/users/{{userId}}") {
		t.Errorf("user URL = %q, report shows the stored URL", user.URL)
	}

	broken := results[2]
	if broken.StatusCode != 500 {
		t.Errorf("broken StatusCode = %d", broken.StatusCode)
	}
	if broken.Error != nil {
		t.Errorf("broken Error = %v, 500 is not a transport error", broken.Error)
	}
	if broken.TestsPassed {
		t.Error("broken tests passed, want assertion failure")
	}

	if code := ExitCode(results); code != 1 {
		t.Errorf("ExitCode = %d, want 1 for test failures", code)
	}
}

func TestRunnerFilterByName(t *testing.T) {
	srv := testServer(t)
	dir := t.TempDir()
	colPath := fixtureCollection(t, dir, srv.URL)

	cfg := Config{CollectionPath: colPath, RequestName: "get user"}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close()

	results, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 || results[0].Name != "Get User" {
		t.Fatalf("results = %+v", results)
	}
	if code := ExitCode(results); code != 0 {
		t.Errorf("ExitCode = %d, want 0", code)
	}
}

func TestRunnerFilterByFolder(t *testing.T) {
	srv := testServer(t)
	dir := t.TempDir()
	colPath := fixtureCollection(t, dir, srv.URL)

	cfg := Config{CollectionPath: colPath, FolderName: "users"}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close()

	results, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 || results[0].Name != "Get User" {
		t.Fatalf("results = %+v", results)
	}
}

func TestRunnerCollectionVariables(t *testing.T) {
	srv := testServer(t)
	dir := t.TempDir()
	col := `name: Fresh Project
variables:
  base_url: "` + srv.URL + `"
items:
  - request:
      name: Health Check
      method: GET
      url: "{{base_url}}/ping"
`
	colPath := writeFixture(t, dir, "fresh.zest.yaml", col)

	// No environments.yaml next to the collection; the collection's own
	// variables must carry the run.
	cfg := Config{CollectionPath: colPath}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close()

	results, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Error != nil {
		t.Fatalf("Error = %v", results[0].Error)
	}
	if results[0].StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", results[0].StatusCode)
	}
}

func TestRunnerFilterByNestedFolder(t *testing.T) {
	srv := testServer(t)
	dir := t.TempDir()
	col := `name: Nested
variables:
  base: "` + srv.URL + `"
items:
  - folder:
      name: v1
      items:
        - folder:
            name: Users
            items:
              - request:
                  name: Get User
                  method: GET
                  url: "{{base}}/users/42"
  - request:
      name: Ping
      method: GET
      url: "{{base}}/ping"
`
	colPath := writeFixture(t, dir, "nested.zest.yaml", col)

	tests := []struct {
		folder string
		want   []string
	}{
		{"users", []string{"Get User"}},
		{"v1", []string{"Get User"}},
		{"v1/users", []string{"Get User"}},
		{"v2", nil},
	}
	for _, tt := range tests {
		cfg := Config{CollectionPath: colPath, FolderName: tt.folder}
		r, err := New(cfg)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		results, runErr := r.Run(context.Background(), cfg)
		r.Close()

		if tt.want == nil {
			if runErr == nil {
				t.Errorf("folder %q: expected not-found error", tt.folder)
			}
			continue
		}
		if runErr != nil {
			t.Fatalf("folder %q: Run() error = %v", tt.folder, runErr)
		}
		var names []string
		for _, res := range results {
			names = append(names, res.Name)
		}
		if len(names) != len(tt.want) {
			t.Errorf("folder %q: ran %v, want %v", tt.folder, names, tt.want)
			continue
		}
		for i := range names {
			if names[i] != tt.want[i] {
				t.Errorf("folder %q: ran %v, want %v", tt.folder, names, tt.want)
				break
			}
		}
	}
}

func TestRunnerUnknownRequest(t *testing.T) {
	srv := testServer(t)
	dir := t.TempDir()
	colPath := fixtureCollection(t, dir, srv.URL)

	cfg := Config{CollectionPath: colPath, RequestName: "nope"}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close()

	if _, err := r.Run(context.Background(), cfg); err == nil {
		t.Fatal("Run() error = nil, want not-found error")
	}
}

func TestRunnerUnknownEnvironment(t *testing.T) {
	srv := testServer(t)
	dir := t.TempDir()
	colPath := fixtureCollection(t, dir, srv.URL)

	_, err := New(Config{CollectionPath: colPath, Environment: "staging"})
	if err == nil {
		t.Fatal("New() error = nil, want unknown environment error")
	}
	if !strings.Contains(err.Error(), "staging") || !strings.Contains(err.Error(), "local") {
		t.Errorf("error = %v, want name and available list", err)
	}
}

func TestRunnerWithHistory(t *testing.T) {
	srv := testServer(t)
	dir := t.TempDir()
	colPath := fixtureCollection(t, dir, srv.URL)

	cfg := Config{
		CollectionPath: colPath,
		Environment:    "local",
		HistoryPath:    filepath.Join(dir, "history.db"),
	}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer r.Close()

	results, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	n, err := r.histo.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != len(results) {
		t.Errorf("history count = %d, want %d", n, len(results))
	}
}

func TestPrintJSON(t *testing.T) {
	results := []RequestResult{
		{Name: "Ping", Method: "GET", URL: "https://example.com/ping", StatusCode: 200, Status: "200 OK", Size: 11, TestsPassed: true},
	}
	var buf bytes.Buffer
	if err := PrintJSON(&buf, results); err != nil {
		t.Fatalf("PrintJSON() error = %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded[0]["name"] != "Ping" {
		t.Errorf("name = %v", decoded[0]["name"])
	}
	if decoded[0]["status_code"] != float64(200) {
		t.Errorf("status_code = %v", decoded[0]["status_code"])
	}
}

func TestPrintText(t *testing.T) {
	results := []RequestResult{
		{Name: "Ping", Method: "GET", URL: "https://example.com/ping", StatusCode: 200, Status: "200 OK", Size: 11, TestsPassed: true,
			TestResults: []TestResult{{Name: "is ok", Passed: true}}},
		{Name: "Broken", Method: "GET", URL: "https://example.com/fail", Error: os.ErrDeadlineExceeded, ErrorString: "deadline", TestsPassed: true},
	}
	var buf bytes.Buffer
	PrintText(&buf, results, false)
	out := buf.String()
	if !strings.Contains(out, "Ping") || !strings.Contains(out, "is ok") {
		t.Errorf("output missing request or test lines:\n%s", out)
	}
	if !strings.Contains(out, "Requests: 2 total, 1 errors") {
		t.Errorf("output missing summary:\n%s", out)
	}
}

func TestPrintJUnit(t *testing.T) {
	results := []RequestResult{
		{Name: "Ping", StatusCode: 200, TestsPassed: true,
			TestResults: []TestResult{{Name: "is ok", Passed: true}, {Name: "fails", Passed: false, Error: "wanted 200"}}},
	}
	var buf bytes.Buffer
	if err := PrintJUnit(&buf, results); err != nil {
		t.Fatalf("PrintJUnit() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<testsuite") || !strings.Contains(out, `tests="2"`) {
		t.Errorf("output:\n%s", out)
	}
	if !strings.Contains(out, `failures="1"`) {
		t.Errorf("output missing failure count:\n%s", out)
	}
}

func TestRunnerCookieJarRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s3ss10n", Path: "/"})
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err != nil || c.Value != "s3ss10n" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"user":"alice"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	col := `name: Cookie API
version: "1.0"
items:
  - request:
      name: Login
      method: GET
      url: "` + srv.URL + `/login"
  - request:
      name: Me
      method: GET
      url: "` + srv.URL + `/me"
`
	colPath := writeFixture(t, dir, "api.zest.yaml", col)
	jarPath := filepath.Join(dir, "cookies.json")

	cfg := Config{CollectionPath: colPath, CookieJarPath: jarPath}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	results, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results[1].StatusCode != 200 {
		t.Errorf("second request status = %d, want 200 with session cookie", results[1].StatusCode)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(jarPath); err != nil {
		t.Error("cookie jar not persisted on close")
	}
}
