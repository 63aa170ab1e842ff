// Package runner sequences the execution pipeline: template resolution,
// script hooks, request assembly, transport dispatch and persistence.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/serdar/zest/internal/core/collection"
	"github.com/serdar/zest/internal/core/cookies"
	"github.com/serdar/zest/internal/core/environment"
	"github.com/serdar/zest/internal/core/history"
	"github.com/serdar/zest/internal/core/tls"
	"github.com/serdar/zest/internal/protocol"
	httpclient "github.com/serdar/zest/internal/protocol/http"
	"github.com/serdar/zest/internal/scripting"
)

// Config holds batch runner configuration.
type Config struct {
	CollectionPath string
	Environment    string
	RequestName    string // run single request by name
	FolderName     string // run all requests in folder
	OutputFormat   string // "text", "json", "junit"
	Verbose        bool
	Timeout        time.Duration
	HistoryPath    string // empty disables history
	Passphrase     string // unlocks secret environment values

	ProxyURL      string
	NoProxy       string
	TLS           *tls.Config
	CookieJarPath string // empty disables the persistent jar
}

// RequestResult holds execution results for a single request, shaped for
// report output.
type RequestResult struct {
	Name        string              `json:"name"`
	Method      string              `json:"method"`
	URL         string              `json:"url"`
	StatusCode  int                 `json:"status_code"`
	Status      string              `json:"status"`
	Duration    time.Duration       `json:"duration"`
	Size        int64               `json:"size"`
	Error       error               `json:"-"`
	ErrorString string              `json:"error,omitempty"`
	Console     []string            `json:"console,omitempty"`
	TestResults []TestResult        `json:"test_results,omitempty"`
	TestsPassed bool                `json:"tests_passed"`
	Body        []byte              `json:"-"`
	BodyString  string              `json:"body,omitempty"`
	BodyPath    string              `json:"body_path,omitempty"`
	ContentType string              `json:"-"`
	Headers     map[string][]string `json:"headers,omitempty"`
}

// TestResult holds the result of a script test assertion.
type TestResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// Runner executes requests headlessly through the same session pipeline
// the interactive client uses.
type Runner struct {
	collection *collection.Collection
	session    *Session
	histo      *history.Store
	jar        *cookies.Jar
	jarPath    string
}

// New creates a runner from config. The environments file is expected next
// to the collection as environments.yaml.
func New(cfg Config) (*Runner, error) {
	if cfg.CollectionPath == "" {
		return nil, fmt.Errorf("collection path is required")
	}

	col, err := collection.LoadFromFile(cfg.CollectionPath)
	if err != nil {
		return nil, fmt.Errorf("loading collection: %w", err)
	}

	envPath := filepath.Join(filepath.Dir(cfg.CollectionPath), "environments.yaml")
	envFile, err := environment.LoadFile(envPath)
	if err != nil {
		return nil, fmt.Errorf("loading environments: %w", err)
	}

	envName := cfg.Environment
	if envName != "" && envFile.Get(envName) == nil {
		return nil, fmt.Errorf("environment %q not found (available: %s)",
			envName, strings.Join(envFile.Names(), ", "))
	}
	if envName == "" && len(envFile.Environments) > 0 {
		envName = envFile.Environments[0].Name
	}

	var vault environment.Vault
	if cfg.Passphrase != "" {
		vault = environment.NewPassphraseVault(cfg.Passphrase)
	}
	envStore := environment.NewStore(envPath, envName, vault)

	var histo *history.Store
	if cfg.HistoryPath != "" {
		histo, err = history.NewStore(cfg.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("opening history: %w", err)
		}
	}

	engine := httpclient.New()
	if cfg.ProxyURL != "" {
		engine.SetProxy(cfg.ProxyURL, cfg.NoProxy)
	}
	if !cfg.TLS.IsEmpty() {
		tlsConf, err := cfg.TLS.Build()
		if err != nil {
			return nil, fmt.Errorf("building TLS config: %w", err)
		}
		engine.SetTLSConfig(tlsConf)
	}

	var jar *cookies.Jar
	if cfg.CookieJarPath != "" {
		jar = cookies.New()
		if err := jar.LoadFromFile(cfg.CookieJarPath); err != nil {
			return nil, fmt.Errorf("loading cookie jar: %w", err)
		}
		engine.SetCookieJar(jar)
	}

	session := NewSession(engine, scripting.NewEngine(scripting.DefaultTimeout), envStore, historyOrNil(histo))
	session.SetBaseVars(col.Variables)
	if cfg.Timeout > 0 {
		session.SetTimeout(cfg.Timeout)
	}

	return &Runner{
		collection: col,
		session:    session,
		histo:      histo,
		jar:        jar,
		jarPath:    cfg.CookieJarPath,
	}, nil
}

// historyOrNil avoids handing the session a typed nil.
func historyOrNil(s *history.Store) HistoryStore {
	if s == nil {
		return nil
	}
	return s
}

// Close flushes the cookie jar and releases the runner's resources.
func (r *Runner) Close() error {
	var firstErr error
	if r.jar != nil {
		if err := r.jar.SaveToFile(r.jarPath); err != nil {
			firstErr = err
		}
	}
	if r.histo != nil {
		if err := r.histo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run executes the configured requests sequentially and returns results.
// Cancelling ctx aborts the in-flight request and skips the rest.
func (r *Runner) Run(ctx context.Context, cfg Config) ([]RequestResult, error) {
	requests := r.collectRequests(cfg)
	if len(requests) == 0 {
		if cfg.RequestName != "" {
			return nil, fmt.Errorf("request %q not found in collection", cfg.RequestName)
		}
		if cfg.FolderName != "" {
			return nil, fmt.Errorf("folder %q not found in collection", cfg.FolderName)
		}
		return nil, fmt.Errorf("no requests found in collection")
	}

	results := make([]RequestResult, 0, len(requests))
	for _, req := range requests {
		if ctx.Err() != nil {
			break
		}
		results = append(results, r.executeOne(ctx, req, cfg.Verbose))
	}
	return results, nil
}

// executeOne pushes a request through the session and waits for its one
// result.
func (r *Runner) executeOne(ctx context.Context, req *collection.Request, verbose bool) RequestResult {
	resCh := make(chan *Result, 1)
	r.session.OnResult(func(res *Result) { resCh <- res })
	r.session.Send(req)

	var res *Result
	select {
	case res = <-resCh:
	case <-ctx.Done():
		r.session.Cancel()
		res = <-resCh
	}

	out := RequestResult{
		Name:    req.Name,
		Method:  req.Method,
		URL:     req.URL,
		Console: res.Console,
	}

	out.TestsPassed = true
	for _, tr := range res.Tests {
		out.TestResults = append(out.TestResults, TestResult{
			Name:   tr.Name,
			Passed: tr.Passed,
			Error:  tr.Error,
		})
		if !tr.Passed {
			out.TestsPassed = false
		}
	}

	if res.Err != nil {
		out.Error = res.Err
		out.ErrorString = res.Err.Error()
	}

	if res.Response != nil {
		fillResponse(&out, res.Response, verbose)
	}
	return out
}

func fillResponse(out *RequestResult, resp *protocol.Response, verbose bool) {
	out.StatusCode = resp.StatusCode
	out.Status = resp.Status
	out.Duration = resp.Duration
	out.Size = resp.Size
	out.ContentType = resp.ContentType
	out.BodyPath = resp.BodyPath
	if verbose {
		if resp.InMemory() {
			out.Body = resp.Body
			out.BodyString = string(resp.Body)
		}
		headers := make(map[string][]string)
		for k, v := range resp.Headers {
			headers[k] = v
		}
		out.Headers = headers
	}
}

// collectRequests gathers the requests to run based on config filters.
func (r *Runner) collectRequests(cfg Config) []*collection.Request {
	var requests []*collection.Request
	for _, item := range collection.FlattenItems(r.collection.Items, 0, "") {
		if item.Request == nil {
			continue
		}
		switch {
		case cfg.RequestName != "":
			if strings.EqualFold(item.Request.Name, cfg.RequestName) {
				requests = append(requests, item.Request)
			}
		case cfg.FolderName != "":
			if folderMatches(item.Path, cfg.FolderName) {
				requests = append(requests, item.Request)
			}
		default:
			requests = append(requests, item.Request)
		}
	}
	return requests
}

// folderMatches reports whether the request at path sits under the named
// folder. The name may be a single folder or a nested path like
// "v1/users"; matching is case-insensitive.
func folderMatches(path, name string) bool {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 {
		return false
	}
	folders := segments[:len(segments)-1] // last segment is the request
	want := strings.Split(strings.Trim(name, "/"), "/")
	for i := 0; i+len(want) <= len(folders); i++ {
		matched := true
		for j := range want {
			if !strings.EqualFold(folders[i+j], want[j]) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// ExitCode returns the appropriate exit code based on results.
// 0 = all succeeded, 1 = test failures, 2 = request errors.
func ExitCode(results []RequestResult) int {
	hasErrors := false
	hasTestFailures := false
	for _, r := range results {
		if r.Error != nil {
			hasErrors = true
		}
		if !r.TestsPassed {
			hasTestFailures = true
		}
	}
	if hasErrors {
		return 2
	}
	if hasTestFailures {
		return 1
	}
	return 0
}
