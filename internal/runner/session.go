package runner

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serdar/zest/internal/core/collection"
	"github.com/serdar/zest/internal/core/environment"
	"github.com/serdar/zest/internal/core/history"
	"github.com/serdar/zest/internal/protocol"
	"github.com/serdar/zest/internal/scripting"
)

// Transport dispatches wire requests and aborts them by token.
type Transport interface {
	Execute(ctx context.Context, req *protocol.WireRequest, token string) (*protocol.Response, error)
	Cancel(token string)
}

// EnvStore supplies environment snapshots and commits script deltas as one
// batch.
type EnvStore interface {
	Snapshot() (environment.Snapshot, error)
	ApplyDeltas(deltas map[string]string) error
}

// HistoryStore appends execution records.
type HistoryStore interface {
	Add(e history.Entry) (int64, error)
}

// PersistenceError reports a failure writing environment deltas or history.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "persistence error: " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// State is the session's visible execution state.
type State int

const (
	StateIdle State = iota
	StateSending
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result is what one send produces: a response or a typed error, plus
// whatever the scripts printed. Exactly one Result reaches the callback
// per send.
type Result struct {
	Token    string
	Response *protocol.Response
	Err      error
	Console  []string
	Tests    []scripting.TestResult
}

// Session sequences one execution pipeline per send: snapshot, pre-script,
// assemble, dispatch, post-script, persist. Each send mints a token that
// supersedes the previous one; results reported under a stale token are
// discarded, because the superseded transport call may still be draining.
type Session struct {
	transport Transport
	scripts   *scripting.Engine
	env       EnvStore
	histo     HistoryStore
	timeout   time.Duration
	onResult  func(*Result)

	mu           sync.Mutex
	baseVars     map[string]string
	state        State
	token        string
	cancel       context.CancelFunc
	lastBodyPath string
}

// NewSession creates a session. histo may be nil to disable history.
func NewSession(transport Transport, scripts *scripting.Engine, env EnvStore, histo HistoryStore) *Session {
	return &Session{
		transport: transport,
		scripts:   scripts,
		env:       env,
		histo:     histo,
		state:     StateIdle,
	}
}

// OnResult registers the result callback. Must be set before Send.
func (s *Session) OnResult(fn func(*Result)) {
	s.mu.Lock()
	s.onResult = fn
	s.mu.Unlock()
}

// SetTimeout bounds each dispatch. Zero keeps the transport default.
func (s *Session) SetTimeout(d time.Duration) {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

// SetBaseVars installs collection-level variables. They seed each
// pipeline's interpolation scope; environment values shadow them.
func (s *Session) SetBaseVars(vars map[string]string) {
	s.mu.Lock()
	s.baseVars = vars
	s.mu.Unlock()
}

// State returns the current visible state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InFlight reports whether a send is in progress.
func (s *Session) InFlight() bool { return s.State() == StateSending }

// Send starts a new execution pipeline for the request and returns its
// token. Any previous send is superseded; its spillover file is removed
// best-effort before the new pipeline begins.
func (s *Session) Send(req *collection.Request) string {
	s.mu.Lock()
	if s.lastBodyPath != "" {
		os.Remove(s.lastBodyPath) // failure swallowed; a periodic sweep catches leftovers
		s.lastBodyPath = ""
	}
	prevCancel := s.cancel
	token := uuid.New().String()
	s.token = token
	s.state = StateSending
	base := s.baseVars
	timeout := s.timeout
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}

	go s.pipeline(ctx, token, req, base, timeout)
	return token
}

// Cancel aborts the in-flight send. The session's state flips immediately
// and unconditionally; the underlying I/O unwinds on its own time and its
// eventual result is discarded.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state != StateSending {
		s.mu.Unlock()
		return
	}
	s.state = StateCancelled
	token := s.token
	cancel := s.cancel
	fn := s.onResult
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.transport.Cancel(token)
	if fn != nil {
		fn(&Result{Token: token, Err: context.Canceled})
	}
}

func (s *Session) pipeline(ctx context.Context, token string, req *collection.Request, base map[string]string, timeout time.Duration) {
	// 1. Capture the environment snapshot once; it is never re-read
	// mid-run. Collection variables sit underneath it, so an environment
	// value always wins over the collection's.
	snap, err := s.env.Snapshot()
	if err != nil {
		s.fail(token, nil, &PersistenceError{Err: err}, nil, nil)
		return
	}
	working := make(map[string]string, len(base)+len(snap))
	for k, v := range base {
		working[k] = v
	}
	for k, v := range snap {
		working[k] = v
	}
	staged := map[string]string{}
	var console []string
	var tests []scripting.TestResult

	// 2. Pre-script: deltas join this pipeline's interpolation scope and
	// are staged for persistence; overrides rewrite the outgoing request.
	var ov Overrides
	if req.PreScript != "" {
		outcome, err := s.scripts.RunPreScript(req.PreScript, requestView(req), working)
		console = append(console, outcome.Console...)
		tests = append(tests, outcome.Tests...)
		if err != nil {
			s.fail(token, nil, err, console, tests)
			return
		}
		for k, v := range outcome.EnvChanges {
			working[k] = v
			staged[k] = v
		}
		ov = Overrides{
			URL:     outcome.URLOverride,
			Body:    outcome.BodyOverride,
			Headers: outcome.HeaderOverrides,
		}
	}

	// 3. Assemble.
	wire, err := BuildWireRequest(req, working, ov)
	if err != nil {
		s.fail(token, nil, err, console, tests)
		return
	}
	wire.Timeout = timeout

	// 4. Dispatch.
	resp, err := s.transport.Execute(ctx, wire, token)
	if err != nil {
		s.fail(token, nil, err, console, tests)
		return
	}

	// 5. Post-script. A failing post-script never retracts the response;
	// only its own deltas are dropped.
	if req.PostScript != "" {
		outcome, err := s.scripts.RunPostScript(req.PostScript, requestView(req), responseView(resp), working)
		console = append(console, outcome.Console...)
		tests = append(tests, outcome.Tests...)
		if err == nil {
			for k, v := range outcome.EnvChanges {
				staged[k] = v
			}
		} else {
			console = append(console, "post-script error: "+err.Error())
		}
	}

	s.complete(token, wire, resp, staged, console, tests)
}

// complete persists staged state and transitions out of Sending, all under
// the session lock so a racing Cancel or Send cannot interleave. Deltas
// commit before the history record; a delta failure still appends history
// (the run did happen) and surfaces as a PersistenceError.
func (s *Session) complete(token string, wire *protocol.WireRequest, resp *protocol.Response, staged map[string]string, console []string, tests []scripting.TestResult) {
	s.mu.Lock()
	if s.token != token || s.state != StateSending {
		s.mu.Unlock()
		discardSpill(resp)
		return
	}

	var finalErr error
	if err := s.env.ApplyDeltas(staged); err != nil {
		finalErr = &PersistenceError{Err: err}
	}
	if s.histo != nil {
		_, err := s.histo.Add(history.Entry{
			RequestID:  wire.RequestID,
			Method:     wire.Method,
			URL:        wire.URL,
			StatusCode: resp.StatusCode,
			Duration:   resp.Duration,
			Size:       resp.Size,
			Timestamp:  time.Now(),
		})
		if err != nil && finalErr == nil {
			finalErr = &PersistenceError{Err: err}
		}
	}

	if finalErr != nil {
		s.state = StateFailed
	} else {
		s.state = StateCompleted
	}
	s.lastBodyPath = resp.BodyPath
	fn := s.onResult
	s.mu.Unlock()

	if fn != nil {
		fn(&Result{Token: token, Response: resp, Err: finalErr, Console: console, Tests: tests})
	}
}

// fail reports a pipeline failure. Nothing is persisted. Stale tokens are
// discarded silently.
func (s *Session) fail(token string, resp *protocol.Response, err error, console []string, tests []scripting.TestResult) {
	s.mu.Lock()
	if s.token != token || s.state != StateSending {
		s.mu.Unlock()
		discardSpill(resp)
		return
	}
	s.state = StateFailed
	fn := s.onResult
	s.mu.Unlock()

	if fn != nil {
		fn(&Result{Token: token, Response: resp, Err: err, Console: console, Tests: tests})
	}
}

// discardSpill removes the spillover file of a response nobody will see.
func discardSpill(resp *protocol.Response) {
	if resp != nil && resp.BodyPath != "" {
		os.Remove(resp.BodyPath)
	}
}

// requestView builds the by-value request view handed to scripts: the
// stored request before interpolation, enabled headers only.
func requestView(req *collection.Request) scripting.RequestView {
	headers := make(map[string]string)
	for _, h := range req.Headers {
		if h.Enabled && h.Key != "" {
			headers[h.Key] = h.Value
		}
	}
	body := ""
	if req.Body != nil {
		body = req.Body.Content
	}
	return scripting.RequestView{
		Method:  req.Method,
		URL:     req.URL,
		Headers: headers,
		Body:    body,
	}
}

// responseView builds the by-value response view for post-scripts.
// Spilled bodies are not loaded back into memory; scripts see them empty.
func responseView(resp *protocol.Response) scripting.ResponseView {
	headers := make(map[string]string)
	for k := range resp.Headers {
		headers[k] = resp.Headers.Get(k)
	}
	body := ""
	if resp.InMemory() {
		body = string(resp.Body)
	}
	return scripting.ResponseView{
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		Headers:     headers,
		Body:        body,
		DurationMS:  float64(resp.Duration.Milliseconds()),
		Size:        resp.Size,
		ContentType: resp.ContentType,
	}
}
