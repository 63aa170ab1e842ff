// Package scripting runs user pre/post-request hooks in an isolated
// JavaScript sandbox with an enforced wall-clock deadline.
package scripting

import (
	"context"
	"time"

	"github.com/dop251/goja"
)

// DefaultTimeout is the hard deadline applied to a single script run.
const DefaultTimeout = 5 * time.Second

// Engine executes JavaScript pre/post-request scripts.
type Engine struct {
	timeout time.Duration
}

// NewEngine creates a scripting engine. A zero timeout selects
// DefaultTimeout.
func NewEngine(timeout time.Duration) *Engine {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Engine{timeout: timeout}
}

// RunPreScript executes a pre-request hook against a by-value request
// view. An empty script is a no-op. The returned Outcome carries whatever
// the script produced before any error.
func (e *Engine) RunPreScript(script string, req RequestView, env map[string]string) (*Outcome, error) {
	if script == "" {
		return &Outcome{}, nil
	}
	api := newScriptAPI(&req, nil, env)
	err := e.run(script, api)
	return api.outcome(), err
}

// RunPostScript executes a post-request hook against by-value request and
// response views.
func (e *Engine) RunPostScript(script string, req RequestView, resp ResponseView, env map[string]string) (*Outcome, error) {
	if script == "" {
		return &Outcome{}, nil
	}
	api := newScriptAPI(&req, &resp, env)
	err := e.run(script, api)
	return api.outcome(), err
}

func (e *Engine) run(script string, api *scriptAPI) error {
	// Compile first so syntax errors surface before any statement runs.
	program, err := goja.Compile("script", script, false)
	if err != nil {
		return &SyntaxError{Err: err}
	}

	vm := goja.New()
	api.registerOnRuntime(vm)

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	// The deadline is enforced from outside the VM: the interrupt fires
	// regardless of what the script is doing.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ErrScriptTimeout)
		case <-done:
		}
	}()

	_, err = vm.RunProgram(program)
	close(done)

	if err != nil {
		if _, interrupted := err.(*goja.InterruptedError); interrupted && ctx.Err() != nil {
			return ErrScriptTimeout
		}
		return &RuntimeError{Err: err}
	}
	return nil
}
