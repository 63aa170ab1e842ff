package scripting

import "errors"

// ErrScriptTimeout reports that a script overran the engine's wall-clock
// deadline and was aborted.
var ErrScriptTimeout = errors.New("script timeout exceeded")

// SyntaxError reports a script that failed to compile. It is detected
// before any statement executes.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string { return "script syntax error: " + e.Err.Error() }
func (e *SyntaxError) Unwrap() error { return e.Err }

// RuntimeError reports a failure raised while the script was executing.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string { return "script runtime error: " + e.Err.Error() }
func (e *RuntimeError) Unwrap() error { return e.Err }
