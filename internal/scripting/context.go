package scripting

// RequestView is the by-value view of a request handed to pre-scripts.
// Scripts never hold a live reference into pipeline state; changes come
// back as overrides on the Outcome.
type RequestView struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// ResponseView is the read-only view of a response handed to post-scripts.
type ResponseView struct {
	StatusCode  int
	Status      string
	Headers     map[string]string
	Body        string
	DurationMS  float64
	Size        int64
	ContentType string
}

// Outcome collects everything a script produced: staged overrides for the
// outgoing request, environment deltas, console lines and test results.
type Outcome struct {
	URLOverride     string            // empty = no override
	BodyOverride    *string           // nil = no override; "" is a valid body
	HeaderOverrides map[string]string // merged over request headers
	EnvChanges      map[string]string
	Console         []string
	Tests           []TestResult
}

// TestResult holds the result of a zest.test() call.
type TestResult struct {
	Name   string
	Passed bool
	Error  string
}

func cloneStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
