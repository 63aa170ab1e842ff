package runner

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/pretty"
)

// PrintText outputs results in human-readable format.
func PrintText(w io.Writer, results []RequestResult, verbose bool) {
	totalPassed := 0
	totalFailed := 0
	totalErrors := 0

	for _, r := range results {
		icon := "✓" // checkmark
		if r.Error != nil {
			icon = "✗" // x mark
			totalErrors++
		} else if !r.TestsPassed {
			icon = "✗"
		}

		sizeStr := humanize.Bytes(uint64(r.Size))
		durationStr := r.Duration.Round(r.Duration / 100).String()
		if r.Duration == 0 {
			durationStr = "-"
		}

		if r.Error != nil {
			fmt.Fprintf(w, "%s %-20s %-6s %-40s  %s\n",
				icon, truncate(r.Name, 20), r.Method, truncate(r.URL, 40), durationStr)
			fmt.Fprintf(w, "  └ Error: %s\n", r.Error)
		} else {
			statusStr := fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode))
			fmt.Fprintf(w, "%s %-20s %-6s %-40s  %s  %s  %s\n",
				icon, truncate(r.Name, 20), r.Method, truncate(r.URL, 40),
				statusStr, durationStr, sizeStr)
		}

		for _, tr := range r.TestResults {
			if tr.Passed {
				totalPassed++
				fmt.Fprintf(w, "  ✓ %s\n", tr.Name)
			} else {
				totalFailed++
				fmt.Fprintf(w, "  ✗ %s: %s\n", tr.Name, tr.Error)
			}
		}

		if verbose && len(r.Console) > 0 {
			for _, line := range r.Console {
				fmt.Fprintf(w, "  [log] %s\n", line)
			}
		}

		if verbose && len(r.Body) > 0 {
			fmt.Fprintf(w, "  --- Response Body ---\n")
			body := r.Body
			if strings.Contains(r.ContentType, "json") {
				body = pretty.Pretty(body)
			}
			for _, line := range strings.Split(strings.TrimRight(string(body), "\n"), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
			fmt.Fprintf(w, "  ---------------------\n")
		}
		if verbose && r.BodyPath != "" {
			fmt.Fprintf(w, "  [body spilled to %s]\n", r.BodyPath)
		}
	}

	// Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Requests: %d total, %d errors\n", len(results), totalErrors)
	if totalPassed+totalFailed > 0 {
		fmt.Fprintf(w, "Tests: %d passed, %d failed\n", totalPassed, totalFailed)
	}
}

// PrintJSON outputs results as JSON.
func PrintJSON(w io.Writer, results []RequestResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// junitTestSuites is the root JUnit XML element.
type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Errors   int             `xml:"errors,attr"`
	Time     float64         `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Error     *junitError   `xml:"error,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// PrintJUnit outputs results as JUnit XML for CI.
func PrintJUnit(w io.Writer, results []RequestResult) error {
	suites := junitTestSuites{}

	for _, r := range results {
		suite := junitTestSuite{
			Name: r.Name,
			Time: r.Duration.Seconds(),
		}

		if r.Error != nil {
			suite.Errors++
			suite.Tests++
			suite.Cases = append(suite.Cases, junitTestCase{
				Name:      r.Name,
				ClassName: r.Method + " " + r.URL,
				Error: &junitError{
					Message: r.ErrorString,
					Type:    "RequestError",
				},
			})
		}

		for _, tr := range r.TestResults {
			suite.Tests++
			tc := junitTestCase{
				Name:      tr.Name,
				ClassName: r.Name,
			}
			if !tr.Passed {
				suite.Failures++
				tc.Failure = &junitFailure{
					Message: tr.Error,
					Type:    "AssertionFailure",
				}
			}
			suite.Cases = append(suite.Cases, tc)
		}

		suites.Suites = append(suites.Suites, suite)
	}

	fmt.Fprint(w, xml.Header)
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(suites); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
