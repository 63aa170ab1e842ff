// Package template substitutes {{variable}} placeholders in request text.
//
// Interpolation never fails: unknown variables are left in place so the
// sent request makes the mistake visible instead of silently dropping it.
package template

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var tokenPattern = regexp.MustCompile(`\{\{(\$?\w+)\}\}`)

const randomStringAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Interpolate replaces {{name}} tokens in input using the variable map.
// Built-in generator names (prefixed with $) take precedence over variables
// and produce a fresh value on every occurrence. Unknown names pass through
// verbatim.
func Interpolate(input string, vars map[string]string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return tokenPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimPrefix(strings.TrimSuffix(match, "}}"), "{{")
		if strings.HasPrefix(name, "$") {
			if v, ok := generate(name); ok {
				return v
			}
			// not a recognized generator; fall through to the variable map
		}
		if v, ok := vars[name]; ok {
			return v
		}
		return match // leave unreplaced
	})
}

// generate evaluates a built-in generator token.
func generate(name string) (string, bool) {
	switch name {
	case "$timestamp":
		return strconv.FormatInt(time.Now().Unix(), 10), true
	case "$isoTimestamp":
		return time.Now().UTC().Format(time.RFC3339), true
	case "$uuid":
		return uuid.New().String(), true
	case "$randomInt":
		return strconv.Itoa(rand.IntN(1001)), true
	case "$randomString":
		b := make([]byte, 16)
		for i := range b {
			b[i] = randomStringAlphabet[rand.IntN(len(randomStringAlphabet))]
		}
		return string(b), true
	}
	return "", false
}

