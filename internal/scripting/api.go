package scripting

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/dop251/goja"
	"github.com/google/uuid"
)

// scriptAPI backs the `zest` global object exposed to scripts. All state
// it accumulates is private to one run and read out via outcome().
type scriptAPI struct {
	env         map[string]string
	envChanges  map[string]string
	console     []string
	testResults []TestResult

	request  *RequestView
	response *ResponseView

	urlOverride     string
	bodyOverride    *string
	headerOverrides map[string]string
}

func newScriptAPI(req *RequestView, resp *ResponseView, env map[string]string) *scriptAPI {
	return &scriptAPI{
		env:             cloneStrings(env),
		envChanges:      map[string]string{},
		headerOverrides: map[string]string{},
		request:         req,
		response:        resp,
	}
}

func (a *scriptAPI) outcome() *Outcome {
	out := &Outcome{
		URLOverride:  a.urlOverride,
		BodyOverride: a.bodyOverride,
		EnvChanges:   a.envChanges,
		Console:      a.console,
		Tests:        a.testResults,
	}
	if len(a.headerOverrides) > 0 {
		out.HeaderOverrides = a.headerOverrides
	}
	return out
}

func (a *scriptAPI) registerOnRuntime(vm *goja.Runtime) {
	zestObj := vm.NewObject()

	// Environment variables
	zestObj.Set("setEnvVar", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		value := call.Argument(1).String()
		a.env[key] = value
		a.envChanges[key] = value
		return goja.Undefined()
	})
	zestObj.Set("getEnvVar", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		if v, ok := a.env[key]; ok {
			return vm.ToValue(v)
		}
		return goja.Undefined()
	})

	// Console
	zestObj.Set("log", func(call goja.FunctionCall) goja.Value {
		args := make([]interface{}, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.Export()
		}
		a.console = append(a.console, fmt.Sprint(args...))
		return goja.Undefined()
	})

	// Testing
	zestObj.Set("test", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			a.testResults = append(a.testResults, TestResult{Name: name, Passed: false, Error: "invalid test function"})
			return goja.Undefined()
		}

		result := TestResult{Name: name, Passed: true}
		_, err := fn(goja.Undefined())
		if err != nil {
			result.Passed = false
			result.Error = err.Error()
		}
		a.testResults = append(a.testResults, result)
		return goja.Undefined()
	})

	zestObj.Set("assert", func(call goja.FunctionCall) goja.Value {
		val := call.Argument(0).ToBoolean()
		if !val {
			msg := "assertion failed"
			if len(call.Arguments) > 1 {
				msg = call.Argument(1).String()
			}
			panic(vm.NewGoError(fmt.Errorf("%s", msg)))
		}
		return goja.Undefined()
	})

	// Utility functions
	zestObj.Set("base64encode", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(base64.StdEncoding.EncodeToString([]byte(call.Argument(0).String())))
	})
	zestObj.Set("base64decode", func(call goja.FunctionCall) goja.Value {
		decoded, err := base64.StdEncoding.DecodeString(call.Argument(0).String())
		if err != nil {
			return vm.ToValue("")
		}
		return vm.ToValue(string(decoded))
	})
	zestObj.Set("sha256", func(call goja.FunctionCall) goja.Value {
		h := sha256.Sum256([]byte(call.Argument(0).String()))
		return vm.ToValue(hex.EncodeToString(h[:]))
	})
	zestObj.Set("uuid", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(uuid.New().String())
	})

	if a.request != nil {
		zestObj.Set("request", a.requestObject(vm))
	}
	if a.response != nil {
		zestObj.Set("response", a.responseObject(vm))
	}

	vm.Set("zest", zestObj)
}

// requestObject exposes a copy of the request view plus override setters.
// The setters stage overrides on the API; they never touch pipeline state.
func (a *scriptAPI) requestObject(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	obj.Set("method", a.request.Method)
	obj.Set("url", a.request.URL)
	obj.Set("headers", cloneStrings(a.request.Headers))
	obj.Set("body", a.request.Body)

	obj.Set("setUrl", func(call goja.FunctionCall) goja.Value {
		a.urlOverride = call.Argument(0).String()
		return goja.Undefined()
	})
	obj.Set("setBody", func(call goja.FunctionCall) goja.Value {
		body := call.Argument(0).String()
		a.bodyOverride = &body
		return goja.Undefined()
	})
	obj.Set("setHeader", func(call goja.FunctionCall) goja.Value {
		a.headerOverrides[call.Argument(0).String()] = call.Argument(1).String()
		return goja.Undefined()
	})
	return obj
}

func (a *scriptAPI) responseObject(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	obj.Set("statusCode", a.response.StatusCode)
	obj.Set("status", a.response.Status)
	obj.Set("headers", cloneStrings(a.response.Headers))
	obj.Set("body", a.response.Body)
	obj.Set("duration", a.response.DurationMS)
	obj.Set("size", a.response.Size)
	obj.Set("contentType", a.response.ContentType)
	return obj
}
