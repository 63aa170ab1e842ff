package runner

import (
	"encoding/base64"
	"fmt"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/serdar/zest/internal/core/collection"
	"github.com/serdar/zest/internal/core/template"
	"github.com/serdar/zest/internal/protocol"
)

// Overrides carries script-staged rewrites of the outgoing request.
// They take precedence over the stored request: override > template
// default > absence.
type Overrides struct {
	URL     string            // empty = no override
	Body    *string           // nil = no override
	Headers map[string]string // merged over stored headers
}

// BuildWireRequest turns a stored request plus resolved variables into a
// wire-ready request. Script overrides are applied before interpolation of
// the part they replace. Auth is applied last; header conflicts resolve
// last-write-wins.
func BuildWireRequest(req *collection.Request, vars map[string]string, ov Overrides) (*protocol.WireRequest, error) {
	rawURL := req.URL
	if ov.URL != "" {
		rawURL = ov.URL
	}
	resolved := template.Interpolate(rawURL, vars)
	resolved = substitutePathVars(resolved, req.PathVars, vars)

	u, err := url.Parse(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: missing scheme or host in %q", protocol.ErrInvalidURL, resolved)
	}

	// Query parameters, each key and value independently interpolated.
	q := u.Query()
	for _, p := range req.Params {
		if !p.Enabled || p.Key == "" {
			continue
		}
		q.Set(template.Interpolate(p.Key, vars), template.Interpolate(p.Value, vars))
	}
	if a := req.Auth; a != nil && a.Type == collection.AuthAPIKey && a.APIKey != nil && a.APIKey.In == "query" {
		q.Set(template.Interpolate(a.APIKey.Key, vars), template.Interpolate(a.APIKey.Value, vars))
	}
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	wire := &protocol.WireRequest{
		RequestID: req.ID,
		Method:    req.Method,
		URL:       u.String(),
		Headers:   make(map[string]string),
	}

	for _, h := range req.Headers {
		if !h.Enabled || h.Key == "" {
			continue
		}
		setHeader(wire.Headers, template.Interpolate(h.Key, vars), template.Interpolate(h.Value, vars))
	}
	for k, v := range ov.Headers {
		setHeader(wire.Headers, k, v)
	}

	applyBody(wire, req.Body, ov.Body, vars)
	applyAuth(wire, req.Auth, vars)

	return wire, nil
}

// substitutePathVars replaces :name segments using the enabled path
// variables.
func substitutePathVars(rawURL string, pathVars []collection.KVPair, vars map[string]string) string {
	for _, pv := range pathVars {
		if !pv.Enabled || pv.Key == "" {
			continue
		}
		rawURL = strings.ReplaceAll(rawURL, ":"+pv.Key, template.Interpolate(pv.Value, vars))
	}
	return rawURL
}

// applyBody resolves the request body and its derived Content-Type. A
// script body override replaces the template before interpolation.
// form-data and bodyless requests emit no payload.
func applyBody(wire *protocol.WireRequest, body *collection.Body, override *string, vars map[string]string) {
	bodyType := collection.BodyNone
	content := ""
	if body != nil {
		bodyType = body.Type
		content = body.Content
	}
	if override != nil {
		content = *override
		if bodyType == collection.BodyNone {
			bodyType = collection.BodyText
		}
	}

	switch bodyType {
	case collection.BodyJSON:
		setHeader(wire.Headers, "Content-Type", "application/json")
	case collection.BodyXML:
		setHeader(wire.Headers, "Content-Type", "application/xml")
	case collection.BodyText:
		setHeader(wire.Headers, "Content-Type", "text/plain")
	case collection.BodyForm:
		setHeader(wire.Headers, "Content-Type", "application/x-www-form-urlencoded")
	case collection.BodyNone, collection.BodyMultipart:
		return
	default:
		return
	}
	wire.Body = []byte(template.Interpolate(content, vars))
}

// applyAuth applies the closed set of auth kinds, matched exhaustively.
func applyAuth(wire *protocol.WireRequest, auth *collection.Auth, vars map[string]string) {
	if auth == nil {
		return
	}
	switch auth.Type {
	case collection.AuthNone, "":
	case collection.AuthBasic:
		if auth.Basic != nil {
			user := template.Interpolate(auth.Basic.Username, vars)
			pass := template.Interpolate(auth.Basic.Password, vars)
			encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
			setHeader(wire.Headers, "Authorization", "Basic "+encoded)
		}
	case collection.AuthBearer:
		if auth.Bearer != nil {
			setHeader(wire.Headers, "Authorization", "Bearer "+template.Interpolate(auth.Bearer.Token, vars))
		}
	case collection.AuthAPIKey:
		// The query variant was appended during URL assembly.
		if auth.APIKey != nil && auth.APIKey.In != "query" {
			setHeader(wire.Headers, template.Interpolate(auth.APIKey.Key, vars), template.Interpolate(auth.APIKey.Value, vars))
		}
	}
}

// setHeader writes under the canonical header name so later writes win
// regardless of the caller's casing.
func setHeader(headers map[string]string, key, value string) {
	headers[textproto.CanonicalMIMEHeaderKey(key)] = value
}
