// Package http dispatches wire requests, tracks cancellable in-flight
// calls and spills large response bodies to disk.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	stdhttp "net/http"
	"net/http/httptrace"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"github.com/serdar/zest/internal/core/cookies"
	"github.com/serdar/zest/internal/protocol"
)

// SpillThreshold is the body size at which responses stop being buffered
// in memory and stream to a temporary file instead.
const SpillThreshold = 1 << 20 // 1 MiB

const defaultTimeout = 30 * time.Second

// ProxyConfig holds proxy settings.
type ProxyConfig struct {
	URL     string // http://, https://, or socks5:// proxy URL
	NoProxy string // comma-separated list of hosts to bypass proxy
}

// Engine executes wire requests. The token table is the only state shared
// across concurrent calls; it is owned by the engine and guarded by one
// mutex, never locked at call sites.
type Engine struct {
	timeout   time.Duration
	proxyConf *ProxyConfig
	cookieJar *cookies.Jar
	tlsConfig *tls.Config
	spillDir  string

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// New creates a transport engine with default settings.
func New() *Engine {
	return &Engine{
		timeout:  defaultTimeout,
		inflight: make(map[string]context.CancelFunc),
	}
}

// SetTimeout sets the default round-trip deadline.
func (e *Engine) SetTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

// SetProxy configures proxy settings for the engine.
func (e *Engine) SetProxy(proxyURL, noProxy string) {
	if proxyURL == "" {
		e.proxyConf = nil
		return
	}
	e.proxyConf = &ProxyConfig{URL: proxyURL, NoProxy: noProxy}
}

// SetCookieJar sets the cookie jar for automatic cookie handling.
func (e *Engine) SetCookieJar(jar *cookies.Jar) {
	e.cookieJar = jar
}

// SetTLSConfig sets the TLS configuration for mTLS and custom CAs.
func (e *Engine) SetTLSConfig(cfg *tls.Config) {
	e.tlsConfig = cfg
}

// SetSpillDir overrides the directory for spilled bodies. Defaults to the
// system temp directory.
func (e *Engine) SetSpillDir(dir string) {
	e.spillDir = dir
}

// Cancel requests abort of the in-flight call registered under token.
// Best-effort: the corresponding Execute call may not return immediately.
func (e *Engine) Cancel(token string) {
	e.mu.Lock()
	cancel := e.inflight[token]
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) register(token string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.inflight[token] = cancel
	e.mu.Unlock()
}

func (e *Engine) unregister(token string) {
	e.mu.Lock()
	delete(e.inflight, token)
	e.mu.Unlock()
}

// Execute dispatches the wire request. The returned response carries phase
// timing; bodies at or above SpillThreshold live in a temp file referenced
// by Response.BodyPath.
func (e *Engine) Execute(ctx context.Context, req *protocol.WireRequest, token string) (*protocol.Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: missing scheme or host in %q", protocol.ErrInvalidURL, req.URL)
	}
	if req.Method == "" {
		return nil, fmt.Errorf("%w: method is required", protocol.ErrInvalidURL)
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = e.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if token != "" {
		e.register(token, cancel)
		defer e.unregister(token)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := stdhttp.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrInvalidURL, err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	transport, err := e.buildTransport()
	if err != nil {
		return nil, fmt.Errorf("configuring transport: %w", err)
	}

	client := &stdhttp.Client{
		Transport: transport,
		CheckRedirect: func(r *stdhttp.Request, via []*stdhttp.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	if e.cookieJar != nil {
		client.Jar = e.cookieJar.GetJar()
	}

	// Phase timing via httptrace. Redirects re-fire the callbacks on the
	// same trace; time between a response and the next hop's request is
	// accumulated as redirect time.
	var dnsStart, connStart, tlsStart, gotConn, gotFirstByte time.Time
	var dnsDuration, connDuration, tlsDuration, redirectDuration time.Duration
	trace := &httptrace.ClientTrace{
		DNSStart: func(_ httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone: func(_ httptrace.DNSDoneInfo) {
			if !dnsStart.IsZero() {
				dnsDuration += time.Since(dnsStart)
			}
		},
		ConnectStart: func(_, _ string) { connStart = time.Now() },
		ConnectDone: func(_, _ string, _ error) {
			if !connStart.IsZero() {
				connDuration += time.Since(connStart)
			}
		},
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone: func(_ tls.ConnectionState, _ error) {
			if !tlsStart.IsZero() {
				tlsDuration += time.Since(tlsStart)
			}
		},
		GotConn: func(_ httptrace.GotConnInfo) { gotConn = time.Now() },
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			// A prior first byte means this write starts a redirect hop.
			if !gotFirstByte.IsZero() {
				redirectDuration += time.Since(gotFirstByte)
				gotFirstByte = time.Time{}
			}
		},
		GotFirstResponseByte: func() { gotFirstByte = time.Now() },
	}
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), trace))

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, e.classify(ctx, err)
	}
	defer resp.Body.Close()

	transferStart := time.Now()
	bodyBytes, bodyPath, size, err := e.readBody(resp.Body)
	transferDuration := time.Since(transferStart)
	if err != nil {
		return nil, e.classify(ctx, err)
	}
	duration := time.Since(start)

	var ttfb time.Duration
	if !gotConn.IsZero() && !gotFirstByte.IsZero() {
		ttfb = gotFirstByte.Sub(gotConn)
	}

	timing := &protocol.TimingDetail{
		DNSLookup:    dnsDuration,
		TCPConnect:   connDuration,
		TLSHandshake: tlsDuration,
		TTFB:         ttfb,
		Transfer:     transferDuration,
		Redirect:     redirectDuration,
		Total:        duration,
	}

	return &protocol.Response{
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		Headers:     resp.Header,
		Body:        bodyBytes,
		BodyPath:    bodyPath,
		ContentType: resp.Header.Get("Content-Type"),
		Duration:    duration,
		Size:        size,
		Proto:       resp.Proto,
		TLS:         resp.TLS != nil,
		Timing:      timing,
	}, nil
}

// readBody buffers the body up to SpillThreshold bytes; a body that
// reaches the threshold is streamed to a uniquely named temp file instead.
func (e *Engine) readBody(r io.Reader) (body []byte, path string, size int64, err error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, SpillThreshold))
	if err != nil {
		return nil, "", 0, fmt.Errorf("reading response: %w", err)
	}
	if n < SpillThreshold {
		return buf.Bytes(), "", n, nil
	}

	f, err := os.CreateTemp(e.spillDir, "zest-body-*.tmp")
	if err != nil {
		return nil, "", 0, fmt.Errorf("creating spillover file: %w", err)
	}
	written, err := f.Write(buf.Bytes())
	if err == nil {
		var rest int64
		rest, err = io.Copy(f, r)
		size = int64(written) + rest
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, "", 0, fmt.Errorf("spilling response body: %w", err)
	}
	return nil, f.Name(), size, nil
}

// classify maps transport failures onto the error taxonomy.
func (e *Engine) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return context.Canceled
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err):
		return fmt.Errorf("%w: %v", protocol.ErrTimeout, err)
	default:
		return &protocol.NetworkError{Cause: err}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// buildTransport creates an http.Transport configured with the engine's
// proxy and TLS settings.
func (e *Engine) buildTransport() (stdhttp.RoundTripper, error) {
	transport := &stdhttp.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if e.tlsConfig != nil {
		transport.TLSClientConfig = e.tlsConfig
	}

	if e.proxyConf == nil {
		return transport, nil
	}

	parsed, err := url.Parse(e.proxyConf.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy URL: %w", err)
	}

	switch parsed.Scheme {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if parsed.User != nil {
			password, _ := parsed.User.Password()
			auth = &proxy.Auth{
				User:     parsed.User.Username(),
				Password: password,
			}
		}
		dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("creating SOCKS5 dialer: %w", err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	case "http", "https":
		if e.proxyConf.NoProxy != "" {
			noProxyHosts := parseNoProxy(e.proxyConf.NoProxy)
			transport.Proxy = func(r *stdhttp.Request) (*url.URL, error) {
				if shouldBypassProxy(r.URL.Hostname(), noProxyHosts) {
					return nil, nil
				}
				return parsed, nil
			}
		} else {
			transport.Proxy = stdhttp.ProxyURL(parsed)
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", parsed.Scheme)
	}

	return transport, nil
}

// parseNoProxy splits a comma-separated no-proxy string into trimmed host entries.
func parseNoProxy(noProxy string) []string {
	parts := strings.Split(noProxy, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			hosts = append(hosts, strings.ToLower(p))
		}
	}
	return hosts
}

// shouldBypassProxy checks whether a host should bypass the proxy.
func shouldBypassProxy(host string, noProxyHosts []string) bool {
	host = strings.ToLower(host)
	for _, h := range noProxyHosts {
		if h == host {
			return true
		}
		// Support wildcard suffix matching (e.g., .example.com)
		if strings.HasPrefix(h, ".") && strings.HasSuffix(host, h) {
			return true
		}
	}
	return false
}
