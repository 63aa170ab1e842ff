// Package tls builds client TLS configuration from file-based settings:
// custom CAs, client certificates for mTLS, and verification toggles.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Config holds the TLS settings for outgoing requests.
type Config struct {
	CertFile           string `yaml:"cert_file,omitempty"`
	KeyFile            string `yaml:"key_file,omitempty"`
	CAFile             string `yaml:"ca_file,omitempty"`
	ServerName         string `yaml:"server_name,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
}

// Build creates a *tls.Config. A nil or empty receiver yields nil, which
// keeps the transport on its defaults.
func (c *Config) Build() (*tls.Config, error) {
	if c.IsEmpty() {
		return nil, nil
	}

	out := &tls.Config{
		InsecureSkipVerify: c.InsecureSkipVerify,
		ServerName:         c.ServerName,
	}

	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client cert: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
	}

	if c.CAFile != "" {
		pemData, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, fmt.Errorf("no certificates found in %s", c.CAFile)
		}
		out.RootCAs = pool
	}

	return out, nil
}

// IsEmpty reports whether no TLS settings are configured.
func (c *Config) IsEmpty() bool {
	if c == nil {
		return true
	}
	return *c == Config{}
}
