package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/serdar/zest/internal/core/tls"
)

// Config holds the application configuration.
type Config struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	ScriptTimeout  time.Duration `yaml:"script_timeout"`
	HistoryCap     int           `yaml:"history_cap"`
	HistoryPath    string        `yaml:"history_path"`
	CookieJarPath  string        `yaml:"cookie_jar_path"`
	Proxy          Proxy         `yaml:"proxy"`
	TLS            tls.Config    `yaml:"tls"`
}

// Proxy holds outbound proxy settings.
type Proxy struct {
	URL     string `yaml:"url"`      // http://, https://, or socks5://
	NoProxy string `yaml:"no_proxy"` // comma-separated hosts to bypass
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 30 * time.Second,
		ScriptTimeout:  5 * time.Second,
		HistoryCap:     1000,
	}
}

// DataDir returns the directory for mutable state (history, cookie jar).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "zest")
}

// ResolvedHistoryPath returns the configured history path, or the default
// under the data dir.
func (c Config) ResolvedHistoryPath() string {
	if c.HistoryPath != "" {
		return c.HistoryPath
	}
	return filepath.Join(DataDir(), "history.db")
}

// ResolvedCookieJarPath returns the configured cookie jar path, or the
// default under the data dir.
func (c Config) ResolvedCookieJarPath() string {
	if c.CookieJarPath != "" {
		return c.CookieJarPath
	}
	return filepath.Join(DataDir(), "cookies.json")
}
