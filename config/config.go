// Package config loads bioctl settings from a YAML file, a .env file and
// BIO_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/interop"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Interop InteropConfig `yaml:"interop"`
	Relay   RelayConfig   `yaml:"relay"`
	Remote  RemoteConfig  `yaml:"remote"`
	Guest   GuestConfig   `yaml:"guest"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
	// Forward also sends log output to the host's logger-forward service.
	Forward bool `yaml:"forward"`
}

type InteropConfig struct {
	// Version answers pings; defaults to the interop version.
	Version string      `yaml:"version"`
	Trace   TraceConfig `yaml:"trace"`
}

type TraceConfig struct {
	Calls       bool `yaml:"calls"`
	Details     bool `yaml:"details"`
	Handshake   bool `yaml:"handshake"`
	FailedCalls bool `yaml:"failedCalls"`
	// Filtered lists FQNs or symbolic names such as HS_LOGGER_FORWARD_SVC.
	Filtered []string `yaml:"filtered"`
}

type RelayConfig struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rateLimit"`
	Burst     int     `yaml:"burst"`
}

type RemoteConfig struct {
	URL  string `yaml:"url"`
	Room string `yaml:"room"`
	// Role is "client" or "host".
	Role string `yaml:"role"`
}

type GuestConfig struct {
	Module           string            `yaml:"module"`
	Args             []string          `yaml:"args"`
	Env              map[string]string `yaml:"env"`
	CacheDir         string            `yaml:"cacheDir"`
	MemoryLimitPages uint32            `yaml:"memoryLimitPages"`
	StartTimeout     time.Duration     `yaml:"startTimeout"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Interop: InteropConfig{
			Version: contract.InteropVersion,
			Trace:   TraceConfig{FailedCalls: true},
		},
		Relay:  RelayConfig{Addr: ":3000", RateLimit: 200, Burst: 400},
		Remote: RemoteConfig{URL: "ws://localhost:3000/bio-namespace", Role: contract.MemberClient},
		Guest:  GuestConfig{StartTimeout: 30 * time.Second},
	}
}

// Load reads path (optional), then .env files, then the environment. A
// missing .env file is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"BIO_LOG_LEVEL":       &c.Log.Level,
		"BIO_LOG_FORMAT":      &c.Log.Format,
		"BIO_INTEROP_VERSION": &c.Interop.Version,
		"BIO_RELAY_ADDR":      &c.Relay.Addr,
		"BIO_REMOTE_URL":      &c.Remote.URL,
		"BIO_REMOTE_ROOM":     &c.Remote.Room,
		"BIO_REMOTE_ROLE":     &c.Remote.Role,
		"BIO_GUEST_MODULE":    &c.Guest.Module,
		"BIO_GUEST_CACHE_DIR": &c.Guest.CacheDir,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"BIO_LOG_FORWARD":        &c.Log.Forward,
		"BIO_TRACE_CALLS":        &c.Interop.Trace.Calls,
		"BIO_TRACE_DETAILS":      &c.Interop.Trace.Details,
		"BIO_TRACE_HANDSHAKE":    &c.Interop.Trace.Handshake,
		"BIO_TRACE_FAILED_CALLS": &c.Interop.Trace.FailedCalls,
	}
	for key, dst := range bools {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}

	if v, ok := lookup("BIO_TRACE_FILTERED"); ok {
		c.Interop.Trace.Filtered = splitList(v)
	}
	if v, ok := lookup("BIO_RELAY_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BIO_RELAY_RATE_LIMIT: %w", err)
		}
		c.Relay.RateLimit = f
	}
	if v, ok := lookup("BIO_RELAY_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BIO_RELAY_BURST: %w", err)
		}
		c.Relay.Burst = n
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	switch c.Remote.Role {
	case contract.MemberClient, contract.MemberHost:
	default:
		return fmt.Errorf("remote.role: unknown role %q", c.Remote.Role)
	}
	if _, err := c.Interop.Trace.FilteredFQNs(); err != nil {
		return err
	}
	return nil
}

// PeerRole maps Role to an interop role.
func (c RemoteConfig) PeerRole() interop.Role {
	if c.Role == contract.MemberHost {
		return interop.RoleHost
	}
	return interop.RoleClient
}

// FilteredFQNs resolves Filtered. Entries that look like symbols
// (upper case with underscores) must name a known constant. An empty list
// yields the default filter.
func (t TraceConfig) FilteredFQNs() ([]string, error) {
	if len(t.Filtered) == 0 {
		return interop.DefaultFilteredFQNs(), nil
	}
	out := make([]string, 0, len(t.Filtered))
	for _, name := range t.Filtered {
		if v, ok := contract.LookupSymbol(name); ok {
			out = append(out, v)
			continue
		}
		if isSymbol(name) {
			return nil, fmt.Errorf("trace.filtered: unknown symbol %q", name)
		}
		out = append(out, name)
	}
	return out, nil
}

func isSymbol(s string) bool {
	if !strings.Contains(s, "_") {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// Trace converts the configuration into interop tracing settings.
func (t TraceConfig) Trace() (interop.Trace, error) {
	filtered, err := t.FilteredFQNs()
	if err != nil {
		return interop.Trace{}, err
	}
	return interop.Trace{
		Calls:       t.Calls,
		Details:     t.Details,
		Handshake:   t.Handshake,
		FailedCalls: t.FailedCalls,
		Filtered:    filtered,
	}, nil
}
