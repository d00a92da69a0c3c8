package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/interop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "bioctl.yaml", `
log:
  level: debug
  format: json
interop:
  trace:
    calls: true
    filtered: [HS_LOGGER_FORWARD_SVC, com.example.Custom]
relay:
  addr: ":4000"
remote:
  room: cad-1
  role: host
guest:
  module: client.wasm
  args: [--verbose]
  startTimeout: 5s
`)
	cfg, err := Load(path, filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":4000", cfg.Relay.Addr)
	assert.Equal(t, 400, cfg.Relay.Burst, "defaults kept")
	assert.Equal(t, interop.RoleHost, cfg.Remote.PeerRole())
	assert.Equal(t, []string{"--verbose"}, cfg.Guest.Args)
	assert.Equal(t, 5*time.Second, cfg.Guest.StartTimeout)

	tr, err := cfg.Interop.Trace.Trace()
	require.NoError(t, err)
	assert.True(t, tr.Calls)
	assert.Equal(t, []string{contract.HSLoggerForward, "com.example.Custom"}, tr.Filtered)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "c.yaml", "relay:\n  addr: \":4000\"\n")
	envFile := writeFile(t, "test.env", "BIO_REMOTE_ROOM=from-dotenv\nBIO_RELAY_BURST=9\n")

	t.Setenv("BIO_RELAY_ADDR", ":5000")
	t.Setenv("BIO_TRACE_DETAILS", "true")
	t.Setenv("BIO_TRACE_FILTERED", "HS_INTEROPQUERY_SVC, ")
	t.Setenv("BIO_REMOTE_ROOM", "from-env")
	// godotenv sets variables for the process; clean up what it adds.
	t.Cleanup(func() { os.Unsetenv("BIO_RELAY_BURST") })

	cfg, err := Load(path, envFile)
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Relay.Addr)
	assert.Equal(t, 9, cfg.Relay.Burst)
	assert.Equal(t, "from-env", cfg.Remote.Room, "process env wins over .env")
	assert.True(t, cfg.Interop.Trace.Details)
	assert.Equal(t, []string{"HS_INTEROPQUERY_SVC"}, cfg.Interop.Trace.Filtered)
}

func TestLoadErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.env")
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "bad yaml", yaml: "log: [\n"},
		{name: "bad format", yaml: "log:\n  format: xml\n"},
		{name: "bad role", yaml: "remote:\n  role: viewer\n"},
		{name: "unknown symbol", yaml: "interop:\n  trace:\n    filtered: [HS_NOPE_SVC]\n"},
		{name: "bad bool", env: map[string]string{"BIO_TRACE_CALLS": "maybe"}},
		{name: "bad rate", env: map[string]string{"BIO_RELAY_RATE_LIMIT": "fast"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, "c.yaml", tt.yaml)
			}
			_, err := Load(path, missing)
			assert.Error(t, err)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestDefaultFilter(t *testing.T) {
	got, err := TraceConfig{}.FilteredFQNs()
	require.NoError(t, err)
	assert.Equal(t, interop.DefaultFilteredFQNs(), got)
}
