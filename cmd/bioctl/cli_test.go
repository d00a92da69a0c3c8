package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/caffeineduck/browserinterop/config"
	"github.com/caffeineduck/browserinterop/contract"
	"github.com/caffeineduck/browserinterop/interop"
	"github.com/caffeineduck/browserinterop/service"
	"github.com/caffeineduck/browserinterop/transport"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"bioctl",
		"interop",
		"relay",
		"run",
		"console",
		"version",
		"--config",
		"--log-level",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("help output should contain %q", phrase)
		}
	}
}

func TestCLISubcommandHelp(t *testing.T) {
	tests := []struct {
		cmd     string
		phrases []string
	}{
		{"run", []string{"--arg", "--env", "--no-cache", "--memory-pages", "--start-timeout", "wasip1"}},
		{"relay", []string{"--addr", "--stats-interval", "/bio-namespace", "/rooms"}},
		{"console", []string{"--url", "--room", "--role", "--history", "Command history", "select <uid[:type]>"}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			output, err := executeCommand(rootCmd, tt.cmd, "--help")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, phrase := range tt.phrases {
				if !strings.Contains(output, phrase) {
					t.Errorf("%s help should contain %q", tt.cmd, phrase)
				}
			}
		})
	}
}

func TestCLIVersion(t *testing.T) {
	t.Setenv("BIO_INTEROP_VERSION", "9.9.9")
	output, err := executeCommand(rootCmd, "version")
	require.NoError(t, err)
	assert.Equal(t, "bioctl dev (interop 9.9.9)\n", output)
}

func TestCLIBadLogLevel(t *testing.T) {
	_, err := executeCommand(rootCmd, "version", "--log-level", "loud")
	assert.Error(t, err)
	_, err = executeCommand(rootCmd, "version", "--log-level", "info")
	assert.NoError(t, err)
}

func TestParseConsoleLine(t *testing.T) {
	tests := []struct {
		line    string
		want    consoleCommand
		wantErr bool
	}{
		{line: "", want: consoleCommand{}},
		{line: "  EXIT ", want: consoleCommand{name: "quit"}},
		{line: "services", want: consoleCommand{name: "services"}},
		{
			line: `call test.Echo 2019_05 {"a": 1}`,
			want: consoleCommand{name: "call", args: []string{"test.Echo", "_2019_05"}, payload: `{"a": 1}`},
		},
		{
			line: "event test.Ping _2014_02",
			want: consoleCommand{name: "event", args: []string{"test.Ping", "_2014_02"}},
		},
		{line: "call test.Echo", wantErr: true},
		{line: "select uid1 uid2:Dataset", want: consoleCommand{name: "select", args: []string{"uid1", "uid2:Dataset"}}},
		{line: "select", wantErr: true},
		{line: "query q.Id a=1 b=x=y", want: consoleCommand{name: "query", args: []string{"q.Id", "a=1", "b=x=y"}}},
		{line: "query q.Id nokey", wantErr: true},
		{line: "launch", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseConsoleLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(consoleCommand{})); diff != "" {
				t.Errorf("parseConsoleLine(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestParseSelection(t *testing.T) {
	objs := parseSelection([]string{"u1", "u2:Dataset", "u3:"})
	require.Len(t, objs, 3)
	assert.Equal(t, defaultSelectType, objs[0].Type)
	assert.Equal(t, "Dataset", objs[1].Type)
	assert.Equal(t, "u3", objs[2].UID)
	assert.Equal(t, defaultSelectType, objs[2].Type)
}

type consoleFixture struct {
	client, host *stack
	hostLogs     *observer.ObservedLogs
}

func newConsoleFixture(t *testing.T) *consoleFixture {
	t.Helper()
	toHost, toClient := transport.NewLoopback(nil), transport.NewLoopback(nil)
	obs, logs := observer.New(zapcore.InfoLevel)

	client, err := newStack(toHost, interop.RoleClient, config.Default(), zap.NewNop())
	require.NoError(t, err)
	host, err := newStack(toClient, interop.RoleHost, config.Default(), zap.New(obs))
	require.NoError(t, err)
	toHost.Attach(host.peer)
	toClient.Attach(client.peer)

	host.peer.Registry().RegisterMethod(contract.NewDescriptor("test.Echo", contract.Version2019_05),
		service.MethodFunc(func(ctx context.Context, payload string) (string, error) {
			return "echo:" + payload, nil
		}))
	return &consoleFixture{client: client, host: host, hostLogs: logs}
}

func (f *consoleFixture) run(t *testing.T, s *stack, line string) (string, error) {
	t.Helper()
	c, err := parseConsoleLine(line)
	require.NoError(t, err)
	var out bytes.Buffer
	err = runConsoleCommand(context.Background(), s, c, &out)
	return out.String(), err
}

func TestConsoleHandshakeAndServices(t *testing.T) {
	f := newConsoleFixture(t)

	out, err := f.run(t, f.client, "services")
	require.NoError(t, err)
	assert.Equal(t, "(none)\n", out)

	_, err = f.run(t, f.client, "handshake")
	require.NoError(t, err)

	out, err = f.run(t, f.client, "services")
	require.NoError(t, err)
	assert.Contains(t, out, contract.HSLoggerForward)
	assert.Contains(t, out, contract.HSSelectionProvider)
	assert.Contains(t, out, "test.Echo")

	out, err = f.run(t, f.host, "services")
	require.NoError(t, err)
	assert.Contains(t, out, contract.CSSelectionListener)
	assert.Contains(t, out, contract.CSOpenLocation)
}

func TestConsoleCall(t *testing.T) {
	f := newConsoleFixture(t)
	_, err := f.run(t, f.client, "handshake")
	require.NoError(t, err)

	out, err := f.run(t, f.client, "call test.Echo 2019_05 hello world")
	require.NoError(t, err)
	assert.Equal(t, "echo:hello world\n", out)

	_, err = f.run(t, f.client, "call test.Missing 2019_05 x")
	var hostErr *contract.HostError
	assert.ErrorAs(t, err, &hostErr)
}

func TestConsoleQuery(t *testing.T) {
	f := newConsoleFixture(t)
	_, err := f.run(t, f.client, "handshake")
	require.NoError(t, err)

	out, err := f.run(t, f.client, "query "+pingQuery)
	require.NoError(t, err)
	assert.Contains(t, out, pingQuery+": role = host")
	assert.Contains(t, out, pingQuery+": version = "+contract.InteropVersion)
}

func TestConsoleSelect(t *testing.T) {
	f := newConsoleFixture(t)
	_, err := f.run(t, f.client, "handshake")
	require.NoError(t, err)
	require.NoError(t, f.client.peer.MarkStartupComplete(context.Background()))

	_, err = f.run(t, f.client, "select uid1:Dataset")
	require.NoError(t, err)

	assert.Equal(t, 1, f.hostLogs.FilterMessage("client startup").Len())
	assert.Equal(t, 1, f.hostLogs.FilterMessage("selection changed").Len())

	_, err = f.run(t, f.host, "select uid1")
	assert.Error(t, err)
}

func TestConsoleContextAndQuit(t *testing.T) {
	f := newConsoleFixture(t)
	f.client.setHosting(true)

	out, err := f.run(t, f.client, "context")
	require.NoError(t, err)
	assert.Contains(t, out, "aw_hosting_enabled = true")

	_, err = f.run(t, f.client, "quit")
	assert.ErrorIs(t, err, errQuit)
}
